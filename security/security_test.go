package security

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipechan/ionova/address"
	"github.com/vipechan/ionova/sig"
	"github.com/vipechan/ionova/txn"
)

func sampleAddr(b byte) address.Address {
	var raw [20]byte
	raw[19] = b
	return address.EVM(raw)
}

func sampleTx(t *testing.T, nonce uint64, gasPrice decimal.Decimal) txn.Transaction {
	t.Helper()
	tx, err := txn.NewBuilder().
		SetNonce(nonce).
		SetFrom(sampleAddr(1)).
		SetTo(sampleAddr(2)).
		SetValue(decimal.Zero).
		SetGasLimit(txn.MinGasLimit).
		SetGasPrice(gasPrice).
		SetSignature(sig.NewECDSASignature([32]byte{1}, [32]byte{2}, 27)).
		SetPublicKey(sig.NewECDSAPublicKey([33]byte{})).
		Build()
	require.NoError(t, err)
	return tx
}

func TestValidateTransaction_Accepts(t *testing.T) {
	v := New(DefaultConfig())
	tx := sampleTx(t, 0, decimal.New(1, 6))
	assert.NoError(t, v.ValidateTransaction(tx))
}

func TestReplayAttack_S4(t *testing.T) {
	v := New(DefaultConfig())
	tx := sampleTx(t, 0, decimal.New(1, 6))

	require.NoError(t, v.ValidateTransaction(tx))
	err := v.ValidateTransaction(tx)
	assert.ErrorIs(t, err, ErrReplayAttack)
}

func TestNonceMonotonicity(t *testing.T) {
	v := New(DefaultConfig())

	require.NoError(t, v.ValidateTransaction(sampleTx(t, 0, decimal.New(1, 6))))
	require.NoError(t, v.ValidateTransaction(sampleTx(t, 1, decimal.New(1, 6))))

	// validateNonce alone (bypassing the replay check) rejects a nonce
	// below the account's committed value.
	err := v.validateNonce(sampleTx(t, 0, decimal.New(1, 6)))
	assert.ErrorIs(t, err, ErrNonceTooLow)
}

func TestNonceGapTooLarge(t *testing.T) {
	v := New(DefaultConfig())
	require.NoError(t, v.ValidateTransaction(sampleTx(t, 0, decimal.New(1, 6))))

	tooFar := sampleTx(t, DefaultMaxNonceGap+1, decimal.New(1, 6))
	err := v.ValidateTransaction(tooFar)
	assert.ErrorIs(t, err, ErrNonceGapTooLarge)
}

func TestGasBounds(t *testing.T) {
	v := New(DefaultConfig())

	lowPrice := sampleTx(t, 0, decimal.New(1, -9))
	err := v.ValidateTransaction(lowPrice)
	assert.ErrorIs(t, err, ErrInsufficientGasPrice)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitTxPerSec = 1
	v := New(cfg)

	fixed := time.Unix(1000, 0)
	v.Now = func() time.Time { return fixed }

	require.NoError(t, v.checkRateLimit(sampleAddr(9)))
	err := v.checkRateLimit(sampleAddr(9))
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestRateLimit_WindowResets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitTxPerSec = 1
	v := New(cfg)

	now := time.Unix(1000, 0)
	v.Now = func() time.Time { return now }
	require.NoError(t, v.checkRateLimit(sampleAddr(9)))

	now = now.Add(2 * time.Second)
	assert.NoError(t, v.checkRateLimit(sampleAddr(9)))
}

func TestValidateBlock_HashMismatch(t *testing.T) {
	v := New(DefaultConfig())
	b := Block{Height: 1, TxHashes: [][32]byte{{1}}}
	err := v.ValidateBlock(b)
	assert.ErrorIs(t, err, ErrInvalidBlockHash)
}

func TestValidateBlock_HashMatches(t *testing.T) {
	v := New(DefaultConfig())
	b := Block{Height: 1, TxHashes: [][32]byte{{1}}}
	b.DeclaredHash = computeBlockHash(b)
	assert.NoError(t, v.ValidateBlock(b))
}

func TestValidateBlock_TooManyTransactions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTxPerBlock = 1
	v := New(cfg)

	b := Block{TxHashes: [][32]byte{{1}, {2}}}
	b.DeclaredHash = computeBlockHash(b)
	err := v.ValidateBlock(b)
	assert.ErrorIs(t, err, ErrTooManyTransactions)
}
