package txn

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipechan/ionova/address"
	"github.com/vipechan/ionova/sig"
)

func sampleAddr(b byte) address.Address {
	var raw [20]byte
	raw[19] = b
	return address.EVM(raw)
}

func baseBuilder() *Builder {
	return NewBuilder().
		SetNonce(0).
		SetFrom(sampleAddr(1)).
		SetTo(sampleAddr(2)).
		SetValue(decimal.Zero).
		SetGasLimit(MinGasLimit).
		SetGasPrice(decimal.NewFromFloat(0.000001)).
		SetSignature(sig.NewECDSASignature([32]byte{}, [32]byte{}, 0)).
		SetPublicKey(sig.NewECDSAPublicKey([33]byte{}))
}

func TestHashDeterministicAcrossSignature(t *testing.T) {
	tx1, err := baseBuilder().Build()
	require.NoError(t, err)

	tx2 := tx1
	tx2.Signature = sig.NewECDSASignature([32]byte{1}, [32]byte{2}, 27)
	tx2.PublicKey = sig.NewDilithiumPublicKey(make([]byte, 4))

	assert.Equal(t, tx1.Hash(), tx2.Hash())
}

func TestCalculateFee_GasCostTimesPrice(t *testing.T) {
	// ECDSA signature, no data: gas_cost = 21000 + 3000 = 24000, and the
	// fee is exactly gas_cost * gas_price (0.024 at 0.000001). Scenario
	// S1's 0.0051 figure comes from feemodel.Calculate and is tested there.
	tx, err := baseBuilder().Build()
	require.NoError(t, err)

	gasCost, err := tx.CalculateGasCost()
	require.NoError(t, err)
	assert.Equal(t, GasBase+GasECDSA, gasCost)

	fee, err := tx.CalculateFee()
	require.NoError(t, err)
	want := decimal.NewFromInt(int64(gasCost)).Mul(tx.GasPrice)
	assert.True(t, fee.Equal(want))
}

func TestBuilder_DataTooLarge_S7(t *testing.T) {
	data := make([]byte, MaxDataLen+1)
	_, err := baseBuilder().SetData(data).Build()
	assert.ErrorIs(t, err, ErrDataTooLarge)
}

func TestBuilder_MissingAddresses(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.ErrorIs(t, err, ErrBuildIncomplete)
}

func TestBuilder_ValueOutOfRange(t *testing.T) {
	_, err := baseBuilder().SetValue(decimal.NewFromInt(-1)).Build()
	assert.ErrorIs(t, err, ErrValueOutOfRange)

	tooBig := MaxValue.Add(decimal.NewFromInt(1))
	_, err = baseBuilder().SetValue(tooBig).Build()
	assert.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestBuilder_GasLimitOutOfRange(t *testing.T) {
	_, err := baseBuilder().SetGasLimit(MinGasLimit - 1).Build()
	assert.ErrorIs(t, err, ErrGasLimitOutOfRange)

	_, err = baseBuilder().SetGasLimit(MaxGasLimit + 1).Build()
	assert.ErrorIs(t, err, ErrGasLimitOutOfRange)
}

func TestValidateNonce(t *testing.T) {
	tx, err := baseBuilder().SetNonce(5).Build()
	require.NoError(t, err)

	assert.NoError(t, tx.ValidateNonce(5))
	assert.ErrorIs(t, tx.ValidateNonce(6), ErrNonceTooLow)
	assert.ErrorIs(t, tx.ValidateNonce(4), ErrNonceTooHigh)
}

func TestIsExpired(t *testing.T) {
	tx, err := baseBuilder().Build()
	require.NoError(t, err)
	assert.False(t, tx.IsExpired(time.Now()))

	past := uint64(1)
	tx.Expiry = &past
	assert.True(t, tx.IsExpired(time.Unix(1000, 0)))
}

func TestCalculateGasCost_MaxDataNoOverflow(t *testing.T) {
	tx, err := baseBuilder().Build()
	require.NoError(t, err)
	tx.Data = make([]byte, MaxDataLen) // within builder limit, no overflow expected here
	_, err = tx.CalculateGasCost()
	assert.NoError(t, err)
}

func TestSigGasCostPerAlgorithm(t *testing.T) {
	cases := []struct {
		algo sig.Algorithm
		want uint64
	}{
		{sig.AlgorithmECDSA, GasECDSA},
		{sig.AlgorithmDilithium, GasDilithium},
		{sig.AlgorithmSPHINCSPlus, GasSPHINCSPlus},
		{sig.AlgorithmHybrid, GasHybrid},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, sigGasCost(c.algo))
	}
}
