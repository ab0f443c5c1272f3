// Package txn implements ionova's Transaction Model: canonical encoding,
// hashing, gas accounting, nonce/expiry validation, and a validating
// builder.
package txn

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vipechan/ionova/address"
	"github.com/vipechan/ionova/sig"
)

// Gas cost constants (§4.2). The "/2" factor on PQ algorithms is a
// migration-period subsidy.
const (
	GasBase             uint64 = 21_000
	GasECDSA            uint64 = 3_000
	GasDilithium        uint64 = 50_000 / 2
	GasSPHINCSPlus      uint64 = 70_000 / 2
	GasHybrid           uint64 = GasECDSA + GasDilithium
	GasPerDataByte      uint64 = 16
	MinGasLimit         uint64 = 21_000
	MaxGasLimit         uint64 = 10_000_000
	MaxDataLen                 = 1 << 20 // 1 MiB
)

// MaxValue is the builder's upper bound on a transaction's value (§4.2).
var MaxValue = decimal.New(10_000_000_000, 0) // 10^10

// Failure kinds the Transaction Model can report (§4.2, §7).
var (
	ErrGasOverflow        = errors.New("txn: gas accounting overflowed")
	ErrNonceTooLow        = errors.New("txn: nonce too low")
	ErrNonceTooHigh       = errors.New("txn: nonce too high")
	ErrExpired            = errors.New("txn: transaction expired")
	ErrBuildIncomplete    = errors.New("txn: missing required field")
	ErrValueOutOfRange    = errors.New("txn: value out of range")
	ErrGasLimitOutOfRange = errors.New("txn: gas limit out of range")
	ErrDataTooLarge       = errors.New("txn: data exceeds maximum size")
)

// Transaction is the canonical ionova transaction (§3).
type Transaction struct {
	Nonce     uint64
	From      address.Address
	To        address.Address
	Value     decimal.Decimal
	GasLimit  uint64
	GasPrice  decimal.Decimal
	Data      []byte
	Signature sig.Signature
	PublicKey sig.PublicKey
	Expiry    *uint64 // Unix seconds, nil means no expiry
}

// Hash computes the transaction's canonical SHA-256 hash over
// (nonce ‖ value ‖ gas_limit ‖ gas_price ‖ data). Signature and public key
// are excluded, so re-signing never changes the hash (invariant 1).
func (t Transaction) Hash() [32]byte {
	h := sha256.New()

	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], t.Nonce)
	h.Write(nonceBuf[:])

	h.Write([]byte(t.Value.String()))

	var gasBuf [8]byte
	binary.LittleEndian.PutUint64(gasBuf[:], t.GasLimit)
	h.Write(gasBuf[:])

	h.Write([]byte(t.GasPrice.String()))

	h.Write(t.Data)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifySignature checks the transaction's signature over its hash using
// the Signature Engine (§4.1).
func (t Transaction) VerifySignature() (bool, error) {
	h := t.Hash()
	return sig.Verify(h[:], t.Signature, t.PublicKey)
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrGasOverflow
	}
	return sum, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if product/a != b {
		return 0, ErrGasOverflow
	}
	return product, nil
}

// sigGasCost returns the per-algorithm signature gas cost (§4.2).
func sigGasCost(algo sig.Algorithm) uint64 {
	switch algo {
	case sig.AlgorithmECDSA:
		return GasECDSA
	case sig.AlgorithmDilithium:
		return GasDilithium
	case sig.AlgorithmSPHINCSPlus:
		return GasSPHINCSPlus
	case sig.AlgorithmHybrid:
		return GasHybrid
	default:
		return GasECDSA
	}
}

// CalculateGasCost computes total gas cost with overflow-checked
// arithmetic: base + sig_cost + data_cost (§4.2).
func (t Transaction) CalculateGasCost() (uint64, error) {
	dataCost, err := checkedMul(uint64(len(t.Data)), GasPerDataByte)
	if err != nil {
		return 0, err
	}

	total, err := checkedAdd(GasBase, sigGasCost(t.Signature.Algorithm()))
	if err != nil {
		return 0, err
	}
	total, err = checkedAdd(total, dataCost)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CalculateFee computes gas_cost * gas_price using exact decimal
// arithmetic (§4.2, §9 "Decimal arithmetic").
func (t Transaction) CalculateFee() (decimal.Decimal, error) {
	gasCost, err := t.CalculateGasCost()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(int64(gasCost)).Mul(t.GasPrice), nil
}

// ValidateNonce checks tx.Nonce against the account's committed nonce n
// (§4.2). Equality is accepted; the bounded-gap rule lives in the
// Security Validator, not here.
func (t Transaction) ValidateNonce(committed uint64) error {
	switch {
	case t.Nonce < committed:
		return ErrNonceTooLow
	case t.Nonce > committed:
		return ErrNonceTooHigh
	default:
		return nil
	}
}

// IsExpired reports whether the transaction's expiry has passed as of now
// (§4.2).
func (t Transaction) IsExpired(now time.Time) bool {
	if t.Expiry == nil {
		return false
	}
	return uint64(now.Unix()) > *t.Expiry
}

// Builder validates transaction fields at construction time (§4.2).
type Builder struct {
	tx       Transaction
	haveFrom bool
	haveTo   bool
}

// NewBuilder starts a Builder with zero-valued fields.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) SetNonce(n uint64) *Builder {
	b.tx.Nonce = n
	return b
}

func (b *Builder) SetFrom(a address.Address) *Builder {
	b.tx.From = a
	b.haveFrom = true
	return b
}

func (b *Builder) SetTo(a address.Address) *Builder {
	b.tx.To = a
	b.haveTo = true
	return b
}

func (b *Builder) SetValue(v decimal.Decimal) *Builder {
	b.tx.Value = v
	return b
}

func (b *Builder) SetGasLimit(g uint64) *Builder {
	b.tx.GasLimit = g
	return b
}

func (b *Builder) SetGasPrice(p decimal.Decimal) *Builder {
	b.tx.GasPrice = p
	return b
}

func (b *Builder) SetData(d []byte) *Builder {
	b.tx.Data = d
	return b
}

func (b *Builder) SetSignature(s sig.Signature) *Builder {
	b.tx.Signature = s
	return b
}

func (b *Builder) SetPublicKey(pk sig.PublicKey) *Builder {
	b.tx.PublicKey = pk
	return b
}

func (b *Builder) SetExpiry(e uint64) *Builder {
	b.tx.Expiry = &e
	return b
}

// Build validates accumulated fields and returns the finished Transaction
// (§4.2 "Builder constraints").
func (b *Builder) Build() (Transaction, error) {
	if !b.haveFrom || !b.haveTo {
		return Transaction{}, ErrBuildIncomplete
	}
	if b.tx.Value.IsNegative() || b.tx.Value.GreaterThan(MaxValue) {
		return Transaction{}, fmt.Errorf("%w: value %s", ErrValueOutOfRange, b.tx.Value.String())
	}
	if b.tx.GasLimit < MinGasLimit || b.tx.GasLimit > MaxGasLimit {
		return Transaction{}, fmt.Errorf("%w: gas_limit %d", ErrGasLimitOutOfRange, b.tx.GasLimit)
	}
	if len(b.tx.Data) > MaxDataLen {
		return Transaction{}, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, len(b.tx.Data))
	}
	return b.tx, nil
}
