// Package security implements ionova's Security Validator: replay cache,
// nonce monotonicity, gas bounds, per-account rate limiting, and
// block-level checks (§4.5).
package security

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vipechan/ionova/address"
	"github.com/vipechan/ionova/txn"
)

// Default configuration values (§4.5).
const (
	DefaultMaxTxPerBlock     = 10_000
	DefaultMaxBlockSize      = 10_000_000
	DefaultMaxGasPerTx       = 10_000_000
	DefaultRateLimitTxPerSec = 100
	DefaultMaxNonceGap       = 100
	replayCacheTTL           = 3600 * time.Second
	rateLimiterIdleTTL       = 10 * time.Second
)

// DefaultMinGasPrice matches feemodel's dynamic-fee floor: the minimum
// gas price the Security Validator will accept (§4.5).
var DefaultMinGasPrice = decimal.New(1, -6) // 0.000001

// Failure kinds the Security Validator can report (§4.5, §7).
var (
	ErrInvalidSignature     = errors.New("security: invalid signature")
	ErrReplayAttack         = errors.New("security: replay attack detected")
	ErrNonceTooLow          = errors.New("security: nonce too low")
	ErrNonceGapTooLarge     = errors.New("security: nonce gap too large")
	ErrInsufficientGasPrice = errors.New("security: gas price below minimum")
	ErrExcessiveGas         = errors.New("security: gas limit above maximum")
	ErrRateLimitExceeded    = errors.New("security: rate limit exceeded")
	ErrBlockTooLarge        = errors.New("security: block too large")
	ErrTooManyTransactions  = errors.New("security: too many transactions in block")
	ErrInvalidBlockHash     = errors.New("security: block hash mismatch")
)

// Config holds the Security Validator's tunables (§4.5).
type Config struct {
	MaxTxPerBlock     int
	MaxBlockSize      int
	MinGasPrice       decimal.Decimal
	MaxGasPerTx       uint64
	RateLimitTxPerSec uint32
	MaxNonceGap       uint64
}

// DefaultConfig matches §4.5's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxTxPerBlock:     DefaultMaxTxPerBlock,
		MaxBlockSize:      DefaultMaxBlockSize,
		MinGasPrice:       DefaultMinGasPrice,
		MaxGasPerTx:       DefaultMaxGasPerTx,
		RateLimitTxPerSec: DefaultRateLimitTxPerSec,
		MaxNonceGap:       DefaultMaxNonceGap,
	}
}

type rateEntry struct {
	count    uint32
	windowAt time.Time
}

// Validator is stateful and single-threaded within its shard (§4.5, §5
// "Shared-resource policy": per-shard state is owned by that shard's
// task, no cross-shard sharing, so no internal locking is needed here).
type Validator struct {
	cfg Config

	nonceTracker  map[string]uint64
	replayTracker map[[32]byte]time.Time
	rateLimiter   map[string]rateEntry

	// Now lets tests inject a deterministic clock; defaults to time.Now.
	Now func() time.Time
}

// New builds a Validator with the given config.
func New(cfg Config) *Validator {
	return &Validator{
		cfg:           cfg,
		nonceTracker:  make(map[string]uint64),
		replayTracker: make(map[[32]byte]time.Time),
		rateLimiter:   make(map[string]rateEntry),
		Now:           time.Now,
	}
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// ValidateTransaction runs the full §4.5 pipeline: signature presence,
// replay check, nonce monotonicity, gas bounds, rate limit.
func (v *Validator) ValidateTransaction(tx txn.Transaction) error {
	if err := v.validateSignaturePresence(tx); err != nil {
		return err
	}
	if err := v.checkReplay(tx); err != nil {
		return err
	}
	if err := v.validateNonce(tx); err != nil {
		return err
	}
	if err := v.validateGas(tx); err != nil {
		return err
	}
	if err := v.checkRateLimit(tx.From); err != nil {
		return err
	}
	return nil
}

// validateSignaturePresence rejects a signature whose encoded size is
// zero (an empty Dilithium or SPHINCS+ payload) before the Signature
// Engine is invoked (§4.5). ECDSA envelopes are fixed-size arrays in
// sig.Signature, so they always report 65 bytes and pass this check.
func (v *Validator) validateSignaturePresence(tx txn.Transaction) error {
	if tx.Signature.Size() == 0 {
		return ErrInvalidSignature
	}
	return nil
}

// checkReplay rejects a transaction whose hash has already been seen
// within the replay window, and lazily sweeps expired entries (§4.5).
func (v *Validator) checkReplay(tx txn.Transaction) error {
	h := tx.Hash()
	now := v.now()

	if _, seen := v.replayTracker[h]; seen {
		return ErrReplayAttack
	}
	v.replayTracker[h] = now

	for hash, seenAt := range v.replayTracker {
		if now.Sub(seenAt) >= replayCacheTTL {
			delete(v.replayTracker, hash)
		}
	}
	return nil
}

// validateNonce enforces the bounded-gap rule: accept iff
// n <= tx.nonce <= n + max_nonce_gap, then advance n (§4.5).
func (v *Validator) validateNonce(tx txn.Transaction) error {
	key := tx.From.String()
	current := v.nonceTracker[key]

	if tx.Nonce < current {
		return fmt.Errorf("%w: %d < %d", ErrNonceTooLow, tx.Nonce, current)
	}
	if tx.Nonce > current+v.cfg.MaxNonceGap {
		return fmt.Errorf("%w: %d > %d + %d", ErrNonceGapTooLarge, tx.Nonce, current, v.cfg.MaxNonceGap)
	}

	v.nonceTracker[key] = tx.Nonce
	return nil
}

// validateGas enforces gas_price >= min_gas_price and gas_limit <=
// max_gas_per_tx (§4.5).
func (v *Validator) validateGas(tx txn.Transaction) error {
	if tx.GasPrice.LessThan(v.cfg.MinGasPrice) {
		return fmt.Errorf("%w: %s < %s", ErrInsufficientGasPrice, tx.GasPrice.String(), v.cfg.MinGasPrice.String())
	}
	if tx.GasLimit > v.cfg.MaxGasPerTx {
		return fmt.Errorf("%w: %d > %d", ErrExcessiveGas, tx.GasLimit, v.cfg.MaxGasPerTx)
	}
	return nil
}

// checkRateLimit enforces a per-account sliding 1-second window (§4.5).
func (v *Validator) checkRateLimit(from address.Address) error {
	key := from.String()
	now := v.now()

	entry, ok := v.rateLimiter[key]
	if !ok || now.Sub(entry.windowAt) >= time.Second {
		entry = rateEntry{count: 1, windowAt: now}
	} else {
		entry.count++
	}

	if entry.count > v.cfg.RateLimitTxPerSec {
		return fmt.Errorf("%w: account exceeded %d tx/sec", ErrRateLimitExceeded, v.cfg.RateLimitTxPerSec)
	}

	v.rateLimiter[key] = entry
	return nil
}

// Cleanup sweeps the replay cache (age > 3600s) and rate-limit table
// (idle > 10s), per §4.5's periodic cleanup.
func (v *Validator) Cleanup() {
	now := v.now()

	for hash, seenAt := range v.replayTracker {
		if now.Sub(seenAt) >= replayCacheTTL {
			delete(v.replayTracker, hash)
		}
	}
	for key, entry := range v.rateLimiter {
		if now.Sub(entry.windowAt) >= rateLimiterIdleTTL {
			delete(v.rateLimiter, key)
		}
	}
}

// Block is the minimal shape the Security Validator checks at block
// level (§4.5). It is not the canonical block type of the Sequencer —
// that lives in sequencer/ — just the fields this validator needs.
type Block struct {
	Height       uint64
	PreviousHash [32]byte
	Timestamp    uint64
	TxHashes     [][32]byte
	DeclaredHash [32]byte
}

// ValidateBlock checks size, tx count, and the declared hash against the
// canonical recomputation (§4.5).
func (v *Validator) ValidateBlock(b Block) error {
	size := estimateBlockSize(len(b.TxHashes))
	if size > v.cfg.MaxBlockSize {
		return fmt.Errorf("%w: %d > %d", ErrBlockTooLarge, size, v.cfg.MaxBlockSize)
	}
	if len(b.TxHashes) > v.cfg.MaxTxPerBlock {
		return fmt.Errorf("%w: %d > %d", ErrTooManyTransactions, len(b.TxHashes), v.cfg.MaxTxPerBlock)
	}

	if computeBlockHash(b) != b.DeclaredHash {
		return ErrInvalidBlockHash
	}
	return nil
}

func estimateBlockSize(txCount int) int {
	return txCount*200 + 1000
}

func computeBlockHash(b Block) [32]byte {
	h := sha256.New()

	var heightBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], b.Height)
	h.Write(heightBuf[:])

	h.Write(b.PreviousHash[:])

	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], b.Timestamp)
	h.Write(tsBuf[:])

	for _, txHash := range b.TxHashes {
		h.Write(txHash[:])
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
