// Package mempool implements ionova's per-shard Mempool: priority-
// ordered transaction pool with capacity, per-account limits, and expiry
// sweep (§4.6).
package mempool

import (
	"container/heap"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/vipechan/ionova/security"
	"github.com/vipechan/ionova/txn"
)

// Default configuration values (§4.6).
const (
	DefaultMaxSize         = 10_000
	DefaultMaxTxAgeSecs    = 3600
	DefaultMaxTxPerAccount = 100
)

// Failure kinds the Mempool can report (§4.6, §7).
var (
	ErrFeeTooLow         = errors.New("mempool: fee too low")
	ErrRateLimitExceeded = errors.New("mempool: rate limit exceeded")
	ErrMempoolFull       = errors.New("mempool: full and nothing evictable")
	ErrTxExists          = errors.New("mempool: transaction already present")
	ErrBadSignature      = errors.New("mempool: bad signature")
	ErrExpired           = errors.New("mempool: transaction expired")
	ErrAccountCapReached = errors.New("mempool: per-account transaction cap reached")
)

// Config holds the Mempool's tunables (§4.6).
type Config struct {
	MaxSize         int
	MaxTxAgeSecs    uint64
	MaxTxPerAccount int
	MinGasPrice     decimal.Decimal
}

// DefaultConfig matches §4.6's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:         DefaultMaxSize,
		MaxTxAgeSecs:    DefaultMaxTxAgeSecs,
		MaxTxPerAccount: DefaultMaxTxPerAccount,
		MinGasPrice:     decimal.New(1, 0),
	}
}

// Entry is one mempool slot (§3 MempoolEntry).
type Entry struct {
	Tx         txn.Transaction
	TxHash     [32]byte
	ReceivedAt time.Time
	GasPrice   decimal.Decimal

	heapIndex int
}

// Stats is a point-in-time snapshot (§4.6).
type Stats struct {
	TotalTx         int
	UniqueAccounts  int
	CapacityPercent float64
}

// Pool is a per-shard, single-task-owned mempool (§5 "Shared-resource
// policy": no cross-shard sharing, so no internal locking).
type Pool struct {
	cfg       Config
	validator *security.Validator

	byHash    map[[32]byte]*Entry
	byAccount map[string][][32]byte // FIFO order
	pq        priorityQueue

	Now func() time.Time
}

// New builds a Pool backed by the given Security Validator.
func New(cfg Config, validator *security.Validator) *Pool {
	return &Pool{
		cfg:       cfg,
		validator: validator,
		byHash:    make(map[[32]byte]*Entry),
		byAccount: make(map[string][][32]byte),
		pq:        priorityQueue{},
		Now:       time.Now,
	}
}

func (p *Pool) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Add runs the §4.6 pipeline: signature verify, security validate,
// duplicate check, evict-if-full, per-account cap, insert.
func (p *Pool) Add(tx txn.Transaction) error {
	ok, err := tx.VerifySignature()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !ok {
		return ErrBadSignature
	}

	if tx.GasPrice.LessThan(p.cfg.MinGasPrice) {
		return fmt.Errorf("%w: %s < %s", ErrFeeTooLow, tx.GasPrice.String(), p.cfg.MinGasPrice.String())
	}

	if err := p.validator.ValidateTransaction(tx); err != nil {
		log.Warn("mempool: security validation rejected transaction", "err", err)
		return err
	}

	if tx.IsExpired(p.now()) {
		return ErrExpired
	}

	h := tx.Hash()
	if _, exists := p.byHash[h]; exists {
		return ErrTxExists
	}

	if len(p.byHash) >= p.cfg.MaxSize {
		if err := p.evictLowestPriority(); err != nil {
			return fmt.Errorf("%w: %v", ErrMempoolFull, err)
		}
	}

	fromKey := tx.From.String()
	if len(p.byAccount[fromKey]) >= p.cfg.MaxTxPerAccount {
		return ErrAccountCapReached
	}

	entry := &Entry{
		Tx:         tx,
		TxHash:     h,
		ReceivedAt: p.now(),
		GasPrice:   tx.GasPrice,
	}

	p.byHash[h] = entry
	p.byAccount[fromKey] = append(p.byAccount[fromKey], h)
	heap.Push(&p.pq, entry)

	log.Info("mempool: accepted transaction", "hash", fmt.Sprintf("%x", h), "gasPrice", tx.GasPrice.String())
	return nil
}

// evictLowestPriority removes an entry with the lowest gas_price to make
// room (§4.6 step 3). Among entries tied at the lowest gas_price, the one
// removed is the first in heap-array order; received_at is not compared.
func (p *Pool) evictLowestPriority() error {
	if p.pq.Len() == 0 {
		return ErrMempoolFull
	}
	lowest := p.pq.lowest()
	p.removeEntry(lowest)
	return nil
}

// removeEntry removes an entry from all indices, including the heap.
func (p *Pool) removeEntry(e *Entry) {
	delete(p.byHash, e.TxHash)

	fromKey := e.Tx.From.String()
	hashes := p.byAccount[fromKey]
	for i, h := range hashes {
		if h == e.TxHash {
			hashes = append(hashes[:i], hashes[i+1:]...)
			break
		}
	}
	if len(hashes) == 0 {
		delete(p.byAccount, fromKey)
	} else {
		p.byAccount[fromKey] = hashes
	}

	if e.heapIndex >= 0 && e.heapIndex < p.pq.Len() && p.pq[e.heapIndex] == e {
		heap.Remove(&p.pq, e.heapIndex)
	}
}

// GetBatch pops up to n highest-priority entries, removing them from all
// indices (§4.6 "Select").
func (p *Pool) GetBatch(n int) []txn.Transaction {
	out := make([]txn.Transaction, 0, n)
	for i := 0; i < n && p.pq.Len() > 0; i++ {
		e := heap.Pop(&p.pq).(*Entry)
		delete(p.byHash, e.TxHash)

		fromKey := e.Tx.From.String()
		hashes := p.byAccount[fromKey]
		for j, h := range hashes {
			if h == e.TxHash {
				hashes = append(hashes[:j], hashes[j+1:]...)
				break
			}
		}
		if len(hashes) == 0 {
			delete(p.byAccount, fromKey)
		} else {
			p.byAccount[fromKey] = hashes
		}

		out = append(out, e.Tx)
	}
	return out
}

// Sweep removes entries older than MaxTxAgeSecs (§4.6 "Sweep").
func (p *Pool) Sweep() {
	now := p.now()
	maxAge := time.Duration(p.cfg.MaxTxAgeSecs) * time.Second

	var stale []*Entry
	for _, e := range p.byHash {
		if now.Sub(e.ReceivedAt) > maxAge {
			stale = append(stale, e)
		}
	}
	for _, e := range stale {
		p.removeEntry(e)
	}
}

// Stats reports pool occupancy (§4.6).
func (p *Pool) Stats() Stats {
	return Stats{
		TotalTx:         len(p.byHash),
		UniqueAccounts:  len(p.byAccount),
		CapacityPercent: float64(len(p.byHash)) / float64(p.cfg.MaxSize) * 100,
	}
}

// priorityQueue orders entries by gas_price descending, FIFO tie-break
// by received_at ascending (§4.6 "Select").
type priorityQueue []*Entry

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	cmp := pq[i].GasPrice.Cmp(pq[j].GasPrice)
	if cmp != 0 {
		return cmp > 0 // higher gas price first
	}
	return pq[i].ReceivedAt.Before(pq[j].ReceivedAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].heapIndex = i
	pq[j].heapIndex = j
}

func (pq *priorityQueue) Push(x any) {
	e := x.(*Entry)
	e.heapIndex = len(*pq)
	*pq = append(*pq, e)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*pq = old[:n-1]
	return e
}

// lowest returns the lowest gas_price entry (for eviction) without
// disturbing heap ordering.
func (pq priorityQueue) lowest() *Entry {
	lowest := pq[0]
	for _, e := range pq[1:] {
		if e.GasPrice.LessThan(lowest.GasPrice) {
			lowest = e
		}
	}
	return lowest
}
