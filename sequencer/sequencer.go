// Package sequencer implements ionova's per-shard Sequencer: micro-block
// production and batch aggregation on fixed ticks (§4.7).
package sequencer

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/vipechan/ionova/mempool"
	"github.com/vipechan/ionova/txn"
)

// Default tick intervals (§4.7).
const (
	DefaultMicroTickInterval = 200 * time.Millisecond
	DefaultBatchTickInterval = 1000 * time.Millisecond
	DefaultMaxBatchSize      = 1000
)

// MicroBlock is one shard's unit of ordering between mempool draws (§3).
type MicroBlock struct {
	ShardID      uint8
	Sequence     uint64
	Timestamp    uint64
	Transactions []txn.Transaction
	StateRoot    [32]byte
}

// BatchCommitment aggregates the micro-blocks produced since the last
// batch tick (§3).
type BatchCommitment struct {
	ShardID          uint8
	BatchSequence    uint64
	MicroBlocks      []MicroBlock
	StateRoot        [32]byte
	TransactionCount int
	Timestamp        uint64
}

// Submitter hands a finished batch to the finality gadget. Returning an
// error signals submission failure, triggering the §4.7 retry-once rule.
type Submitter interface {
	SubmitBatch(ctx context.Context, b BatchCommitment) error
}

// Config holds the Sequencer's tunables (§4.7).
type Config struct {
	ShardID           uint8
	MicroTickInterval time.Duration
	BatchTickInterval time.Duration
	MaxBatchSize      int
}

// DefaultConfig matches §4.7's documented intervals.
func DefaultConfig(shardID uint8) Config {
	return Config{
		ShardID:           shardID,
		MicroTickInterval: DefaultMicroTickInterval,
		BatchTickInterval: DefaultBatchTickInterval,
		MaxBatchSize:      DefaultMaxBatchSize,
	}
}

// Sequencer drains its shard's mempool on two independent ticks and
// forwards finished batches to a Submitter (§4.7, §5 "per-shard state is
// owned by that shard's task").
type Sequencer struct {
	cfg       Config
	mempool   *mempool.Pool
	submitter Submitter
	txIntake  <-chan txn.Transaction

	mu              sync.Mutex
	microBlocks     []MicroBlock
	sequenceCounter uint64
	batchCounter    uint64

	Now func() time.Time
}

// New builds a Sequencer bound to the given shard's mempool. txIntake is
// the inbound transaction channel (§5 "mempool_add" suspension point); it
// may be nil when transactions are added to the mempool by a caller
// directly (e.g. the RPC layer) instead of through this channel.
func New(cfg Config, pool *mempool.Pool, submitter Submitter, txIntake <-chan txn.Transaction) *Sequencer {
	return &Sequencer{
		cfg:       cfg,
		mempool:   pool,
		submitter: submitter,
		txIntake:  txIntake,
		Now:       time.Now,
	}
}

func (s *Sequencer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run drives the micro-block/batch ticks until ctx is canceled, mirroring
// the teacher's ticker-driven loop style (stagedsync stage loop) and the
// original module's tokio::select! over two intervals.
func (s *Sequencer) Run(ctx context.Context) error {
	log.Info("sequencer: starting", "shardID", s.cfg.ShardID)

	microTicker := time.NewTicker(s.cfg.MicroTickInterval)
	defer microTicker.Stop()

	batchTicker := time.NewTicker(s.cfg.BatchTickInterval)
	defer batchTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sequencer: stopping", "shardID", s.cfg.ShardID)
			return ctx.Err()

		case tx, ok := <-s.txIntake:
			if !ok {
				s.txIntake = nil
				continue
			}
			s.onInboundTx(tx)

		case <-microTicker.C:
			s.onMicroTick()

		case <-batchTicker.C:
			s.onBatchTick(ctx)
		}
	}
}

// onInboundTx implements §4.7's "rejected transaction from Mempool
// produces a warning and is dropped; the sequencer does not retry."
func (s *Sequencer) onInboundTx(tx txn.Transaction) {
	if err := s.mempool.Add(tx); err != nil {
		log.Warn("sequencer: transaction rejected", "shardID", s.cfg.ShardID, "err", err)
	}
}

// onMicroTick implements §4.7 "On micro_tick".
func (s *Sequencer) onMicroTick() {
	if s.mempool.Stats().TotalTx == 0 {
		return
	}

	pending := s.mempool.GetBatch(s.cfg.MaxBatchSize)
	if len(pending) == 0 {
		return
	}

	mb := s.produceMicroBlock(pending)

	s.mu.Lock()
	s.microBlocks = append(s.microBlocks, mb)
	s.mu.Unlock()
}

func (s *Sequencer) produceMicroBlock(txs []txn.Transaction) MicroBlock {
	s.mu.Lock()
	seq := s.sequenceCounter
	s.sequenceCounter++
	s.mu.Unlock()

	return MicroBlock{
		ShardID:      s.cfg.ShardID,
		Sequence:     seq,
		Timestamp:    uint64(s.now().Unix()),
		Transactions: txs,
		StateRoot:    microBlockStateRoot(txs),
	}
}

// microBlockStateRoot computes SHA-256(concat(SHA-256(tx_i))) per §3.
func microBlockStateRoot(txs []txn.Transaction) [32]byte {
	h := sha256.New()
	for _, tx := range txs {
		txHash := tx.Hash()
		h.Write(txHash[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// batchStateRoot computes SHA-256(concat(mb.state_root)) per §3.
func batchStateRoot(blocks []MicroBlock) [32]byte {
	h := sha256.New()
	for _, mb := range blocks {
		h.Write(mb.StateRoot[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// onBatchTick implements §4.7 "On batch_tick". A failed submission is
// retried once immediately, within the same tick; the retry is not
// deferred to the next tick. If the retry also fails, the buffer and the
// batch counter are kept, so the next batch tick submits the same
// micro-blocks again (with its own single retry).
func (s *Sequencer) onBatchTick(ctx context.Context) {
	s.mu.Lock()
	if len(s.microBlocks) == 0 {
		s.mu.Unlock()
		return
	}
	blocks := s.microBlocks
	seq := s.batchCounter
	s.mu.Unlock()

	batch := s.buildBatch(blocks, seq)

	if err := s.submitter.SubmitBatch(ctx, batch); err != nil {
		log.Warn("sequencer: batch submission failed, retrying once", "shardID", s.cfg.ShardID, "batchSequence", seq, "err", err)
		if err := s.submitter.SubmitBatch(ctx, batch); err != nil {
			log.Error("sequencer: batch submission failed after retry, buffer retained", "shardID", s.cfg.ShardID, "batchSequence", seq, "err", err)
			return
		}
	}

	s.mu.Lock()
	s.batchCounter++
	s.microBlocks = nil
	s.mu.Unlock()

	log.Info("sequencer: batch committed", "shardID", s.cfg.ShardID, "batchSequence", batch.BatchSequence, "txCount", batch.TransactionCount)
}

func (s *Sequencer) buildBatch(blocks []MicroBlock, seq uint64) BatchCommitment {
	count := 0
	for _, mb := range blocks {
		count += len(mb.Transactions)
	}

	return BatchCommitment{
		ShardID:          s.cfg.ShardID,
		BatchSequence:    seq,
		MicroBlocks:      blocks,
		StateRoot:        batchStateRoot(blocks),
		TransactionCount: count,
		Timestamp:        uint64(s.now().Unix()),
	}
}

// Stats reports the Sequencer's current buffer occupancy for metrics.
type Stats struct {
	BufferedMicroBlocks int
	SequenceCounter     uint64
	BatchCounter        uint64
}

func (s *Sequencer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		BufferedMicroBlocks: len(s.microBlocks),
		SequenceCounter:     s.sequenceCounter,
		BatchCounter:        s.batchCounter,
	}
}
