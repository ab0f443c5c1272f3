// Package finality implements ionova's HotStuff-style three-phase
// finality gadget: Prepare/PreCommit/Commit vote collection over a
// stake-weighted validator set, with view timeout (§4.8).
package finality

import (
	"errors"
	"sync"
	"time"

	log "github.com/erigontech/erigon-lib/log/v3"
)

// Phase names one of the three vote collections for a view.
type Phase int

const (
	Prepare Phase = iota
	PreCommit
	Commit
)

func (p Phase) String() string {
	switch p {
	case Prepare:
		return "prepare"
	case PreCommit:
		return "precommit"
	case Commit:
		return "commit"
	default:
		return "unknown"
	}
}

// DefaultViewTimeout matches §4.8/§5's documented default.
const DefaultViewTimeout = 1000 * time.Millisecond

var (
	ErrUnknownValidator = errors.New("finality: unknown or inactive validator")
	ErrNoSuchView       = errors.New("finality: no proposal recorded for view")
	ErrAlreadyFinalized = errors.New("finality: view already finalized")
)

// ValidatorInfo is one entry in the validator set (§4.8).
type ValidatorInfo struct {
	PubKey []byte
	Stake  uint64
	Active bool
}

// ValidatorSet is the stake-weighted set of participants (§4.8).
type ValidatorSet struct {
	mu         sync.RWMutex
	validators map[string]ValidatorInfo
}

// NewValidatorSet builds an empty validator set.
func NewValidatorSet() *ValidatorSet {
	return &ValidatorSet{validators: make(map[string]ValidatorInfo)}
}

// Add inserts or replaces a validator entry.
func (vs *ValidatorSet) Add(id string, info ValidatorInfo) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.validators[id] = info
}

// TotalStake sums the stake of active validators.
func (vs *ValidatorSet) TotalStake() uint64 {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	var total uint64
	for _, v := range vs.validators {
		if v.Active {
			total += v.Stake
		}
	}
	return total
}

// Quorum computes Q = floor(2*total_stake/3) + 1 (§4.8).
func (vs *ValidatorSet) Quorum() uint64 {
	return (2*vs.TotalStake())/3 + 1
}

// lookup returns the validator's info iff it is known and active.
func (vs *ValidatorSet) lookup(id string) (ValidatorInfo, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	info, ok := vs.validators[id]
	if !ok || !info.Active {
		return ValidatorInfo{}, false
	}
	return info, true
}

// VoteSignature records one validator's contribution to a phase (§3 QC).
type VoteSignature struct {
	ValidatorID string
	Signature   []byte
	Stake       uint64
}

// QuorumCertificate is produced once the Commit phase reaches quorum
// (§3, §4.8).
type QuorumCertificate struct {
	View            uint64
	BlockHash       [32]byte
	Signatures      []VoteSignature
	AggregatedStake uint64
}

// Proposal records what a view is voting on (§4.8).
type Proposal struct {
	View      uint64
	BlockHash [32]byte
	Parent    [32]byte
	Proposer  string
	QCPrev    *QuorumCertificate
	CreatedAt time.Time
}

// voteCollection holds the three disjoint per-validator vote sets for a
// single view.
type voteCollection struct {
	prepare   map[string]VoteSignature
	precommit map[string]VoteSignature
	commit    map[string]VoteSignature
}

func newVoteCollection() *voteCollection {
	return &voteCollection{
		prepare:   make(map[string]VoteSignature),
		precommit: make(map[string]VoteSignature),
		commit:    make(map[string]VoteSignature),
	}
}

func (vc *voteCollection) stakeFor(phase Phase) uint64 {
	var m map[string]VoteSignature
	switch phase {
	case Prepare:
		m = vc.prepare
	case PreCommit:
		m = vc.precommit
	case Commit:
		m = vc.commit
	}
	var total uint64
	for _, v := range m {
		total += v.Stake
	}
	return total
}

func (vc *voteCollection) insert(phase Phase, vote VoteSignature) {
	switch phase {
	case Prepare:
		vc.prepare[vote.ValidatorID] = vote
	case PreCommit:
		vc.precommit[vote.ValidatorID] = vote
	case Commit:
		vc.commit[vote.ValidatorID] = vote
	}
}

// Result is the outcome of processing one vote (§4.8 "Transitions").
type Result int

const (
	Pending Result = iota
	PrepareQuorumReached
	PreCommitQuorumReached
	Finalized
)

// Gadget runs the view/vote state machine. Vote collections and the
// validator set are shared across proposer and vote-ingest paths, so
// they are guarded by an RWMutex, writers taking the lock only during
// insertion and transition checks (§5 "Shared-resource policy").
type Gadget struct {
	Validators *ValidatorSet

	mu          sync.RWMutex
	currentView uint64
	proposals   map[uint64]Proposal
	votes       map[uint64]*voteCollection
	finalized   map[uint64]QuorumCertificate

	viewTimeout time.Duration
	Now         func() time.Time
}

// New builds a Gadget bound to the given validator set.
func New(validators *ValidatorSet) *Gadget {
	return &Gadget{
		Validators:  validators,
		proposals:   make(map[uint64]Proposal),
		votes:       make(map[uint64]*voteCollection),
		finalized:   make(map[uint64]QuorumCertificate),
		viewTimeout: DefaultViewTimeout,
		Now:         time.Now,
	}
}

func (g *Gadget) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// CurrentView reports the gadget's active view number.
func (g *Gadget) CurrentView() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.currentView
}

// Propose records a new proposal for view v and initializes its empty
// vote collections (§4.8 "Propose").
func (g *Gadget) Propose(p Proposal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p.CreatedAt = g.now()
	g.proposals[p.View] = p
	g.votes[p.View] = newVoteCollection()
}

// Vote ingests a single validator's signature for the given phase and
// view. Unknown or inactive validators are ignored. Insertion is
// idempotent per (validator, phase) because it is keyed by validator id
// (§4.8 "Vote", "Safety invariants").
func (g *Gadget) Vote(phase Phase, view uint64, blockHash [32]byte, validatorID string, signature []byte) (Result, error) {
	info, ok := g.Validators.lookup(validatorID)
	if !ok {
		return Pending, ErrUnknownValidator
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, finalized := g.finalized[view]; finalized {
		return Pending, ErrAlreadyFinalized
	}

	collection, ok := g.votes[view]
	if !ok {
		return Pending, ErrNoSuchView
	}

	collection.insert(phase, VoteSignature{ValidatorID: validatorID, Signature: signature, Stake: info.Stake})

	quorum := g.Validators.Quorum()
	stake := collection.stakeFor(phase)

	switch phase {
	case Prepare:
		if stake >= quorum {
			log.Info("finality: prepare quorum reached", "view", view)
			return PrepareQuorumReached, nil
		}
	case PreCommit:
		if stake >= quorum {
			log.Info("finality: precommit quorum reached", "view", view)
			return PreCommitQuorumReached, nil
		}
	case Commit:
		if stake >= quorum {
			qc := QuorumCertificate{
				View:            view,
				BlockHash:       blockHash,
				Signatures:      commitSignatures(collection),
				AggregatedStake: stake,
			}
			g.finalized[view] = qc
			log.Info("finality: view finalized", "view", view, "aggregatedStake", stake)
			return Finalized, nil
		}
	}

	return Pending, nil
}

func commitSignatures(vc *voteCollection) []VoteSignature {
	out := make([]VoteSignature, 0, len(vc.commit))
	for _, v := range vc.commit {
		out = append(out, v)
	}
	return out
}

// FinalizedQC returns the durable QC for a view, if it was finalized
// (§4.8 "Safety invariants": a finalized block's QC is durable).
func (g *Gadget) FinalizedQC(view uint64) (QuorumCertificate, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	qc, ok := g.finalized[view]
	return qc, ok
}

// AdvanceView discards the abandoned view's vote collections and
// advances the monotonic view counter (§4.8 "View advancement").
func (g *Gadget) AdvanceView() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.votes, g.currentView)
	g.currentView++
	return g.currentView
}

// CheckTimeout advances the view if its proposal is older than the view
// timeout and has not yet finalized (§4.8 "View advancement", §5
// "Cancellation and timeouts").
func (g *Gadget) CheckTimeout(view uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, finalized := g.finalized[view]; finalized {
		return false
	}
	p, ok := g.proposals[view]
	if !ok {
		return false
	}
	if g.now().Sub(p.CreatedAt) < g.viewTimeout {
		return false
	}

	delete(g.votes, view)
	if view == g.currentView {
		g.currentView++
	}
	log.Warn("finality: view timed out, advancing", "view", view)
	return true
}
