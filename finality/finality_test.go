package finality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourValidatorSet() *ValidatorSet {
	vs := NewValidatorSet()
	for _, id := range []string{"v1", "v2", "v3", "v4"} {
		vs.Add(id, ValidatorInfo{Stake: 100, Active: true})
	}
	return vs
}

func TestQuorumThreshold_S6(t *testing.T) {
	vs := fourValidatorSet()
	assert.Equal(t, uint64(400), vs.TotalStake())
	assert.Equal(t, uint64(267), vs.Quorum())
}

func TestFinalized_S6(t *testing.T) {
	vs := fourValidatorSet()
	g := New(vs)

	blockHash := [32]byte{7}
	g.Propose(Proposal{View: 1, BlockHash: blockHash})

	var last Result
	var err error
	last, err = g.Vote(Commit, 1, blockHash, "v1", []byte("sig1"))
	require.NoError(t, err)
	assert.Equal(t, Pending, last)

	last, err = g.Vote(Commit, 1, blockHash, "v2", []byte("sig2"))
	require.NoError(t, err)
	assert.Equal(t, Pending, last)

	last, err = g.Vote(Commit, 1, blockHash, "v3", []byte("sig3"))
	require.NoError(t, err)
	assert.Equal(t, Finalized, last)

	qc, ok := g.FinalizedQC(1)
	require.True(t, ok)
	assert.Equal(t, uint64(300), qc.AggregatedStake)
	assert.Equal(t, blockHash, qc.BlockHash)
	assert.Len(t, qc.Signatures, 3)
}

func TestPrepareAndPreCommitQuorumTransitions(t *testing.T) {
	vs := fourValidatorSet()
	g := New(vs)
	blockHash := [32]byte{9}
	g.Propose(Proposal{View: 1, BlockHash: blockHash})

	for i, id := range []string{"v1", "v2"} {
		res, err := g.Vote(Prepare, 1, blockHash, id, nil)
		require.NoError(t, err)
		if i < 1 {
			assert.Equal(t, Pending, res)
		}
	}
	res, err := g.Vote(Prepare, 1, blockHash, "v3", nil)
	require.NoError(t, err)
	assert.Equal(t, PrepareQuorumReached, res)

	res, err = g.Vote(PreCommit, 1, blockHash, "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, Pending, res)
	res, err = g.Vote(PreCommit, 1, blockHash, "v2", nil)
	require.NoError(t, err)
	assert.Equal(t, Pending, res)
	res, err = g.Vote(PreCommit, 1, blockHash, "v3", nil)
	require.NoError(t, err)
	assert.Equal(t, PreCommitQuorumReached, res)
}

func TestVoteFromUnknownValidatorIgnored(t *testing.T) {
	vs := fourValidatorSet()
	g := New(vs)
	blockHash := [32]byte{1}
	g.Propose(Proposal{View: 1, BlockHash: blockHash})

	_, err := g.Vote(Commit, 1, blockHash, "ghost", nil)
	assert.ErrorIs(t, err, ErrUnknownValidator)
}

func TestVoteIdempotentPerValidatorPhase(t *testing.T) {
	vs := fourValidatorSet()
	g := New(vs)
	blockHash := [32]byte{3}
	g.Propose(Proposal{View: 1, BlockHash: blockHash})

	_, err := g.Vote(Commit, 1, blockHash, "v1", []byte("first"))
	require.NoError(t, err)
	_, err = g.Vote(Commit, 1, blockHash, "v1", []byte("second"))
	require.NoError(t, err)

	g.mu.RLock()
	stake := g.votes[1].stakeFor(Commit)
	g.mu.RUnlock()
	assert.Equal(t, uint64(100), stake)
}

func TestVoteOnUnknownViewErrors(t *testing.T) {
	vs := fourValidatorSet()
	g := New(vs)
	_, err := g.Vote(Commit, 42, [32]byte{}, "v1", nil)
	assert.ErrorIs(t, err, ErrNoSuchView)
}

func TestAdvanceViewDiscardsVotes(t *testing.T) {
	vs := fourValidatorSet()
	g := New(vs)
	blockHash := [32]byte{5}
	g.Propose(Proposal{View: 0, BlockHash: blockHash})
	_, err := g.Vote(Prepare, 0, blockHash, "v1", nil)
	require.NoError(t, err)

	next := g.AdvanceView()
	assert.Equal(t, uint64(1), next)

	_, err = g.Vote(Prepare, 0, blockHash, "v2", nil)
	assert.ErrorIs(t, err, ErrNoSuchView)
}

func TestCheckTimeoutAdvancesStaleView(t *testing.T) {
	vs := fourValidatorSet()
	g := New(vs)
	start := time.Unix(1000, 0)
	g.Now = func() time.Time { return start }

	blockHash := [32]byte{6}
	g.Propose(Proposal{View: 0, BlockHash: blockHash})

	assert.False(t, g.CheckTimeout(0))

	g.Now = func() time.Time { return start.Add(DefaultViewTimeout + time.Millisecond) }
	assert.True(t, g.CheckTimeout(0))
	assert.Equal(t, uint64(1), g.CurrentView())
}

func TestVoteAfterFinalizedRejected(t *testing.T) {
	vs := fourValidatorSet()
	g := New(vs)
	blockHash := [32]byte{8}
	g.Propose(Proposal{View: 1, BlockHash: blockHash})

	for _, id := range []string{"v1", "v2", "v3"} {
		_, err := g.Vote(Commit, 1, blockHash, id, nil)
		require.NoError(t, err)
	}

	_, err := g.Vote(Commit, 1, blockHash, "v4", nil)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}
