package p2pmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlockEnvelopeRoundTrip(t *testing.T) {
	env := NewNewBlockEnvelope(NewBlock{
		BlockHash:          [32]byte{1, 2, 3},
		BlockData:          []byte("data"),
		ValidatorSignature: []byte("sig"),
	})

	data, err := env.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalBlockEnvelope(data)
	require.NoError(t, err)

	assert.Equal(t, KindNewBlock, got.Kind)
	require.NotNil(t, got.NewBlock)
	assert.Equal(t, env.NewBlock.BlockHash, got.NewBlock.BlockHash)
	assert.Equal(t, env.NewBlock.BlockData, got.NewBlock.BlockData)
	assert.Nil(t, got.BlockRequest)
	assert.Nil(t, got.BlockResponse)
}

func TestBlockRequestResponseEnvelopes(t *testing.T) {
	reqEnv := NewBlockRequestEnvelope(BlockRequest{BlockHash: [32]byte{9}})
	data, err := reqEnv.Marshal()
	require.NoError(t, err)
	got, err := UnmarshalBlockEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, KindBlockRequest, got.Kind)
	require.NotNil(t, got.BlockRequest)
	assert.Equal(t, [32]byte{9}, got.BlockRequest.BlockHash)

	respEnv := NewBlockResponseEnvelope(BlockResponse{BlockHash: [32]byte{9}, BlockData: []byte("block")})
	data, err = respEnv.Marshal()
	require.NoError(t, err)
	got, err = UnmarshalBlockEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, KindBlockResponse, got.Kind)
	require.NotNil(t, got.BlockResponse)
	assert.Equal(t, []byte("block"), got.BlockResponse.BlockData)
}

func TestNewTransactionRoundTrip(t *testing.T) {
	m := NewTransaction{TxHash: [32]byte{4, 5, 6}, TxData: []byte("tx-bytes")}
	data, err := m.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalNewTransaction(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestTopicConstants(t *testing.T) {
	assert.Equal(t, Topic("ionova-blocks"), TopicBlocks)
	assert.Equal(t, Topic("ionova-transactions"), TopicTransactions)
}
