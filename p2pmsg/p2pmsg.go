// Package p2pmsg defines ionova's two gossip topic envelopes
// (`ionova-blocks`, `ionova-transactions`). It carries only message
// shapes; no gossip transport is implemented here (§6 "P2P" — out of
// scope, referenced only by interface).
package p2pmsg

import "encoding/json"

// Topic names the two gossip topics (§6).
type Topic string

const (
	TopicBlocks       Topic = "ionova-blocks"
	TopicTransactions Topic = "ionova-transactions"
)

// Kind discriminates the block-topic envelope variants (§6).
type Kind string

const (
	KindNewBlock      Kind = "NewBlock"
	KindBlockRequest  Kind = "BlockRequest"
	KindBlockResponse Kind = "BlockResponse"
)

// NewBlock announces a freshly produced block to the block topic.
type NewBlock struct {
	BlockHash          [32]byte `json:"block_hash"`
	BlockData          []byte   `json:"block_data"`
	ValidatorSignature []byte   `json:"validator_signature"`
}

// BlockRequest asks peers for a block by hash.
type BlockRequest struct {
	BlockHash [32]byte `json:"block_hash"`
}

// BlockResponse answers a BlockRequest.
type BlockResponse struct {
	BlockHash [32]byte `json:"block_hash"`
	BlockData []byte   `json:"block_data"`
}

// BlockEnvelope is the tagged union carried on TopicBlocks. Exactly one
// of NewBlock, BlockRequest, BlockResponse is populated, selected by
// Kind (§6 "ionova-blocks: { NewBlock | BlockRequest | BlockResponse }").
type BlockEnvelope struct {
	Kind          Kind           `json:"kind"`
	NewBlock      *NewBlock      `json:"new_block,omitempty"`
	BlockRequest  *BlockRequest  `json:"block_request,omitempty"`
	BlockResponse *BlockResponse `json:"block_response,omitempty"`
}

// NewNewBlockEnvelope wraps a NewBlock message.
func NewNewBlockEnvelope(m NewBlock) BlockEnvelope {
	return BlockEnvelope{Kind: KindNewBlock, NewBlock: &m}
}

// NewBlockRequestEnvelope wraps a BlockRequest message.
func NewBlockRequestEnvelope(m BlockRequest) BlockEnvelope {
	return BlockEnvelope{Kind: KindBlockRequest, BlockRequest: &m}
}

// NewBlockResponseEnvelope wraps a BlockResponse message.
func NewBlockResponseEnvelope(m BlockResponse) BlockEnvelope {
	return BlockEnvelope{Kind: KindBlockResponse, BlockResponse: &m}
}

// NewTransaction announces a mempool-accepted transaction to the
// transaction topic (§6 "ionova-transactions: NewTransaction { tx_hash,
// tx_data }").
type NewTransaction struct {
	TxHash [32]byte `json:"tx_hash"`
	TxData []byte   `json:"tx_data"`
}

// Marshal length-prefixes nothing itself (§6 "length-prefixed" is a
// transport-layer concern, out of scope here); it just produces the
// JSON payload a transport would frame and authenticate.
func (m NewTransaction) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Marshal produces the JSON payload for a block envelope.
func (e BlockEnvelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBlockEnvelope parses a BlockEnvelope from its JSON payload.
func UnmarshalBlockEnvelope(data []byte) (BlockEnvelope, error) {
	var e BlockEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return BlockEnvelope{}, err
	}
	return e, nil
}

// UnmarshalNewTransaction parses a NewTransaction from its JSON payload.
func UnmarshalNewTransaction(data []byte) (NewTransaction, error) {
	var m NewTransaction
	if err := json.Unmarshal(data, &m); err != nil {
		return NewTransaction{}, err
	}
	return m, nil
}
