// Package rpcapi implements ionova's JSON-RPC 2.0 surface: the five
// methods named in §6, bound to the Mempool and an in-memory
// balance/nonce view (§6 "RPC").
package rpcapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/vipechan/ionova/address"
	"github.com/vipechan/ionova/mempool"
	"github.com/vipechan/ionova/sig"
	"github.com/vipechan/ionova/txn"
)

// JSON-RPC error codes (§6).
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeDomainError    = -32000
)

// ClientVersion is returned by web3_clientVersion.
const ClientVersion = "Ionova/v0.1.0"

// BaseChainID is added to the shard id to produce eth_chainId (§6).
const BaseChainID = 31337

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AccountView is the in-memory balance/nonce store backing
// eth_getBalance / eth_getTransactionCount (§6).
type AccountView struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	nonces   map[string]uint64
}

// NewAccountView builds an empty view.
func NewAccountView() *AccountView {
	return &AccountView{
		balances: make(map[string]decimal.Decimal),
		nonces:   make(map[string]uint64),
	}
}

// SetBalance records a balance for an address (test/bootstrap seam).
func (a *AccountView) SetBalance(addr address.Address, bal decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[addr.String()] = bal
}

// Balance reports an address's balance (defaulting to zero).
func (a *AccountView) Balance(addr address.Address) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balances[addr.String()]
}

// SetNonce records the next expected nonce for an address.
func (a *AccountView) SetNonce(addr address.Address, nonce uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nonces[addr.String()] = nonce
}

// Nonce reports an address's transaction count (defaulting to zero).
func (a *AccountView) Nonce(addr address.Address) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nonces[addr.String()]
}

// Server is the JSON-RPC HTTP binding for one shard's core services.
type Server struct {
	ShardID uint8
	Pool    *mempool.Pool
	Account *AccountView
}

// New builds a Server for the given shard.
func New(shardID uint8, pool *mempool.Pool, account *AccountView) *Server {
	return &Server{ShardID: shardID, Pool: pool, Account: account}
}

// Router builds the chi mux exposing the JSON-RPC POST endpoint (§6).
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	return r
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: CodeInvalidParams, Message: "invalid request body"}})
		return
	}

	var params []json.RawMessage
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeJSON(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: CodeInvalidParams, Message: "invalid params array"}})
			return
		}
	}

	resp := s.dispatch(req.Method, params)
	resp.JSONRPC = "2.0"
	resp.ID = req.ID
	writeJSON(w, resp)
}

func (s *Server) dispatch(method string, params []json.RawMessage) rpcResponse {
	switch method {
	case "web3_clientVersion":
		return success(ClientVersion)
	case "eth_chainId":
		return success(fmt.Sprintf("0x%x", BaseChainID+uint64(s.ShardID)))
	case "eth_sendRawTransaction":
		return s.handleSendRawTransaction(params)
	case "eth_getBalance":
		return s.handleGetBalance(params)
	case "eth_getTransactionCount":
		return s.handleGetTransactionCount(params)
	default:
		return failure(CodeMethodNotFound, "method not found")
	}
}

func (s *Server) handleSendRawTransaction(params []json.RawMessage) rpcResponse {
	if len(params) < 1 {
		return failure(CodeInvalidParams, "eth_sendRawTransaction requires one parameter")
	}

	raw := params[0]

	// The parameter may be a JSON object or a string containing JSON
	// (§6 "Transaction JSON schema").
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		raw = json.RawMessage(asString)
	}

	var dto transactionDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return failure(CodeInvalidParams, fmt.Sprintf("invalid transaction: %v", err))
	}

	tx, err := dto.toTransaction()
	if err != nil {
		return failure(CodeInvalidParams, fmt.Sprintf("invalid transaction: %v", err))
	}

	if err := s.Pool.Add(tx); err != nil {
		log.Warn("rpcapi: eth_sendRawTransaction rejected", "err", err)
		return failure(CodeDomainError, err.Error())
	}

	return success("0x1")
}

func (s *Server) handleGetBalance(params []json.RawMessage) rpcResponse {
	addr, err := addressParam(params, 0)
	if err != nil {
		return failure(CodeInvalidParams, err.Error())
	}
	bal := s.Account.Balance(addr)
	return success("0x" + strconv.FormatInt(bal.IntPart(), 16))
}

func (s *Server) handleGetTransactionCount(params []json.RawMessage) rpcResponse {
	addr, err := addressParam(params, 0)
	if err != nil {
		return failure(CodeInvalidParams, err.Error())
	}
	nonce := s.Account.Nonce(addr)
	return success("0x" + strconv.FormatUint(nonce, 16))
}

func addressParam(params []json.RawMessage, idx int) (address.Address, error) {
	if len(params) <= idx {
		return address.Address{}, errors.New("missing address parameter")
	}
	var raw string
	if err := json.Unmarshal(params[idx], &raw); err != nil {
		return address.Address{}, errors.New("address parameter must be a string")
	}
	return decodeAddress(raw)
}

func success(result interface{}) rpcResponse {
	return rpcResponse{Result: result}
}

func failure(code int, message string) rpcResponse {
	return rpcResponse{Error: &rpcError{Code: code, Message: message}}
}

func writeJSON(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("rpcapi: failed to encode response", "err", err)
	}
}

// transactionDTO mirrors §3/§6's Transaction JSON schema with variant
// tags for signature and public_key.
type transactionDTO struct {
	Nonce     uint64          `json:"nonce"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Value     decimal.Decimal `json:"value"`
	GasLimit  uint64          `json:"gas_limit"`
	GasPrice  decimal.Decimal `json:"gas_price"`
	Data      string          `json:"data,omitempty"`
	Signature sigDTO          `json:"signature"`
	PublicKey pubKeyDTO       `json:"public_key"`
	Expiry    *uint64         `json:"expiry,omitempty"`
}

type sigDTO struct {
	Type  string  `json:"type"`
	R     string  `json:"r,omitempty"`
	S     string  `json:"s,omitempty"`
	V     *uint8  `json:"v,omitempty"`
	Data  string  `json:"data,omitempty"`
	ECDSA *sigDTO `json:"ecdsa,omitempty"`
	PQ    *sigDTO `json:"pq,omitempty"`
}

func (d sigDTO) toSignature() (sig.Signature, error) {
	switch d.Type {
	case "ECDSA":
		r, err := decodeHex32(d.R)
		if err != nil {
			return sig.Signature{}, fmt.Errorf("signature.r: %w", err)
		}
		s, err := decodeHex32(d.S)
		if err != nil {
			return sig.Signature{}, fmt.Errorf("signature.s: %w", err)
		}
		var v uint8
		if d.V != nil {
			v = *d.V
		}
		return sig.NewECDSASignature(r, s, v), nil
	case "Dilithium":
		data, err := hex.DecodeString(strings.TrimPrefix(d.Data, "0x"))
		if err != nil {
			return sig.Signature{}, fmt.Errorf("signature.data: %w", err)
		}
		return sig.NewDilithiumSignature(data), nil
	case "SPHINCSPlus":
		data, err := hex.DecodeString(strings.TrimPrefix(d.Data, "0x"))
		if err != nil {
			return sig.Signature{}, fmt.Errorf("signature.data: %w", err)
		}
		return sig.NewSPHINCSPlusSignature(data), nil
	case "Hybrid":
		if d.ECDSA == nil || d.PQ == nil {
			return sig.Signature{}, errors.New("hybrid signature requires ecdsa and pq legs")
		}
		ecdsaLeg, err := d.ECDSA.toSignature()
		if err != nil {
			return sig.Signature{}, err
		}
		pqLeg, err := d.PQ.toSignature()
		if err != nil {
			return sig.Signature{}, err
		}
		return sig.NewHybridSignature(ecdsaLeg, pqLeg), nil
	default:
		return sig.Signature{}, fmt.Errorf("unknown signature type %q", d.Type)
	}
}

type pubKeyDTO struct {
	Type  string     `json:"type"`
	Data  string     `json:"data,omitempty"`
	ECDSA *pubKeyDTO `json:"ecdsa,omitempty"`
	PQ    *pubKeyDTO `json:"pq,omitempty"`
}

func (d pubKeyDTO) toPublicKey() (sig.PublicKey, error) {
	switch d.Type {
	case "ECDSA":
		b, err := hex.DecodeString(strings.TrimPrefix(d.Data, "0x"))
		if err != nil || len(b) != 33 {
			return sig.PublicKey{}, errors.New("public_key.data must be 33 bytes hex for ECDSA")
		}
		var fixed [33]byte
		copy(fixed[:], b)
		return sig.NewECDSAPublicKey(fixed), nil
	case "Dilithium":
		b, err := hex.DecodeString(strings.TrimPrefix(d.Data, "0x"))
		if err != nil {
			return sig.PublicKey{}, fmt.Errorf("public_key.data: %w", err)
		}
		return sig.NewDilithiumPublicKey(b), nil
	case "SPHINCSPlus":
		b, err := hex.DecodeString(strings.TrimPrefix(d.Data, "0x"))
		if err != nil {
			return sig.PublicKey{}, fmt.Errorf("public_key.data: %w", err)
		}
		return sig.NewSPHINCSPlusPublicKey(b), nil
	case "Hybrid":
		if d.ECDSA == nil || d.PQ == nil {
			return sig.PublicKey{}, errors.New("hybrid public_key requires ecdsa and pq legs")
		}
		ecdsaLeg, err := d.ECDSA.toPublicKey()
		if err != nil {
			return sig.PublicKey{}, err
		}
		pqLeg, err := d.PQ.toPublicKey()
		if err != nil {
			return sig.PublicKey{}, err
		}
		return sig.NewHybridPublicKey(ecdsaLeg, pqLeg), nil
	default:
		return sig.PublicKey{}, fmt.Errorf("unknown public_key type %q", d.Type)
	}
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) != 32 {
		return out, errors.New("expected 32 bytes hex")
	}
	copy(out[:], b)
	return out, nil
}

func decodeAddress(s string) (address.Address, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) != 20 {
		return address.Address{}, errors.New("expected a 20-byte hex address")
	}
	var fixed [20]byte
	copy(fixed[:], b)
	return address.EVM(fixed), nil
}

func (d transactionDTO) toTransaction() (txn.Transaction, error) {
	from, err := decodeAddress(d.From)
	if err != nil {
		return txn.Transaction{}, fmt.Errorf("from: %w", err)
	}
	to, err := decodeAddress(d.To)
	if err != nil {
		return txn.Transaction{}, fmt.Errorf("to: %w", err)
	}

	var data []byte
	if d.Data != "" {
		data, err = hex.DecodeString(strings.TrimPrefix(d.Data, "0x"))
		if err != nil {
			return txn.Transaction{}, fmt.Errorf("data: %w", err)
		}
	}

	signature, err := d.Signature.toSignature()
	if err != nil {
		return txn.Transaction{}, err
	}
	publicKey, err := d.PublicKey.toPublicKey()
	if err != nil {
		return txn.Transaction{}, err
	}

	builder := txn.NewBuilder().
		SetNonce(d.Nonce).
		SetFrom(from).
		SetTo(to).
		SetValue(d.Value).
		SetGasLimit(d.GasLimit).
		SetGasPrice(d.GasPrice).
		SetData(data).
		SetSignature(signature).
		SetPublicKey(publicKey)

	if d.Expiry != nil {
		builder = builder.SetExpiry(*d.Expiry)
	}

	return builder.Build()
}
