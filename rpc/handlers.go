package rpc

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"ecdpchain/core"
	"ecdpchain/core/types"
	"ecdpchain/crypto"
	"ecdpchain/mempool"
	"ecdpchain/native/cdp"
)

type blockResult struct {
	Hash  string       `json:"hash"`
	Block *types.Block `json:"block"`
}

type queryParams struct {
	Namespace string `json:"namespace"`
	Path      string `json:"path"`
	Prefix    string `json:"prefix"`
}

type recordResult struct {
	Key   string              `json:"key"`
	Value jsoniter.RawMessage `json:"value"`
}

type unsignedParams struct {
	Kind     string           `json:"kind"`
	Currency types.CurrencyID `json:"currency"`
	Owner    string           `json:"owner"`
}

type producedBlock struct {
	Height   uint64           `json:"height"`
	Hash     string           `json:"hash"`
	TxCount  int              `json:"txCount"`
	Receipts []*types.Receipt `json:"receipts"`
	Events   []*types.Event   `json:"events,omitempty"`
}

func (s *Server) blockNumber(_ *http.Request, _ []jsoniter.RawMessage) (interface{}, *RPCError) {
	return s.node.GetHeight(), nil
}

func (s *Server) getBlockByHeight(_ *http.Request, params []jsoniter.RawMessage) (interface{}, *RPCError) {
	var height uint64
	if rpcErr := decodeParam(params, 0, &height); rpcErr != nil {
		return nil, rpcErr
	}
	block, err := s.node.Chain().GetBlockByHeight(height)
	if err != nil {
		if errors.Is(err, core.ErrBlockNotFound) {
			return nil, &RPCError{Code: codeInvalidParams, Message: "block not found"}
		}
		return nil, serverError(err)
	}
	hash, err := block.Header.Hash()
	if err != nil {
		return nil, serverError(err)
	}
	return blockResult{Hash: hex.EncodeToString(hash), Block: block}, nil
}

func (s *Server) getReceipts(_ *http.Request, params []jsoniter.RawMessage) (interface{}, *RPCError) {
	var raw string
	if rpcErr := decodeParam(params, 0, &raw); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil || len(hash) == 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid block hash"}
	}
	receipts, err := s.node.Chain().Receipts(hash)
	if err != nil {
		return nil, serverError(err)
	}
	if receipts == nil {
		receipts = []*types.Receipt{}
	}
	return receipts, nil
}

func (s *Server) getNonce(_ *http.Request, params []jsoniter.RawMessage) (interface{}, *RPCError) {
	var raw string
	if rpcErr := decodeParam(params, 0, &raw); rpcErr != nil {
		return nil, rpcErr
	}
	who, err := crypto.ParseAccount(raw)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	var nonce uint64
	_ = s.node.View(func(rt *core.Runtime) error {
		nonce = rt.Nonce(who)
		return nil
	})
	return nonce, nil
}

func (s *Server) pendingCount(_ *http.Request, _ []jsoniter.RawMessage) (interface{}, *RPCError) {
	return s.node.PendingCount(), nil
}

func (s *Server) query(_ *http.Request, params []jsoniter.RawMessage) (interface{}, *RPCError) {
	var q queryParams
	if rpcErr := decodeParam(params, 0, &q); rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.node.QueryState(q.Namespace, q.Path)
	if err != nil {
		return nil, queryError(err)
	}
	return jsoniter.RawMessage(res.Value), nil
}

func (s *Server) queryPrefix(_ *http.Request, params []jsoniter.RawMessage) (interface{}, *RPCError) {
	var q queryParams
	if rpcErr := decodeParam(params, 0, &q); rpcErr != nil {
		return nil, rpcErr
	}
	records, err := s.node.QueryPrefix(q.Namespace, q.Prefix)
	if err != nil {
		return nil, queryError(err)
	}
	out := make([]recordResult, 0, len(records))
	for _, rec := range records {
		out = append(out, recordResult{Key: rec.Key, Value: rec.Value})
	}
	return out, nil
}

func queryError(err error) *RPCError {
	if errors.Is(err, core.ErrQueryNotSupported) {
		return &RPCError{Code: codeMethodNotFound, Message: err.Error()}
	}
	return &RPCError{Code: codeInvalidParams, Message: err.Error()}
}

func (s *Server) sendTransaction(_ *http.Request, params []jsoniter.RawMessage) (interface{}, *RPCError) {
	var tx types.Transaction
	if rpcErr := decodeParam(params, 0, &tx); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := s.node.SubmitTx(&tx)
	if err != nil {
		return nil, submitError(err)
	}
	return map[string]string{"hash": hash}, nil
}

func (s *Server) submitUnsigned(r *http.Request, params []jsoniter.RawMessage) (interface{}, *RPCError) {
	var p unsignedParams
	if rpcErr := decodeParam(params, 0, &p); rpcErr != nil {
		return nil, rpcErr
	}
	call := cdp.UnsignedCall{Currency: types.NormalizeCurrency(string(p.Currency))}
	switch strings.ToLower(strings.TrimSpace(p.Kind)) {
	case cdp.CallLiquidate.String():
		call.Kind = cdp.CallLiquidate
	case cdp.CallSettle.String():
		call.Kind = cdp.CallSettle
	default:
		return nil, &RPCError{Code: codeInvalidParams, Message: "kind must be liquidate or settle"}
	}
	owner, err := crypto.ParseAccount(p.Owner)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	call.Owner = owner
	if err := s.node.Submit(r.Context(), call); err != nil {
		return nil, submitError(err)
	}
	return map[string]bool{"accepted": true}, nil
}

func submitError(err error) *RPCError {
	switch {
	case errors.Is(err, mempool.ErrDuplicate):
		return &RPCError{Code: codeDuplicateTx, Message: err.Error()}
	case errors.Is(err, mempool.ErrRejected), errors.Is(err, mempool.ErrAlreadyProvided), errors.Is(err, mempool.ErrPoolFull):
		return &RPCError{Code: codeRejectedTx, Message: err.Error()}
	default:
		return serverError(err)
	}
}

func (s *Server) produceBlock(r *http.Request, _ []jsoniter.RawMessage) (interface{}, *RPCError) {
	result, err := s.node.ProduceBlock(r.Context())
	if err != nil {
		return nil, serverError(err)
	}
	return producedBlock{
		Height:   result.Block.Header.Height,
		Hash:     hex.EncodeToString(result.Hash),
		TxCount:  len(result.Block.Transactions),
		Receipts: result.Receipts,
		Events:   result.Events,
	}, nil
}
