package rpc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"ecdpchain/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeDuplicateTx    = -32010
	codeRejectedTx     = -32011
	codeRateLimited    = -32020
)

type RPCRequest struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  []jsoniter.RawMessage `json:"params"`
	ID      interface{}           `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// methodAccess says who may call a method.
type methodAccess int

const (
	accessPublic methodAccess = iota
	accessThrottled
	accessAdmin
)

type method struct {
	access  methodAccess
	handler func(s *Server, r *http.Request, params []jsoniter.RawMessage) (interface{}, *RPCError)
}

var methods = map[string]method{
	"ecdp_blockNumber":      {accessPublic, (*Server).blockNumber},
	"ecdp_getBlockByHeight": {accessPublic, (*Server).getBlockByHeight},
	"ecdp_getReceipts":      {accessPublic, (*Server).getReceipts},
	"ecdp_getNonce":         {accessPublic, (*Server).getNonce},
	"ecdp_pendingCount":     {accessPublic, (*Server).pendingCount},
	"ecdp_query":            {accessPublic, (*Server).query},
	"ecdp_queryPrefix":      {accessPublic, (*Server).queryPrefix},
	"ecdp_sendTransaction":  {accessThrottled, (*Server).sendTransaction},
	"ecdp_submitUnsigned":   {accessThrottled, (*Server).submitUnsigned},
	"admin_produceBlock":    {accessAdmin, (*Server).produceBlock},
}

func writeError(w http.ResponseWriter, status int, id interface{}, rpcErr *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// handle decodes one JSON-RPC request and routes it to its method.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, &RPCError{Code: codeInvalidRequest, Message: message})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}
	m, ok := methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)})
		return
	}

	started := time.Now()
	switch m.access {
	case accessAdmin:
		if authErr := s.auth.authorize(r); authErr != nil {
			metrics.RPC().RecordThrottle("unauthorized")
			s.logger.Warn("rpc: admin call refused", "method", req.Method, "reason", authErr.Message)
			writeError(w, http.StatusUnauthorized, req.ID, authErr)
			return
		}
	case accessThrottled:
		if !s.limiter.allow(clientSource(r)) {
			metrics.RPC().RecordThrottle("rate_limit")
			writeError(w, http.StatusTooManyRequests, req.ID, &RPCError{Code: codeRateLimited, Message: "rate limit exceeded"})
			return
		}
	}

	result, rpcErr := m.handler(s, r, req.Params)
	if rpcErr != nil {
		metrics.RPC().Observe(req.Method, rpcErr.Code, time.Since(started))
		writeError(w, http.StatusOK, req.ID, rpcErr)
		return
	}
	metrics.RPC().Observe(req.Method, 0, time.Since(started))
	writeResult(w, req.ID, result)
}

// decodeParam unmarshals params[idx] into out.
func decodeParam(params []jsoniter.RawMessage, idx int, out interface{}) *RPCError {
	if idx >= len(params) {
		return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("parameter %d required", idx)}
	}
	if err := json.Unmarshal(params[idx], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid parameter %d", idx), Data: err.Error()}
	}
	return nil
}

func serverError(err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: err.Error()}
}
