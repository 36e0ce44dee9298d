package rpc

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"ecdpchain/core"
	"ecdpchain/core/types"
	"ecdpchain/observability/metrics"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 16
)

var errStreamClosed = errors.New("rpc: block stream closed")

// blockUpdate is pushed to block stream subscribers.
type blockUpdate struct {
	Height    uint64           `json:"height"`
	Hash      string           `json:"hash"`
	Timestamp int64            `json:"timestamp"`
	TxCount   int              `json:"txCount"`
	Receipts  []*types.Receipt `json:"receipts,omitempty"`
	Events    []*types.Event   `json:"events,omitempty"`
}

// blockHub fans produced blocks out to stream subscribers. A subscriber
// that falls behind by more than its buffer is disconnected.
type blockHub struct {
	mu     sync.Mutex
	subs   map[chan blockUpdate]struct{}
	closed bool
}

func newBlockHub() *blockHub {
	return &blockHub{subs: make(map[chan blockUpdate]struct{})}
}

func (h *blockHub) subscribe() (<-chan blockUpdate, func()) {
	ch := make(chan blockUpdate, subscriberBuffer)
	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subs[ch] = struct{}{}
	}
	h.mu.Unlock()
	return ch, func() { h.drop(ch) }
}

func (h *blockHub) drop(ch chan blockUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *blockHub) publish(res *core.BlockResult) {
	if res == nil || res.Block == nil {
		return
	}
	update := blockUpdate{
		Height:    res.Block.Header.Height,
		Hash:      hex.EncodeToString(res.Hash),
		Timestamp: res.Block.Header.Timestamp,
		TxCount:   len(res.Block.Transactions),
		Receipts:  res.Receipts,
		Events:    res.Events,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- update:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *blockHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (s *Server) handleBlocksWS(w http.ResponseWriter, r *http.Request) {
	if s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	metrics.RPC().StreamOpened()
	defer metrics.RPC().StreamClosed()

	ctx := conn.CloseRead(r.Context())
	if err := s.streamBlocks(ctx, conn); err != nil {
		if websocket.CloseStatus(err) == -1 {
			_ = conn.Close(websocket.StatusPolicyViolation, "stream lagged or failed")
		}
	}
}

func (s *Server) streamBlocks(ctx context.Context, conn *websocket.Conn) error {
	updates, cancel := s.blocks.subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errStreamClosed
			}
			if err := writeUpdate(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeUpdate(ctx context.Context, conn *websocket.Conn, update blockUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
