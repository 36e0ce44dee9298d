package mempool

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"lukechampine.com/blake3"

	"ecdpchain/core/types"
	"ecdpchain/observability/metrics"
)

var (
	ErrDuplicate       = errors.New("mempool: transaction already pooled")
	ErrAlreadyProvided = errors.New("mempool: tag already provided by a higher priority transaction")
	ErrPoolFull        = errors.New("mempool: pool is full")
	ErrRejected        = errors.New("mempool: transaction rejected")
)

const DefaultLimit = 4096

// Validity is the pool metadata of an admitted transaction. Transactions
// with equal Provides tags are duplicates; a zero Longevity never expires.
type Validity struct {
	Priority  uint64
	Provides  []byte
	Longevity uint64
}

// Validator checks a transaction against the current chain state.
type Validator interface {
	ValidateTransaction(tx *types.Transaction) (Validity, error)
}

type entry struct {
	tx       *types.Transaction
	hash     string
	tag      string
	priority uint64
	expires  uint64
	seq      uint64
}

// Pool holds validated transactions until they are included in a block.
type Pool struct {
	mu        sync.Mutex
	validator Validator
	limit     int
	height    uint64
	seq       uint64
	entries   map[string]*entry
	provided  map[string]string
	metrics   *metrics.MempoolMetrics
}

func New(validator Validator, limit int) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pool{
		validator: validator,
		limit:     limit,
		entries:   make(map[string]*entry),
		provided:  make(map[string]string),
		metrics:   metrics.Mempool(),
	}
}

// TxHash returns the hex encoded transaction hash used as the pool key.
func TxHash(tx *types.Transaction) (string, error) {
	h, err := tx.Hash()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h), nil
}

func tagKey(provides []byte) string {
	sum := blake3.Sum256(provides)
	return hex.EncodeToString(sum[:])
}

// Add validates tx and admits it. A transaction providing a tag already in
// the pool replaces the holder only with a strictly higher priority.
func (p *Pool) Add(tx *types.Transaction) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("%w: nil transaction", ErrRejected)
	}
	hash, err := TxHash(tx)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[hash]; ok {
		p.metrics.RecordRejected("duplicate")
		return hash, ErrDuplicate
	}
	validity, err := p.validator.ValidateTransaction(tx)
	if err != nil {
		p.metrics.RecordRejected("invalid")
		return hash, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	e := &entry{tx: tx, hash: hash, priority: validity.Priority}
	if validity.Longevity > 0 {
		e.expires = p.height + validity.Longevity
	}
	if len(validity.Provides) > 0 {
		e.tag = tagKey(validity.Provides)
		if holder, ok := p.provided[e.tag]; ok {
			if p.entries[holder].priority >= e.priority {
				p.metrics.RecordRejected("provided")
				return hash, ErrAlreadyProvided
			}
			p.remove(holder)
		}
	}
	if len(p.entries) >= p.limit {
		victim := p.lowest()
		if victim == nil || victim.priority >= e.priority {
			p.metrics.RecordRejected("full")
			return hash, ErrPoolFull
		}
		p.remove(victim.hash)
	}
	p.seq++
	e.seq = p.seq
	p.entries[hash] = e
	if e.tag != "" {
		p.provided[e.tag] = hash
	}
	p.metrics.RecordAdmitted(laneLabel(tx))
	p.metrics.SetSize(len(p.entries))
	return hash, nil
}

func laneLabel(tx *types.Transaction) string {
	if IsLiquidationLaneEligible(tx) {
		return "unsigned"
	}
	return "signed"
}

func (p *Pool) lowest() *entry {
	var low *entry
	for _, e := range p.entries {
		if low == nil || e.priority < low.priority || (e.priority == low.priority && e.seq > low.seq) {
			low = e
		}
	}
	return low
}

func (p *Pool) remove(hash string) {
	e, ok := p.entries[hash]
	if !ok {
		return
	}
	delete(p.entries, hash)
	if e.tag != "" && p.provided[e.tag] == hash {
		delete(p.provided, e.tag)
	}
}

// Remove drops the given transactions, typically after block inclusion.
func (p *Pool) Remove(hashes ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		p.remove(h)
	}
	p.metrics.SetSize(len(p.entries))
}

// Len returns the number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Pending returns every pooled transaction ordered by priority.
func (p *Pool) Pending() []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ordered()
}

func (p *Pool) ordered() []*types.Transaction {
	entries := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	sortByPriority(entries)
	out := make([]*types.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.tx
	}
	return out
}

// Select returns up to maxTxs transactions for the next block, reserving
// reservedPercent of the slots for unsigned calls.
func (p *Pool) Select(maxTxs int, reservedPercent uint32) ([]*types.Transaction, Usage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ordered, usage := Schedule(Classify(p.ordered()), maxTxs, reservedPercent)
	if maxTxs > 0 && len(ordered) > maxTxs {
		ordered = ordered[:maxTxs]
	}
	return ordered, usage
}

// Advance moves the pool to height, dropping expired transactions and those
// the validator no longer accepts. It returns the number dropped.
func (p *Pool) Advance(height uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.height = height
	dropped := 0
	for hash, e := range p.entries {
		if e.expires != 0 && e.expires <= height {
			p.remove(hash)
			p.metrics.RecordRejected("expired")
			dropped++
			continue
		}
		if _, err := p.validator.ValidateTransaction(e.tx); err != nil {
			p.remove(hash)
			p.metrics.RecordRejected("stale")
			dropped++
		}
	}
	p.metrics.SetSize(len(p.entries))
	return dropped
}
