// Package indexer stores the events of produced blocks in SQLite and fans
// them out over NATS JetStream.
package indexer

import (
	"context"
	"log/slog"
	"time"

	"ecdpchain/core"
	"ecdpchain/observability/metrics"
)

const publishTimeout = 5 * time.Second

// Publisher receives the records of one block after they are stored.
type Publisher interface {
	Publish(ctx context.Context, records []EventRecord) error
}

// Indexer is a block listener. Failures are logged and counted; they never
// reach block production.
type Indexer struct {
	store     *Store
	publisher Publisher
	logger    *slog.Logger
}

// New returns an indexer over store. publisher may be nil.
func New(store *Store, publisher Publisher, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, publisher: publisher, logger: logger}
}

// HandleBlock indexes res. Register it with core.Node.OnBlock.
func (ix *Indexer) HandleBlock(res *core.BlockResult) {
	if res == nil || res.Block == nil || res.Block.Header == nil {
		return
	}
	height := res.Block.Header.Height
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if ix.store != nil {
		n, err := ix.store.SaveBlock(ctx, res)
		metrics.Chain().RecordIndexed("sqlite", err)
		if err != nil {
			ix.logger.Error("indexer: store block", "height", height, "error", err)
			return
		}
		ix.logger.Debug("indexer: stored events", "height", height, "events", n)
	}
	if ix.publisher == nil {
		return
	}
	records, err := blockRecords(res)
	if err == nil && len(records) > 0 {
		err = ix.publisher.Publish(ctx, records)
	}
	metrics.Chain().RecordIndexed("nats", err)
	if err != nil {
		ix.logger.Warn("indexer: publish events", "height", height, "error", err)
	}
}
