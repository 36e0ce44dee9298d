package indexer

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	jsoniter "github.com/json-iterator/go"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ecdpchain/core"
	"ecdpchain/core/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const filePragmas = "mode=rwc&_busy_timeout=5000&_journal_mode=WAL"

// BlockEventIndex marks events raised by the block hooks rather than by a
// transaction.
const BlockEventIndex = -1

// ErrStorePathRequired is returned when the index path is empty.
var ErrStorePathRequired = errors.New("indexer: store path must be configured")

// EventRecord is one indexed chain event.
type EventRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Height     uint64 `gorm:"index;not null"`
	BlockHash  string `gorm:"size:64;not null"`
	TxIndex    int    `gorm:"not null"`
	TxHash     string `gorm:"size:64;index"`
	Type       string `gorm:"size:64;index;not null"`
	Attributes string `gorm:"type:text;not null"`
	BlockTime  int64  `gorm:"not null"`
	CreatedAt  time.Time
}

func (EventRecord) TableName() string { return "chain_events" }

// Attrs decodes the stored attribute map.
func (r EventRecord) Attrs() (map[string]string, error) {
	out := map[string]string{}
	if r.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, fmt.Errorf("decode attributes of event %d: %w", r.ID, err)
	}
	return out, nil
}

// Filter narrows an event listing. Zero fields match everything.
type Filter struct {
	Type       string
	FromHeight uint64
	ToHeight   uint64
	Limit      int
}

// Store persists chain events in SQLite.
type Store struct {
	db *gorm.DB
}

// StoreDSN converts a filesystem path into an on-disk SQLite DSN.
func StoreDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrStorePathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve index path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, filePragmas), nil
}

func OpenStore(dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrStorePathRequired
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveBlock stores every event of a produced block in one transaction.
// Re-indexing a height replaces its previous rows.
func (s *Store) SaveBlock(ctx context.Context, res *core.BlockResult) (int, error) {
	records, err := blockRecords(res)
	if err != nil {
		return 0, err
	}
	height := res.Block.Header.Height
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("height = ?", height).Delete(&EventRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 100).Error
	})
	if err != nil {
		return 0, fmt.Errorf("index block %d: %w", height, err)
	}
	return len(records), nil
}

// Events lists indexed events in chain order.
func (s *Store) Events(ctx context.Context, f Filter) ([]EventRecord, error) {
	q := s.db.WithContext(ctx).Model(&EventRecord{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.FromHeight > 0 {
		q = q.Where("height >= ?", f.FromHeight)
	}
	if f.ToHeight > 0 {
		q = q.Where("height <= ?", f.ToHeight)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []EventRecord
	if err := q.Order("height ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// LastHeight returns the highest indexed height, zero when empty.
func (s *Store) LastHeight(ctx context.Context) (uint64, error) {
	var height sql.NullInt64
	row := s.db.WithContext(ctx).Model(&EventRecord{}).Select("MAX(height)").Row()
	if err := row.Scan(&height); err != nil {
		return 0, fmt.Errorf("last indexed height: %w", err)
	}
	if !height.Valid {
		return 0, nil
	}
	return uint64(height.Int64), nil
}

func blockRecords(res *core.BlockResult) ([]EventRecord, error) {
	if res == nil || res.Block == nil || res.Block.Header == nil {
		return nil, errors.New("indexer: block result required")
	}
	header := res.Block.Header
	blockHash := hex.EncodeToString(res.Hash)
	var out []EventRecord
	add := func(txIndex int, txHash []byte, evt *types.Event) error {
		if evt == nil {
			return nil
		}
		attrs := evt.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		raw, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("encode %s attributes: %w", evt.Type, err)
		}
		out = append(out, EventRecord{
			Height:     header.Height,
			BlockHash:  blockHash,
			TxIndex:    txIndex,
			TxHash:     hex.EncodeToString(txHash),
			Type:       evt.Type,
			Attributes: string(raw),
			BlockTime:  header.Timestamp,
		})
		return nil
	}
	for i, receipt := range res.Receipts {
		if receipt == nil {
			continue
		}
		for _, evt := range receipt.Events {
			if err := add(i, receipt.TxHash, evt); err != nil {
				return nil, err
			}
		}
	}
	for _, evt := range res.Events {
		if err := add(BlockEventIndex, nil, evt); err != nil {
			return nil, err
		}
	}
	return out, nil
}
