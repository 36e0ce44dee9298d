package offchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"ecdpchain/core/types"
	"ecdpchain/native/cdp"
	"ecdpchain/native/loans"
	"ecdpchain/observability/metrics"
	"ecdpchain/storage"
)

const (
	DefaultMaxIterations uint32 = 1000
	DefaultLockDuration         = 100 * time.Millisecond
)

// Config tunes a Scanner. Zero values fall back to the defaults; a zero
// SubmitRate disables throttling.
type Config struct {
	MaxIterations uint32        `toml:"max_iterations"`
	LockDuration  time.Duration `toml:"lock_duration"`
	SubmitRate    float64       `toml:"submit_rate"`
	SubmitBurst   int           `toml:"submit_burst"`
	JournalPath   string        `toml:"journal_path"`
	StoragePath   string        `toml:"storage_path"`
}

// Submitter hands unsigned calls to the transaction pool.
type Submitter interface {
	Submit(ctx context.Context, call cdp.UnsignedCall) error
}

// Report summarises one scanner run.
type Report struct {
	Block     uint64
	Currency  types.CurrencyID
	Checked   int
	Submitted int
	Exhausted bool
	FullPass  bool
}

// Option configures optional collaborators of a Scanner.
type Option func(*Scanner)

func WithJournal(j *Journal) Option {
	return func(s *Scanner) { s.journal = j }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLimiter overrides the limiter derived from Config.SubmitRate.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(s *Scanner) { s.limiter = limiter }
}

// Scanner walks open positions one collateral currency per run and submits
// liquidate calls for unsafe positions, or settle calls after shutdown.
type Scanner struct {
	chain     Chain
	submitter Submitter
	local     storage.Database
	cfg       Config
	lock      timeLock
	limiter   *rate.Limiter
	journal   *Journal
	metrics   *metrics.ScannerMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func New(chain Chain, submitter Submitter, local storage.Database, cfg Config, opts ...Option) (*Scanner, error) {
	if chain == nil {
		return nil, errors.New("offchain: chain view required")
	}
	if submitter == nil {
		return nil, errors.New("offchain: submitter required")
	}
	if local == nil {
		return nil, errors.New("offchain: local storage required")
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = DefaultLockDuration
	}
	s := &Scanner{
		chain:     chain,
		submitter: submitter,
		local:     local,
		cfg:       cfg,
		lock:      timeLock{db: local, duration: cfg.LockDuration},
		metrics:   metrics.Scanner(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	if cfg.SubmitRate > 0 {
		burst := cfg.SubmitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), burst)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SetMaxIterations persists an override of the per-run position budget.
// Zero removes the override.
func (s *Scanner) SetMaxIterations(n uint32) error {
	if n == 0 {
		return s.local.Delete(maxIterationsKey)
	}
	return storeMaxIterations(s.local, n)
}

// MaxIterations returns the budget the next run will use.
func (s *Scanner) MaxIterations() uint32 {
	n, ok, err := loadMaxIterations(s.local)
	if err != nil {
		s.logger.Warn("offchain: read max iterations", "error", err)
	}
	if !ok || n == 0 {
		return s.cfg.MaxIterations
	}
	return n
}

// Cursor returns the persisted resume point.
func (s *Scanner) Cursor() (Cursor, error) {
	c, _, err := loadCursor(s.local)
	return c, err
}

// Run performs the scan for block. It returns ErrLocked while an earlier
// run's lock has not expired.
func (s *Scanner) Run(ctx context.Context, block uint64) (Report, error) {
	start := time.Now()
	report, err := s.run(ctx, block)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrLocked):
		outcome = "locked"
	case err != nil:
		outcome = "error"
	}
	s.metrics.ObserveRun(outcome, time.Since(start))
	s.metrics.AddChecked(report.Checked)
	if report.FullPass {
		s.metrics.IncFullPass()
	}
	return report, err
}

type candidate struct {
	who common.Address
	pos loans.Position
}

func (s *Scanner) run(ctx context.Context, block uint64) (Report, error) {
	report := Report{Block: block}
	if err := s.lock.acquire(s.now()); err != nil {
		return report, err
	}
	currencies, err := s.chain.CollateralCurrencyIDs()
	if err != nil {
		return report, fmt.Errorf("collateral currencies: %w", err)
	}
	if len(currencies) == 0 {
		return report, nil
	}
	cursor, _, err := loadCursor(s.local)
	if err != nil {
		s.logger.Warn("offchain: discard unreadable cursor", "error", err)
		cursor = Cursor{}
	}
	if cursor.Index >= uint64(len(currencies)) {
		cursor = Cursor{}
	}
	currency := currencies[cursor.Index]
	report.Currency = currency
	budget := int(s.MaxIterations())

	var batch []candidate
	report.Exhausted = true
	err = s.chain.IteratePositions(currency, cursor.After(), func(who common.Address, pos loans.Position) bool {
		if len(batch) >= budget {
			report.Exhausted = false
			return false
		}
		batch = append(batch, candidate{who: who, pos: pos})
		return true
	})
	if err != nil {
		return report, fmt.Errorf("iterate positions: %w", err)
	}

	shutdown := s.chain.IsShutdown()
	for _, c := range batch {
		if err := ctx.Err(); err != nil {
			return report, s.saveProgress(cursor, err)
		}
		if err := s.lock.extend(s.now()); err != nil {
			return report, err
		}
		report.Checked++
		if call, ok := s.classify(currency, c, shutdown); ok {
			submitted, err := s.submit(ctx, block, call)
			if err != nil {
				return report, s.saveProgress(cursor, err)
			}
			if submitted {
				report.Submitted++
			}
		}
		cursor.LastKey = c.who.Bytes()
	}

	if !report.Exhausted {
		return report, storeCursor(s.local, cursor)
	}
	next := cursor.Index + 1
	if next >= uint64(len(currencies)) {
		report.FullPass = true
		return report, clearCursor(s.local)
	}
	return report, storeCursor(s.local, Cursor{Index: next})
}

func (s *Scanner) saveProgress(cursor Cursor, cause error) error {
	if err := storeCursor(s.local, cursor); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (s *Scanner) classify(currency types.CurrencyID, c candidate, shutdown bool) (cdp.UnsignedCall, bool) {
	if shutdown {
		if c.pos.Debit == nil || c.pos.Debit.Sign() == 0 {
			return cdp.UnsignedCall{}, false
		}
		return cdp.UnsignedCall{Kind: cdp.CallSettle, Currency: currency, Owner: c.who}, true
	}
	status, err := s.chain.CheckCDPStatus(currency, c.pos.Collateral, c.pos.Debit)
	if err != nil {
		s.logger.Warn("offchain: check position", "currency", string(currency), "owner", c.who.Hex(), "error", err)
		return cdp.UnsignedCall{}, false
	}
	if status != cdp.StatusUnsafe {
		return cdp.UnsignedCall{}, false
	}
	return cdp.UnsignedCall{Kind: cdp.CallLiquidate, Currency: currency, Owner: c.who}, true
}

// submit hands call to the pool. Pool rejections are logged and journaled;
// only context cancellation aborts the run.
func (s *Scanner) submit(ctx context.Context, block uint64, call cdp.UnsignedCall) (bool, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}
	err := s.submitter.Submit(ctx, call)
	s.metrics.RecordSubmission(call.Kind.String(), err)
	if s.journal != nil {
		if _, jerr := s.journal.Record(ctx, block, call, err, s.now()); jerr != nil {
			s.logger.Warn("offchain: journal submission", "error", jerr)
		}
	}
	if err != nil {
		s.logger.Warn("offchain: submit call",
			"kind", call.Kind.String(),
			"currency", string(call.Currency),
			"owner", call.Owner.Hex(),
			"block", block,
			"error", err)
		return false, nil
	}
	s.logger.Debug("offchain: submitted call",
		"kind", call.Kind.String(),
		"currency", string(call.Currency),
		"owner", call.Owner.Hex(),
		"block", block)
	return true, nil
}
