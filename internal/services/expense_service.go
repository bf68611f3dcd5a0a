// Package services runs the load, aggregate and write cycle behind every
// user interaction.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jizhang/internal/aggregate"
	"jizhang/internal/budget"
	"jizhang/internal/core"
	"jizhang/internal/ledger"
	"jizhang/internal/normalize"
	"jizhang/internal/sheets"
	"jizhang/internal/storage"
)

var (
	// ErrInvalidInput marks user input rejected before any remote call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrReloadFailed marks a write that reached the workbook but whose
	// follow-up reload did not. Retrying the write would duplicate it.
	ErrReloadFailed = errors.New("saved, but reload failed")
)

type (
	// Journal records write attempts.
	Journal interface {
		Record(ctx context.Context, a storage.Attempt) (storage.Attempt, error)
	}

	// Publisher announces successful writes.
	Publisher interface {
		PublishEntryCreated(ctx context.Context, e core.Entry) error
		PublishBudgetUpdated(ctx context.Context, v int) error
	}
)

// Dashboard is everything one cycle derives from the workbook.
type Dashboard struct {
	Now            time.Time
	EntryTable     string
	Entries        []core.Entry
	Warnings       []normalize.Warning
	Budget         int
	BudgetFallback bool
	BudgetCreated  bool
	Views          aggregate.Views
}

// ExpenseService executes one synchronous cycle per call. It keeps no ledger
// or budget state between calls.
type ExpenseService struct {
	wb        sheets.Workbook
	budgets   *budget.Store
	journal   Journal
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an ExpenseService.
type Option func(*ExpenseService)

// WithJournal records every write attempt in j.
func WithJournal(j Journal) Option {
	return func(s *ExpenseService) { s.journal = j }
}

// WithPublisher publishes an event after every successful write.
func WithPublisher(p Publisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

// WithClock overrides the clock deciding the current month.
func WithClock(now func() time.Time) Option {
	return func(s *ExpenseService) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *ExpenseService) { s.logger = l }
}

func NewExpenseService(wb sheets.Workbook, opts ...Option) *ExpenseService {
	s := &ExpenseService{wb: wb, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.budgets = budget.NewStore(s.logger)
	return s
}

// Dashboard loads the budget and the ledger and summarizes them.
func (s *ExpenseService) Dashboard(ctx context.Context) (*Dashboard, error) {
	h, monthly, err := s.budgets.Load(ctx, s.wb)
	if err != nil {
		return nil, fmt.Errorf("load budget: %w", err)
	}
	l, err := ledger.Load(ctx, s.wb)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	now := s.now()
	return &Dashboard{
		Now:            now,
		EntryTable:     l.Table(),
		Entries:        l.Entries(),
		Warnings:       l.Warnings(),
		Budget:         monthly,
		BudgetFallback: h.Fallback,
		BudgetCreated:  h.Created,
		Views:          aggregate.Summarize(l.Entries(), monthly, now),
	}, nil
}

// Budget returns the current monthly budget and whether it is the fallback.
func (s *ExpenseService) Budget(ctx context.Context) (int, bool, error) {
	h, v, err := s.budgets.Load(ctx, s.wb)
	if err != nil {
		return 0, false, fmt.Errorf("load budget: %w", err)
	}
	return v, h.Fallback, nil
}

// AddEntry appends e and reloads so the result includes it. When the append
// fails the error is returned unchanged and no dashboard is produced. When
// only the reload fails the error wraps ErrReloadFailed.
func (s *ExpenseService) AddEntry(ctx context.Context, e core.Entry) (*Dashboard, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	detail := fmt.Sprintf("%s %s %s", e.Date, e.Category, e.Amount.StringFixed(2))
	if err := ledger.Append(ctx, s.wb, e); err != nil {
		s.record(ctx, storage.KindEntry, detail, err)
		return nil, err
	}
	s.record(ctx, storage.KindEntry, detail, nil)

	if s.publisher != nil {
		if err := s.publisher.PublishEntryCreated(ctx, e); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish entry event", "error", err)
		}
	}
	return s.reload(ctx)
}

// SetBudget overwrites the monthly budget and reloads. Errors follow AddEntry.
func (s *ExpenseService) SetBudget(ctx context.Context, v int) (*Dashboard, error) {
	if v < 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, budget.ErrInvalidBudget)
	}

	detail := fmt.Sprint(v)
	if err := s.budgets.Update(ctx, s.wb, v); err != nil {
		s.record(ctx, storage.KindBudget, detail, err)
		return nil, err
	}
	s.record(ctx, storage.KindBudget, detail, nil)

	if s.publisher != nil {
		if err := s.publisher.PublishBudgetUpdated(ctx, v); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish budget event", "error", err)
		}
	}
	return s.reload(ctx)
}

func (s *ExpenseService) reload(ctx context.Context) (*Dashboard, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Reload after write failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrReloadFailed, err)
	}
	return d, nil
}

// record journals a write attempt. Journal failures are logged only.
func (s *ExpenseService) record(ctx context.Context, kind storage.Kind, detail string, writeErr error) {
	if writeErr != nil {
		s.logger.ErrorContext(ctx, "Write to workbook failed", "kind", kind, "error", writeErr)
	}
	if s.journal == nil {
		return
	}
	a := storage.Attempt{At: s.now(), Kind: kind, Detail: detail, Status: storage.StatusOK}
	if writeErr != nil {
		a.Status = storage.StatusFailed
		a.Error = writeErr.Error()
	}
	if _, err := s.journal.Record(ctx, a); err != nil {
		s.logger.WarnContext(ctx, "Failed to journal write attempt", "kind", kind, "error", err)
	}
}
