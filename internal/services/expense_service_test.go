package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"jizhang/internal/aggregate"
	"jizhang/internal/core"
	"jizhang/internal/sheets"
	"jizhang/internal/sheets/memory"
	"jizhang/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

type fakeJournal struct {
	attempts []storage.Attempt
	err      error
}

func (f *fakeJournal) Record(_ context.Context, a storage.Attempt) (storage.Attempt, error) {
	if f.err != nil {
		return a, f.err
	}
	f.attempts = append(f.attempts, a)
	return a, nil
}

type fakePublisher struct {
	entries []core.Entry
	budgets []int
	err     error
}

func (f *fakePublisher) PublishEntryCreated(_ context.Context, e core.Entry) error {
	f.entries = append(f.entries, e)
	return f.err
}

func (f *fakePublisher) PublishBudgetUpdated(_ context.Context, v int) error {
	f.budgets = append(f.budgets, v)
	return f.err
}

func newService(wb sheets.Workbook, j *fakeJournal, p *fakePublisher) *ExpenseService {
	return NewExpenseService(wb,
		WithJournal(j),
		WithPublisher(p),
		WithClock(func() time.Time { return fixedNow }))
}

func entry(y, m, d int, cat core.Category, amount int64, note string) core.Entry {
	return core.Entry{Date: core.NewDate(y, m, d), Category: cat, Amount: decimal.NewFromInt(amount), Note: note}
}

func TestDashboardOnFreshWorkbook(t *testing.T) {
	wb := memory.New()
	s := newService(wb, &fakeJournal{}, &fakePublisher{})

	d, err := s.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20000, d.Budget)
	assert.True(t, d.BudgetCreated)
	assert.Empty(t, d.Entries)
	assert.Equal(t, aggregate.StatusOnTrack, d.Views.Status)
	assert.Equal(t, []string{memory.DefaultEntrySheet, "budget"}, wb.TableNames())
}

func TestAddEntryEchoesBack(t *testing.T) {
	ctx := context.Background()
	j, p := &fakeJournal{}, &fakePublisher{}
	s := newService(memory.New(), j, p)

	d, err := s.AddEntry(ctx, entry(2024, 6, 1, core.Food, 100, "lunch"))
	require.NoError(t, err)
	require.Len(t, d.Entries, 1)
	assert.True(t, d.Entries[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, d.Views.MonthTotal.Equal(decimal.NewFromInt(100)))

	d, err = s.AddEntry(ctx, entry(2024, 5, 31, core.Transport, 30, ""))
	require.NoError(t, err)
	assert.Len(t, d.Entries, 2)
	assert.True(t, d.Views.Total.Equal(decimal.NewFromInt(130)))
	assert.True(t, d.Views.MonthTotal.Equal(decimal.NewFromInt(100)), "May entry is outside June")

	require.Len(t, j.attempts, 2)
	assert.Equal(t, storage.KindEntry, j.attempts[0].Kind)
	assert.Equal(t, storage.StatusOK, j.attempts[0].Status)
	assert.Equal(t, "2024-06-01 Food 100.00", j.attempts[0].Detail)
	assert.Len(t, p.entries, 2)
}

func TestAddEntryInvalidInput(t *testing.T) {
	j, p := &fakeJournal{}, &fakePublisher{}
	s := newService(memory.New(), j, p)

	_, err := s.AddEntry(context.Background(), entry(2024, 6, 1, "Gifts", 1, ""))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, core.ErrInvalidCategory)
	assert.Empty(t, j.attempts, "rejected input is not a write attempt")
	assert.Empty(t, p.entries)
}

type denyingWorkbook struct{ *memory.Store }

func (d denyingWorkbook) FirstTable(ctx context.Context) (sheets.Table, error) {
	tbl, err := d.Store.FirstTable(ctx)
	if err != nil {
		return nil, err
	}
	return denyingTable{tbl}, nil
}

type denyingTable struct{ sheets.Table }

func (denyingTable) AppendRow(context.Context, []any) error {
	return &sheets.WriteError{Op: "append row", Table: "Sheet1", Err: errors.New("sheets API 403: The caller does not have permission")}
}

func TestAddEntryWriteFailure(t *testing.T) {
	j, p := &fakeJournal{}, &fakePublisher{}
	s := newService(denyingWorkbook{memory.New()}, j, p)

	d, err := s.AddEntry(context.Background(), entry(2024, 6, 1, core.Food, 100, "lunch"))
	assert.Nil(t, d)
	var werr *sheets.WriteError
	require.ErrorAs(t, err, &werr)
	assert.Contains(t, err.Error(), "The caller does not have permission")

	require.Len(t, j.attempts, 1)
	assert.Equal(t, storage.StatusFailed, j.attempts[0].Status)
	assert.Contains(t, j.attempts[0].Error, "403")
	assert.Empty(t, p.entries)
}

func TestSideEffectFailuresAreNotFatal(t *testing.T) {
	j := &fakeJournal{err: errors.New("disk full")}
	p := &fakePublisher{err: errors.New("channel closed")}
	s := newService(memory.New(), j, p)

	d, err := s.AddEntry(context.Background(), entry(2024, 6, 2, core.Food, 5, ""))
	require.NoError(t, err)
	assert.Len(t, d.Entries, 1)
}

func TestSetBudget(t *testing.T) {
	ctx := context.Background()
	j, p := &fakeJournal{}, &fakePublisher{}
	s := newService(memory.New(), j, p)

	_, err := s.AddEntry(ctx, entry(2024, 6, 3, core.Housing, 16000, "rent"))
	require.NoError(t, err)

	d, err := s.SetBudget(ctx, 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, d.Budget)
	assert.Equal(t, aggregate.StatusOver, d.Views.Status)

	v, fallback, err := s.Budget(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16000, v)
	assert.False(t, fallback)

	_, err = s.SetBudget(ctx, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, []int{16000}, p.budgets)
	require.Len(t, j.attempts, 2)
	assert.Equal(t, storage.KindBudget, j.attempts[1].Kind)
}

func TestWithoutJournalOrPublisher(t *testing.T) {
	s := NewExpenseService(memory.New(), WithClock(func() time.Time { return fixedNow }))
	_, err := s.AddEntry(context.Background(), entry(2024, 6, 1, core.Other, 1, ""))
	require.NoError(t, err)
}

func TestDashboardConnectionFailure(t *testing.T) {
	s := NewExpenseService(offlineWorkbook{})
	_, err := s.Dashboard(context.Background())
	assert.ErrorIs(t, err, sheets.ErrConnection)
}

type offlineWorkbook struct{}

func (offlineWorkbook) Table(context.Context, string) (sheets.Table, error) {
	return nil, sheets.ConnectionError("read spreadsheet", errors.New("no such host"))
}
func (offlineWorkbook) FirstTable(context.Context) (sheets.Table, error) {
	return nil, sheets.ConnectionError("read spreadsheet", errors.New("no such host"))
}
func (offlineWorkbook) CreateTable(context.Context, string, int, int) (sheets.Table, error) {
	return nil, sheets.ConnectionError("read spreadsheet", errors.New("no such host"))
}

// unreadableRows lets writes through but fails every ReadAllRows.
type unreadableRows struct{ *memory.Store }

func (u unreadableRows) FirstTable(ctx context.Context) (sheets.Table, error) {
	t, err := u.Store.FirstTable(ctx)
	if err != nil {
		return nil, err
	}
	return failingRowsTable{t}, nil
}

type failingRowsTable struct{ sheets.Table }

func (failingRowsTable) ReadAllRows(context.Context) ([]sheets.Row, error) {
	return nil, sheets.ConnectionError("read entry rows", errors.New("network down"))
}

func TestWriteSucceedsButReloadFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	j := &fakeJournal{}
	s := newService(unreadableRows{store}, j, &fakePublisher{})

	d, err := s.AddEntry(ctx, entry(2024, 6, 1, core.Food, 100, "lunch"))
	assert.Nil(t, d)
	require.ErrorIs(t, err, ErrReloadFailed)
	assert.ErrorIs(t, err, sheets.ErrConnection)
	assert.Len(t, store.Cells(memory.DefaultEntrySheet), 2, "the row is persisted")
	require.Len(t, j.attempts, 1)
	assert.Equal(t, storage.StatusOK, j.attempts[0].Status)

	d, err = s.SetBudget(ctx, 500)
	assert.Nil(t, d)
	require.ErrorIs(t, err, ErrReloadFailed)
	v, _, err := s.Budget(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, v)
}

func TestFailedWriteIsNotReloadFailure(t *testing.T) {
	s := newService(memory.New(), &fakeJournal{}, &fakePublisher{})
	_, err := s.AddEntry(context.Background(), core.Entry{Category: core.Food, Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReloadFailed)
}
