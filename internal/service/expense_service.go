// Package service coordinates the ledger engine with storage, locking and
// event publishing. ExpenseService holds the use cases; ExpenseHandler exposes
// them over Connect.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/lock"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

const publishTimeout = 5 * time.Second

// ExpenseService implements the expense use cases.
type ExpenseService struct {
	store     storage.Store
	locker    lock.Locker
	publisher events.Publisher
	now       func() time.Time
}

// Option customizes an ExpenseService.
type Option func(*ExpenseService)

// WithLocker replaces the in-process lock, e.g. with a Redis one shared by replicas.
func WithLocker(l lock.Locker) Option {
	return func(s *ExpenseService) { s.locker = l }
}

// WithPublisher sends expense events after each successful write.
func WithPublisher(p events.Publisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		store:     store,
		locker:    lock.NewKeyedMutex(),
		publisher: events.Noop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create splits amount equally among debtors and stores the expense.
func (s *ExpenseService) Create(ctx context.Context, amount decimal.Decimal, description, payer string, debtors []string) (*models.Expense, error) {
	expense, err := ledger.CreateEqualSplit(amount, description, payer, debtors)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to save expense: %w", err)
	}
	slog.Info("Expense created",
		"expense_id", expense.ID,
		"amount", expense.Amount.StringFixed(calculator.CentPlaces),
		"payer", expense.Payer,
		"debtors", len(expense.Debtors),
	)

	s.publish(ctx, events.ExpenseCreated, expense.ID, expense)
	return expense, nil
}

// Get returns the expense with the given ID.
func (s *ExpenseService) Get(ctx context.Context, id int64) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	return expense, nil
}

// Update applies patch to the stored expense. Concurrent updates and deletes
// of the same expense are serialized, and the patch always applies to the
// latest stored state.
func (s *ExpenseService) Update(ctx context.Context, id int64, patch models.ExpensePatch) (*models.Expense, error) {
	unlock, err := s.locker.Lock(ctx, lock.ExpenseKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock expense %d: %w", id, err)
	}
	defer unlock()

	existing, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}

	updated, err := ledger.ApplyPatch(*existing, patch)
	if err != nil {
		slog.Debug("Patch rejected", "expense_id", id, "error", err)
		return nil, err
	}

	if err := s.store.UpdateExpense(ctx, updated); err != nil {
		return nil, notFound(id, err)
	}
	slog.Info("Expense updated",
		"expense_id", id,
		"amount", updated.Amount.StringFixed(calculator.CentPlaces),
		"debtors", len(updated.Debtors),
	)

	s.publish(ctx, events.ExpenseUpdated, id, updated)
	return updated, nil
}

// Delete removes the expense with the given ID.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	unlock, err := s.locker.Lock(ctx, lock.ExpenseKey(id))
	if err != nil {
		return fmt.Errorf("failed to lock expense %d: %w", id, err)
	}
	defer unlock()

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return notFound(id, err)
	}
	slog.Info("Expense deleted", "expense_id", id)

	s.publish(ctx, events.ExpenseDeleted, id, nil)
	return nil
}

// List returns every stored expense, oldest first.
func (s *ExpenseService) List(ctx context.Context) ([]models.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

// Report aggregates every stored expense into per-participant balances.
func (s *ExpenseService) Report(ctx context.Context) (*calculator.Report, error) {
	expenses, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return calculator.CalculateBalances(expenses), nil
}

// publish never fails the write that triggered it.
func (s *ExpenseService) publish(ctx context.Context, typ events.Type, id int64, expense *models.Expense) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := events.Event{Type: typ, ExpenseID: id, OccurredAt: s.now()}
	if expense != nil {
		clone := expense.Clone()
		event.Expense = &clone
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish expense event", "type", typ, "expense_id", id, "error", err)
	}
}

// notFound translates a storage miss into the ledger sentinel and leaves other
// errors wrapped as they are.
func notFound(id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("expense %d: %w", id, ledger.ErrNotFound)
	}
	return fmt.Errorf("failed to access expense %d: %w", id, err)
}
