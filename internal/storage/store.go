// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

// ErrNotFound is returned when the requested expense does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for expense storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateExpense persists a new expense.
	// The ID and, when zero, CreatedAt fields are populated by the store.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with its debtor shares in stored order.
	// Returns ErrNotFound if the expense does not exist.
	GetExpense(ctx context.Context, id int64) (*models.Expense, error)

	// UpdateExpense replaces the stored expense with the given one, debtors included.
	// Returns ErrNotFound if the expense does not exist.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense and its debtor shares.
	// Returns ErrNotFound if the expense does not exist.
	DeleteExpense(ctx context.Context, id int64) error

	// ListExpenses returns every expense ordered by ID.
	ListExpenses(ctx context.Context) ([]models.Expense, error)

	// Close releases any resources held by the store.
	Close() error
}
