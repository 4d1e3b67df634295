// Package sqlstore implements storage.Store on top of database/sql.
// The SQLite and PostgreSQL backends share it and differ only in how they open
// the database, run migrations and write bind parameters.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Placeholder selects the bind parameter style of the SQL dialect.
type Placeholder int

const (
	// Question writes parameters as ?, used by SQLite.
	Question Placeholder = iota
	// Dollar writes parameters as $1, $2, ..., used by PostgreSQL.
	Dollar
)

// Store implements storage.Store over a *sql.DB.
type Store struct {
	db          *sql.DB
	placeholder Placeholder
}

// New wraps an open, migrated database.
func New(db *sql.DB, placeholder Placeholder) *Store {
	return &Store{db: db, placeholder: placeholder}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders for the configured dialect.
func (s *Store) rebind(query string) string {
	if s.placeholder == Question {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withTx runs fn inside a transaction.
// It commits if fn returns nil, otherwise it rolls back.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.runTx(ctx, nil, fn)
}

// withReadTx runs fn inside a read-only transaction, so every query in fn sees
// the same committed state. PostgreSQL needs REPEATABLE READ for that; a SQLite
// transaction already reads from one snapshot.
func (s *Store) withReadTx(ctx context.Context, fn func(*sql.Tx) error) error {
	var opts *sql.TxOptions
	if s.placeholder == Dollar {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return s.runTx(ctx, opts, fn)
}

func (s *Store) runTx(ctx context.Context, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after error: %v (error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateExpense persists a new expense with its debtor shares.
// Unbalanced expenses are rejected before anything is written.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := ledger.CheckBalanced(*expense); err != nil {
		return err
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().Truncate(time.Second)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			s.rebind("INSERT INTO expenses (description, amount, payer, created_at) VALUES (?, ?, ?, ?) RETURNING id"),
			expense.Description, expense.Amount, expense.Payer, expense.CreatedAt.Unix(),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}

		if err := s.insertDebtors(ctx, tx, id, expense.Debtors); err != nil {
			return err
		}

		expense.ID = id
		return nil
	})
}

func (s *Store) insertDebtors(ctx context.Context, tx *sql.Tx, expenseID int64, debtors []models.DebtorShare) error {
	query := s.rebind("INSERT INTO debtors (expense_id, position, debtor, amount) VALUES (?, ?, ?, ?)")
	for i, d := range debtors {
		if _, err := tx.ExecContext(ctx, query, expenseID, i, d.Debtor, d.Amount); err != nil {
			return fmt.Errorf("failed to insert debtor: %w", err)
		}
	}
	return nil
}

// GetExpense retrieves an expense by ID, including its debtors.
func (s *Store) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	var expense *models.Expense
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		e := &models.Expense{}
		var createdAt int64
		err := tx.QueryRowContext(ctx,
			s.rebind("SELECT id, description, amount, payer, created_at FROM expenses WHERE id = ?"),
			id,
		).Scan(&e.ID, &e.Description, &e.Amount, &e.Payer, &createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get expense: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)

		rows, err := tx.QueryContext(ctx,
			s.rebind("SELECT debtor, amount FROM debtors WHERE expense_id = ? ORDER BY position"),
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to get debtors: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var d models.DebtorShare
			if err := rows.Scan(&d.Debtor, &d.Amount); err != nil {
				return fmt.Errorf("failed to scan debtor: %w", err)
			}
			e.Debtors = append(e.Debtors, d)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate debtors: %w", err)
		}

		expense = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateExpense overwrites an expense and replaces its debtor list.
func (s *Store) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if err := ledger.CheckBalanced(*expense); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.rebind("UPDATE expenses SET description = ?, amount = ?, payer = ? WHERE id = ?"),
			expense.Description, expense.Amount, expense.Payer, expense.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		if err := requireAffected(res, expense.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM debtors WHERE expense_id = ?"), expense.ID); err != nil {
			return fmt.Errorf("failed to clear debtors: %w", err)
		}
		return s.insertDebtors(ctx, tx, expense.ID, expense.Debtors)
	})
}

// DeleteExpense removes an expense by ID along with its debtors.
func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM debtors WHERE expense_id = ?"), id); err != nil {
			return fmt.Errorf("failed to delete debtors: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.rebind("DELETE FROM expenses WHERE id = ?"), id)
		if err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		return requireAffected(res, id)
	})
}

// ListExpenses retrieves every expense with its debtors, ordered by ID.
func (s *Store) ListExpenses(ctx context.Context) ([]models.Expense, error) {
	var expenses []models.Expense
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		expenses, err = listExpenseRows(ctx, tx)
		if err != nil {
			return err
		}
		return attachDebtors(ctx, tx, expenses)
	})
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// listExpenseRows reads the expense rows without debtors. The result set is
// closed before returning so the connection is free for the next query.
func listExpenseRows(ctx context.Context, tx *sql.Tx) ([]models.Expense, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT id, description, amount, payer, created_at FROM expenses ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.Payer, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// attachDebtors fills in the debtor shares of expenses, in stored order.
func attachDebtors(ctx context.Context, tx *sql.Tx, expenses []models.Expense) error {
	index := make(map[int64]int, len(expenses))
	for i, e := range expenses {
		index[e.ID] = i
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT expense_id, debtor, amount FROM debtors ORDER BY expense_id, position",
	)
	if err != nil {
		return fmt.Errorf("failed to list debtors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID int64
		var d models.DebtorShare
		if err := rows.Scan(&expenseID, &d.Debtor, &d.Amount); err != nil {
			return fmt.Errorf("failed to scan debtor: %w", err)
		}
		i, ok := index[expenseID]
		if !ok {
			return fmt.Errorf("debtor row for unknown expense %d", expenseID)
		}
		expenses[i].Debtors = append(expenses[i].Debtors, d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate debtors: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
