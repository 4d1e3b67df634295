// Package storetest holds the behavior every storage.Store backend must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newDinner() *models.Expense {
	return &models.Expense{
		Description: "DINNER",
		Amount:      dec("100.00"),
		Payer:       "alice",
		Debtors: []models.DebtorShare{
			{Debtor: "carol", Amount: dec("33.34")},
			{Debtor: "bob", Amount: dec("33.33")},
			{Debtor: "alice", Amount: dec("33.33")},
		},
	}
}

// Run exercises store against the storage.Store contract.
// The store must start empty.
func Run(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("ListExpenses on empty store", func(t *testing.T) {
		expenses, err := store.ListExpenses(ctx)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(expenses) != 0 {
			t.Errorf("expected no expenses, got %d", len(expenses))
		}
	})

	t.Run("CreateExpense generates ID and CreatedAt", func(t *testing.T) {
		expense := newDinner()
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
		if expense.ID == 0 {
			t.Error("Expected expense ID to be generated")
		}
		if expense.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("CreateExpense rejects unbalanced expense", func(t *testing.T) {
		expense := newDinner()
		expense.Amount = dec("99.99")
		if err := store.CreateExpense(ctx, expense); !errors.Is(err, ledger.ErrInconsistentSplit) {
			t.Errorf("Expected ErrInconsistentSplit, got %v", err)
		}
		if expense.ID != 0 {
			t.Errorf("Expected no ID for rejected expense, got %d", expense.ID)
		}
	})

	t.Run("GetExpense retrieves debtors in stored order", func(t *testing.T) {
		original := newDinner()
		original.CreatedAt = time.Unix(1700000000, 0)
		if err := store.CreateExpense(ctx, original); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		retrieved, err := store.GetExpense(ctx, original.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}

		if retrieved.ID != original.ID {
			t.Errorf("ID mismatch: got %d, want %d", retrieved.ID, original.ID)
		}
		if retrieved.Description != original.Description {
			t.Errorf("Description mismatch: got %s, want %s", retrieved.Description, original.Description)
		}
		if !retrieved.Amount.Equal(original.Amount) {
			t.Errorf("Amount mismatch: got %s, want %s", retrieved.Amount, original.Amount)
		}
		if retrieved.Payer != original.Payer {
			t.Errorf("Payer mismatch: got %s, want %s", retrieved.Payer, original.Payer)
		}
		if retrieved.CreatedAt.Unix() != original.CreatedAt.Unix() {
			t.Errorf("CreatedAt mismatch: got %v, want %v", retrieved.CreatedAt, original.CreatedAt)
		}
		if len(retrieved.Debtors) != len(original.Debtors) {
			t.Fatalf("Debtors count mismatch: got %d, want %d", len(retrieved.Debtors), len(original.Debtors))
		}
		for i, d := range retrieved.Debtors {
			want := original.Debtors[i]
			if d.Debtor != want.Debtor || !d.Amount.Equal(want.Amount) {
				t.Errorf("Debtor %d mismatch: got %s:%s, want %s:%s", i, d.Debtor, d.Amount, want.Debtor, want.Amount)
			}
		}
	})

	t.Run("GetExpense returns ErrNotFound for nonexistent expense", func(t *testing.T) {
		_, err := store.GetExpense(ctx, 999999)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateExpense replaces amount and debtors", func(t *testing.T) {
		expense := newDinner()
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		expense.Description = "LUNCH"
		expense.Amount = dec("90.00")
		expense.Debtors = []models.DebtorShare{
			{Debtor: "bob", Amount: dec("45.00")},
			{Debtor: "dave", Amount: dec("45.00")},
		}
		if err := store.UpdateExpense(ctx, expense); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}

		retrieved, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if retrieved.Description != "LUNCH" || !retrieved.Amount.Equal(dec("90")) {
			t.Errorf("Update not persisted: %+v", retrieved)
		}
		if len(retrieved.Debtors) != 2 || retrieved.Debtors[1].Debtor != "dave" {
			t.Errorf("Debtors not replaced: %+v", retrieved.Debtors)
		}
	})

	t.Run("UpdateExpense returns ErrNotFound for nonexistent expense", func(t *testing.T) {
		expense := newDinner()
		expense.ID = 999999
		if err := store.UpdateExpense(ctx, expense); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteExpense removes expense and debtors", func(t *testing.T) {
		expense := newDinner()
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
		if err := store.DeleteExpense(ctx, expense.ID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}
		if _, err := store.GetExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := store.DeleteExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("ListExpenses returns all expenses with debtors ordered by ID", func(t *testing.T) {
		expenses, err := store.ListExpenses(ctx)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		// Three created above, one deleted
		if len(expenses) != 3 {
			t.Fatalf("expected 3 expenses, got %d", len(expenses))
		}
		for i, e := range expenses {
			if i > 0 && expenses[i-1].ID >= e.ID {
				t.Errorf("expenses not ordered by ID: %d before %d", expenses[i-1].ID, e.ID)
			}
			if !e.DebtorTotal().Equal(e.Amount) {
				t.Errorf("expense %d debtors add up to %s, amount %s", e.ID, e.DebtorTotal(), e.Amount)
			}
		}
	})

	t.Run("CreateExpense rejects amounts at the storage limit", func(t *testing.T) {
		expense := &models.Expense{
			Description: "YACHT",
			Amount:      ledger.MaxAmount,
			Payer:       "alice",
			Debtors:     []models.DebtorShare{{Debtor: "bob", Amount: ledger.MaxAmount}},
		}
		if err := store.CreateExpense(ctx, expense); !errors.Is(err, ledger.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
	})

	t.Run("reads stay balanced while another writer updates", func(t *testing.T) {
		expense := &models.Expense{
			Description: "RENT",
			Amount:      dec("100.00"),
			Payer:       "alice",
			Debtors: []models.DebtorShare{
				{Debtor: "bob", Amount: dec("50.00")},
				{Debtor: "carol", Amount: dec("50.00")},
			},
		}
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			amounts := []string{"200.00", "100.00"}
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				total := dec(amounts[i%2])
				half := total.Div(decimal.NewFromInt(2))
				update := &models.Expense{
					ID:          expense.ID,
					Description: expense.Description,
					Amount:      total,
					Payer:       expense.Payer,
					Debtors: []models.DebtorShare{
						{Debtor: "bob", Amount: half},
						{Debtor: "carol", Amount: half},
					},
				}
				if err := store.UpdateExpense(ctx, update); err != nil {
					t.Errorf("UpdateExpense failed: %v", err)
					return
				}
			}
		}()

		for i := 0; i < 200; i++ {
			expenses, err := store.ListExpenses(ctx)
			if err != nil {
				t.Errorf("ListExpenses failed: %v", err)
				break
			}
			for _, e := range expenses {
				if err := ledger.CheckBalanced(e); err != nil {
					t.Errorf("ListExpenses returned unbalanced expense %d: %v", e.ID, err)
				}
			}

			got, err := store.GetExpense(ctx, expense.ID)
			if err != nil {
				t.Errorf("GetExpense failed: %v", err)
				break
			}
			if err := ledger.CheckBalanced(*got); err != nil {
				t.Errorf("GetExpense returned unbalanced expense: %v", err)
			}
		}

		close(stop)
		wg.Wait()
	})
}
