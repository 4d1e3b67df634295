package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a single shared payment with one payer and the debtors who owe a share of it.
type Expense struct {
	// ID is assigned by the store on creation. Zero means not yet persisted.
	ID int64

	// CreatedAt is when the expense was first recorded.
	CreatedAt time.Time

	// Description is free text supplied by the caller, stored as given.
	Description string

	// Amount is the total paid, in currency units with two decimal places.
	Amount decimal.Decimal

	// Payer is the participant who paid the full amount.
	Payer string

	// Debtors are the per-participant shares, in the order they were supplied.
	// The sum of their amounts always equals Amount.
	Debtors []DebtorShare
}

// DebtorShare is one participant's owed portion of an expense.
type DebtorShare struct {
	Debtor string
	Amount decimal.Decimal
}

// ExpensePatch describes a partial update to an expense.
// A nil field means "leave unchanged". A non-nil but empty Debtors slice means
// the caller explicitly supplied an empty list.
type ExpensePatch struct {
	Amount      *decimal.Decimal
	Description *string
	Debtors     []DebtorShare
}

// DebtorTotal returns the sum of all debtor shares.
func (e Expense) DebtorTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range e.Debtors {
		total = total.Add(d.Amount)
	}
	return total
}

// DebtorNames returns the debtor identifiers in stored order.
func (e Expense) DebtorNames() []string {
	names := make([]string, len(e.Debtors))
	for i, d := range e.Debtors {
		names[i] = d.Debtor
	}
	return names
}

// Clone returns a copy of the expense that shares no slices with the original.
func (e Expense) Clone() Expense {
	c := e
	if e.Debtors != nil {
		c.Debtors = make([]DebtorShare, len(e.Debtors))
		copy(c.Debtors, e.Debtors)
	}
	return c
}
