// Package api defines the splitledger.v1 ExpenseService wire messages and
// its Connect handler and client constructors.
//
// Money travels as decimal strings ("12.50") so no precision is lost in JSON.
package api

// DebtorShare is one debtor's portion of an expense.
type DebtorShare struct {
	Debtor string `json:"debtor"`
	Amount string `json:"amount"`
}

// Expense is the wire form of a stored expense.
type Expense struct {
	ID          int64         `json:"id"`
	Description string        `json:"description"`
	Amount      string        `json:"amount"`
	Payer       string        `json:"payer"`
	Debtors     []DebtorShare `json:"debtors"`
	CreatedAt   int64         `json:"created_at"` // unix seconds
}

// CreateExpenseRequest splits Amount equally among Debtors, in order.
type CreateExpenseRequest struct {
	Amount      string   `json:"amount"`
	Description string   `json:"description"`
	Payer       string   `json:"payer"`
	Debtors     []string `json:"debtors"`
}

// ExpenseResponse returns one expense and its rendered summary.
type ExpenseResponse struct {
	Expense *Expense `json:"expense"`
	Summary string   `json:"summary"`
}

type GetExpenseRequest struct {
	ExpenseID int64 `json:"expense_id"`
}

// UpdateExpenseRequest is a partial update. Absent fields are left unchanged.
// An empty "debtors" array is distinct from an absent one and is rejected.
type UpdateExpenseRequest struct {
	ExpenseID   int64         `json:"expense_id"`
	Amount      *string       `json:"amount,omitempty"`
	Description *string       `json:"description,omitempty"`
	Debtors     []DebtorShare `json:"debtors"`
}

type DeleteExpenseRequest struct {
	ExpenseID int64 `json:"expense_id"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
	Summary  string     `json:"summary"`
}

// DebtEdge is a gross amount one participant owes another.
type DebtEdge struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// MemberBalance is one participant's line in the report.
type MemberBalance struct {
	MemberName string     `json:"member_name"`
	Owes       []DebtEdge `json:"owes"`
	TotalPaid  string     `json:"total_paid"`
	TotalOwed  string     `json:"total_owed"`
	NetBalance string     `json:"net_balance"`
}

type ReportResponse struct {
	ExpenseCount int              `json:"expense_count"`
	Balances     []*MemberBalance `json:"balances"`
	Text         string           `json:"text"`
}
