package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// MemberBalance represents the balance information for one participant.
type MemberBalance struct {
	MemberName string
	Owes       []DebtEdge      // One entry per creditor, in order of first appearance
	TotalPaid  decimal.Decimal // Total amount paid across all expenses
	TotalOwed  decimal.Decimal // Total amount this person owes, including shares of their own expenses
	NetBalance decimal.Decimal // Positive = owed money, Negative = owes money
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who paid
	Amount decimal.Decimal
}

// Report is the per-participant summary over a set of expenses.
type Report struct {
	ExpenseCount int
	Members      []MemberBalance
}

// CalculateBalances aggregates who paid what and who owes what across expenses.
//
// Algorithm:
//   - For each expense: payer contributed +amount
//   - For each debtor share: debts[debtor][payer] += share
//   - Aggregate: net_balance = total_paid - total_owed
//
// Debts are reported gross. If A owes B and B owes A, both edges are kept as
// they are; nothing is netted or simplified.
//
// Participants appear in order of first appearance (an expense's payer before
// its debtors) and each participant's creditors in the order they were first
// owed, so the result is deterministic for a given expense order.
func CalculateBalances(expenses []models.Expense) *Report {
	report := &Report{ExpenseCount: len(expenses)}

	// Track balances per member, keeping first-appearance order
	balances := make(map[string]*MemberBalance)
	var order []string
	member := func(name string) *MemberBalance {
		if bal, exists := balances[name]; exists {
			return bal
		}
		bal := &MemberBalance{MemberName: name}
		balances[name] = bal
		order = append(order, name)
		return bal
	}

	// Track debts: debts[debtor][creditor] = index into that debtor's Owes
	debts := make(map[string]map[string]int)

	for _, expense := range expenses {
		payer := member(expense.Payer)
		payer.TotalPaid = payer.TotalPaid.Add(expense.Amount)

		for _, share := range expense.Debtors {
			debtor := member(share.Debtor)
			if _, exists := debts[share.Debtor]; !exists {
				debts[share.Debtor] = make(map[string]int)
			}

			idx, exists := debts[share.Debtor][expense.Payer]
			if !exists {
				idx = len(debtor.Owes)
				debts[share.Debtor][expense.Payer] = idx
				debtor.Owes = append(debtor.Owes, DebtEdge{From: share.Debtor, To: expense.Payer})
			}
			debtor.Owes[idx].Amount = debtor.Owes[idx].Amount.Add(share.Amount)
		}
	}

	// Compute totals and net balances
	report.Members = make([]MemberBalance, 0, len(order))
	for _, name := range order {
		bal := balances[name]
		for _, edge := range bal.Owes {
			bal.TotalOwed = bal.TotalOwed.Add(edge.Amount)
		}
		bal.NetBalance = bal.TotalPaid.Sub(bal.TotalOwed)
		report.Members = append(report.Members, *bal)
	}

	return report
}

// Member returns the balance for the named participant, if present.
func (r *Report) Member(name string) (MemberBalance, bool) {
	for _, m := range r.Members {
		if m.MemberName == name {
			return m, true
		}
	}
	return MemberBalance{}, false
}
