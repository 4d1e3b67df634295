// Package render formats expenses as plain text for chat replies.
package render

import (
	"fmt"
	"strings"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
)

// Expense renders a single expense block.
func Expense(e models.Expense) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", strings.ToUpper(e.Description))
	fmt.Fprintf(&b, "  id: %d\n", e.ID)
	fmt.Fprintf(&b, "  amount: %s\n", e.Amount.StringFixed(calculator.CentPlaces))
	fmt.Fprintf(&b, "  paid by: %s\n", e.Payer)
	b.WriteString("  debtors:\n")
	for i, d := range e.Debtors {
		fmt.Fprintf(&b, "- %s: %s", d.Debtor, d.Amount.StringFixed(calculator.CentPlaces))
		if i < len(e.Debtors)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Expenses renders one block per expense, separated by newlines.
func Expenses(expenses []models.Expense) string {
	if len(expenses) == 0 {
		return calculator.NoExpensesMessage
	}
	blocks := make([]string, len(expenses))
	for i, e := range expenses {
		blocks[i] = Expense(e)
	}
	return strings.Join(blocks, "\n")
}
