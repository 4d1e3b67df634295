package calculator

import (
	"fmt"
	"strings"
)

// NoExpensesMessage is rendered instead of a report when nothing was recorded.
const NoExpensesMessage = "No expenses recorded."

// Render formats the report as line-oriented plain text for chat replies.
// Output is deterministic for a given report.
func (r *Report) Render() string {
	if r == nil || r.ExpenseCount == 0 {
		return NoExpensesMessage
	}

	var b strings.Builder
	b.WriteString("Expense report:\n\n")

	for _, m := range r.Members {
		fmt.Fprintf(&b, "*%s*\n", m.MemberName)
		for _, edge := range m.Owes {
			fmt.Fprintf(&b, "  owes %s to %s\n", edge.Amount.StringFixed(CentPlaces), edge.To)
		}
		fmt.Fprintf(&b, "  total paid: %s\n", m.TotalPaid.StringFixed(CentPlaces))
		fmt.Fprintf(&b, "  total owed: %s\n", m.TotalOwed.StringFixed(CentPlaces))
		fmt.Fprintf(&b, "  net balance: %s\n\n", m.NetBalance.StringFixed(CentPlaces))
	}

	return b.String()
}
