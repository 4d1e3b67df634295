// Package ledger creates and updates expenses while keeping the sum of debtor
// shares equal to the expense amount. Everything here is pure: functions take
// plain records and return new ones, persistence is the caller's job.
package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
)

// MaxAmount is the exclusive upper bound for an expense amount. Both storage
// backends hold amounts up to 999999999999.99.
var MaxAmount = decimal.New(1, 12)

// CreateEqualSplit builds an unpersisted expense whose amount is split equally
// among debtors, in the order given.
func CreateEqualSplit(amount decimal.Decimal, description, payer string, debtors []string) (*models.Expense, error) {
	if len(debtors) == 0 {
		return nil, fmt.Errorf("%w: at least one debtor is required", ErrValidation)
	}
	amount, err := positiveAmount(amount)
	if err != nil {
		return nil, err
	}
	if err := checkParticipant("payer", payer); err != nil {
		return nil, err
	}
	for _, d := range debtors {
		if err := checkParticipant("debtor", d); err != nil {
			return nil, err
		}
	}

	shares, err := calculator.SplitEqually(amount, len(debtors))
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		Description: description,
		Amount:      amount,
		Payer:       payer,
		Debtors:     make([]models.DebtorShare, len(debtors)),
	}
	for i, d := range debtors {
		expense.Debtors[i] = models.DebtorShare{Debtor: d, Amount: shares[i]}
	}
	if err := CheckBalanced(*expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// ApplyPatch merges patch into a copy of existing and returns the copy.
// existing is never modified.
//
// Rules:
//   - Amount only: re-split equally over the current debtors, keeping their order
//   - Amount and Debtors: explicit shares, which must add up to Amount exactly
//   - Debtors without Amount: rejected, since the total would be ambiguous
//   - Description: replaced as given
func ApplyPatch(existing models.Expense, patch models.ExpensePatch) (*models.Expense, error) {
	updated := existing.Clone()

	switch {
	case patch.Amount != nil && patch.Debtors != nil:
		amount, err := positiveAmount(*patch.Amount)
		if err != nil {
			return nil, err
		}
		debtors, err := explicitShares(amount, patch.Debtors)
		if err != nil {
			return nil, err
		}
		updated.Amount = amount
		updated.Debtors = debtors

	case patch.Amount != nil:
		amount, err := positiveAmount(*patch.Amount)
		if err != nil {
			return nil, err
		}
		shares, err := calculator.SplitEqually(amount, len(updated.Debtors))
		if err != nil {
			return nil, fmt.Errorf("re-split expense %d: %w", existing.ID, err)
		}
		for i := range updated.Debtors {
			updated.Debtors[i].Amount = shares[i]
		}
		updated.Amount = amount

	case patch.Debtors != nil:
		return nil, fmt.Errorf("%w: debtors can only be changed together with the amount", ErrValidation)
	}

	if patch.Description != nil {
		updated.Description = *patch.Description
	}

	if err := CheckBalanced(updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// CheckBalanced verifies the invariants every stored expense must hold.
func CheckBalanced(e models.Expense) error {
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if e.Amount.GreaterThanOrEqual(MaxAmount) {
		return errAmountTooLarge()
	}
	if len(e.Debtors) == 0 {
		return fmt.Errorf("%w: at least one debtor is required", ErrValidation)
	}
	for _, d := range e.Debtors {
		if d.Amount.IsNegative() {
			return fmt.Errorf("%w: share of %s is negative", ErrValidation, d.Debtor)
		}
	}
	if total := e.DebtorTotal(); !total.Equal(e.Amount) {
		return fmt.Errorf("%w: shares add up to %s, amount is %s", ErrInconsistentSplit,
			total.StringFixed(calculator.CentPlaces), e.Amount.StringFixed(calculator.CentPlaces))
	}
	return nil
}

func positiveAmount(d decimal.Decimal) (decimal.Decimal, error) {
	amount := calculator.RoundCents(d)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if amount.GreaterThanOrEqual(MaxAmount) {
		return decimal.Zero, errAmountTooLarge()
	}
	return amount, nil
}

func errAmountTooLarge() error {
	return fmt.Errorf("%w: amount must be less than %s", ErrValidation, MaxAmount.StringFixed(calculator.CentPlaces))
}

func explicitShares(amount decimal.Decimal, shares []models.DebtorShare) ([]models.DebtorShare, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: at least one debtor is required", ErrValidation)
	}

	out := make([]models.DebtorShare, len(shares))
	total := decimal.Zero
	for i, s := range shares {
		if err := checkParticipant("debtor", s.Debtor); err != nil {
			return nil, err
		}
		if s.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: share of %s is negative", ErrValidation, s.Debtor)
		}
		if !s.Amount.Equal(calculator.RoundCents(s.Amount)) {
			return nil, fmt.Errorf("%w: share of %s has fractions of a cent", ErrValidation, s.Debtor)
		}
		out[i] = models.DebtorShare{Debtor: s.Debtor, Amount: s.Amount}
		total = total.Add(s.Amount)
	}

	if !total.Equal(amount) {
		return nil, ErrInconsistentSplit
	}
	return out, nil
}

func checkParticipant(role, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrValidation, role)
	}
	return nil
}
