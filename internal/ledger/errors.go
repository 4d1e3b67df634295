package ledger

import (
	"errors"

	"github.com/mmynk/splitledger/internal/calculator"
)

var (
	// ErrValidation marks bad caller input: non-positive amounts, empty debtor
	// lists, negative shares. It is the same error the splitter returns for a
	// zero divisor.
	ErrValidation = calculator.ErrInvalidArgument

	// ErrInconsistentSplit is returned when explicit shares don't add up to the total.
	ErrInconsistentSplit = errors.New("the sum of debtor shares must equal the total amount")

	// ErrNotFound is returned when a referenced expense does not exist.
	ErrNotFound = errors.New("expense not found")
)
