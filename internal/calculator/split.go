package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidArgument is returned when a split is requested with bad inputs
// (no debtors or a negative total).
var ErrInvalidArgument = errors.New("invalid argument")

// CentPlaces is the number of fractional digits kept for every money amount.
const CentPlaces = 2

var oneCent = decimal.New(1, -CentPlaces)

// RoundCents rounds an amount to whole cents, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// SplitEqually divides total into count shares that differ by at most one cent
// and add up exactly to total.
//
// Algorithm:
//   - base = largest cent value such that base × count <= total
//   - every slot gets base
//   - the leftover cents go one each to the first slots, in input order
//
// The slot order decides who receives the extra cents, so callers must pass
// debtors in a stable order to get reproducible shares.
func SplitEqually(total decimal.Decimal, count int) ([]decimal.Decimal, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: cannot split among %d debtors", ErrInvalidArgument, count)
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: cannot split negative amount %s", ErrInvalidArgument, total.StringFixed(CentPlaces))
	}

	// Whole cents stay in decimal so arbitrarily large totals cannot overflow.
	cents := RoundCents(total).Shift(CentPlaces)
	quotient, rest := cents.QuoRem(decimal.NewFromInt(int64(count)), 0)
	base := quotient.Shift(-CentPlaces)
	remainder := rest.IntPart() // < count

	shares := make([]decimal.Decimal, count)
	for i := range shares {
		shares[i] = base
		if int64(i) < remainder {
			shares[i] = base.Add(oneCent)
		}
	}
	return shares, nil
}
