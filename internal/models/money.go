package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"auction-core/internal/biddingerrors"
)

// MoneyPlaces is the number of fractional digits carried by every amount.
const MoneyPlaces = 2

// MinIncrement is the smallest step by which a new bid must exceed the current price.
var MinIncrement = decimal.RequireFromString("3.00")

// MaxAmount is the largest amount a price or bid may carry (ten significant digits).
var MaxAmount = decimal.RequireFromString("99999999.99")

// FormatMoney renders an amount the way it is shown to bidders, e.g. "$150.00".
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(MoneyPlaces)
}

// HasMoneyPrecision reports whether d fits in two fractional digits.
func HasMoneyPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// WithinMaxAmount reports whether d does not exceed MaxAmount.
func WithinMaxAmount(d decimal.Decimal) bool {
	return d.LessThanOrEqual(MaxAmount)
}

// ParseAmount parses user input into a fixed-point amount.
// Non-numeric input, more than two fractional digits or an amount above
// MaxAmount is rejected as malformed.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if raw == "" {
		return decimal.Zero, biddingerrors.Reject(biddingerrors.ReasonMalformedAmount, "Invalid bid amount. Please enter a valid number.")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, biddingerrors.Reject(biddingerrors.ReasonMalformedAmount, "Invalid bid amount. Please enter a valid number.")
	}
	if !HasMoneyPrecision(d) {
		return decimal.Zero, biddingerrors.Reject(biddingerrors.ReasonMalformedAmount, "Bid amount cannot have more than %d decimal places.", MoneyPlaces)
	}
	if !WithinMaxAmount(d) {
		return decimal.Zero, RejectTooLarge()
	}
	return d, nil
}

// RejectTooLarge is the rejection for amounts above MaxAmount.
func RejectTooLarge() error {
	return biddingerrors.Reject(biddingerrors.ReasonMalformedAmount, "Bid amount cannot exceed %s.", FormatMoney(MaxAmount))
}

// ToCents converts an amount into integer cents. It fails instead of rounding
// or wrapping when d has more than two fractional digits or lies outside
// [-MaxAmount, MaxAmount].
func ToCents(d decimal.Decimal) (int64, error) {
	if !HasMoneyPrecision(d) || !WithinMaxAmount(d.Abs()) {
		return 0, fmt.Errorf("amount %s cannot be stored as cents: %w", d.String(), biddingerrors.ErrInvalidBid)
	}
	return d.Shift(MoneyPlaces).IntPart(), nil
}

// FromCents converts integer cents back into a fixed-point amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -MoneyPlaces)
}
