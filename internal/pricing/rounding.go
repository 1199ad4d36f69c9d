package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RoundKind enumerates the supported price rounding strategies.
type RoundKind string

const (
	// RoundNone rounds to the currency's smallest unit (whole rupiah).
	RoundNone RoundKind = "none"
	// RoundNearestHundred rounds to the nearest multiple of 100.
	RoundNearestHundred RoundKind = "nearest_hundred"
	// RoundNearestThousand rounds to the nearest multiple of 1000.
	RoundNearestThousand RoundKind = "nearest_thousand"
	// RoundNearestMultiple rounds to the nearest multiple of RoundPolicy.Multiple.
	RoundNearestMultiple RoundKind = "nearest_multiple"
)

// RoundPolicy describes how a solved price is rounded. Multiple is only
// consulted for RoundNearestMultiple.
type RoundPolicy struct {
	Kind     RoundKind       `json:"kind"`
	Multiple decimal.Decimal `json:"multiple,omitempty"`
}

// NearestMultipleOf returns a policy rounding to the nearest multiple of n.
func NearestMultipleOf(n decimal.Decimal) RoundPolicy {
	return RoundPolicy{Kind: RoundNearestMultiple, Multiple: n}
}

// RoundPrice applies the rounding policy to a solved price. Rounding happens
// strictly after solving; the solver always works on unrounded values.
func RoundPrice(price decimal.Decimal, policy RoundPolicy) (decimal.Decimal, error) {
	switch policy.Kind {
	case RoundNone, "":
		return price.Round(0), nil
	case RoundNearestHundred:
		return roundToMultiple(price, hundred), nil
	case RoundNearestThousand:
		return roundToMultiple(price, thousand), nil
	case RoundNearestMultiple:
		if !policy.Multiple.IsPositive() {
			return decimal.Decimal{}, fmt.Errorf("%w: rounding multiple must be > 0, got %s", ErrInvalidInput, policy.Multiple)
		}
		return roundToMultiple(price, policy.Multiple), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unknown rounding kind %q", ErrInvalidInput, policy.Kind)
	}
}

func roundToMultiple(price, multiple decimal.Decimal) decimal.Decimal {
	return price.Div(multiple).Round(0).Mul(multiple)
}
