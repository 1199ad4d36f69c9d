package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeType classifies the direction of a committed price change.
type ChangeType string

const (
	ChangeIncrease ChangeType = "increase"
	ChangeDecrease ChangeType = "decrease"
	ChangeNone     ChangeType = "no_change"
)

// ChangeRecord is one entry in the price-change ledger. Records are
// immutable: every committed price mutation produces exactly one, and it is
// never edited or deleted afterwards. COGSAtChange captures the cost basis
// as it stood at commit time.
type ChangeRecord struct {
	ID               uuid.UUID       `json:"id"`
	OldPrice         decimal.Decimal `json:"old_price"`
	NewPrice         decimal.Decimal `json:"new_price"`
	PriceChange      decimal.Decimal `json:"price_change"`
	PercentageChange decimal.Decimal `json:"percentage_change"`
	ChangeType       ChangeType      `json:"change_type"`
	COGSAtChange     decimal.Decimal `json:"cogs_at_change"`
	Reason           string          `json:"reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ClassifyChange compares an old and a new price. A previous price of zero
// is a valid baseline (a price being set for the first time); its percentage
// change is reported as zero, not an error.
func ClassifyChange(oldPrice, newPrice decimal.Decimal) (priceChange, percentageChange decimal.Decimal, changeType ChangeType) {
	priceChange = newPrice.Sub(oldPrice)
	percentageChange = decimal.Zero
	if oldPrice.IsPositive() {
		percentageChange = priceChange.Div(oldPrice).Mul(hundred)
	}

	switch {
	case priceChange.IsPositive():
		changeType = ChangeIncrease
	case priceChange.IsNegative():
		changeType = ChangeDecrease
	default:
		changeType = ChangeNone
	}
	return priceChange, percentageChange, changeType
}

// NewChangeRecord builds the ledger entry for one committed price mutation.
// Timestamp and reason come from the caller; the COGS value must be the one
// in effect at commit time.
func NewChangeRecord(oldPrice, newPrice, cogsAtChange decimal.Decimal, reason string, at time.Time) ChangeRecord {
	priceChange, percentageChange, changeType := ClassifyChange(oldPrice, newPrice)
	return ChangeRecord{
		ID:               uuid.New(),
		OldPrice:         oldPrice,
		NewPrice:         newPrice,
		PriceChange:      priceChange,
		PercentageChange: percentageChange,
		ChangeType:       changeType,
		COGSAtChange:     cogsAtChange,
		Reason:           reason,
		CreatedAt:        at,
	}
}
