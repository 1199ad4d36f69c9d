package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StrategyKind enumerates the bulk repricing derivations.
type StrategyKind string

const (
	// StrategyMarkupOnBase derives the new price as a percentage markup on
	// the recipe's existing base selling price, ignoring channel commission.
	StrategyMarkupOnBase StrategyKind = "markup_on_base"
	// StrategyTargetAbsoluteProfit back-solves the price that leaves a fixed
	// absolute profit after the channel commission.
	StrategyTargetAbsoluteProfit StrategyKind = "target_absolute_profit"
)

// Strategy is a bulk repricing derivation with its scalar parameter: a
// markup percentage or an absolute profit amount.
type Strategy struct {
	Kind  StrategyKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// MarkupOnBase returns a markup-on-base-price strategy.
func MarkupOnBase(pct decimal.Decimal) Strategy {
	return Strategy{Kind: StrategyMarkupOnBase, Value: pct}
}

// TargetAbsoluteProfit returns a target-absolute-profit strategy.
func TargetAbsoluteProfit(amount decimal.Decimal) Strategy {
	return Strategy{Kind: StrategyTargetAbsoluteProfit, Value: amount}
}

// BulkPair carries everything needed to reprice one (recipe, channel) pair.
type BulkPair struct {
	RecipeID      int64
	ChannelID     int64
	BasePrice     decimal.Decimal
	CurrentPrice  decimal.Decimal
	COGSPerUnit   decimal.Decimal
	CommissionPct decimal.Decimal
}

// BulkQuote is the computed preview for one repriced pair.
type BulkQuote struct {
	RecipeID         int64           `json:"recipe_id"`
	ChannelID        int64           `json:"channel_id"`
	NewPrice         decimal.Decimal `json:"new_price"`
	PriceChange      decimal.Decimal `json:"price_change"`
	PercentageChange decimal.Decimal `json:"percentage_change"`
	NetMargin        decimal.Decimal `json:"net_margin"`
}

// BulkResult is the per-pair outcome of a batch run: a quote or the error
// that kept this pair from being priced.
type BulkResult struct {
	RecipeID  int64
	ChannelID int64
	Quote     BulkQuote
	Err       error
}

// ComputeBulkPrice derives and rounds the new price for one pair, then
// reports the change against the pair's current price and the net margin at
// the new price.
func ComputeBulkPrice(pair BulkPair, strategy Strategy, policy RoundPolicy) (BulkQuote, error) {
	if pair.CommissionPct.IsNegative() || pair.CommissionPct.GreaterThanOrEqual(hundred) {
		return BulkQuote{}, fmt.Errorf("%w: channel %d commission must be in [0, 100), got %s", ErrInvalidInput, pair.ChannelID, pair.CommissionPct)
	}

	var rawPrice decimal.Decimal
	switch strategy.Kind {
	case StrategyMarkupOnBase:
		rawPrice = pair.BasePrice.Mul(one.Add(strategy.Value.Div(hundred)))
	case StrategyTargetAbsoluteProfit:
		rawPrice = pair.COGSPerUnit.Add(strategy.Value).Div(one.Sub(pair.CommissionPct.Div(hundred)))
	default:
		return BulkQuote{}, fmt.Errorf("%w: unknown bulk strategy %q", ErrInvalidInput, strategy.Kind)
	}

	newPrice, err := RoundPrice(rawPrice, policy)
	if err != nil {
		return BulkQuote{}, err
	}
	if newPrice.IsNegative() {
		return BulkQuote{}, fmt.Errorf("%w: derived price is negative (%s)", ErrUnsolvable, newPrice)
	}

	q := BulkQuote{
		RecipeID:    pair.RecipeID,
		ChannelID:   pair.ChannelID,
		NewPrice:    newPrice,
		PriceChange: newPrice.Sub(pair.CurrentPrice),
	}
	if pair.CurrentPrice.IsPositive() {
		q.PercentageChange = q.PriceChange.Div(pair.CurrentPrice).Mul(hundred)
	}
	netSales := newPrice.Sub(newPrice.Mul(pair.CommissionPct).Div(hundred))
	if netSales.IsPositive() {
		q.NetMargin = netSales.Sub(pair.COGSPerUnit).Div(netSales).Mul(hundred)
	}
	return q, nil
}

// ComputeBulkPrices reprices every pair independently. A pair that fails
// (bad channel data, impossible constraint) carries its error in the result
// list and never blocks the remaining pairs.
func ComputeBulkPrices(pairs []BulkPair, strategy Strategy, policy RoundPolicy) []BulkResult {
	results := make([]BulkResult, 0, len(pairs))
	for _, pair := range pairs {
		quote, err := ComputeBulkPrice(pair, strategy, policy)
		results = append(results, BulkResult{
			RecipeID:  pair.RecipeID,
			ChannelID: pair.ChannelID,
			Quote:     quote,
			Err:       err,
		})
	}
	return results
}
