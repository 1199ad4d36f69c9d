package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TargetMode selects which business constraint the solver inverts to find
// the price before tax.
type TargetMode string

const (
	// MinProfitByAmount targets a minimum profit in absolute currency.
	MinProfitByAmount TargetMode = "min_profit_amount"
	// MinProfitPctOfNet targets a minimum profit as a percentage of net sales.
	MinProfitPctOfNet TargetMode = "min_profit_pct_net"
	// MinProfitPctOfCOGS targets a minimum profit as a percentage of COGS.
	MinProfitPctOfCOGS TargetMode = "min_profit_pct_cogs"
	// MaxCOGSByAmount treats the target as an absolute cost ceiling.
	MaxCOGSByAmount TargetMode = "max_cogs_amount"
	// MaxCOGSPctOfNet treats the target as a cost ceiling in percent of net sales.
	MaxCOGSPctOfNet TargetMode = "max_cogs_pct_net"
	// NetSalesMultipleOfCOGS targets net sales equal to target times COGS.
	NetSalesMultipleOfCOGS TargetMode = "net_sales_multiple_cogs"
	// NetSalesByAmount targets a fixed net sales amount.
	NetSalesByAmount TargetMode = "net_sales_amount"
	// ConsumerPaysByAmount targets a fixed total price paid by the consumer.
	ConsumerPaysByAmount TargetMode = "consumer_pays_amount"
	// PriceBeforeTaxByAmount passes the target through as the price before tax.
	PriceBeforeTaxByAmount TargetMode = "price_before_tax"
)

// Quote is the full economic breakdown derived from one solved price before
// tax.
type Quote struct {
	PriceBeforeTax    decimal.Decimal `json:"price_before_tax"`
	TotalConsumerPays decimal.Decimal `json:"total_consumer_pays"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	ChannelFee        decimal.Decimal `json:"channel_fee"`
	NetSales          decimal.Decimal `json:"net_sales"`
	GrossProfit       decimal.Decimal `json:"gross_profit"`
	PctCOGSOfNet      decimal.Decimal `json:"pct_cogs_of_net"`
	PctProfitOfNet    decimal.Decimal `json:"pct_profit_of_net"`
}

// Solve derives the price before tax for one sales channel from the unit
// COGS, the channel commission and tax (percentages in [0, 100)), and the
// requested target mode. A negative target is treated as zero. A mode whose
// denominator is not strictly positive, or that yields a negative price,
// returns ErrUnsolvable.
func Solve(cogsPerUnit, commissionPct, taxPct decimal.Decimal, mode TargetMode, target decimal.Decimal) (Quote, error) {
	if cogsPerUnit.IsNegative() {
		return Quote{}, fmt.Errorf("%w: cogs per unit must be >= 0, got %s", ErrInvalidInput, cogsPerUnit)
	}
	if commissionPct.IsNegative() || commissionPct.GreaterThanOrEqual(hundred) {
		return Quote{}, fmt.Errorf("%w: commission must be in [0, 100), got %s", ErrInvalidInput, commissionPct)
	}
	if taxPct.IsNegative() || taxPct.GreaterThanOrEqual(hundred) {
		return Quote{}, fmt.Errorf("%w: tax must be in [0, 100), got %s", ErrInvalidInput, taxPct)
	}

	c := commissionPct.Div(hundred)
	t := taxPct.Div(hundred)
	v := target
	if v.IsNegative() {
		v = decimal.Zero
	}

	onePlusTax := one.Add(t)
	commissionShare := one.Sub(c)

	var (
		priceBeforeTax decimal.Decimal
		err            error
	)
	switch mode {
	case MinProfitByAmount:
		priceBeforeTax, err = solveDiv(cogsPerUnit.Add(v), commissionShare.Mul(onePlusTax))
	case MinProfitPctOfNet:
		denom := one.Sub(v.Div(hundred)).Sub(c).Mul(onePlusTax)
		priceBeforeTax, err = solveDiv(cogsPerUnit, denom)
	case MinProfitPctOfCOGS:
		profit := cogsPerUnit.Mul(v).Div(hundred)
		priceBeforeTax, err = solveDiv(cogsPerUnit.Add(profit), commissionShare.Mul(onePlusTax))
	case MaxCOGSByAmount:
		priceBeforeTax, err = solveDiv(v, commissionShare.Mul(onePlusTax))
	case MaxCOGSPctOfNet:
		priceBeforeTax, err = solveDiv(cogsPerUnit, v.Div(hundred).Mul(onePlusTax))
	case NetSalesMultipleOfCOGS:
		priceBeforeTax, err = solveDiv(cogsPerUnit.Mul(v), onePlusTax.Mul(commissionShare))
	case NetSalesByAmount:
		priceBeforeTax, err = solveDiv(v, onePlusTax.Mul(commissionShare))
	case ConsumerPaysByAmount:
		priceBeforeTax, err = solveDiv(v, onePlusTax)
	case PriceBeforeTaxByAmount:
		priceBeforeTax = v
	default:
		return Quote{}, fmt.Errorf("%w: unknown target mode %q", ErrInvalidInput, mode)
	}
	if err != nil {
		return Quote{}, err
	}
	if priceBeforeTax.IsNegative() {
		return Quote{}, fmt.Errorf("%w: solved price before tax is negative (%s)", ErrUnsolvable, priceBeforeTax)
	}

	return buildQuote(cogsPerUnit, c, t, priceBeforeTax), nil
}

func solveDiv(numerator, denominator decimal.Decimal) (decimal.Decimal, error) {
	if !denominator.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: commission, tax and target leave no room for a price", ErrUnsolvable)
	}
	return numerator.Div(denominator), nil
}

// buildQuote derives the shared breakdown from the solved price before tax.
// Commission and tax arrive as fractions here, not percentages.
func buildQuote(cogsPerUnit, c, t, priceBeforeTax decimal.Decimal) Quote {
	totalConsumerPays := priceBeforeTax.Mul(one.Add(t))
	taxAmount := priceBeforeTax.Mul(t)
	channelFee := totalConsumerPays.Mul(c)
	netSales := totalConsumerPays.Sub(channelFee)
	grossProfit := netSales.Sub(cogsPerUnit)

	q := Quote{
		PriceBeforeTax:    priceBeforeTax,
		TotalConsumerPays: totalConsumerPays,
		TaxAmount:         taxAmount,
		ChannelFee:        channelFee,
		NetSales:          netSales,
		GrossProfit:       grossProfit,
	}
	if netSales.IsPositive() {
		q.PctCOGSOfNet = cogsPerUnit.Div(netSales).Mul(hundred)
		q.PctProfitOfNet = grossProfit.Div(netSales).Mul(hundred)
	}
	return q
}
