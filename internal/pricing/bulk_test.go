package pricing

import "testing"

func TestComputeBulkPriceMarkupOnBase(t *testing.T) {
	pair := BulkPair{
		RecipeID:      1,
		ChannelID:     1,
		BasePrice:     d("10000"),
		CurrentPrice:  d("10000"),
		COGSPerUnit:   d("4000"),
		CommissionPct: d("20"),
	}

	q, err := ComputeBulkPrice(pair, MarkupOnBase(d("15")), RoundPolicy{Kind: RoundNone})
	if err != nil {
		t.Fatalf("ComputeBulkPrice returned error: %v", err)
	}
	wantDecimal(t, "newPrice", q.NewPrice, "11500")
	wantDecimal(t, "priceChange", q.PriceChange, "1500")
	wantDecimal(t, "percentageChange", q.PercentageChange, "15")
	// net sales 11500*0.8 = 9200; margin (9200-4000)/9200.
	wantDecimal(t, "netMargin", q.NetMargin, "56.5217391304347826")
}

func TestComputeBulkPriceTargetAbsoluteProfit(t *testing.T) {
	pair := BulkPair{
		RecipeID:      2,
		ChannelID:     1,
		CurrentPrice:  d("7000"),
		COGSPerUnit:   d("4000"),
		CommissionPct: d("20"),
	}

	q, err := ComputeBulkPrice(pair, TargetAbsoluteProfit(d("2000")), RoundPolicy{Kind: RoundNearestHundred})
	if err != nil {
		t.Fatalf("ComputeBulkPrice returned error: %v", err)
	}
	// (4000 + 2000) / 0.8 = 7500, already on a hundred boundary.
	wantDecimal(t, "newPrice", q.NewPrice, "7500")
	wantDecimal(t, "priceChange", q.PriceChange, "500")
}

func TestTargetAbsoluteProfitMatchesSolverAtZeroTax(t *testing.T) {
	pair := BulkPair{COGSPerUnit: d("4000"), CommissionPct: d("20")}

	q, err := ComputeBulkPrice(pair, TargetAbsoluteProfit(d("2000")), RoundPolicy{Kind: RoundNone})
	if err != nil {
		t.Fatalf("ComputeBulkPrice returned error: %v", err)
	}

	solved, err := Solve(d("4000"), d("20"), d("0"), MinProfitByAmount, d("2000"))
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}

	if q.NewPrice.Sub(solved.PriceBeforeTax).Abs().GreaterThan(d("1")) {
		t.Fatalf("bulk price %s diverges from solver price %s", q.NewPrice, solved.PriceBeforeTax)
	}
}

func TestComputeBulkPricesIsolatesFailures(t *testing.T) {
	pairs := []BulkPair{
		{RecipeID: 1, ChannelID: 1, COGSPerUnit: d("4000"), CommissionPct: d("20")},
		{RecipeID: 1, ChannelID: 2, COGSPerUnit: d("4000"), CommissionPct: d("150")},
		{RecipeID: 2, ChannelID: 1, COGSPerUnit: d("2500"), CommissionPct: d("0")},
	}

	results := ComputeBulkPrices(pairs, TargetAbsoluteProfit(d("1000")), RoundPolicy{Kind: RoundNearestHundred})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].Err != nil {
		t.Fatalf("pair (1,1) unexpectedly failed: %v", results[0].Err)
	}
	wantDecimal(t, "pair (1,1) newPrice", results[0].Quote.NewPrice, "6300")

	if results[1].Err == nil {
		t.Fatalf("pair (1,2) with 150%% commission should fail")
	}
	wantErrIs(t, results[1].Err, ErrInvalidInput)

	if results[2].Err != nil {
		t.Fatalf("pair (2,1) unexpectedly failed: %v", results[2].Err)
	}
	wantDecimal(t, "pair (2,1) newPrice", results[2].Quote.NewPrice, "3500")
}

func TestComputeBulkPriceRejectsUnknownStrategy(t *testing.T) {
	_, err := ComputeBulkPrice(BulkPair{CommissionPct: d("10")}, Strategy{Kind: StrategyKind("vibes")}, RoundPolicy{})
	wantErrIs(t, err, ErrInvalidInput)
}
