package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dapurkita/resep/internal/db"
	"github.com/dapurkita/resep/internal/migrations"
	"github.com/dapurkita/resep/internal/pricing"
)

func newTestServer(t *testing.T) *server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "api-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return &server{db: database}
}

// seedFixture inserts one recipe costing 4000 per batch (400 per unit) and
// two channels: GoFood (20% commission, 11% tax) and Etalase (no fees).
func seedFixture(t *testing.T, srv *server) {
	t.Helper()

	stmts := []string{
		`INSERT INTO ingredients (id, name, purchase_price, package_size, conversion_factor, usage_unit)
		 VALUES (1, 'Tepung terigu', '30000', '1000', '1', 'gram')`,
		`INSERT INTO recipes (id, name, yield, yield_unit, labor_cost, operational_cost, packaging_cost, base_price)
		 VALUES (1, 'Brownies kukus', '10', 'potong', '500', '200', '300', '10000')`,
		`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity) VALUES (1, 1, '100')`,
		`INSERT INTO channels (id, name, commission_pct, tax_pct, active) VALUES (1, 'GoFood', '20', '11', TRUE)`,
		`INSERT INTO channels (id, name, commission_pct, tax_pct, active) VALUES (2, 'Etalase', '0', '0', TRUE)`,
	}
	for _, stmt := range stmts {
		if _, err := srv.db.Exec(stmt); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string, out any) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec
}

func wantEqualDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func TestRecipeCostEndpoint(t *testing.T) {
	srv := newTestServer(t)
	seedFixture(t, srv)

	var resp costResponse
	rec := doJSON(t, srv.routes(), http.MethodGet, "/recipes/1/cost", "", &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /recipes/1/cost = %d: %s", rec.Code, rec.Body.String())
	}

	// 100 g of flour at 30/g plus 1000 of overheads.
	wantEqualDecimal(t, "total_cogs", resp.TotalCOGS, "4000")
	wantEqualDecimal(t, "cogs_per_unit", resp.COGSPerUnit, "400")
}

func TestRecipeCostIncludesSubRecipe(t *testing.T) {
	srv := newTestServer(t)
	seedFixture(t, srv)

	stmts := []string{
		`INSERT INTO recipes (id, name, yield, usable_as_ingredient) VALUES (2, 'Topping', '20', TRUE)`,
		`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity) VALUES (2, 1, '200')`,
		`INSERT INTO recipe_sub_recipes (recipe_id, sub_recipe_id, quantity) VALUES (1, 2, '5')`,
	}
	for _, stmt := range stmts {
		if _, err := srv.db.Exec(stmt); err != nil {
			t.Fatalf("extend fixture: %v", err)
		}
	}

	var resp costResponse
	rec := doJSON(t, srv.routes(), http.MethodGet, "/recipes/1/cost", "", &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /recipes/1/cost = %d: %s", rec.Code, rec.Body.String())
	}

	// Topping: 200 g at 30/g over 20 units = 300 per unit; 5 units on top
	// of the base 4000.
	wantEqualDecimal(t, "total_cogs", resp.TotalCOGS, "5500")
	wantEqualDecimal(t, "cogs_per_unit", resp.COGSPerUnit, "550")
}

func TestSolveCommitAppendsHistory(t *testing.T) {
	srv := newTestServer(t)
	seedFixture(t, srv)
	handler := srv.routes()

	var first solveResponse
	rec := doJSON(t, handler, http.MethodPost, "/recipes/1/price", `{
		"channel_id": 1,
		"mode": "min_profit_amount",
		"target": 100,
		"rounding": {"kind": "nearest_hundred"},
		"commit": true,
		"reason": "harga awal"
	}`, &first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first commit = %d: %s", rec.Code, rec.Body.String())
	}

	// (400 + 100) / (0.8 * 1.11) = 563.06..., rounded to 600.
	wantEqualDecimal(t, "rounded_price", first.RoundedPrice, "600")
	if !first.Committed || first.Record == nil {
		t.Fatalf("expected a committed record, got %+v", first)
	}
	if first.Record.ChangeType != pricing.ChangeIncrease {
		t.Fatalf("first change type = %s, want %s", first.Record.ChangeType, pricing.ChangeIncrease)
	}
	// Zero baseline: percentage change guarded to zero.
	wantEqualDecimal(t, "first percentage_change", first.Record.PercentageChange, "0")
	wantEqualDecimal(t, "first cogs_at_change", first.Record.COGSAtChange, "400")

	var second solveResponse
	rec = doJSON(t, handler, http.MethodPost, "/recipes/1/price", `{
		"channel_id": 1,
		"mode": "price_before_tax",
		"target": 500,
		"rounding": {"kind": "none"},
		"commit": true,
		"reason": "turun harga"
	}`, &second)
	if rec.Code != http.StatusOK {
		t.Fatalf("second commit = %d: %s", rec.Code, rec.Body.String())
	}
	if second.Record == nil {
		t.Fatalf("expected a committed record, got %+v", second)
	}
	if second.Record.ChangeType != pricing.ChangeDecrease {
		t.Fatalf("second change type = %s, want %s", second.Record.ChangeType, pricing.ChangeDecrease)
	}

	var history []historyEntry
	rec = doJSON(t, handler, http.MethodGet, "/recipes/1/history", "", &history)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET history = %d: %s", rec.Code, rec.Body.String())
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	// Newest first.
	wantEqualDecimal(t, "latest new_price", history[0].NewPrice, "500")
	wantEqualDecimal(t, "latest old_price", history[0].OldPrice, "600")
	wantEqualDecimal(t, "earliest new_price", history[1].NewPrice, "600")
	if history[0].Reason != "turun harga" {
		t.Fatalf("latest reason = %q", history[0].Reason)
	}
}

func TestSolveUnsolvableConstraint(t *testing.T) {
	srv := newTestServer(t)
	seedFixture(t, srv)

	rec := doJSON(t, srv.routes(), http.MethodPost, "/recipes/1/price", `{
		"channel_id": 1,
		"mode": "min_profit_pct_net",
		"target": 85,
		"rounding": {"kind": "none"}
	}`, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unsolvable constraint, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBulkPricingIsolatesBadChannel(t *testing.T) {
	srv := newTestServer(t)
	seedFixture(t, srv)

	// Channel 3 carries corrupt commission data that the engine must reject
	// without sinking the rest of the batch.
	if _, err := srv.db.Exec(`INSERT INTO channels (id, name, commission_pct, tax_pct, active) VALUES (3, 'Rusak', '150', '0', TRUE)`); err != nil {
		t.Fatalf("insert bad channel: %v", err)
	}

	var results []bulkPairResult
	rec := doJSON(t, srv.routes(), http.MethodPost, "/bulk-pricing", `{
		"recipe_ids": [1],
		"channel_ids": [2, 3],
		"strategy": {"kind": "target_absolute_profit", "value": 2000},
		"rounding": {"kind": "nearest_hundred"},
		"apply": false
	}`, &results)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /bulk-pricing = %d: %s", rec.Code, rec.Body.String())
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 pair results, got %d", len(results))
	}

	if results[0].Error != "" || results[0].Quote == nil {
		t.Fatalf("pair (1,2) should succeed: %+v", results[0])
	}
	// (400 + 2000) / 1 = 2400 on the fee-free channel.
	wantEqualDecimal(t, "pair (1,2) new_price", results[0].Quote.NewPrice, "2400")

	if results[1].Error == "" {
		t.Fatalf("pair (1,3) with 150%% commission should fail: %+v", results[1])
	}
}

func TestBulkPricingApplyCommitsPerPair(t *testing.T) {
	srv := newTestServer(t)
	seedFixture(t, srv)

	var results []bulkPairResult
	rec := doJSON(t, srv.routes(), http.MethodPost, "/bulk-pricing", `{
		"recipe_ids": [1],
		"channel_ids": [1, 2],
		"strategy": {"kind": "markup_on_base", "value": 15},
		"rounding": {"kind": "none"},
		"apply": true,
		"reason": "penyesuaian massal"
	}`, &results)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /bulk-pricing = %d: %s", rec.Code, rec.Body.String())
	}

	for _, res := range results {
		if res.Error != "" || !res.Committed {
			t.Fatalf("expected committed pair, got %+v", res)
		}
		// 10000 base price with 15% markup, commission ignored.
		wantEqualDecimal(t, "new_price", res.Quote.NewPrice, "11500")
	}

	var count int
	if err := srv.db.QueryRow(`SELECT COUNT(*) FROM price_history WHERE recipe_id = 1`).Scan(&count); err != nil {
		t.Fatalf("count history: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected one ledger record per committed pair, got %d", count)
	}
}

func TestIngredientCreateRejectsBadPackageSize(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv.routes(), http.MethodPost, "/ingredients", `{
		"name": "Garam",
		"purchase_price": 5000,
		"package_size": 0,
		"conversion_factor": 1,
		"usage_unit": "gram"
	}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero package size, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecipeUpdateRejectsCycle(t *testing.T) {
	srv := newTestServer(t)
	seedFixture(t, srv)
	handler := srv.routes()

	rec := doJSON(t, handler, http.MethodPost, "/recipes", `{
		"name": "Isian",
		"yield": 5,
		"usable_as_ingredient": true,
		"ingredients": [{"ingredient_id": 1, "quantity": 50}]
	}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recipe = %d: %s", rec.Code, rec.Body.String())
	}

	// A recipe must not contain itself, even indirectly.
	rec = doJSON(t, handler, http.MethodPost, "/recipes/2", `{
		"name": "Isian",
		"yield": 5,
		"usable_as_ingredient": true,
		"ingredients": [{"ingredient_id": 1, "quantity": 50}],
		"sub_recipes": [{"sub_recipe_id": 2, "quantity": 1}]
	}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for cyclic composition, got %d: %s", rec.Code, rec.Body.String())
	}
}
