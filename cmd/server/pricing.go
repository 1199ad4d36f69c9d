package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dapurkita/resep/internal/pricing"
)

var errNotFound = errors.New("not found")

type channelRow struct {
	ID            int64
	Name          string
	CommissionPct decimal.Decimal
	TaxPct        decimal.Decimal
	Active        bool
}

func (s *server) loadChannel(q queryer, id int64) (channelRow, error) {
	var ch channelRow
	err := q.QueryRow(`
		SELECT id, name, commission_pct, tax_pct, active
		FROM channels
		WHERE id = ?
	`, id).Scan(&ch.ID, &ch.Name, &ch.CommissionPct, &ch.TaxPct, &ch.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return channelRow{}, fmt.Errorf("channel %d: %w", id, errNotFound)
	}
	if err != nil {
		return channelRow{}, fmt.Errorf("query channel %d: %w", id, err)
	}
	return ch, nil
}

func (s *server) loadRecipe(q queryer, id int64) (pricing.Recipe, []int64, error) {
	var r pricing.Recipe
	err := q.QueryRow(`
		SELECT yield, labor_cost, operational_cost, packaging_cost
		FROM recipes
		WHERE id = ?
	`, id).Scan(&r.Yield, &r.LaborCost, &r.OperationalCost, &r.PackagingCost)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.Recipe{}, nil, fmt.Errorf("recipe %d: %w", id, errNotFound)
	}
	if err != nil {
		return pricing.Recipe{}, nil, fmt.Errorf("query recipe %d: %w", id, err)
	}

	rows, err := q.Query(`
		SELECT ingredient_id, quantity
		FROM recipe_ingredients
		WHERE recipe_id = ?
	`, id)
	if err != nil {
		return pricing.Recipe{}, nil, fmt.Errorf("query recipe %d ingredients: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var line pricing.IngredientLine
		if err := rows.Scan(&line.IngredientID, &line.Quantity); err != nil {
			return pricing.Recipe{}, nil, fmt.Errorf("scan recipe %d ingredient line: %w", id, err)
		}
		r.Ingredients = append(r.Ingredients, line)
	}
	if err := rows.Err(); err != nil {
		return pricing.Recipe{}, nil, fmt.Errorf("iterate recipe %d ingredients: %w", id, err)
	}

	subRows, err := q.Query(`
		SELECT sub_recipe_id, quantity
		FROM recipe_sub_recipes
		WHERE recipe_id = ?
	`, id)
	if err != nil {
		return pricing.Recipe{}, nil, fmt.Errorf("query recipe %d sub-recipes: %w", id, err)
	}
	defer subRows.Close()
	var subIDs []int64
	for subRows.Next() {
		var line pricing.SubRecipeLine
		if err := subRows.Scan(&line.SubRecipeID, &line.Quantity); err != nil {
			return pricing.Recipe{}, nil, fmt.Errorf("scan recipe %d sub-recipe line: %w", id, err)
		}
		r.SubRecipes = append(r.SubRecipes, line)
		subIDs = append(subIDs, line.SubRecipeID)
	}
	if err := subRows.Err(); err != nil {
		return pricing.Recipe{}, nil, fmt.Errorf("iterate recipe %d sub-recipes: %w", id, err)
	}

	return r, subIDs, nil
}

// loadRecipeGraph collects the recipe and every recipe reachable through its
// sub-recipe lines. A cyclic composition still terminates here; the engine
// rejects the cycle during resolution.
func (s *server) loadRecipeGraph(q queryer, rootID int64) (map[int64]pricing.Recipe, error) {
	graph := make(map[int64]pricing.Recipe)
	pending := []int64{rootID}
	for len(pending) > 0 {
		id := pending[0]
		pending = pending[1:]
		if _, ok := graph[id]; ok {
			continue
		}
		recipe, subIDs, err := s.loadRecipe(q, id)
		if err != nil {
			return nil, err
		}
		graph[id] = recipe
		pending = append(pending, subIDs...)
	}
	return graph, nil
}

func (s *server) ingredientCostLookup(q queryer) pricing.CostLookup {
	return func(id int64) (decimal.Decimal, error) {
		var purchasePrice, packageSize, conversionFactor decimal.Decimal
		err := q.QueryRow(`
			SELECT purchase_price, package_size, conversion_factor
			FROM ingredients
			WHERE id = ?
		`, id).Scan(&purchasePrice, &packageSize, &conversionFactor)
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("%w: ingredient %d does not exist", pricing.ErrInvalidInput, id)
		}
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("query ingredient %d: %w", id, err)
		}
		return pricing.ResolveUnitCost(purchasePrice, packageSize, conversionFactor)
	}
}

// recipeCost recomputes the recipe's cost breakdown from current data on
// every call; nothing is cached between calls.
func (s *server) recipeCost(q queryer, id int64) (pricing.CostBreakdown, error) {
	graph, err := s.loadRecipeGraph(q, id)
	if err != nil {
		return pricing.CostBreakdown{}, err
	}
	costs, err := pricing.ResolveRecipeCosts(graph, s.ingredientCostLookup(q))
	if err != nil {
		return pricing.CostBreakdown{}, err
	}
	return costs[id], nil
}

func (s *server) currentPrice(q queryer, recipeID, channelID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := q.QueryRow(`
		SELECT price
		FROM recipe_channel_prices
		WHERE recipe_id = ? AND channel_id = ?
	`, recipeID, channelID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("query current price (%d, %d): %w", recipeID, channelID, err)
	}
	return price, nil
}

// commitPrice stores the new channel price and appends exactly one ledger
// record in the same transaction, capturing the COGS in effect right now.
func (s *server) commitPrice(recipeID, channelID int64, newPrice, cogsPerUnit decimal.Decimal, reason string) (pricing.ChangeRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return pricing.ChangeRecord{}, fmt.Errorf("begin price commit: %w", err)
	}
	defer tx.Rollback()

	oldPrice, err := s.currentPrice(tx, recipeID, channelID)
	if err != nil {
		return pricing.ChangeRecord{}, err
	}

	if _, err := tx.Exec(`
		INSERT INTO recipe_channel_prices (recipe_id, channel_id, price)
		VALUES (?, ?, ?)
		ON CONFLICT(recipe_id, channel_id) DO UPDATE SET
			price = excluded.price,
			updated_at = CURRENT_TIMESTAMP
	`, recipeID, channelID, newPrice); err != nil {
		return pricing.ChangeRecord{}, fmt.Errorf("store price (%d, %d): %w", recipeID, channelID, err)
	}

	record := pricing.NewChangeRecord(oldPrice, newPrice, cogsPerUnit, reason, time.Now().UTC())
	if _, err := tx.Exec(`
		INSERT INTO price_history (id, recipe_id, channel_id, old_price, new_price, price_change, percentage_change, change_type, cogs_at_change, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID.String(), recipeID, channelID,
		record.OldPrice, record.NewPrice, record.PriceChange, record.PercentageChange,
		string(record.ChangeType), record.COGSAtChange, record.Reason,
		record.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return pricing.ChangeRecord{}, fmt.Errorf("append price history (%d, %d): %w", recipeID, channelID, err)
	}

	if err := tx.Commit(); err != nil {
		return pricing.ChangeRecord{}, fmt.Errorf("commit price change: %w", err)
	}
	return record, nil
}

type costResponse struct {
	RecipeID    int64           `json:"recipe_id"`
	TotalCOGS   decimal.Decimal `json:"total_cogs"`
	COGSPerUnit decimal.Decimal `json:"cogs_per_unit"`
}

func (s *server) handleRecipeCost(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	breakdown, err := s.recipeCost(s.db, id)
	if err != nil {
		if errors.Is(err, errNotFound) {
			writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, costResponse{
		RecipeID:    id,
		TotalCOGS:   breakdown.TotalCOGS,
		COGSPerUnit: breakdown.COGSPerUnit,
	})
}

type solveRequest struct {
	ChannelID int64               `json:"channel_id"`
	Mode      pricing.TargetMode  `json:"mode"`
	Target    decimal.Decimal     `json:"target"`
	Rounding  pricing.RoundPolicy `json:"rounding"`
	Commit    bool                `json:"commit"`
	Reason    string              `json:"reason"`
}

type solveResponse struct {
	RecipeID     int64                 `json:"recipe_id"`
	ChannelID    int64                 `json:"channel_id"`
	COGSPerUnit  decimal.Decimal       `json:"cogs_per_unit"`
	Quote        pricing.Quote         `json:"quote"`
	RoundedPrice decimal.Decimal       `json:"rounded_price"`
	Committed    bool                  `json:"committed"`
	Record       *pricing.ChangeRecord `json:"record,omitempty"`
}

func (s *server) handleRecipePrice(w http.ResponseWriter, r *http.Request) {
	recipeID, err := parseID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	var req solveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	breakdown, err := s.recipeCost(s.db, recipeID)
	if err != nil {
		if errors.Is(err, errNotFound) {
			writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeEngineError(w, err)
		return
	}

	channel, err := s.loadChannel(s.db, req.ChannelID)
	if err != nil {
		if errors.Is(err, errNotFound) {
			writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	quote, err := pricing.Solve(breakdown.COGSPerUnit, channel.CommissionPct, channel.TaxPct, req.Mode, req.Target)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	roundedPrice, err := pricing.RoundPrice(quote.PriceBeforeTax, req.Rounding)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := solveResponse{
		RecipeID:     recipeID,
		ChannelID:    channel.ID,
		COGSPerUnit:  breakdown.COGSPerUnit,
		Quote:        quote,
		RoundedPrice: roundedPrice,
	}

	if req.Commit {
		record, err := s.commitPrice(recipeID, channel.ID, roundedPrice, breakdown.COGSPerUnit, req.Reason)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		resp.Committed = true
		resp.Record = &record
	}

	writeJSON(w, http.StatusOK, resp)
}

type historyEntry struct {
	pricing.ChangeRecord
	ChannelID *int64 `json:"channel_id,omitempty"`
}

func (s *server) handleRecipeHistory(w http.ResponseWriter, r *http.Request) {
	recipeID, err := parseID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	rows, err := s.db.Query(`
		SELECT id, channel_id, old_price, new_price, price_change, percentage_change, change_type, cogs_at_change, COALESCE(reason, ''), created_at
		FROM price_history
		WHERE recipe_id = ?
		ORDER BY datetime(created_at) DESC, id DESC
	`, recipeID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to load price history")
		return
	}
	defer rows.Close()

	entries := make([]historyEntry, 0)
	for rows.Next() {
		var (
			entry     historyEntry
			rawID     string
			rawType   string
			rawStamp  string
			channelID sql.NullInt64
		)
		if err := rows.Scan(&rawID, &channelID, &entry.OldPrice, &entry.NewPrice, &entry.PriceChange, &entry.PercentageChange, &rawType, &entry.COGSAtChange, &entry.Reason, &rawStamp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to scan price history")
			return
		}
		if entry.ID, err = uuid.Parse(rawID); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "corrupt price history id")
			return
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, rawStamp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "corrupt price history timestamp")
			return
		}
		entry.ChangeType = pricing.ChangeType(rawType)
		if channelID.Valid {
			entry.ChannelID = &channelID.Int64
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to iterate price history")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

type bulkRequest struct {
	RecipeIDs  []int64             `json:"recipe_ids"`
	ChannelIDs []int64             `json:"channel_ids"`
	Strategy   pricing.Strategy    `json:"strategy"`
	Rounding   pricing.RoundPolicy `json:"rounding"`
	Apply      bool                `json:"apply"`
	Reason     string              `json:"reason"`
}

type bulkPairResult struct {
	RecipeID  int64              `json:"recipe_id"`
	ChannelID int64              `json:"channel_id"`
	Quote     *pricing.BulkQuote `json:"quote,omitempty"`
	Committed bool               `json:"committed,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type bulkRecipeData struct {
	basePrice   decimal.Decimal
	cogsPerUnit decimal.Decimal
	err         error
}

// handleBulkPricing reprices every (recipe, channel) pair independently.
// A pair that cannot be loaded or priced carries its own error; the batch
// always returns a result per pair.
func (s *server) handleBulkPricing(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if len(req.RecipeIDs) == 0 || len(req.ChannelIDs) == 0 {
		writeEngineError(w, fmt.Errorf("%w: recipe_ids and channel_ids are required", pricing.ErrInvalidInput))
		return
	}

	recipeData := make(map[int64]bulkRecipeData, len(req.RecipeIDs))
	for _, recipeID := range req.RecipeIDs {
		data := bulkRecipeData{}
		if data.err = s.db.QueryRow(`SELECT base_price FROM recipes WHERE id = ?`, recipeID).Scan(&data.basePrice); errors.Is(data.err, sql.ErrNoRows) {
			data.err = fmt.Errorf("recipe %d: %w", recipeID, errNotFound)
		}
		if data.err == nil {
			var breakdown pricing.CostBreakdown
			if breakdown, data.err = s.recipeCost(s.db, recipeID); data.err == nil {
				data.cogsPerUnit = breakdown.COGSPerUnit
			}
		}
		recipeData[recipeID] = data
	}

	channelData := make(map[int64]channelRow, len(req.ChannelIDs))
	channelErrs := make(map[int64]error, len(req.ChannelIDs))
	for _, channelID := range req.ChannelIDs {
		ch, err := s.loadChannel(s.db, channelID)
		if err != nil {
			channelErrs[channelID] = err
			continue
		}
		channelData[channelID] = ch
	}

	var pairs []pricing.BulkPair
	loadErrs := make(map[[2]int64]error)
	for _, recipeID := range req.RecipeIDs {
		for _, channelID := range req.ChannelIDs {
			key := [2]int64{recipeID, channelID}
			if err := recipeData[recipeID].err; err != nil {
				loadErrs[key] = err
				continue
			}
			if err := channelErrs[channelID]; err != nil {
				loadErrs[key] = err
				continue
			}
			current, err := s.currentPrice(s.db, recipeID, channelID)
			if err != nil {
				loadErrs[key] = err
				continue
			}
			pairs = append(pairs, pricing.BulkPair{
				RecipeID:      recipeID,
				ChannelID:     channelID,
				BasePrice:     recipeData[recipeID].basePrice,
				CurrentPrice:  current,
				COGSPerUnit:   recipeData[recipeID].cogsPerUnit,
				CommissionPct: channelData[channelID].CommissionPct,
			})
		}
	}

	computed := make(map[[2]int64]pricing.BulkResult, len(pairs))
	for _, res := range pricing.ComputeBulkPrices(pairs, req.Strategy, req.Rounding) {
		computed[[2]int64{res.RecipeID, res.ChannelID}] = res
	}

	results := make([]bulkPairResult, 0, len(req.RecipeIDs)*len(req.ChannelIDs))
	for _, recipeID := range req.RecipeIDs {
		for _, channelID := range req.ChannelIDs {
			key := [2]int64{recipeID, channelID}
			out := bulkPairResult{RecipeID: recipeID, ChannelID: channelID}

			if err, ok := loadErrs[key]; ok {
				out.Error = err.Error()
				results = append(results, out)
				continue
			}

			res := computed[key]
			if res.Err != nil {
				out.Error = res.Err.Error()
				results = append(results, out)
				continue
			}

			quote := res.Quote
			out.Quote = &quote
			if req.Apply {
				// Atomic per pair: each commit runs in its own transaction.
				if _, err := s.commitPrice(recipeID, channelID, quote.NewPrice, recipeData[recipeID].cogsPerUnit, req.Reason); err != nil {
					out.Error = err.Error()
					out.Quote = nil
				} else {
					out.Committed = true
				}
			}
			results = append(results, out)
		}
	}

	writeJSON(w, http.StatusOK, results)
}
