package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dapurkita/resep/internal/pricing"
)

// queryer lets store helpers run against either the pool or a transaction.
type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func validatePct(name string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: %s must be in [0, 100), got %s", pricing.ErrInvalidInput, name, v)
	}
	return nil
}

type ingredientPayload struct {
	Name             string          `json:"name"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	PackageSize      decimal.Decimal `json:"package_size"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	UsageUnit        string          `json:"usage_unit"`
}

type ingredientView struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	PackageSize      decimal.Decimal `json:"package_size"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	UsageUnit        string          `json:"usage_unit"`
	CostPerUsageUnit decimal.Decimal `json:"cost_per_usage_unit"`
}

func (p ingredientPayload) validate() (decimal.Decimal, error) {
	if strings.TrimSpace(p.Name) == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: name is required", pricing.ErrInvalidInput)
	}
	if strings.TrimSpace(p.UsageUnit) == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: usage_unit is required", pricing.ErrInvalidInput)
	}
	return pricing.ResolveUnitCost(p.PurchasePrice, p.PackageSize, p.ConversionFactor)
}

func (s *server) handleIngredientsList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT id, name, purchase_price, package_size, conversion_factor, usage_unit
		FROM ingredients
		ORDER BY id
	`)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to load ingredients")
		return
	}
	defer rows.Close()

	ingredients := make([]ingredientView, 0)
	for rows.Next() {
		var v ingredientView
		if err := rows.Scan(&v.ID, &v.Name, &v.PurchasePrice, &v.PackageSize, &v.ConversionFactor, &v.UsageUnit); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to scan ingredient")
			return
		}
		cost, err := pricing.ResolveUnitCost(v.PurchasePrice, v.PackageSize, v.ConversionFactor)
		if err != nil {
			writeEngineError(w, fmt.Errorf("ingredient %d: %w", v.ID, err))
			return
		}
		v.CostPerUsageUnit = cost
		ingredients = append(ingredients, v)
	}
	if err := rows.Err(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to iterate ingredients")
		return
	}

	writeJSON(w, http.StatusOK, ingredients)
}

func (s *server) handleIngredientsCreate(w http.ResponseWriter, r *http.Request) {
	var p ingredientPayload
	if err := decodeJSON(r, &p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	cost, err := p.validate()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := s.db.Exec(`
		INSERT INTO ingredients (name, purchase_price, package_size, conversion_factor, usage_unit)
		VALUES (?, ?, ?, ?, ?)
	`, p.Name, p.PurchasePrice, p.PackageSize, p.ConversionFactor, p.UsageUnit)
	if err != nil {
		writeJSONError(w, http.StatusConflict, "conflict", "failed to create ingredient")
		return
	}
	id, err := res.LastInsertId()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to create ingredient")
		return
	}

	writeJSON(w, http.StatusCreated, ingredientView{
		ID:               id,
		Name:             p.Name,
		PurchasePrice:    p.PurchasePrice,
		PackageSize:      p.PackageSize,
		ConversionFactor: p.ConversionFactor,
		UsageUnit:        p.UsageUnit,
		CostPerUsageUnit: cost,
	})
}

// handleIngredientsUpdate is the explicit price-update operation: ingredient
// costs only ever change through this call.
func (s *server) handleIngredientsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	var p ingredientPayload
	if err := decodeJSON(r, &p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	cost, err := p.validate()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := s.db.Exec(`
		UPDATE ingredients
		SET
			name = ?,
			purchase_price = ?,
			package_size = ?,
			conversion_factor = ?,
			usage_unit = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, p.Name, p.PurchasePrice, p.PackageSize, p.ConversionFactor, p.UsageUnit, id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to update ingredient")
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to update ingredient")
		return
	}
	if affected == 0 {
		writeJSONError(w, http.StatusNotFound, "not_found", "ingredient does not exist")
		return
	}

	writeJSON(w, http.StatusOK, ingredientView{
		ID:               id,
		Name:             p.Name,
		PurchasePrice:    p.PurchasePrice,
		PackageSize:      p.PackageSize,
		ConversionFactor: p.ConversionFactor,
		UsageUnit:        p.UsageUnit,
		CostPerUsageUnit: cost,
	})
}

type recipeLinePayload struct {
	IngredientID int64           `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type subRecipeLinePayload struct {
	SubRecipeID int64           `json:"sub_recipe_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type recipePayload struct {
	Name               string                 `json:"name"`
	Yield              decimal.Decimal        `json:"yield"`
	YieldUnit          string                 `json:"yield_unit"`
	LaborCost          decimal.Decimal        `json:"labor_cost"`
	OperationalCost    decimal.Decimal        `json:"operational_cost"`
	PackagingCost      decimal.Decimal        `json:"packaging_cost"`
	BasePrice          decimal.Decimal        `json:"base_price"`
	UsableAsIngredient bool                   `json:"usable_as_ingredient"`
	Ingredients        []recipeLinePayload    `json:"ingredients"`
	SubRecipes         []subRecipeLinePayload `json:"sub_recipes"`
}

type recipeView struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Yield              decimal.Decimal `json:"yield"`
	YieldUnit          string          `json:"yield_unit"`
	LaborCost          decimal.Decimal `json:"labor_cost"`
	OperationalCost    decimal.Decimal `json:"operational_cost"`
	PackagingCost      decimal.Decimal `json:"packaging_cost"`
	BasePrice          decimal.Decimal `json:"base_price"`
	UsableAsIngredient bool            `json:"usable_as_ingredient"`
}

func (s *server) handleRecipesList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT id, name, yield, yield_unit, labor_cost, operational_cost, packaging_cost, base_price, usable_as_ingredient
		FROM recipes
		ORDER BY id
	`)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to load recipes")
		return
	}
	defer rows.Close()

	recipes := make([]recipeView, 0)
	for rows.Next() {
		var v recipeView
		if err := rows.Scan(&v.ID, &v.Name, &v.Yield, &v.YieldUnit, &v.LaborCost, &v.OperationalCost, &v.PackagingCost, &v.BasePrice, &v.UsableAsIngredient); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to scan recipe")
			return
		}
		recipes = append(recipes, v)
	}
	if err := rows.Err(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to iterate recipes")
		return
	}

	writeJSON(w, http.StatusOK, recipes)
}

func (s *server) handleRecipesCreate(w http.ResponseWriter, r *http.Request) {
	var p recipePayload
	if err := decodeJSON(r, &p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	s.saveRecipe(w, 0, p)
}

func (s *server) handleRecipesUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	var p recipePayload
	if err := decodeJSON(r, &p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	s.saveRecipe(w, id, p)
}

// saveRecipe writes the recipe row and its composition lines in one
// transaction, then recomputes the whole composition graph so the engine can
// reject bad quantities, unknown references and cycles before commit.
func (s *server) saveRecipe(w http.ResponseWriter, id int64, p recipePayload) {
	if strings.TrimSpace(p.Name) == "" {
		writeEngineError(w, fmt.Errorf("%w: name is required", pricing.ErrInvalidInput))
		return
	}
	if p.YieldUnit == "" {
		p.YieldUnit = "porsi"
	}
	isCreate := id == 0

	tx, err := s.db.Begin()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to begin transaction")
		return
	}
	defer tx.Rollback()

	if isCreate {
		res, err := tx.Exec(`
			INSERT INTO recipes (name, yield, yield_unit, labor_cost, operational_cost, packaging_cost, base_price, usable_as_ingredient)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.Name, p.Yield, p.YieldUnit, p.LaborCost, p.OperationalCost, p.PackagingCost, p.BasePrice, p.UsableAsIngredient)
		if err != nil {
			writeJSONError(w, http.StatusConflict, "conflict", "failed to create recipe")
			return
		}
		if id, err = res.LastInsertId(); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to create recipe")
			return
		}
	} else {
		res, err := tx.Exec(`
			UPDATE recipes
			SET
				name = ?,
				yield = ?,
				yield_unit = ?,
				labor_cost = ?,
				operational_cost = ?,
				packaging_cost = ?,
				base_price = ?,
				usable_as_ingredient = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, p.Name, p.Yield, p.YieldUnit, p.LaborCost, p.OperationalCost, p.PackagingCost, p.BasePrice, p.UsableAsIngredient, id)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to update recipe")
			return
		}
		affected, err := res.RowsAffected()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to update recipe")
			return
		}
		if affected == 0 {
			writeJSONError(w, http.StatusNotFound, "not_found", "recipe does not exist")
			return
		}
		if _, err := tx.Exec(`DELETE FROM recipe_ingredients WHERE recipe_id = ?`, id); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to replace composition")
			return
		}
		if _, err := tx.Exec(`DELETE FROM recipe_sub_recipes WHERE recipe_id = ?`, id); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to replace composition")
			return
		}
	}

	for _, line := range p.Ingredients {
		if _, err := tx.Exec(`
			INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity)
			VALUES (?, ?, ?)
		`, id, line.IngredientID, line.Quantity); err != nil {
			writeEngineError(w, fmt.Errorf("%w: ingredient %d does not exist", pricing.ErrInvalidInput, line.IngredientID))
			return
		}
	}
	for _, line := range p.SubRecipes {
		var usable bool
		if err := tx.QueryRow(`SELECT usable_as_ingredient FROM recipes WHERE id = ?`, line.SubRecipeID).Scan(&usable); err != nil {
			writeEngineError(w, fmt.Errorf("%w: sub-recipe %d does not exist", pricing.ErrInvalidInput, line.SubRecipeID))
			return
		}
		if !usable {
			writeEngineError(w, fmt.Errorf("%w: recipe %d is not usable as ingredient", pricing.ErrInvalidInput, line.SubRecipeID))
			return
		}
		if _, err := tx.Exec(`
			INSERT INTO recipe_sub_recipes (recipe_id, sub_recipe_id, quantity)
			VALUES (?, ?, ?)
		`, id, line.SubRecipeID, line.Quantity); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to save composition")
			return
		}
	}

	// Costing the written graph validates yield, quantities and cycles.
	if _, err := s.recipeCost(tx, id); err != nil {
		writeEngineError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to save recipe")
		return
	}

	status := http.StatusOK
	if isCreate {
		status = http.StatusCreated
	}
	writeJSON(w, status, recipeView{
		ID:                 id,
		Name:               p.Name,
		Yield:              p.Yield,
		YieldUnit:          p.YieldUnit,
		LaborCost:          p.LaborCost,
		OperationalCost:    p.OperationalCost,
		PackagingCost:      p.PackagingCost,
		BasePrice:          p.BasePrice,
		UsableAsIngredient: p.UsableAsIngredient,
	})
}

type channelPayload struct {
	Name          string          `json:"name"`
	CommissionPct decimal.Decimal `json:"commission_pct"`
	TaxPct        decimal.Decimal `json:"tax_pct"`
	Active        bool            `json:"active"`
}

type channelView struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	CommissionPct decimal.Decimal `json:"commission_pct"`
	TaxPct        decimal.Decimal `json:"tax_pct"`
	Active        bool            `json:"active"`
}

func (s *server) handleChannelsList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT id, name, commission_pct, tax_pct, active
		FROM channels
		ORDER BY id
	`)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to load channels")
		return
	}
	defer rows.Close()

	channels := make([]channelView, 0)
	for rows.Next() {
		var v channelView
		if err := rows.Scan(&v.ID, &v.Name, &v.CommissionPct, &v.TaxPct, &v.Active); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to scan channel")
			return
		}
		channels = append(channels, v)
	}
	if err := rows.Err(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to iterate channels")
		return
	}

	writeJSON(w, http.StatusOK, channels)
}

func (s *server) handleChannelsCreate(w http.ResponseWriter, r *http.Request) {
	var p channelPayload
	if err := decodeJSON(r, &p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		writeEngineError(w, fmt.Errorf("%w: name is required", pricing.ErrInvalidInput))
		return
	}
	if err := validatePct("commission_pct", p.CommissionPct); err != nil {
		writeEngineError(w, err)
		return
	}
	if err := validatePct("tax_pct", p.TaxPct); err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := s.db.Exec(`
		INSERT INTO channels (name, commission_pct, tax_pct, active)
		VALUES (?, ?, ?, ?)
	`, p.Name, p.CommissionPct, p.TaxPct, p.Active)
	if err != nil {
		writeJSONError(w, http.StatusConflict, "conflict", "failed to create channel")
		return
	}
	id, err := res.LastInsertId()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to create channel")
		return
	}

	writeJSON(w, http.StatusCreated, channelView{
		ID:            id,
		Name:          p.Name,
		CommissionPct: p.CommissionPct,
		TaxPct:        p.TaxPct,
		Active:        p.Active,
	})
}
