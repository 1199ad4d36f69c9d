package seed

import (
	"database/sql"
	"fmt"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup demo seed in an idempotent way: staple
// ingredients, a sub-recipe plus a recipe using it, and two sales channels.
func Run(db *sql.DB) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensureIngredients(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureChannels(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureRecipes(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

type seedIngredient struct {
	name             string
	purchasePrice    string
	packageSize      string
	conversionFactor string
	usageUnit        string
}

var demoIngredients = []seedIngredient{
	// 1 kg packages used by the gram.
	{"Tepung terigu", "12000", "1", "1000", "gram"},
	{"Gula pasir", "14000", "1", "1000", "gram"},
	// 500 g bar used by the gram.
	{"Cokelat batang", "45000", "500", "1", "gram"},
	// 1 kg tray of roughly 16 eggs, used by the egg.
	{"Telur", "28000", "1", "16", "butir"},
}

func ensureIngredients(tx *sql.Tx, stats *Stats) error {
	for _, ing := range demoIngredients {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM ingredients WHERE name = ? LIMIT 1)`, ing.name).Scan(&exists); err != nil {
			return fmt.Errorf("check ingredient %q existence: %w", ing.name, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO ingredients (name, purchase_price, package_size, conversion_factor, usage_unit)
			VALUES (?, ?, ?, ?, ?)
		`, ing.name, ing.purchasePrice, ing.packageSize, ing.conversionFactor, ing.usageUnit); err != nil {
			return fmt.Errorf("insert ingredient %q: %w", ing.name, err)
		}
		stats.Inserts++
	}
	return nil
}

type seedChannel struct {
	name          string
	commissionPct string
	taxPct        string
}

var demoChannels = []seedChannel{
	{"Etalase", "0", "11"},
	{"GoFood", "20", "11"},
}

func ensureChannels(tx *sql.Tx, stats *Stats) error {
	for _, ch := range demoChannels {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM channels WHERE name = ? LIMIT 1)`, ch.name).Scan(&exists); err != nil {
			return fmt.Errorf("check channel %q existence: %w", ch.name, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO channels (name, commission_pct, tax_pct, active)
			VALUES (?, ?, ?, TRUE)
		`, ch.name, ch.commissionPct, ch.taxPct); err != nil {
			return fmt.Errorf("insert channel %q: %w", ch.name, err)
		}
		stats.Inserts++
	}
	return nil
}

const (
	toppingRecipeName = "Topping cokelat"
	mainRecipeName    = "Brownies kukus"
)

func ensureRecipes(tx *sql.Tx, stats *Stats) error {
	toppingID, err := ensureRecipe(tx, stats, toppingRecipeName, "20", "porsi", "2000", "0", "0", true)
	if err != nil {
		return err
	}
	if toppingID != 0 {
		if err := insertIngredientLines(tx, stats, toppingID, map[string]string{
			"Cokelat batang": "200",
			"Gula pasir":     "100",
		}); err != nil {
			return err
		}
	}

	mainID, err := ensureRecipe(tx, stats, mainRecipeName, "10", "potong", "5000", "2000", "3000", false)
	if err != nil {
		return err
	}
	if mainID != 0 {
		if err := insertIngredientLines(tx, stats, mainID, map[string]string{
			"Tepung terigu": "250",
			"Telur":         "4",
		}); err != nil {
			return err
		}

		var subID int64
		if err := tx.QueryRow(`SELECT id FROM recipes WHERE name = ?`, toppingRecipeName).Scan(&subID); err != nil {
			return fmt.Errorf("look up sub-recipe %q: %w", toppingRecipeName, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO recipe_sub_recipes (recipe_id, sub_recipe_id, quantity)
			VALUES (?, ?, ?)
		`, mainID, subID, "5"); err != nil {
			return fmt.Errorf("insert sub-recipe line for %q: %w", mainRecipeName, err)
		}
		stats.Inserts++
	}
	return nil
}

// ensureRecipe inserts the recipe row if missing and returns its id, or 0
// when the recipe already existed and no lines should be added.
func ensureRecipe(tx *sql.Tx, stats *Stats, name, yield, yieldUnit, laborCost, operationalCost, packagingCost string, usableAsIngredient bool) (int64, error) {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM recipes WHERE name = ? LIMIT 1)`, name).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check recipe %q existence: %w", name, err)
	}
	if exists {
		return 0, nil
	}

	res, err := tx.Exec(`
		INSERT INTO recipes (name, yield, yield_unit, labor_cost, operational_cost, packaging_cost, usable_as_ingredient)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, name, yield, yieldUnit, laborCost, operationalCost, packagingCost, usableAsIngredient)
	if err != nil {
		return 0, fmt.Errorf("insert recipe %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recipe %q insert id: %w", name, err)
	}
	stats.Inserts++
	return id, nil
}

func insertIngredientLines(tx *sql.Tx, stats *Stats, recipeID int64, quantities map[string]string) error {
	for name, qty := range quantities {
		var ingredientID int64
		if err := tx.QueryRow(`SELECT id FROM ingredients WHERE name = ?`, name).Scan(&ingredientID); err != nil {
			return fmt.Errorf("look up ingredient %q: %w", name, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity)
			VALUES (?, ?, ?)
		`, recipeID, ingredientID, qty); err != nil {
			return fmt.Errorf("insert ingredient line %q: %w", name, err)
		}
		stats.Inserts++
	}
	return nil
}
