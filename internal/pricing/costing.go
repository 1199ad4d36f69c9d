package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IngredientLine is one ingredient usage inside a recipe.
type IngredientLine struct {
	IngredientID int64
	Quantity     decimal.Decimal
}

// SubRecipeLine is one nested recipe usage inside a recipe. The referenced
// recipe contributes its own cost per unit of yield.
type SubRecipeLine struct {
	SubRecipeID int64
	Quantity    decimal.Decimal
}

// Recipe is the cost-relevant composition of a recipe: its yield, its
// ingredient and sub-recipe lines, and the fixed overheads applied once per
// batch (not per unit).
type Recipe struct {
	Yield           decimal.Decimal
	Ingredients     []IngredientLine
	SubRecipes      []SubRecipeLine
	LaborCost       decimal.Decimal
	OperationalCost decimal.Decimal
	PackagingCost   decimal.Decimal
}

// CostBreakdown is the computed production cost of one batch.
type CostBreakdown struct {
	TotalCOGS   decimal.Decimal
	COGSPerUnit decimal.Decimal
}

// CostLookup resolves an ingredient or sub-recipe id to its cost per usage
// unit.
type CostLookup func(id int64) (decimal.Decimal, error)

// ComputeCOGS aggregates ingredient lines, sub-recipe lines and fixed
// overheads into the batch total and per-unit cost. Sub-recipe costs must
// already be resolved by the caller (see ResolveRecipeCosts); the result is
// never cached and must be recomputed whenever any input changes.
func ComputeCOGS(r Recipe, ingredientCost, subRecipeCost CostLookup) (CostBreakdown, error) {
	if !r.Yield.IsPositive() {
		return CostBreakdown{}, fmt.Errorf("%w: yield must be > 0, got %s", ErrInvalidInput, r.Yield)
	}
	for _, overhead := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"labor cost", r.LaborCost},
		{"operational cost", r.OperationalCost},
		{"packaging cost", r.PackagingCost},
	} {
		if overhead.value.IsNegative() {
			return CostBreakdown{}, fmt.Errorf("%w: %s must be >= 0, got %s", ErrInvalidInput, overhead.name, overhead.value)
		}
	}

	total := r.LaborCost.Add(r.OperationalCost).Add(r.PackagingCost)

	for _, line := range r.Ingredients {
		if !line.Quantity.IsPositive() {
			return CostBreakdown{}, fmt.Errorf("%w: ingredient %d quantity must be > 0, got %s", ErrInvalidInput, line.IngredientID, line.Quantity)
		}
		unitCost, err := ingredientCost(line.IngredientID)
		if err != nil {
			return CostBreakdown{}, fmt.Errorf("ingredient %d cost: %w", line.IngredientID, err)
		}
		total = total.Add(unitCost.Mul(line.Quantity))
	}

	for _, line := range r.SubRecipes {
		if !line.Quantity.IsPositive() {
			return CostBreakdown{}, fmt.Errorf("%w: sub-recipe %d quantity must be > 0, got %s", ErrInvalidInput, line.SubRecipeID, line.Quantity)
		}
		unitCost, err := subRecipeCost(line.SubRecipeID)
		if err != nil {
			return CostBreakdown{}, fmt.Errorf("sub-recipe %d cost: %w", line.SubRecipeID, err)
		}
		total = total.Add(unitCost.Mul(line.Quantity))
	}

	return CostBreakdown{
		TotalCOGS:   total,
		COGSPerUnit: total.Div(r.Yield),
	}, nil
}

// ResolveRecipeCosts computes cost breakdowns for a set of recipes whose
// sub-recipe lines may reference each other. Dependencies are resolved
// leaves first; a cycle in the composition graph or a sub-recipe reference
// outside the set is rejected with ErrInvalidInput.
func ResolveRecipeCosts(recipes map[int64]Recipe, ingredientCost CostLookup) (map[int64]CostBreakdown, error) {
	resolved := make(map[int64]CostBreakdown, len(recipes))
	onStack := make(map[int64]bool)

	subCost := func(id int64) (decimal.Decimal, error) {
		bd, ok := resolved[id]
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("%w: sub-recipe %d is not resolved", ErrInvalidInput, id)
		}
		return bd.COGSPerUnit, nil
	}

	var visit func(id int64) error
	visit = func(id int64) error {
		if _, done := resolved[id]; done {
			return nil
		}
		if onStack[id] {
			return fmt.Errorf("%w: cyclic sub-recipe reference through recipe %d", ErrInvalidInput, id)
		}
		r, ok := recipes[id]
		if !ok {
			return fmt.Errorf("%w: recipe %d referenced as sub-recipe but not supplied", ErrInvalidInput, id)
		}

		onStack[id] = true
		for _, line := range r.SubRecipes {
			if err := visit(line.SubRecipeID); err != nil {
				return err
			}
		}
		delete(onStack, id)

		bd, err := ComputeCOGS(r, ingredientCost, subCost)
		if err != nil {
			return fmt.Errorf("recipe %d: %w", id, err)
		}
		resolved[id] = bd
		return nil
	}

	for id := range recipes {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}
