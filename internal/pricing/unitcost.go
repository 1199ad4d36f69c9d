// Package pricing implements the costing and price calculation engine:
// ingredient unit costs, recipe COGS aggregation, channel price solving,
// price rounding, bulk repricing and price-change classification. Every
// function is a pure computation over its arguments; monetary values are
// exact decimals end to end and results are recomputed on every call.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	one      = decimal.NewFromInt(1)
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// ResolveUnitCost returns the cost of one usage unit of an ingredient:
// purchase price divided by how many usage units one package yields
// (packageSize * conversionFactor). No rounding is applied; full precision
// is carried into recipe costing.
func ResolveUnitCost(purchasePrice, packageSize, conversionFactor decimal.Decimal) (decimal.Decimal, error) {
	if purchasePrice.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: purchase price must be >= 0, got %s", ErrInvalidInput, purchasePrice)
	}
	if !packageSize.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: package size must be > 0, got %s", ErrInvalidInput, packageSize)
	}
	if !conversionFactor.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: conversion factor must be > 0, got %s", ErrInvalidInput, conversionFactor)
	}

	return purchasePrice.Div(packageSize.Mul(conversionFactor)), nil
}
