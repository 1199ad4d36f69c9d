package pricing

import "errors"

var (
	// ErrInvalidInput indicates a violated precondition (non-positive package
	// size, conversion factor, yield or rounding multiple, negative cost
	// inputs, cyclic sub-recipe references). The caller should reject the
	// input and ask for a corrected value; nothing is silently defaulted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsolvable indicates that the requested combination of channel
	// commission, tax and target produces no valid price (denominator <= 0
	// or a negative solved price). It is never clamped to zero or infinity.
	ErrUnsolvable = errors.New("unsolvable price constraint")
)
