package inventory

import "errors"

var (
	// ErrInsufficientStock means the availability check found less eligible
	// stock than required. A business rejection, not a system fault.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStockRace means allocation came up short after an availability check
	// had passed: a concurrent dispense consumed the stock in between.
	// Distinct from ErrInsufficientStock so operators can tell "never had
	// enough" from "had enough but lost a race".
	ErrStockRace = errors.New("stock depleted concurrently")
)
