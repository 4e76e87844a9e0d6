package catalog

import "errors"

var (
	// ErrDrugNotFound is returned when a referenced drug does not exist.
	ErrDrugNotFound = errors.New("drug not found")

	// ErrPackageNotFound is returned when a referenced package does not exist.
	ErrPackageNotFound = errors.New("package not found")

	// ErrPackageCycle is returned when a packaging hierarchy does not
	// terminate at a base package within the depth bound, either because the
	// data contains a cycle or because a write would introduce one.
	ErrPackageCycle = errors.New("packaging hierarchy cycle detected")
)
