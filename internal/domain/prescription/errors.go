package prescription

import "errors"

var (
	// ErrNotFound means the prescription id does not exist.
	ErrNotFound = errors.New("prescription not found")

	// ErrAlreadyDispensed means the prescription is past PRESCRIBED and
	// cannot be dispensed again.
	ErrAlreadyDispensed = errors.New("prescription already dispensed")
)
