package employee

import "errors"

// Error kinds returned by the Service and every Store implementation.
// Engines wrap driver failures with ErrStorage and keep the driver error in
// the chain, e.g. fmt.Errorf("insert employee: %w: %w", ErrStorage, err).
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("employee not found")
	ErrConflict   = errors.New("employee already exists")
	ErrStorage    = errors.New("storage failure")
)

// Kind labels err with one of the four error kinds. It returns "ok" for a nil
// error and "storage" for anything unclassified.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "storage"
	}
}
