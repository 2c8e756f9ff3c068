package service

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the services. Callers match them with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrComputationUndefined = errors.New("computation undefined")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
