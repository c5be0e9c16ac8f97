package queue

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested job does not exist.
var ErrNotFound = errors.New("queue: job not found")

// ErrInvalidTransition indicates a status change outside the allowed table.
// Nothing is persisted when an update fails with this error.
var ErrInvalidTransition = errors.New("queue: invalid status transition")

func invalidTransition(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
