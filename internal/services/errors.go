package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying with backoff: network
	// errors, timeouts, rate limits.
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks failures that no retry will fix, such as a
	// malformed or missing classification result for a path.
	ErrPermanent = errors.New("permanent failure")
	// ErrConflict marks a destination collision outside the catch-all
	// folder; the job stays pending until an operator intervenes.
	ErrConflict = errors.New("destination conflict")
	// ErrMissingSource marks a source file that vanished before it could be
	// processed.
	ErrMissingSource = errors.New("source file missing")
	// ErrGroupIncomplete is a deferral signal, not a failure: a group still
	// waiting for sibling jobs to arrive.
	ErrGroupIncomplete = errors.New("group incomplete")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether a classification failure should be retried
// with backoff rather than failing the job permanently.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) || errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration) {
		return false
	}
	return true
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
