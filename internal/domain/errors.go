// Package domain holds the error taxonomy and small value types shared by
// every business service.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned uniformly for rows that do not exist and rows
	// that exist in another tenant; callers must not be able to tell the two
	// apart.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput covers every validation failure. Wrap it with the field
	// and reason.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyProcessed reports a lost compare-and-set race: the row left
	// the expected state between read and write.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrInvalidTransition reports a state-machine hop that is never legal,
	// regardless of timing.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Invalid builds a validation error naming the offending field.
func Invalid(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

// Transition builds an illegal-transition error naming both states.
func Transition(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
