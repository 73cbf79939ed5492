package domain

import "github.com/pkg/errors"

var (
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrCartTooLarge    = errors.New("cart is larger than the pool")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidStock    = errors.New("stock must not be negative")

	// ErrLockTimeout is returned by operations other than Reserve when the
	// guards could not be acquired in time. Reserve reports OutcomeContended
	// instead.
	ErrLockTimeout = errors.New("timed out acquiring resource locks")

	// ErrInvariantViolation signals a broken release discipline or a
	// negative stock counter. It must never be swallowed.
	ErrInvariantViolation = errors.New("invariant violation")
)
