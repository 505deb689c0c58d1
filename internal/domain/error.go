package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Storefront errors surfaced to the mini-app with a stable code.
	ErrUnauthorized         = errors.New("open in telegram")
	ErrUserNotFound         = errors.New("user not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrInvalidParams        = errors.New("invalid params")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrBadRequest           = errors.New("bad request")
	ErrSubscriptionNotFound = errors.New("subscription not found or already cancelled")
	ErrRateLimited          = errors.New("too many requests")
	ErrLockHeld             = errors.New("lock held by another worker")

	ErrProcessor = errors.New("payment processor error")
)

// ProcessorError is returned when the payment processor rejects a call or is unreachable.
type ProcessorError struct {
	Op      string
	Status  int
	Message string
}

func (e *ProcessorError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: processor returned %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProcessorError) Unwrap() error { return ErrProcessor }
