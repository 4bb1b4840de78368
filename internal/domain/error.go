package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Storage errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrStoreUnavailable   = errors.New("payment store unavailable")

	// Reconciliation errors
	ErrInvalidPayload         = errors.New("invalid webhook payload")
	ErrPayloadRejected        = errors.New("webhook payload failed validation")
	ErrIntentAlreadyCompleted = errors.New("payment intent already completed")
	ErrIntentIncomplete       = errors.New("payment intent is missing user or plan")
	ErrAlreadyResolved        = errors.New("unresolved payment already resolved")
	ErrReferenceCollision     = errors.New("could not allocate a unique transaction reference")
	ErrLockNotAcquired        = errors.New("resource is locked by another operation")
	ErrUnauthorized           = errors.New("unauthorized")
)
