package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrOperationFailed      = errors.New("operation failed")
	ErrReadDatabaseRow      = errors.New("failed to read database row")
	ErrInvalidExecContext   = errors.New("invalid executor passed to repository")

	// Activation / entitlement
	ErrCodeAlreadyUsed      = errors.New("activation code already used")
	ErrCodeExpired          = errors.New("activation code expired")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrQuotaExceeded        = errors.New("chat quota exceeded")

	// Ledger / withdrawal
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidState        = errors.New("illegal state transition")

	// External collaborators
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrRateLimited         = errors.New("too many requests")
)
