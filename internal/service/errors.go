package service

import "errors"

// Errors returned by the fulfillment service.
var (
	ErrCartNotFound       = errors.New("service request not found")
	ErrCartEmpty          = errors.New("service request has no items")
	ErrOrderNotFound      = errors.New("order not found")
	ErrItemNotFound       = errors.New("subcategory item not found")
	ErrAssignmentNotFound = errors.New("provider assignment not found")
	ErrMirrorNotFound     = errors.New("provider order not found for this item")

	ErrOrderAlreadyRaised = errors.New("an order is already raised for this user")
	ErrAlreadyAssigned    = errors.New("provider is already assigned to this item")
	ErrInvalidTransition  = errors.New("transition not allowed from current status")

	ErrNotOrderOwner       = errors.New("caller does not own this order")
	ErrNotAssignedProvider = errors.New("caller is not an assigned provider for this item")

	ErrInvalidRequestType = errors.New("invalid request type")
	ErrInvalidWorkers     = errors.New("workers requirement must be > 0")
	ErrInvalidAmount      = errors.New("selected amount must not be negative")
	ErrInvalidWindow      = errors.New("scheduled window end must be after start")
	ErrMissingOTPCode     = errors.New("otp code is required")
	ErrOTPMismatch        = errors.New("otp code does not match")

	// ErrPartialSync means the order and its provider mirrors could not be
	// brought to agreement within the retry budget. The caller must not
	// treat the transition as applied.
	ErrPartialSync = errors.New("order and provider order could not be synchronized")
)

// Stable machine-readable error kinds exposed to clients.
const (
	KindNotFound    = "not_found"
	KindConflict    = "conflict"
	KindForbidden   = "forbidden"
	KindInvalid     = "invalid"
	KindPartialSync = "partial_sync"
	KindInternal    = "internal"
)

// KindOf maps a service error to its kind. Unknown errors are internal.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrCartNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrAssignmentNotFound),
		errors.Is(err, ErrMirrorNotFound):
		return KindNotFound
	case errors.Is(err, ErrOrderAlreadyRaised),
		errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, ErrInvalidTransition):
		return KindConflict
	case errors.Is(err, ErrNotOrderOwner),
		errors.Is(err, ErrNotAssignedProvider):
		return KindForbidden
	case errors.Is(err, ErrCartEmpty),
		errors.Is(err, ErrInvalidRequestType),
		errors.Is(err, ErrInvalidWorkers),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidWindow),
		errors.Is(err, ErrMissingOTPCode),
		errors.Is(err, ErrOTPMismatch):
		return KindInvalid
	case errors.Is(err, ErrPartialSync):
		return KindPartialSync
	default:
		return KindInternal
	}
}
