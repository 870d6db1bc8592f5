package orders

import "errors"

// Sentinel errors returned by the order service.
var (
	// ErrInvalidRequest marks malformed input: empty item list, missing
	// product name or non-positive quantity. Wrapped with a detail message.
	ErrInvalidRequest = errors.New("invalid order request")

	// ErrInvalidTransition is returned when an order cannot move to the
	// requested state (transitions are strictly Created -> Paid -> Delivered).
	ErrInvalidTransition = errors.New("invalid order state transition")

	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
)
