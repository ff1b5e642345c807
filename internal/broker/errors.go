package broker

import "errors"

// Error kinds shared across venue adapters. Callers match with errors.Is.
var (
	// ErrOrderNotFound is returned when an order id is unknown to the venue.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInsufficientFunds is returned when an order's notional value exceeds
	// the account's buying power.
	ErrInsufficientFunds = errors.New("insufficient buying power")

	// ErrInvalidOrderParams is returned when the venue rejects the order's
	// side, time-in-force, or prices.
	ErrInvalidOrderParams = errors.New("invalid order parameters")
)
