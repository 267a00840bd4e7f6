package order

import "errors"

// Sentinels are plain stdlib errors so wrapped returns stay matchable
// with errors.Is.
var (
	ErrInvalidSpec       = errors.New("invalid order spec")
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
)
