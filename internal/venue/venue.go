package venue

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/order"
)

// Sentinels are plain stdlib errors so wrapped returns stay matchable
// with errors.Is.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownVenueOrder = errors.New("venue order not found")
	ErrNotCancelable     = errors.New("order is not cancelable")
	ErrRejected          = errors.New("order rejected by venue")
)

// OrderSnapshot is a point-in-time view of a venue-side order.
type OrderSnapshot struct {
	VenueOrderID string
	Status       order.Status
	FilledQty    int64
	AvgFillPrice float64
	Commission   float64
	UpdateTime   time.Time
}

// Account is a read-only snapshot of the venue cash ledger.
type Account struct {
	Balance        decimal.Decimal
	InitialBalance decimal.Decimal
	PositionsValue decimal.Decimal
	Equity         decimal.Decimal
}

// Position is a read-only snapshot of one symbol's exposure.
type Position struct {
	Symbol    string
	Quantity  int64
	AvgCost   decimal.Decimal
	LastPrice decimal.Decimal
}

// Venue is the execution counterparty. Implementations may block the
// caller for the duration of a (possibly simulated) network round trip,
// so every operation takes a context.
type Venue interface {
	Place(ctx context.Context, o *order.Order) (string, error)
	Cancel(ctx context.Context, venueOrderID string) error
	Query(ctx context.Context, venueOrderID string) (OrderSnapshot, error)
	Account() Account
	Positions() map[string]Position
}
