package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
)

// Status tracks the lifecycle of an order.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusSubmitted
	StatusPartFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusPartFilled:
		return "PARTIAL_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// IsActive reports whether the order still awaits a venue outcome.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusPartFilled:
		return true
	default:
		return false
	}
}

// Side is the trade direction.
type Side uint8

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Type is the order price instruction.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeLimit
	TypeMarket
)

func (t Type) String() string {
	switch t {
	case TypeLimit:
		return "LIMIT"
	case TypeMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// Spec is the caller-supplied order definition.
type Spec struct {
	Symbol     string
	Side       Side
	Type       Type
	Price      float64
	Quantity   int64
	StrategyID string
	Metadata   map[string]string
}

// Order is the engine's view of a single order through its lifecycle.
type Order struct {
	ID           string
	Symbol       string
	Side         Side
	Type         Type
	Price        float64
	Quantity     int64
	StrategyID   string
	VenueOrderID string
	Status       Status
	FilledQty    int64
	AvgFillPrice float64
	Commission   float64
	CreateTime   time.Time
	UpdateTime   time.Time
	Metadata     map[string]string
}

// New validates the spec and returns a pending order with a fresh id.
func New(spec Spec) (*Order, error) {
	if spec.Symbol == "" {
		return nil, errors.Wrap(ErrInvalidSpec, "symbol is empty")
	}
	if spec.Quantity <= 0 {
		return nil, errors.Wrap(ErrInvalidSpec, "quantity must be > 0")
	}
	if spec.Side != SideBuy && spec.Side != SideSell {
		return nil, errors.Wrap(ErrInvalidSpec, "side is unknown")
	}
	switch spec.Type {
	case TypeLimit:
		if spec.Price <= 0 {
			return nil, errors.Wrap(ErrInvalidSpec, "price must be > 0 for limit orders")
		}
	case TypeMarket:
		if spec.Price <= 0 {
			return nil, errors.Wrap(ErrInvalidSpec, "reference price must be > 0 for market orders")
		}
	default:
		return nil, errors.Wrap(ErrInvalidSpec, "type is unknown")
	}

	now := time.Now()
	return &Order{
		ID:         uuid.NewString(),
		Symbol:     spec.Symbol,
		Side:       spec.Side,
		Type:       spec.Type,
		Price:      spec.Price,
		Quantity:   spec.Quantity,
		StrategyID: spec.StrategyID,
		Status:     StatusPending,
		CreateTime: now,
		UpdateTime: now,
		Metadata:   spec.Metadata,
	}, nil
}

// SignedQuantity returns the quantity with the side applied.
func (o *Order) SignedQuantity() int64 {
	if o.Side == SideSell {
		return -o.Quantity
	}
	return o.Quantity
}

// IsActive reports whether the order is in a non-terminal status.
func (o *Order) IsActive() bool { return o.Status.IsActive() }

// IsTerminal reports whether the order reached a final status.
func (o *Order) IsTerminal() bool { return o.Status.IsTerminal() }

// Transition moves the order to the target status, or fails with
// ErrInvalidTransition when the edge is not in the lifecycle graph.
func (o *Order) Transition(target Status) error {
	if !canTransition(o.Status, target) {
		return errors.Wrap(ErrInvalidTransition, o.Status.String()+" -> "+target.String())
	}
	o.Status = target
	o.UpdateTime = time.Now()
	return nil
}

// Clone returns a deep copy so callers never observe in-place mutation.
func (o *Order) Clone() *Order {
	cp := *o
	if o.Metadata != nil {
		cp.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// canTransition encodes the lifecycle graph:
//
//	PENDING -> SUBMITTED -> {PARTIAL_FILLED <-> SUBMITTED, FILLED}
//	{PENDING, SUBMITTED, PARTIAL_FILLED} -> CANCELLED
//	any non-terminal -> REJECTED
func canTransition(from, to Status) bool {
	switch to {
	case StatusSubmitted:
		return from == StatusPending || from == StatusPartFilled
	case StatusPartFilled:
		return from == StatusSubmitted || from == StatusPartFilled
	case StatusFilled:
		return from == StatusSubmitted || from == StatusPartFilled
	case StatusCancelled:
		return from == StatusPending || from == StatusSubmitted || from == StatusPartFilled
	case StatusRejected:
		return from != StatusUnknown && !from.IsTerminal()
	default:
		return false
	}
}
