package order

import (
	"errors"
	"testing"
)

func TestNewValidation(t *testing.T) {
	testCases := []struct {
		desc    string
		spec    Spec
		wantErr bool
	}{
		{
			"valid limit buy",
			Spec{Symbol: "600000", Side: SideBuy, Type: TypeLimit, Price: 10, Quantity: 100},
			false,
		},
		{
			"valid market sell",
			Spec{Symbol: "600000", Side: SideSell, Type: TypeMarket, Price: 10, Quantity: 100},
			false,
		},
		{
			"empty symbol",
			Spec{Side: SideBuy, Type: TypeLimit, Price: 10, Quantity: 100},
			true,
		},
		{
			"zero quantity",
			Spec{Symbol: "600000", Side: SideBuy, Type: TypeLimit, Price: 10},
			true,
		},
		{
			"negative quantity",
			Spec{Symbol: "600000", Side: SideBuy, Type: TypeLimit, Price: 10, Quantity: -1},
			true,
		},
		{
			"unknown side",
			Spec{Symbol: "600000", Type: TypeLimit, Price: 10, Quantity: 100},
			true,
		},
		{
			"unknown type",
			Spec{Symbol: "600000", Side: SideBuy, Price: 10, Quantity: 100},
			true,
		},
		{
			"limit without price",
			Spec{Symbol: "600000", Side: SideBuy, Type: TypeLimit, Quantity: 100},
			true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			o, err := New(tc.spec)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidSpec) {
					t.Fatalf("expected ErrInvalidSpec, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if o.ID == "" {
				t.Fatal("order id should be assigned")
			}
			if o.Status != StatusPending {
				t.Fatalf("new order status should be PENDING, got %s", o.Status)
			}
			if o.VenueOrderID != "" {
				t.Fatal("venue order id should be empty until acceptance")
			}
		})
	}
}

func TestTransitionGraph(t *testing.T) {
	all := []Status{StatusPending, StatusSubmitted, StatusPartFilled, StatusFilled, StatusCancelled, StatusRejected}
	allowed := map[Status][]Status{
		StatusPending:    {StatusSubmitted, StatusCancelled, StatusRejected},
		StatusSubmitted:  {StatusPartFilled, StatusFilled, StatusCancelled, StatusRejected},
		StatusPartFilled: {StatusSubmitted, StatusPartFilled, StatusFilled, StatusCancelled, StatusRejected},
		StatusFilled:     {},
		StatusCancelled:  {},
		StatusRejected:   {},
	}

	isAllowed := func(from, to Status) bool {
		for _, s := range allowed[from] {
			if s == to {
				return true
			}
		}
		return false
	}

	for _, from := range all {
		for _, to := range all {
			o := &Order{Status: from}
			err := o.Transition(to)
			if isAllowed(from, to) {
				if err != nil {
					t.Fatalf("%s -> %s should be legal, got %v", from, to, err)
				}
				if o.Status != to {
					t.Fatalf("%s -> %s did not apply", from, to)
				}
				continue
			}
			if err == nil {
				t.Fatalf("%s -> %s should be rejected", from, to)
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s -> %s should fail with ErrInvalidTransition, got %v", from, to, err)
			}
			if o.Status != from {
				t.Fatalf("%s -> %s mutated status on failure", from, to)
			}
		}
	}
}

func TestSignedQuantity(t *testing.T) {
	buy := &Order{Side: SideBuy, Quantity: 100}
	if buy.SignedQuantity() != 100 {
		t.Fatalf("buy signed quantity should be 100, got %d", buy.SignedQuantity())
	}
	sell := &Order{Side: SideSell, Quantity: 100}
	if sell.SignedQuantity() != -100 {
		t.Fatalf("sell signed quantity should be -100, got %d", sell.SignedQuantity())
	}
}

func TestCloneIsolatesMetadata(t *testing.T) {
	o := &Order{ID: "a", Metadata: map[string]string{"k": "v"}}
	cp := o.Clone()
	cp.Metadata["k"] = "changed"
	if o.Metadata["k"] != "v" {
		t.Fatal("clone should not share metadata with the original")
	}
}
