// Package stock holds the per-location stock ledger of a product and the pure
// operations over it. Functions never mutate their receiver; every write
// returns a new Ledger.
package stock

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidLedger     = errors.New("invalid stock ledger")
)

// Level is the available quantity at one location.
type Level struct {
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
}

// Ledger is an ordered location -> quantity mapping. Order is the
// enumeration order used when a location has to be picked automatically.
type Ledger []Level

func (l Ledger) index(location string) int {
	for i, lv := range l {
		if lv.Location == location {
			return i
		}
	}
	return -1
}

// Has reports whether the ledger already tracks location.
func (l Ledger) Has(location string) bool {
	return l.index(location) >= 0
}

// AvailableAt returns the quantity at location, 0 when unknown.
func (l Ledger) AvailableAt(location string) int {
	if i := l.index(location); i >= 0 {
		return l[i].Quantity
	}
	return 0
}

// FirstAvailable returns the first location, in ledger order, with stock.
func (l Ledger) FirstAvailable() (string, bool) {
	for _, lv := range l {
		if lv.Quantity > 0 {
			return lv.Location, true
		}
	}
	return "", false
}

// Total sums all locations.
func (l Ledger) Total() int {
	n := 0
	for _, lv := range l {
		n += lv.Quantity
	}
	return n
}

// Locations lists tracked locations in ledger order.
func (l Ledger) Locations() []string {
	out := make([]string, 0, len(l))
	for _, lv := range l {
		out = append(out, lv.Location)
	}
	return out
}

// Decrement removes amount units at location. An unknown location counts as
// 0, so decrementing it always fails unless amount is 0.
func (l Ledger) Decrement(location string, amount int) (Ledger, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	available := l.AvailableAt(location)
	if available < amount {
		return nil, fmt.Errorf("%w at %q: available %d, requested %d", ErrInsufficientStock, location, available, amount)
	}
	return l.with(location, available-amount), nil
}

// Increment adds amount units at location, appending it when unknown.
func (l Ledger) Increment(location string, amount int) (Ledger, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	next := l.AvailableAt(location) + amount
	if next < 0 {
		return nil, fmt.Errorf("%w: overflow at %q", ErrInvalidAmount, location)
	}
	return l.with(location, next), nil
}

// Set replaces the quantity at location.
func (l Ledger) Set(location string, quantity int) (Ledger, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity %d at %q", ErrInvalidAmount, quantity, location)
	}
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("%w: empty location", ErrInvalidLedger)
	}
	return l.with(location, quantity), nil
}

// Validate checks the at-rest invariants: named, unique, non-negative entries.
func (l Ledger) Validate() error {
	seen := make(map[string]struct{}, len(l))
	for _, lv := range l {
		if strings.TrimSpace(lv.Location) == "" {
			return fmt.Errorf("%w: empty location", ErrInvalidLedger)
		}
		if _, dup := seen[lv.Location]; dup {
			return fmt.Errorf("%w: duplicate location %q", ErrInvalidLedger, lv.Location)
		}
		seen[lv.Location] = struct{}{}
		if lv.Quantity < 0 {
			return fmt.Errorf("%w: negative quantity %d at %q", ErrInvalidLedger, lv.Quantity, lv.Location)
		}
	}
	return nil
}

func (l Ledger) with(location string, quantity int) Ledger {
	out := make(Ledger, len(l), len(l)+1)
	copy(out, l)
	if i := out.index(location); i >= 0 {
		out[i].Quantity = quantity
		return out
	}
	return append(out, Level{Location: location, Quantity: quantity})
}
