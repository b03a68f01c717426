// Package registry implements the OrderRegistry: the lookup table from order
// reference to the order's symbol/side/price/remaining size. It is a flat
// map, not a graph of owners — modification events reach the book only
// through it, so the book never needs to know about individual orders
// (spec.md §9, "weak references for order modifications").
package registry

import (
	"errors"

	"vidar/internal/common"
)

var (
	ErrDuplicateRef = errors.New("registry: order reference already exists")
	ErrNotFound     = errors.New("registry: order reference not found")
	ErrUnderflow    = errors.New("registry: decrement exceeds remaining shares")
)

// Record is a single live order as tracked by the registry. A Record with
// Remaining == 0 is never stored; see Decrement.
type Record struct {
	Ref       uint64
	Symbol    common.SymbolId
	Side      common.Side
	Price     common.Price
	Remaining common.Qty
	ArrivalTS uint64
}

// DecrementOutcome reports what happened to a record after Decrement.
type DecrementOutcome int

const (
	Reduced DecrementOutcome = iota
	Removed
)

// Registry is the sole owner of every live order record. It is not
// goroutine-safe on its own; the BookEngine guards it with a per-symbol
// lock (spec.md §5).
type Registry struct {
	orders map[uint64]*Record
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{orders: make(map[uint64]*Record)}
}

// Insert adds a new record. It fails with ErrDuplicateRef if ref is already
// live.
func (r *Registry) Insert(rec Record) error {
	if _, exists := r.orders[rec.Ref]; exists {
		return ErrDuplicateRef
	}
	if rec.Remaining == 0 {
		return nil
	}
	r.orders[rec.Ref] = &rec
	return nil
}

// Get returns the live record for ref, or ErrNotFound.
func (r *Registry) Get(ref uint64) (Record, error) {
	rec, ok := r.orders[ref]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

// Decrement reduces ref's remaining size by qty. When remaining reaches
// zero the record is removed and Removed is returned. If qty exceeds
// remaining, the caller (BookEngine) is responsible for capping it first —
// Decrement returns ErrUnderflow rather than silently clamping, so callers
// can log the BookUnderflow condition from spec.md §7 before re-calling
// with the capped amount.
func (r *Registry) Decrement(ref uint64, qty common.Qty) (DecrementOutcome, common.Qty, error) {
	rec, ok := r.orders[ref]
	if !ok {
		return 0, 0, ErrNotFound
	}
	if qty > rec.Remaining {
		return 0, rec.Remaining, ErrUnderflow
	}
	rec.Remaining -= qty
	if rec.Remaining == 0 {
		delete(r.orders, ref)
		return Removed, 0, nil
	}
	return Reduced, rec.Remaining, nil
}

// Remove deletes and returns ref's record outright (used by Delete events).
func (r *Registry) Remove(ref uint64) (Record, error) {
	rec, ok := r.orders[ref]
	if !ok {
		return Record{}, ErrNotFound
	}
	delete(r.orders, ref)
	return *rec, nil
}

// Replace removes oldRef and inserts newRef under the same symbol/side,
// with a new price and quantity. It fails without mutating anything if
// oldRef is unknown or newRef already exists.
func (r *Registry) Replace(oldRef, newRef uint64, newPrice common.Price, newQty common.Qty, arrivalTS uint64) (Record, error) {
	old, ok := r.orders[oldRef]
	if !ok {
		return Record{}, ErrNotFound
	}
	if _, exists := r.orders[newRef]; exists {
		return Record{}, ErrDuplicateRef
	}
	delete(r.orders, oldRef)
	rec := Record{
		Ref:       newRef,
		Symbol:    old.Symbol,
		Side:      old.Side,
		Price:     newPrice,
		Remaining: newQty,
		ArrivalTS: arrivalTS,
	}
	if rec.Remaining > 0 {
		r.orders[newRef] = &rec
	}
	return rec, nil
}

// Len returns the number of live records, for tests and diagnostics.
func (r *Registry) Len() int {
	return len(r.orders)
}
