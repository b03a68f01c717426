// Package event defines the decoded ITCH-style events the BookEngine
// consumes. Decoding from the wire (JSON ingest) is out of scope; callers
// hand Event values to the engine already parsed and price-converted.
package event

import "vidar/internal/common"

// Kind tags which variant a Event carries.
type Kind uint8

const (
	KindAdd Kind = iota
	KindDelete
	KindExecute
	KindCancel
	KindReplace
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "Add"
	case KindDelete:
		return "Delete"
	case KindExecute:
		return "Execute"
	case KindCancel:
		return "Cancel"
	case KindReplace:
		return "Replace"
	default:
		return "Unknown"
	}
}

// Add registers a new resting order.
type Add struct {
	Ref    uint64
	Symbol string
	Side   common.Side
	Price  common.Price
	Qty    common.Qty
}

// Delete removes a resting order outright (e.g. a trader-initiated cancel
// of the full remaining size, signalled by the feed as a delete).
type Delete struct {
	Ref uint64
}

// Execute reports a fill against a resting order for Qty shares.
type Execute struct {
	Ref uint64
	Qty common.Qty
}

// Cancel reduces a resting order's remaining size by Qty shares. It has the
// same book/registry effect as Execute; the two are distinguished only for
// statistics (spec.md §4.3).
type Cancel struct {
	Ref uint64
	Qty common.Qty
}

// Replace atomically swaps OldRef for NewRef at a new price/quantity,
// inheriting side and symbol from the original order.
type Replace struct {
	OldRef   uint64
	NewRef   uint64
	NewPrice common.Price
	NewQty   common.Qty
}

// Event is a single decoded feed message: an arrival timestamp in
// nanoseconds plus exactly one of the five bodies above.
type Event struct {
	TS   uint64
	Kind Kind

	Add     Add
	Delete  Delete
	Execute Execute
	Cancel  Cancel
	Replace Replace
}
