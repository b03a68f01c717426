package strategy

import "vidar/internal/common"

// OrderState is the order state machine from spec.md §4.5:
// Active -> {Filled, Canceled, Rejected}.
type OrderState uint8

const (
	Active OrderState = iota
	Filled
	Canceled
	Rejected
)

func (s OrderState) String() string {
	switch s {
	case Active:
		return "Active"
	case Filled:
		return "Filled"
	case Canceled:
		return "Canceled"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// simOrder is one simulated order the StrategyEngine is tracking. It is
// never sent to a real counterparty; fills are decided immediately against
// the BookUpdate's reported depth (spec.md §4.5: "simulated as
// immediate-or-nothing").
type simOrder struct {
	ID     uint64
	Symbol common.SymbolId
	Side   common.Side
	Qty    common.Qty
	Price  common.Price
	State  OrderState
	// Closing marks an order placed to reduce/exit an existing position,
	// as opposed to a new entry.
	Closing bool
}
