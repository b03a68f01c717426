package ledger

import "vidar/internal/common"

// Trade is one append-only fill record, matching the CSV column order in
// SPEC_FULL.md's external interfaces section:
// trade_id, order_id, symbol, side, qty, price, ts, pnl.
type Trade struct {
	TradeID          string
	OrderID          string
	Symbol           common.SymbolId
	Side             common.Side
	Qty              common.Qty
	Price            common.Price
	TS               uint64
	RealizedPnLDelta int64
}
