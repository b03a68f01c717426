package bookengine

import "vidar/internal/common"

// Update is the book snapshot the engine emits after applying an event,
// per the emission policy in spec.md §3: only when best_bid/best_ask
// changed, top-of-book volume changed, or on the periodic tick.
type Update struct {
	TS       uint64
	Symbol   common.SymbolId
	BestBid  common.Price
	HasBid   bool
	BestAsk  common.Price
	HasAsk   bool
	Mid      common.Price
	BidDepth common.Qty
	AskDepth common.Qty
	// Imbalance is (bid_depth - ask_depth) / (bid_depth + ask_depth), in
	// [-1, 1], and zero when both depths are zero.
	Imbalance float64
	Spread    common.Price
	// SpreadBps is Spread / Mid * 10000; zero when Mid is zero or either
	// side is missing.
	SpreadBps float64
}

func newUpdate(ts uint64, sym common.SymbolId, bestBid, bestAsk common.Price, hasBid, hasAsk bool, bidDepth, askDepth common.Qty) Update {
	u := Update{
		TS:       ts,
		Symbol:   sym,
		BestBid:  bestBid,
		HasBid:   hasBid,
		BestAsk:  bestAsk,
		HasAsk:   hasAsk,
		BidDepth: bidDepth,
		AskDepth: askDepth,
	}
	if hasBid && hasAsk {
		u.Mid = common.Mid(bestBid, bestAsk)
		u.Spread = bestAsk - bestBid
		if u.Mid > 0 {
			u.SpreadBps = float64(u.Spread) / float64(u.Mid) * 10000
		}
	}
	total := int64(bidDepth) + int64(askDepth)
	if total > 0 {
		u.Imbalance = float64(int64(bidDepth)-int64(askDepth)) / float64(total)
	}
	return u
}
