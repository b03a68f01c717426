// Package book implements PriceLevelBook: a single symbol's two-sided,
// price-level-aggregated book with sub-linear best-price retrieval.
//
// Bids and asks are each an ordered keyed container (github.com/tidwall/btree,
// the teacher's own choice in internal/engine/orderbook.go) keyed on price,
// so that after a best-level erasure the new best is found in O(log L)
// rather than by a full rescan.
package book

import (
	"github.com/tidwall/btree"

	"vidar/internal/common"
)

// DefaultHistoryCapacity bounds the price-history ring, matching the 1000
// entry cap in original_source/order_book_simulator/order_book.py.
const DefaultHistoryCapacity = 1000

// HistoryPoint is one entry of a symbol's best-price trail.
type HistoryPoint struct {
	TS      uint64
	BestBid common.Price
	BestAsk common.Price
	HasBid  bool
	HasAsk  bool
}

// Book is one symbol's order book: two ordered price-level trees plus
// cached best prices and a bounded price-history trail.
type Book struct {
	bids *btree.BTreeG[*level]
	asks *btree.BTreeG[*level]

	bestBid    common.Price
	hasBestBid bool
	bestAsk    common.Price
	hasBestAsk bool

	history    []HistoryPoint
	historyCap int
	historyPos int
	historyLen int
}

// New returns an empty Book. historyCap <= 0 uses DefaultHistoryCapacity.
func New(historyCap int) *Book {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCapacity
	}
	return &Book{
		bids: btree.NewBTreeG(func(a, b *level) bool {
			return a.price > b.price // greatest first: Min() yields the best bid
		}),
		asks: btree.NewBTreeG(func(a, b *level) bool {
			return a.price < b.price // least first: Min() yields the best ask
		}),
		history:    make([]HistoryPoint, historyCap),
		historyCap: historyCap,
	}
}

func (b *Book) tree(side common.Side) *btree.BTreeG[*level] {
	if side == common.Bid {
		return b.bids
	}
	return b.asks
}

// Add increases volume at (side, price) by qty, creating the level if it is
// new, and refreshes the cached best price for that side. O(log L).
func (b *Book) Add(side common.Side, price common.Price, qty common.Qty) {
	t := b.tree(side)
	key := &level{price: price}
	if existing, ok := t.Get(key); ok {
		existing.volume += int64(qty)
	} else {
		t.Set(&level{price: price, volume: int64(qty)})
	}
	b.refreshBest(side)
}

// Remove decreases volume at (side, price) by qty, erasing the level the
// instant it reaches zero or below, and recomputes the cached best price if
// the erased/changed level was (or could have been) the best. O(log L).
func (b *Book) Remove(side common.Side, price common.Price, qty common.Qty) {
	t := b.tree(side)
	key := &level{price: price}
	existing, ok := t.Get(key)
	if !ok {
		return
	}
	existing.volume -= int64(qty)
	if existing.volume <= 0 {
		t.Delete(key)
	}
	b.refreshBest(side)
}

func (b *Book) refreshBest(side common.Side) {
	t := b.tree(side)
	top, ok := t.Min()
	switch side {
	case common.Bid:
		b.hasBestBid = ok
		if ok {
			b.bestBid = top.price
		}
	case common.Ask:
		b.hasBestAsk = ok
		if ok {
			b.bestAsk = top.price
		}
	}
}

// Best returns the best price on side, or ok=false if that side is empty.
func (b *Book) Best(side common.Side) (price common.Price, ok bool) {
	if side == common.Bid {
		return b.bestBid, b.hasBestBid
	}
	return b.bestAsk, b.hasBestAsk
}

// TopDepth sums the resting volume at the nLevels best prices on side.
// nLevels <= 0 defaults to 1. An empty side returns zero. O(nLevels * log L).
func (b *Book) TopDepth(side common.Side, nLevels int) common.Qty {
	if nLevels <= 0 {
		nLevels = 1
	}
	t := b.tree(side)
	var total int64
	count := 0
	t.Scan(func(lv *level) bool {
		if count >= nLevels {
			return false
		}
		total += lv.volume
		count++
		return true
	})
	return common.Qty(total)
}

// LevelCount returns the number of distinct price levels on side.
func (b *Book) LevelCount(side common.Side) int {
	return b.tree(side).Len()
}

// RecordHistory appends a (ts, bestBid, bestAsk) point to the bounded ring,
// overwriting the oldest entry once the ring is full — mirrors the
// deque(maxlen=1000) in original_source/order_book_simulator/order_book.py.
func (b *Book) RecordHistory(ts uint64) {
	bid, hasBid := b.Best(common.Bid)
	ask, hasAsk := b.Best(common.Ask)
	b.history[b.historyPos] = HistoryPoint{TS: ts, BestBid: bid, HasBid: hasBid, BestAsk: ask, HasAsk: hasAsk}
	b.historyPos = (b.historyPos + 1) % b.historyCap
	if b.historyLen < b.historyCap {
		b.historyLen++
	}
}

// History returns the trail in chronological order (oldest first).
func (b *Book) History() []HistoryPoint {
	out := make([]HistoryPoint, b.historyLen)
	start := (b.historyPos - b.historyLen + b.historyCap) % b.historyCap
	for i := 0; i < b.historyLen; i++ {
		out[i] = b.history[(start+i)%b.historyCap]
	}
	return out
}
