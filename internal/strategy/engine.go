// Package strategy implements the imbalance-reversion StrategyEngine from
// spec.md §4.5: it consumes BookUpdates, runs the liquidity-reversion
// entry/exit rules grounded on
// original_source/trading_engine/trading_engine.py's
// liquidity_reversion_strategy, ages simulated orders with a fixed-width
// bucket ring, and records fills to the Ledger.
package strategy

import (
	"math"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"vidar/internal/bookengine"
	"vidar/internal/bus"
	"vidar/internal/common"
	"vidar/internal/config"
	"vidar/internal/ledger"
)

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ratio is bid_depth / ask_depth, treated as +Inf when ask_depth is zero
// (spec.md §4.5).
func ratio(bidDepth, askDepth common.Qty) float64 {
	if askDepth == 0 {
		return math.Inf(1)
	}
	return float64(bidDepth) / float64(askDepth)
}

// symbolState is one symbol's strategy state: the rolling update history,
// imbalance streak counters, the currently pending simulated order (if
// any), and its aging ring.
type symbolState struct {
	history []bookengine.Update
	histPos int
	histLen int

	streakShort uint32
	streakLong  uint32
	holdTicks   uint32

	order *simOrder
	aging *agingRing
}

func (st *symbolState) record(upd bookengine.Update) {
	if len(st.history) == 0 {
		return
	}
	st.history[st.histPos] = upd
	st.histPos = (st.histPos + 1) % len(st.history)
	if st.histLen < len(st.history) {
		st.histLen++
	}
}

func (st *symbolState) recent() []bookengine.Update {
	out := make([]bookengine.Update, st.histLen)
	start := (st.histPos - st.histLen + len(st.history)) % len(st.history)
	for i := 0; i < st.histLen; i++ {
		out[i] = st.history[(start+i)%len(st.history)]
	}
	return out
}

// Stats counts simulated orders rejected without ever becoming Active
// (spec.md §7).
type Stats struct {
	RejectedNoQuote            uint64
	RejectedInsufficientCash   uint64
	RejectedInsufficientShares uint64
}

// Engine is the StrategyEngine: single consumer of the MarketDataBus,
// sole owner of the Ledger.
type Engine struct {
	mu          sync.Mutex
	cfg         config.StrategyConfig
	ledger      *ledger.Ledger
	symbols     map[common.SymbolId]*symbolState
	nextOrderID uint64
	stats       Stats
	log         zerolog.Logger
}

// New returns a StrategyEngine bound to its own Ledger.
func New(cfg config.StrategyConfig, l *ledger.Ledger, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		ledger:  l,
		symbols: make(map[common.SymbolId]*symbolState),
		log:     log.With().Str("component", "strategy").Logger(),
	}
}

// Ledger exposes the engine's ledger for reporting.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Stats returns the engine's rejection counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) state(sym common.SymbolId) *symbolState {
	st, ok := e.symbols[sym]
	if !ok {
		histCap := int(e.cfg.HistoryDepth)
		if histCap <= 0 {
			histCap = 100
		}
		st = &symbolState{
			history: make([]bookengine.Update, histCap),
			aging:   newAgingRing(e.cfg.OrderTimeoutTicks),
		}
		e.symbols[sym] = st
	}
	return st
}

// Run drains in until EndOfStream or t dies, processing each update in
// order (spec.md §5: "BookUpdates for one symbol arrive at StrategyEngine
// in the same order they were emitted").
func (e *Engine) Run(t *tomb.Tomb, in *bus.Bus[bookengine.Update]) error {
	for {
		upd, ok, err := in.Recv(t)
		if err != nil {
			e.Shutdown()
			return err
		}
		if !ok {
			return e.Shutdown()
		}
		e.ProcessUpdate(upd)
	}
}

// ProcessUpdate applies one tick's worth of logic: rotate the aging ring,
// retry any pending simulated fill, mark the position to mid, then run
// entry or exit rules (spec.md §4.5 steps 1-6).
func (e *Engine) ProcessUpdate(upd bookengine.Update) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state(upd.Symbol)
	e.rotateAging(st)
	st.record(upd)

	priorPos := e.ledger.Position(upd.Symbol)

	if st.order != nil && st.order.State == Active {
		e.tryFill(st, st.order, upd)
	}

	if upd.HasBid && upd.HasAsk {
		e.ledger.MarkMid(upd.Symbol, upd.Mid)
	}

	if priorPos.Qty == 0 {
		if st.order == nil {
			e.evaluateEntry(st, upd)
		}
		return
	}
	e.evaluateExit(st, upd, priorPos)
}

func (e *Engine) rotateAging(st *symbolState) {
	for _, id := range st.aging.Rotate() {
		if st.order != nil && st.order.ID == id && st.order.State == Active {
			st.order.State = Canceled
			e.log.Info().Uint64("order_id", id).Msg("canceled order after timeout")
			st.order = nil
		}
	}
}

func (e *Engine) openPositionCount() int {
	n := 0
	for _, p := range e.ledger.Positions() {
		if p.Qty != 0 {
			n++
		}
	}
	return n
}

// evaluateEntry implements spec.md §4.5 step 4.
func (e *Engine) evaluateEntry(st *symbolState, upd bookengine.Update) {
	threshold := e.cfg.LiquidityThreshold
	reverse := e.cfg.ReverseThreshold()
	r := ratio(upd.BidDepth, upd.AskDepth)

	switch {
	case r >= threshold:
		st.streakShort++
		st.streakLong = 0
	case r <= reverse:
		st.streakLong++
		st.streakShort = 0
	default:
		st.streakShort = 0
		st.streakLong = 0
	}

	if e.openPositionCount() >= int(e.cfg.MaxPositions) {
		return
	}

	switch {
	case st.streakShort >= e.cfg.MinConsecutiveTicks && upd.HasBid:
		st.streakShort = 0
		e.placeOrder(st, upd.Symbol, common.Ask, common.Qty(e.cfg.PositionSize), upd, false)
	case st.streakLong >= e.cfg.MinConsecutiveTicks && upd.HasAsk:
		st.streakLong = 0
		e.placeOrder(st, upd.Symbol, common.Bid, common.Qty(e.cfg.PositionSize), upd, false)
	}
}

// evaluateExit implements spec.md §4.5 step 5.
func (e *Engine) evaluateExit(st *symbolState, upd bookengine.Update, pos ledger.Position) {
	st.holdTicks++

	isLong := pos.Qty > 0
	qty := common.Qty(abs64(pos.Qty))

	var currentPrice common.Price
	var hasPrice bool
	if isLong {
		currentPrice, hasPrice = upd.BestBid, upd.HasBid
	} else {
		currentPrice, hasPrice = upd.BestAsk, upd.HasAsk
	}

	threshold := e.cfg.LiquidityThreshold
	reverse := e.cfg.ReverseThreshold()
	r := ratio(upd.BidDepth, upd.AskDepth)
	neutral := r > reverse && r < threshold

	var priceChangePct float64
	var profitHit, lossHit bool
	if hasPrice && pos.AvgPrice > 0 {
		diff := float64(currentPrice-pos.AvgPrice) / float64(pos.AvgPrice)
		if !isLong {
			diff = -diff
		}
		priceChangePct = diff
		profitHit = priceChangePct >= e.cfg.ProfitTargetPct
		lossHit = priceChangePct <= -e.cfg.StopLossPct
	}

	holdExpired := st.holdTicks >= e.cfg.HoldTimeTicks

	if (!profitHit && !lossHit && !holdExpired && !neutral) || st.order != nil {
		return
	}

	exitSide := common.Ask
	if !isLong {
		exitSide = common.Bid
	}
	e.placeOrder(st, upd.Symbol, exitSide, qty, upd, true)
}

// placeOrder creates a new simulated order, applying the rejection checks
// from spec.md §7 before it is ever Active: a targeted side with no quote at
// all (waiting cannot help), a buy whose notional exceeds available cash
// (InsufficientCash), or a closing sell exceeding the held long quantity
// (InsufficientShares — a non-closing sell instead opens a short, which is
// not share-constrained; see DESIGN.md). A surviving order is tracked in
// the aging ring and an immediate fill is attempted against upd, left Active
// to retry on later ticks if depth is currently insufficient (see
// DESIGN.md on reconciling "immediate-or-nothing" with the S5 timeout
// scenario).
func (e *Engine) placeOrder(st *symbolState, sym common.SymbolId, side common.Side, qty common.Qty, upd bookengine.Update, closing bool) {
	e.nextOrderID++
	order := &simOrder{ID: e.nextOrderID, Symbol: sym, Side: side, Qty: qty, Closing: closing}

	var hasQuote bool
	if side == common.Bid {
		order.Price, hasQuote = upd.BestAsk, upd.HasAsk
	} else {
		order.Price, hasQuote = upd.BestBid, upd.HasBid
	}
	if !hasQuote {
		order.State = Rejected
		e.stats.RejectedNoQuote++
		e.log.Warn().Uint64("order_id", order.ID).Msg("order rejected, no quote on targeted side")
		return
	}

	if side == common.Bid {
		cost := int64(order.Price) * int64(qty)
		if cost > e.ledger.Cash() {
			order.State = Rejected
			e.stats.RejectedInsufficientCash++
			e.log.Warn().Uint64("order_id", order.ID).Int64("cost", cost).Msg("order rejected, insufficient cash")
			return
		}
	} else if closing {
		held := e.ledger.Position(sym).Qty
		if held < int64(qty) {
			order.State = Rejected
			e.stats.RejectedInsufficientShares++
			e.log.Warn().Uint64("order_id", order.ID).Int64("held", held).Msg("order rejected, insufficient shares")
			return
		}
	}

	order.State = Active
	st.order = order
	st.aging.Track(order.ID)
	e.tryFill(st, order, upd)
}

// priceWorseThanLimit reports whether px is less favorable than order's
// recorded limit: for a buy (Bid) the ask must not have risen; for a sell
// (Ask) the bid must not have fallen.
func priceWorseThanLimit(order *simOrder, px common.Price) bool {
	if order.Side == common.Bid {
		return px > order.Price
	}
	return px < order.Price
}

// tryFill simulates an immediate-or-nothing match against upd's reported
// depth on the side the order targets, per spec.md §4.5: a buy targets the
// ask side's depth, a sell targets the bid side's. It may resolve the
// order on any tick while it remains Active, not only at placement.
func (e *Engine) tryFill(st *symbolState, order *simOrder, upd bookengine.Update) {
	if order.State != Active {
		return
	}

	var liquidity common.Qty
	var px common.Price
	var ok bool
	if order.Side == common.Bid {
		px, ok = upd.BestAsk, upd.HasAsk
		liquidity = upd.AskDepth
	} else {
		px, ok = upd.BestBid, upd.HasBid
		liquidity = upd.BidDepth
	}

	if !ok || liquidity < order.Qty || priceWorseThanLimit(order, px) {
		return
	}

	order.State = Filled
	order.Price = px
	st.aging.Untrack(order.ID)

	orderID := strconv.FormatUint(order.ID, 10)
	e.ledger.RecordFill(orderID, order.Symbol, order.Side, order.Qty, px, upd.TS)

	if order.Closing {
		st.holdTicks = 0
	}
	st.order = nil
}

// Shutdown cancels every pending simulated order. Positions are already
// marked to the latest two-sided mid as ticks arrive, and the Ledger flushes
// independently (spec.md §5).
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.symbols {
		if st.order != nil && st.order.State == Active {
			st.order.State = Canceled
			st.aging.Untrack(st.order.ID)
			st.order = nil
		}
	}
	e.log.Info().Msg("strategy engine shutting down, active orders canceled")
	return nil
}

// OrderState returns the current state of symbol's pending simulated
// order, for tests and diagnostics. The second return is false if no
// order is pending.
func (e *Engine) OrderState(sym common.SymbolId) (OrderState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.symbols[sym]
	if !ok || st.order == nil {
		return 0, false
	}
	return st.order.State, true
}

// History returns symbol's bounded BookUpdate trail, oldest first.
func (e *Engine) History(sym common.SymbolId) []bookengine.Update {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.symbols[sym]
	if !ok {
		return nil
	}
	return st.recent()
}
