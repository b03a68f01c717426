// Package ledger implements the append-only trade ledger, per-symbol
// position book, and process-wide performance metrics described in
// spec.md §4.6. It is owned exclusively by the StrategyEngine, which never
// writes files itself; the ledger reaches disk through the report writers,
// run periodically on the workerpool and once more after the pipeline ends
// (spec.md §5: "Neither task performs blocking file I/O on its critical
// path").
package ledger

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidar/internal/common"
)

// Config carries the ledger's one external parameter.
type Config struct {
	// InitialCapital is denominated like common.Price: minor units of
	// 1/10000. Default per spec.md §6 is 1_000_000 * 10000.
	InitialCapital int64
}

// Metrics is the process-wide performance snapshot (spec.md §4.6).
type Metrics struct {
	TotalPnL      int64
	RealizedPnL   int64
	UnrealizedPnL int64
	NumTrades     int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	AvgProfit     float64
	AvgLoss       float64
	ProfitFactor  float64
}

// Ledger is the sole bookkeeper of trades, positions, and cash.
type Ledger struct {
	mu sync.Mutex

	initialCapital int64
	cash           int64
	positions      map[common.SymbolId]*Position
	lastMid        map[common.SymbolId]common.Price
	trades         []Trade

	numTrades, winningTrades, losingTrades int
	grossProfit, grossLoss                 int64

	startTime time.Time
	log       zerolog.Logger
}

// New returns an empty Ledger funded with cfg.InitialCapital.
func New(cfg Config, log zerolog.Logger) *Ledger {
	return &Ledger{
		initialCapital: cfg.InitialCapital,
		cash:           cfg.InitialCapital,
		positions:      make(map[common.SymbolId]*Position),
		lastMid:        make(map[common.SymbolId]common.Price),
		startTime:      time.Now(),
		log:            log.With().Str("component", "ledger").Logger(),
	}
}

// RecordFill applies one simulated execution: updates the position's cost
// basis and realized P&L, moves cash, and appends a Trade. It is
// idempotent in replay — the same sequence of calls always produces the
// same resulting Trade slice and Metrics (spec.md §4.6).
func (l *Ledger) RecordFill(orderID string, symbol common.SymbolId, side common.Side, qty common.Qty, price common.Price, ts uint64) Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		l.positions[symbol] = pos
	}
	realized := pos.Fill(side, qty, price)

	notional := int64(price) * int64(qty)
	if side == common.Bid {
		l.cash -= notional
	} else {
		l.cash += notional
	}

	trade := Trade{
		// Name-based UUID of the trade's sequence number, so replaying the
		// same fills yields the same IDs.
		TradeID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(strconv.Itoa(len(l.trades)+1))).String(),
		OrderID:          orderID,
		Symbol:           symbol,
		Side:             side,
		Qty:              qty,
		Price:            price,
		TS:               ts,
		RealizedPnLDelta: realized,
	}
	l.trades = append(l.trades, trade)

	l.numTrades++
	switch {
	case realized > 0:
		l.winningTrades++
		l.grossProfit += realized
	case realized < 0:
		l.losingTrades++
		l.grossLoss += -realized
	}

	l.log.Debug().Str("trade_id", trade.TradeID).Str("order_id", orderID).
		Int64("realized_delta", realized).Msg("recorded fill")
	return trade
}

// MarkMid records the latest mid price observed for symbol, used to value
// unrealized P&L. Called by the StrategyEngine on every tick that quotes
// both sides.
func (l *Ledger) MarkMid(symbol common.SymbolId, mid common.Price) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastMid[symbol] = mid
}

// Position returns a copy of symbol's current position (zero value if flat
// or never traded).
func (l *Ledger) Position(symbol common.SymbolId) Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos, ok := l.positions[symbol]; ok {
		return *pos
	}
	return Position{Symbol: symbol}
}

// Positions returns a snapshot of every symbol with a recorded position.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}

// Trades returns every recorded trade in append order.
func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Metrics computes the process-wide performance snapshot from the current
// ledger state, per the formulas in spec.md §4.6.
func (l *Ledger) Metrics() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metricsLocked()
}

// metricsLocked is Metrics' body, callable by report.go while l.mu is
// already held.
func (l *Ledger) metricsLocked() Metrics {
	var realized, unrealized int64
	for sym, pos := range l.positions {
		realized += pos.RealizedPnL
		if pos.Qty == 0 {
			continue
		}
		mid, ok := l.lastMid[sym]
		if !ok {
			continue
		}
		unrealized += (int64(mid) - int64(pos.AvgPrice)) * pos.Qty
	}

	m := Metrics{
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
		TotalPnL:      realized + unrealized,
		NumTrades:     l.numTrades,
		WinningTrades: l.winningTrades,
		LosingTrades:  l.losingTrades,
	}
	if decided := l.winningTrades + l.losingTrades; decided > 0 {
		m.WinRate = float64(l.winningTrades) / float64(decided)
	}
	if l.winningTrades > 0 {
		m.AvgProfit = float64(l.grossProfit) / float64(l.winningTrades)
	}
	if l.losingTrades > 0 {
		m.AvgLoss = float64(l.grossLoss) / float64(l.losingTrades)
	}
	switch {
	case l.grossLoss == 0 && l.grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	case l.grossLoss == 0:
		m.ProfitFactor = 0
	default:
		m.ProfitFactor = float64(l.grossProfit) / float64(l.grossLoss)
	}
	return m
}

// markToMarketLocked is cash + Σ(position.qty × last_mid), i.e. capital if
// every open position were closed at its last-known mid. Callable by
// report.go and CashIdentity while l.mu is already held.
func (l *Ledger) markToMarketLocked() int64 {
	total := l.cash
	for sym, pos := range l.positions {
		if pos.Qty == 0 {
			continue
		}
		mid, ok := l.lastMid[sym]
		if !ok {
			continue
		}
		total += int64(mid) * pos.Qty
	}
	return total
}

// CashIdentity returns cash + Σ(position.qty × last_mid) - initial_capital,
// which must equal RealizedPnL + UnrealizedPnL at all times (spec.md §8,
// invariant 5). Exported for the property test that checks this directly.
func (l *Ledger) CashIdentity() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.markToMarketLocked() - l.initialCapital
}

// StartTime is the process_start_ts referenced by spec.md §9.
func (l *Ledger) StartTime() time.Time {
	return l.startTime
}
