package ledger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"vidar/internal/symbol"
)

// WriteTradesCSV writes trades in the external CSV format from
// SPEC_FULL.md: header once, then one row per trade, columns
// trade_id, order_id, symbol, side, qty, price, ts, pnl. CSV/JSON report
// writing is explicitly out of scope for the core per spec.md §1, so this
// is intentionally the thinnest possible stdlib writer — no retry, no
// rotation, no compression.
func WriteTradesCSV(w io.Writer, trades []Trade, names *symbol.Interner) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"trade_id", "order_id", "symbol", "side", "qty", "price", "ts", "pnl"}); err != nil {
		return err
	}
	for _, tr := range trades {
		row := []string{
			tr.TradeID,
			tr.OrderID,
			names.Name(tr.Symbol),
			tr.Side.String(),
			fmt.Sprintf("%d", tr.Qty),
			tr.Price.String(),
			fmt.Sprintf("%d", tr.TS),
			fmt.Sprintf("%d", tr.RealizedPnLDelta),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// positionSummary is one entry of the performance summary's position list.
type positionSummary struct {
	Symbol        string `json:"symbol"`
	Quantity      int64  `json:"quantity"`
	AvgPrice      string `json:"avg_price"`
	CurrentPrice  string `json:"current_price"`
	UnrealizedPnL int64  `json:"unrealized_pnl"`
	RealizedPnL   int64  `json:"realized_pnl"`
}

// performanceSummary mirrors the JSON shape in SPEC_FULL.md's external
// interfaces section.
type performanceSummary struct {
	Timestamp       string            `json:"timestamp"`
	DurationSeconds float64           `json:"duration_seconds"`
	InitialCapital  int64             `json:"initial_capital"`
	FinalCapital    int64             `json:"final_capital"`
	TotalPnL        int64             `json:"total_pnl"`
	RealizedPnL     int64             `json:"realized_pnl"`
	UnrealizedPnL   int64             `json:"unrealized_pnl"`
	NumTrades       int               `json:"num_trades"`
	WinningTrades   int               `json:"winning_trades"`
	LosingTrades    int               `json:"losing_trades"`
	WinRate         float64           `json:"win_rate"`
	AvgProfit       float64           `json:"avg_profit"`
	AvgLoss         float64           `json:"avg_loss"`
	ProfitFactor    float64           `json:"profit_factor"`
	Positions       []positionSummary `json:"positions"`
}

// WritePerformanceSummary writes the JSON performance summary described in
// SPEC_FULL.md, valuing each open position at its last-known mid.
func WritePerformanceSummary(w io.Writer, l *Ledger, names *symbol.Interner) error {
	l.mu.Lock()
	m := l.metricsLocked()
	summary := performanceSummary{
		Timestamp:       l.startTime.UTC().Format(time.RFC3339),
		DurationSeconds: time.Since(l.startTime).Seconds(),
		InitialCapital:  l.initialCapital,
		FinalCapital:    l.markToMarketLocked(),
		TotalPnL:        m.TotalPnL,
		RealizedPnL:     m.RealizedPnL,
		UnrealizedPnL:   m.UnrealizedPnL,
		NumTrades:       m.NumTrades,
		WinningTrades:   m.WinningTrades,
		LosingTrades:    m.LosingTrades,
		WinRate:         m.WinRate,
		AvgProfit:       m.AvgProfit,
		AvgLoss:         m.AvgLoss,
		ProfitFactor:    m.ProfitFactor,
		Positions:       make([]positionSummary, 0, len(l.positions)),
	}
	for sym, pos := range l.positions {
		mid, hasMid := l.lastMid[sym]
		var unrealized int64
		var currentPrice string
		if hasMid {
			currentPrice = mid.String()
			if pos.Qty != 0 {
				unrealized = (int64(mid) - int64(pos.AvgPrice)) * pos.Qty
			}
		}
		summary.Positions = append(summary.Positions, positionSummary{
			Symbol:        names.Name(sym),
			Quantity:      pos.Qty,
			AvgPrice:      pos.AvgPrice.String(),
			CurrentPrice:  currentPrice,
			UnrealizedPnL: unrealized,
			RealizedPnL:   pos.RealizedPnL,
		})
	}
	l.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
