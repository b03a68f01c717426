package ledger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidar/internal/common"
	"vidar/internal/symbol"
)

func mustPrice(t *testing.T, s string) common.Price {
	t.Helper()
	p, err := common.ParsePrice(s)
	require.NoError(t, err)
	return p
}

func TestLedger_CashIdentityHoldsAfterPartialClose(t *testing.T) {
	l := New(Config{InitialCapital: 1_000_000 * 10000}, zerolog.Nop())

	l.RecordFill("o1", 1, common.Bid, 100, mustPrice(t, "10.00"), 1)
	l.MarkMid(1, mustPrice(t, "10.05"))

	m := l.Metrics()
	assert.Equal(t, m.RealizedPnL+m.UnrealizedPnL, l.CashIdentity())

	l.RecordFill("o2", 1, common.Ask, 50, mustPrice(t, "10.10"), 2)
	l.MarkMid(1, mustPrice(t, "10.05"))

	m = l.Metrics()
	assert.Equal(t, m.RealizedPnL+m.UnrealizedPnL, l.CashIdentity())
}

func TestLedger_RecordFillRealizesProfitOnClose(t *testing.T) {
	l := New(Config{InitialCapital: 0}, zerolog.Nop())

	l.RecordFill("o1", 1, common.Ask, 100, mustPrice(t, "100.00"), 1) // open short
	trade := l.RecordFill("o2", 1, common.Bid, 100, mustPrice(t, "99.50"), 2) // close, profit 0.50/share

	assert.Equal(t, int64(50_0000), trade.RealizedPnLDelta)
	pos := l.Position(1)
	assert.Equal(t, int64(0), pos.Qty)
	assert.Equal(t, int64(50_0000), pos.RealizedPnL)
}

func TestLedger_MetricsWinRateAndProfitFactor(t *testing.T) {
	l := New(Config{InitialCapital: 0}, zerolog.Nop())

	l.RecordFill("o1", 1, common.Bid, 10, mustPrice(t, "10.00"), 1)
	l.RecordFill("o2", 1, common.Ask, 10, mustPrice(t, "11.00"), 2) // win: +1.00/share
	l.RecordFill("o3", 1, common.Bid, 10, mustPrice(t, "11.00"), 3)
	l.RecordFill("o4", 1, common.Ask, 10, mustPrice(t, "10.50"), 4) // loss: -0.50/share

	m := l.Metrics()
	assert.Equal(t, 4, m.NumTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.InDelta(t, 2.0, m.ProfitFactor, 1e-9) // 1.00 gross profit / 0.50 gross loss
}

func TestLedger_ProfitFactorIsInfWithNoLosses(t *testing.T) {
	l := New(Config{InitialCapital: 0}, zerolog.Nop())
	l.RecordFill("o1", 1, common.Bid, 10, mustPrice(t, "10.00"), 1)
	l.RecordFill("o2", 1, common.Ask, 10, mustPrice(t, "11.00"), 2)

	m := l.Metrics()
	assert.True(t, m.ProfitFactor > 1e300)
}

func TestWriteTradesCSV_HeaderAndRows(t *testing.T) {
	l := New(Config{InitialCapital: 0}, zerolog.Nop())
	names := symbol.New()
	sym := names.Intern("AAPL")
	l.RecordFill("o1", sym, common.Bid, 10, mustPrice(t, "10.00"), 1)

	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, l.Trades(), names))

	out := buf.String()
	assert.Contains(t, out, "trade_id,order_id,symbol,side,qty,price,ts,pnl")
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "BID")
}

func TestWritePerformanceSummary_ProducesValidJSON(t *testing.T) {
	l := New(Config{InitialCapital: 1000 * 10000}, zerolog.Nop())
	names := symbol.New()
	sym := names.Intern("AAPL")
	l.RecordFill("o1", sym, common.Bid, 10, mustPrice(t, "10.00"), 1)
	l.MarkMid(sym, mustPrice(t, "10.50"))

	var buf bytes.Buffer
	require.NoError(t, WritePerformanceSummary(&buf, l, names))
	assert.Contains(t, buf.String(), "\"symbol\": \"AAPL\"")
}
