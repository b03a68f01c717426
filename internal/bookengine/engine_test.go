package bookengine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"vidar/internal/bus"
	"vidar/internal/common"
	"vidar/internal/event"
	"vidar/internal/symbol"
)

func newTestEngine() *Engine {
	return New(symbol.New(), Config{}, zerolog.Nop())
}

func addEvent(ts, ref uint64, sym string, side common.Side, priceStr string, qty common.Qty) event.Event {
	p, _ := common.ParsePrice(priceStr)
	return event.Event{TS: ts, Kind: event.KindAdd, Add: event.Add{Ref: ref, Symbol: sym, Side: side, Price: p, Qty: qty}}
}

func TestEngine_AddEmitsUpdateOnBestPriceChange(t *testing.T) {
	e := newTestEngine()
	tb := new(tomb.Tomb)
	out := bus.New[Update](4)

	require.NoError(t, e.Apply(tb, out, addEvent(1, 1, "AAPL", common.Bid, "99.00", 100)))

	upd, ok, err := out.Recv(tb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, upd.HasBid)
	assert.False(t, upd.HasAsk)
	assert.Equal(t, common.Qty(100), upd.BidDepth)
}

func TestEngine_DeleteRemovesFromBookAndRegistry(t *testing.T) {
	e := newTestEngine()
	tb := new(tomb.Tomb)
	out := bus.New[Update](4)

	require.NoError(t, e.Apply(tb, out, addEvent(1, 1, "AAPL", common.Bid, "99.00", 100)))
	_, _, err := out.Recv(tb)
	require.NoError(t, err)

	require.NoError(t, e.Apply(tb, out, event.Event{TS: 2, Kind: event.KindDelete, Delete: event.Delete{Ref: 1}}))
	upd, ok, err := out.Recv(tb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, upd.HasBid)
	assert.Equal(t, 0, e.RegistryLen())
}

func TestEngine_DuplicateRefAddIsRejected(t *testing.T) {
	e := newTestEngine()
	tb := new(tomb.Tomb)
	out := bus.New[Update](4)

	require.NoError(t, e.Apply(tb, out, addEvent(1, 1, "AAPL", common.Bid, "99.00", 100)))
	_, _, err := out.Recv(tb)
	require.NoError(t, err)

	require.NoError(t, e.Apply(tb, out, addEvent(2, 1, "AAPL", common.Bid, "98.00", 50)))
	assert.Equal(t, 1, e.RegistryLen())
	assert.Equal(t, uint64(1), e.Stats().Rejected)
}

func TestEngine_ExecuteCapsAtRemainingOnUnderflow(t *testing.T) {
	e := newTestEngine()
	tb := new(tomb.Tomb)
	out := bus.New[Update](4)

	require.NoError(t, e.Apply(tb, out, addEvent(1, 1, "AAPL", common.Bid, "99.00", 30)))
	_, _, err := out.Recv(tb)
	require.NoError(t, err)

	require.NoError(t, e.Apply(tb, out, event.Event{TS: 2, Kind: event.KindExecute, Execute: event.Execute{Ref: 1, Qty: 100}}))
	upd, ok, err := out.Recv(tb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, upd.HasBid)
	assert.Equal(t, 0, e.RegistryLen())
}

func TestEngine_ReplaceMovesOrderToNewPrice(t *testing.T) {
	e := newTestEngine()
	tb := new(tomb.Tomb)
	out := bus.New[Update](4)

	require.NoError(t, e.Apply(tb, out, addEvent(1, 1, "AAPL", common.Bid, "99.00", 100)))
	_, _, err := out.Recv(tb)
	require.NoError(t, err)

	newPrice, _ := common.ParsePrice("99.50")
	require.NoError(t, e.Apply(tb, out, event.Event{
		TS: 2, Kind: event.KindReplace,
		Replace: event.Replace{OldRef: 1, NewRef: 2, NewPrice: newPrice, NewQty: 60},
	}))
	upd, ok, err := out.Recv(tb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newPrice, upd.BestBid)
	assert.Equal(t, common.Qty(60), upd.BidDepth)

	rec, err := e.registry.Get(2)
	require.NoError(t, err)
	assert.Equal(t, common.Qty(60), rec.Remaining)
}

func TestEngine_UnknownRefDeleteIsDroppedNotPanicking(t *testing.T) {
	e := newTestEngine()
	tb := new(tomb.Tomb)
	out := bus.New[Update](4)

	assert.NotPanics(t, func() {
		require.NoError(t, e.Apply(tb, out, event.Event{TS: 1, Kind: event.KindDelete, Delete: event.Delete{Ref: 99}}))
	})
	assert.Equal(t, uint64(1), e.Stats().Rejected)
}

func TestEngine_SnapshotReflectsCurrentTopOfBook(t *testing.T) {
	e := newTestEngine()
	tb := new(tomb.Tomb)
	out := bus.New[Update](4)

	require.NoError(t, e.Apply(tb, out, addEvent(1, 1, "AAPL", common.Bid, "99.00", 100)))
	_, _, err := out.Recv(tb)
	require.NoError(t, err)
	require.NoError(t, e.Apply(tb, out, addEvent(2, 2, "AAPL", common.Ask, "100.00", 50)))
	_, _, err = out.Recv(tb)
	require.NoError(t, err)

	sym := e.Interner().Intern("AAPL")
	snap := e.Snapshot(sym)
	assert.True(t, snap.HasBid)
	assert.True(t, snap.HasAsk)
	assert.Equal(t, common.Qty(100), snap.BidVolume)
	assert.Equal(t, common.Qty(50), snap.AskVolume)
}
