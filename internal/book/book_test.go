package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidar/internal/common"
)

func price(t *testing.T, s string) common.Price {
	t.Helper()
	p, err := common.ParsePrice(s)
	require.NoError(t, err)
	return p
}

func TestBook_BestTracksTopOfBookAfterAddsAndRemoves(t *testing.T) {
	b := New(0)

	_, ok := b.Best(common.Bid)
	assert.False(t, ok)

	b.Add(common.Bid, price(t, "99.00"), 100)
	b.Add(common.Bid, price(t, "99.50"), 50)
	b.Add(common.Bid, price(t, "98.00"), 80)

	best, ok := b.Best(common.Bid)
	require.True(t, ok)
	assert.Equal(t, price(t, "99.50"), best)

	b.Remove(common.Bid, price(t, "99.50"), 50)
	best, ok = b.Best(common.Bid)
	require.True(t, ok)
	assert.Equal(t, price(t, "99.00"), best)
}

func TestBook_AskBestIsLowestPrice(t *testing.T) {
	b := New(0)
	b.Add(common.Ask, price(t, "101.00"), 20)
	b.Add(common.Ask, price(t, "100.00"), 90)
	b.Add(common.Ask, price(t, "100.50"), 10)

	best, ok := b.Best(common.Ask)
	require.True(t, ok)
	assert.Equal(t, price(t, "100.00"), best)
}

func TestBook_LevelErasedAtZeroVolume(t *testing.T) {
	b := New(0)
	b.Add(common.Bid, price(t, "99.00"), 100)
	b.Remove(common.Bid, price(t, "99.00"), 100)

	_, ok := b.Best(common.Bid)
	assert.False(t, ok)
	assert.Equal(t, 0, b.LevelCount(common.Bid))
}

func TestBook_RemoveBelowZeroStillErases(t *testing.T) {
	b := New(0)
	b.Add(common.Bid, price(t, "99.00"), 50)
	b.Remove(common.Bid, price(t, "99.00"), 80)

	assert.Equal(t, 0, b.LevelCount(common.Bid))
}

func TestBook_RemoveOnEmptySideIsNoop(t *testing.T) {
	b := New(0)
	assert.NotPanics(t, func() {
		b.Remove(common.Bid, price(t, "99.00"), 10)
	})
}

func TestBook_TopDepthSumsNLevels(t *testing.T) {
	b := New(0)
	b.Add(common.Bid, price(t, "99.50"), 50)
	b.Add(common.Bid, price(t, "99.00"), 100)
	b.Add(common.Bid, price(t, "98.00"), 80)

	assert.Equal(t, common.Qty(50), b.TopDepth(common.Bid, 1))
	assert.Equal(t, common.Qty(150), b.TopDepth(common.Bid, 2))
	assert.Equal(t, common.Qty(230), b.TopDepth(common.Bid, 10))
}

func TestBook_TopDepthEmptySideIsZero(t *testing.T) {
	b := New(0)
	assert.Equal(t, common.Qty(0), b.TopDepth(common.Ask, 5))
}

func TestBook_HistoryWrapsAtCapacity(t *testing.T) {
	b := New(2)
	b.Add(common.Bid, price(t, "1.00"), 10)
	b.RecordHistory(1)
	b.Add(common.Bid, price(t, "2.00"), 10)
	b.RecordHistory(2)
	b.Add(common.Bid, price(t, "3.00"), 10)
	b.RecordHistory(3)

	hist := b.History()
	require.Len(t, hist, 2)
	assert.Equal(t, uint64(2), hist[0].TS)
	assert.Equal(t, uint64(3), hist[1].TS)
}
