package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidar/internal/common"
)

func TestRegistry_InsertGet(t *testing.T) {
	r := New()
	rec := Record{Ref: 1, Symbol: 7, Side: common.Bid, Price: 99_0000, Remaining: 100, ArrivalTS: 42}
	require.NoError(t, r.Insert(rec))

	got, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_InsertDuplicateRefFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Insert(Record{Ref: 1, Remaining: 10}))
	err := r.Insert(Record{Ref: 1, Remaining: 5})
	assert.ErrorIs(t, err, ErrDuplicateRef)
}

func TestRegistry_GetUnknownRefFails(t *testing.T) {
	r := New()
	_, err := r.Get(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_DecrementReducesThenRemoves(t *testing.T) {
	r := New()
	require.NoError(t, r.Insert(Record{Ref: 1, Remaining: 100}))

	outcome, remaining, err := r.Decrement(1, 40)
	require.NoError(t, err)
	assert.Equal(t, Reduced, outcome)
	assert.Equal(t, common.Qty(60), remaining)

	outcome, remaining, err = r.Decrement(1, 60)
	require.NoError(t, err)
	assert.Equal(t, Removed, outcome)
	assert.Equal(t, common.Qty(0), remaining)

	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DecrementUnderflowFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Insert(Record{Ref: 1, Remaining: 10}))

	_, _, err := r.Decrement(1, 20)
	assert.ErrorIs(t, err, ErrUnderflow)

	got, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, common.Qty(10), got.Remaining, "failed decrement must not mutate state")
}

func TestRegistry_DecrementUnknownRefFails(t *testing.T) {
	r := New()
	_, _, err := r.Decrement(1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_RemoveUnknownRefFails(t *testing.T) {
	r := New()
	_, err := r.Remove(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ReplaceMovesRefAtomically(t *testing.T) {
	r := New()
	require.NoError(t, r.Insert(Record{Ref: 1, Symbol: 3, Side: common.Ask, Price: 100_0000, Remaining: 50, ArrivalTS: 1}))

	rec, err := r.Replace(1, 2, 101_0000, 75, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Ref)
	assert.Equal(t, common.Price(101_0000), rec.Price)
	assert.Equal(t, common.Qty(75), rec.Remaining)

	_, err = r.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := r.Get(2)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestRegistry_ReplaceUnknownOldRefFails(t *testing.T) {
	r := New()
	_, err := r.Replace(1, 2, 100, 10, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ReplaceDuplicateNewRefFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Insert(Record{Ref: 1, Remaining: 10}))
	require.NoError(t, r.Insert(Record{Ref: 2, Remaining: 10}))

	_, err := r.Replace(1, 2, 100, 5, 0)
	assert.ErrorIs(t, err, ErrDuplicateRef)

	got, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, common.Qty(10), got.Remaining, "failed replace must not mutate the old record")
}
