package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

func TestBus_FIFOOrderingPreserved(t *testing.T) {
	b := New[int](8)
	tb := new(tomb.Tomb)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Send(tb, i))
	}
	for i := 0; i < 5; i++ {
		v, ok, err := b.Recv(tb)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestBus_EndOfStreamArrivesAfterAllRealValues(t *testing.T) {
	b := New[string](8)
	tb := new(tomb.Tomb)

	require.NoError(t, b.Send(tb, "a"))
	require.NoError(t, b.Send(tb, "b"))
	require.NoError(t, b.SendEnd(tb))

	v, ok, err := b.Recv(tb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok, err = b.Recv(tb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok, err = b.Recv(tb)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBus_SendBlocksWhenFullAndUnblocksOnDying(t *testing.T) {
	b := New[int](1)
	tb := new(tomb.Tomb)

	require.NoError(t, b.Send(tb, 1)) // fills the single slot

	done := make(chan error, 1)
	tb.Go(func() error {
		done <- b.Send(tb, 2)
		return nil
	})

	select {
	case <-done:
		t.Fatal("Send should have blocked on a full buffer")
	case <-time.After(50 * time.Millisecond):
	}

	tb.Kill(nil)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Send did not unblock after tomb died")
	}
}

func TestBus_NewClampsNonPositiveCapacity(t *testing.T) {
	b := New[int](0)
	assert.Equal(t, 1, cap(b.ch))
}
