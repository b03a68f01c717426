// Package bus implements MarketDataBus: a bounded, single-producer/
// single-consumer FIFO channel carrying BookUpdate values followed by
// exactly one EndOfStream sentinel. Backpressure is the channel's own:
// Send blocks once the buffer is full.
//
// Cancellation follows the teacher's pattern (internal/worker.go,
// internal/net/server.go): every blocking call selects on a *tomb.Tomb's
// Dying() channel so producer and consumer unblock promptly on shutdown.
package bus

import (
	"errors"

	tomb "gopkg.in/tomb.v2"
)

// ErrClosed is returned by Send/Recv when the owning tomb is dying.
var ErrClosed = errors.New("bus: closed")

// envelope wraps a payload with the end-of-stream marker so the sentinel
// travels through the same FIFO channel as real updates — never a separate
// channel, which would risk the consumer observing it out of order.
type envelope[T any] struct {
	value T
	end   bool
}

// Bus is a bounded FIFO of T, single producer / single consumer.
type Bus[T any] struct {
	ch chan envelope[T]
}

// New returns a Bus with the given buffer capacity.
func New[T any](capacity int) *Bus[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus[T]{ch: make(chan envelope[T], capacity)}
}

// Send delivers v to the consumer, blocking while the buffer is full
// (backpressure). It returns ErrClosed if t starts dying first.
func (b *Bus[T]) Send(t *tomb.Tomb, v T) error {
	select {
	case b.ch <- envelope[T]{value: v}:
		return nil
	case <-t.Dying():
		return ErrClosed
	}
}

// SendEnd delivers the EndOfStream sentinel. It must be called exactly once,
// after the last real Send, by the single producer.
func (b *Bus[T]) SendEnd(t *tomb.Tomb) error {
	select {
	case b.ch <- envelope[T]{end: true}:
		return nil
	case <-t.Dying():
		return ErrClosed
	}
}

// Recv blocks for the next value. ok is false once the EndOfStream sentinel
// has been observed, at which point the consumer must stop calling Recv.
func (b *Bus[T]) Recv(t *tomb.Tomb) (value T, ok bool, err error) {
	select {
	case env := <-b.ch:
		if env.end {
			var zero T
			return zero, false, nil
		}
		return env.value, true, nil
	case <-t.Dying():
		var zero T
		return zero, false, ErrClosed
	}
}
