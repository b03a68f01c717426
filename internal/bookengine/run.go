package bookengine

import (
	tomb "gopkg.in/tomb.v2"

	"vidar/internal/bus"
	"vidar/internal/event"
)

// Run drains in, applying every event strictly in arrival order (the input
// order is total across all symbols, per spec.md §4.2), emitting Updates on
// out, then forwards the EndOfStream sentinel once in is drained. Run
// returns when in signals end-of-stream, t starts dying, or an unrecoverable
// send error occurs.
func (e *Engine) Run(t *tomb.Tomb, in *bus.Bus[event.Event], out *bus.Bus[Update]) error {
	for {
		ev, ok, err := in.Recv(t)
		if err != nil {
			return err
		}
		if !ok {
			return out.SendEnd(t)
		}
		if err := e.Apply(t, out, ev); err != nil {
			return err
		}
	}
}
