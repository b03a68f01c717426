// Package ingest provides the minimal reader that turns a tagged event
// record into event.Event values. Each input line is one flat JSON object:
// "ts", a "kind" tag (add, delete, execute, cancel, replace) and that kind's
// fields at the top level; a nested "body" object is not read. Full JSON
// ingest (schema versioning, multi-format
// support) is out of scope; this is a single, correct reader for the one
// documented shape, with the malformed-record handling spec.md §7 requires.
package ingest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"vidar/internal/common"
	"vidar/internal/event"
)

// wireEvent mirrors the documented decoded-event record. Price fields are
// decimal strings per spec.md §6 and are converted losslessly via
// common.ParsePrice.
type wireEvent struct {
	TS   uint64 `json:"ts"`
	Kind string `json:"kind"`

	Ref      uint64 `json:"ref"`
	OldRef   uint64 `json:"old_ref"`
	NewRef   uint64 `json:"new_ref"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	NewPrice string `json:"new_price"`
	Qty      uint32 `json:"qty"`
	NewQty   uint32 `json:"new_qty"`
}

func parseSide(s string) (common.Side, error) {
	switch s {
	case "bid", "buy":
		return common.Bid, nil
	case "ask", "sell":
		return common.Ask, nil
	default:
		return 0, fmt.Errorf("ingest: unknown side %q", s)
	}
}

func (w wireEvent) toEvent() (event.Event, error) {
	ev := event.Event{TS: w.TS}

	switch w.Kind {
	case "add":
		side, err := parseSide(w.Side)
		if err != nil {
			return event.Event{}, err
		}
		price, err := common.ParsePrice(w.Price)
		if err != nil {
			return event.Event{}, fmt.Errorf("ingest: price: %w", err)
		}
		ev.Kind = event.KindAdd
		ev.Add = event.Add{Ref: w.Ref, Symbol: w.Symbol, Side: side, Price: price, Qty: common.Qty(w.Qty)}
	case "delete":
		ev.Kind = event.KindDelete
		ev.Delete = event.Delete{Ref: w.Ref}
	case "execute":
		ev.Kind = event.KindExecute
		ev.Execute = event.Execute{Ref: w.Ref, Qty: common.Qty(w.Qty)}
	case "cancel":
		ev.Kind = event.KindCancel
		ev.Cancel = event.Cancel{Ref: w.Ref, Qty: common.Qty(w.Qty)}
	case "replace":
		price, err := common.ParsePrice(w.NewPrice)
		if err != nil {
			return event.Event{}, fmt.Errorf("ingest: new_price: %w", err)
		}
		ev.Kind = event.KindReplace
		ev.Replace = event.Replace{OldRef: w.OldRef, NewRef: w.NewRef, NewPrice: price, NewQty: common.Qty(w.NewQty)}
	default:
		return event.Event{}, fmt.Errorf("ingest: unknown event kind %q", w.Kind)
	}
	return ev, nil
}

// Decoder reads one JSON-encoded decoded-event record per line.
type Decoder struct {
	scan    *bufio.Scanner
	log     zerolog.Logger
	skipped uint64
}

func NewDecoder(r io.Reader, log zerolog.Logger) *Decoder {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Decoder{scan: scan, log: log.With().Str("component", "ingest").Logger()}
}

// ErrEndOfStream is returned once the underlying reader is exhausted.
var ErrEndOfStream = errors.New("ingest: end of stream")

// Skipped returns the number of malformed records discarded so far
// (spec.md §7: "DecodeError | event decoder | Skip event, increment
// counter, continue.").
func (d *Decoder) Skipped() uint64 {
	return d.skipped
}

// Next returns the next decoded event, or ErrEndOfStream at normal EOF. A
// malformed record is logged, counted, and skipped rather than returned —
// only a genuine scanner/I/O failure is fatal.
func (d *Decoder) Next() (event.Event, error) {
	for d.scan.Scan() {
		line := d.scan.Bytes()
		if len(line) == 0 {
			continue
		}
		var w wireEvent
		if err := json.Unmarshal(line, &w); err != nil {
			d.skipped++
			d.log.Warn().Err(err).Msg("skipping malformed record")
			continue
		}
		ev, err := w.toEvent()
		if err != nil {
			d.skipped++
			d.log.Warn().Err(err).Msg("skipping malformed record")
			continue
		}
		return ev, nil
	}
	if err := d.scan.Err(); err != nil {
		return event.Event{}, fmt.Errorf("ingest: read: %w", err)
	}
	return event.Event{}, ErrEndOfStream
}
