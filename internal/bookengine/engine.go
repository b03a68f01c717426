// Package bookengine implements BookEngine: the sole writer of the
// OrderRegistry and every symbol's PriceLevelBook. It applies decoded
// events strictly in input order and emits an Update after each applied
// event that changes top-of-book, per the emission policy in spec.md §3.
package bookengine

import (
	"sync"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"vidar/internal/book"
	"vidar/internal/bus"
	"vidar/internal/common"
	"vidar/internal/event"
	"vidar/internal/registry"
	"vidar/internal/symbol"
)

// Stats mirrors the message_counts tracked by
// original_source/order_book_simulator/order_book.py, surfaced for
// diagnostics and tests. Total counts every event, rejected ones included.
type Stats struct {
	Add, Delete, Execute, Cancel, Replace, Rejected, Total uint64
}

// symbolEntry pairs one symbol's book with the lock that makes its
// registry+book mutation externally atomic (spec.md §5). A single BookEngine
// goroutine is the only writer; the lock exists so Snapshot can be called
// concurrently from diagnostics/tests without racing Apply.
type symbolEntry struct {
	mu   sync.RWMutex
	book *book.Book

	lastBestBid  common.Price
	hasBestBid   bool
	lastBestAsk  common.Price
	hasBestAsk   bool
	lastBidDepth common.Qty
	lastAskDepth common.Qty
	lastEmitTS   uint64
}

// Engine owns all symbols' books and the shared OrderRegistry.
type Engine struct {
	mu       sync.Mutex // guards creation of new symbolEntry values
	symbols  map[common.SymbolId]*symbolEntry
	registry *registry.Registry
	interner *symbol.Interner

	depthLevels       int
	historyCap        int
	emissionIntervalNS uint64

	statsMu sync.Mutex
	stats   Stats

	log zerolog.Logger
}

// Config controls emission/query policy; zero values take sane defaults.
type Config struct {
	DepthLevels        int    // top-N levels summed for BidDepth/AskDepth; default 1
	HistoryCapacity    int    // default book.DefaultHistoryCapacity
	EmissionIntervalNS uint64 // 0 = emit only on change
}

// New returns an Engine sharing the given symbol interner.
func New(interner *symbol.Interner, cfg Config, log zerolog.Logger) *Engine {
	if cfg.DepthLevels <= 0 {
		cfg.DepthLevels = 1
	}
	return &Engine{
		symbols:            make(map[common.SymbolId]*symbolEntry),
		registry:           registry.New(),
		interner:           interner,
		depthLevels:        cfg.DepthLevels,
		historyCap:         cfg.HistoryCapacity,
		emissionIntervalNS: cfg.EmissionIntervalNS,
		log:                log.With().Str("component", "bookengine").Logger(),
	}
}

func (e *Engine) entry(sym common.SymbolId) *symbolEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	se, ok := e.symbols[sym]
	if !ok {
		se = &symbolEntry{book: book.New(e.historyCap)}
		e.symbols[sym] = se
	}
	return se
}

func (e *Engine) bumpStat(f func(*Stats)) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	f(&e.stats)
	e.stats.Total++
}

// Stats returns a copy of the running message-type counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Apply applies one decoded event and, if the emission policy in spec.md §3
// is satisfied, sends an Update on the bus. It returns ErrClosed if t is
// dying while blocked on backpressure.
func (e *Engine) Apply(t *tomb.Tomb, out *bus.Bus[Update], ev event.Event) error {
	switch ev.Kind {
	case event.KindAdd:
		return e.applyAdd(t, out, ev.TS, ev.Add)
	case event.KindDelete:
		return e.applyDelete(t, out, ev.TS, ev.Delete)
	case event.KindExecute:
		return e.applyExecute(t, out, ev.TS, ev.Execute)
	case event.KindCancel:
		return e.applyCancel(t, out, ev.TS, ev.Cancel)
	case event.KindReplace:
		return e.applyReplace(t, out, ev.TS, ev.Replace)
	}
	return nil
}

func (e *Engine) applyAdd(t *tomb.Tomb, out *bus.Bus[Update], ts uint64, a event.Add) error {
	if a.Price <= 0 || a.Qty == 0 {
		e.log.Warn().Uint64("ref", a.Ref).Msg("rejecting Add with non-positive price/qty")
		e.bumpStat(func(s *Stats) { s.Rejected++ })
		return nil
	}
	sym := e.interner.Intern(a.Symbol)
	se := e.entry(sym)

	se.mu.Lock()
	err := e.registry.Insert(registry.Record{
		Ref:       a.Ref,
		Symbol:    sym,
		Side:      a.Side,
		Price:     a.Price,
		Remaining: a.Qty,
		ArrivalTS: ts,
	})
	if err != nil {
		se.mu.Unlock()
		e.log.Warn().Uint64("ref", a.Ref).Err(err).Msg("duplicate ref on Add")
		e.bumpStat(func(s *Stats) { s.Rejected++ })
		return nil
	}
	se.book.Add(a.Side, a.Price, a.Qty)
	se.mu.Unlock()

	e.bumpStat(func(s *Stats) { s.Add++ })
	return e.maybeEmit(t, out, sym, se, ts)
}

func (e *Engine) applyDelete(t *tomb.Tomb, out *bus.Bus[Update], ts uint64, d event.Delete) error {
	rec, err := e.registry.Remove(d.Ref)
	if err != nil {
		e.log.Debug().Uint64("ref", d.Ref).Msg("delete of unknown ref, dropped")
		e.bumpStat(func(s *Stats) { s.Rejected++ })
		return nil
	}
	se := e.entry(rec.Symbol)
	se.mu.Lock()
	se.book.Remove(rec.Side, rec.Price, rec.Remaining)
	se.mu.Unlock()

	e.bumpStat(func(s *Stats) { s.Delete++ })
	return e.maybeEmit(t, out, rec.Symbol, se, ts)
}

func (e *Engine) applyExecute(t *tomb.Tomb, out *bus.Bus[Update], ts uint64, x event.Execute) error {
	return e.applyReduction(t, out, ts, x.Ref, x.Qty, func(s *Stats) { s.Execute++ })
}

func (e *Engine) applyCancel(t *tomb.Tomb, out *bus.Bus[Update], ts uint64, c event.Cancel) error {
	return e.applyReduction(t, out, ts, c.Ref, c.Qty, func(s *Stats) { s.Cancel++ })
}

// applyReduction is the shared Execute/Cancel path: decrement the registry
// and mirror the (possibly capped) amount into the book, per spec.md §4.3.
func (e *Engine) applyReduction(t *tomb.Tomb, out *bus.Bus[Update], ts uint64, ref uint64, qty common.Qty, bump func(*Stats)) error {
	rec, err := e.registry.Get(ref)
	if err != nil {
		e.log.Debug().Uint64("ref", ref).Msg("reduction against unknown ref, dropped")
		e.bumpStat(func(s *Stats) { s.Rejected++ })
		return nil
	}

	applied := qty
	if applied > rec.Remaining {
		e.log.Warn().Uint64("ref", ref).Uint32("requested", uint32(qty)).Uint32("remaining", uint32(rec.Remaining)).
			Msg("book underflow, capping at remaining")
		applied = rec.Remaining
	}

	se := e.entry(rec.Symbol)
	se.mu.Lock()
	if _, _, err := e.registry.Decrement(ref, applied); err != nil {
		se.mu.Unlock()
		return nil
	}
	se.book.Remove(rec.Side, rec.Price, applied)
	se.mu.Unlock()

	e.bumpStat(bump)
	return e.maybeEmit(t, out, rec.Symbol, se, ts)
}

func (e *Engine) applyReplace(t *tomb.Tomb, out *bus.Bus[Update], ts uint64, r event.Replace) error {
	old, err := e.registry.Get(r.OldRef)
	if err != nil {
		e.log.Warn().Uint64("oldRef", r.OldRef).Msg("replace of unknown ref, ignored")
		e.bumpStat(func(s *Stats) { s.Rejected++ })
		return nil
	}
	if r.NewPrice <= 0 || r.NewQty == 0 {
		e.log.Warn().Uint64("oldRef", r.OldRef).Msg("rejecting Replace with non-positive price/qty")
		e.bumpStat(func(s *Stats) { s.Rejected++ })
		return nil
	}

	se := e.entry(old.Symbol)
	se.mu.Lock()
	if _, err := e.registry.Replace(r.OldRef, r.NewRef, r.NewPrice, r.NewQty, ts); err != nil {
		se.mu.Unlock()
		e.log.Warn().Uint64("oldRef", r.OldRef).Uint64("newRef", r.NewRef).Err(err).Msg("replace failed, no state mutated")
		e.bumpStat(func(s *Stats) { s.Rejected++ })
		return nil
	}
	se.book.Remove(old.Side, old.Price, old.Remaining)
	se.book.Add(old.Side, r.NewPrice, r.NewQty)
	se.mu.Unlock()

	e.bumpStat(func(s *Stats) { s.Replace++ })
	return e.maybeEmit(t, out, old.Symbol, se, ts)
}

// maybeEmit implements the emission policy from spec.md §3: emit only when
// best_bid/best_ask changed, top-of-book volume changed, or the periodic
// tick interval has elapsed since the last emission for this symbol.
func (e *Engine) maybeEmit(t *tomb.Tomb, out *bus.Bus[Update], sym common.SymbolId, se *symbolEntry, ts uint64) error {
	se.mu.RLock()
	bestBid, hasBid := se.book.Best(common.Bid)
	bestAsk, hasAsk := se.book.Best(common.Ask)
	bidDepth := se.book.TopDepth(common.Bid, e.depthLevels)
	askDepth := se.book.TopDepth(common.Ask, e.depthLevels)
	se.book.RecordHistory(ts)
	se.mu.RUnlock()

	changed := hasBid != se.hasBestBid || hasAsk != se.hasBestAsk ||
		(hasBid && bestBid != se.lastBestBid) || (hasAsk && bestAsk != se.lastBestAsk) ||
		bidDepth != se.lastBidDepth || askDepth != se.lastAskDepth

	periodic := e.emissionIntervalNS > 0 && ts-se.lastEmitTS >= e.emissionIntervalNS

	if !changed && !periodic {
		return nil
	}

	se.lastBestBid, se.hasBestBid = bestBid, hasBid
	se.lastBestAsk, se.hasBestAsk = bestAsk, hasAsk
	se.lastBidDepth, se.lastAskDepth = bidDepth, askDepth
	se.lastEmitTS = ts

	return out.Send(t, newUpdate(ts, sym, bestBid, bestAsk, hasBid, hasAsk, bidDepth, askDepth))
}

// Snapshot is a point-in-time read of a symbol's book, for diagnostics and
// tests — distinct from the streamed Update, which is
// push rather than pull (SPEC_FULL.md §4.7).
type Snapshot struct {
	Symbol       common.SymbolId
	BestBid      common.Price
	HasBid       bool
	BestAsk      common.Price
	HasAsk       bool
	BidVolume    common.Qty
	AskVolume    common.Qty
	BidLevels    int
	AskLevels    int
	Imbalance    float64
}

// Snapshot returns the current state of sym's book. Symbols never seen
// return a zero Snapshot with HasBid/HasAsk false.
func (e *Engine) Snapshot(sym common.SymbolId) Snapshot {
	e.mu.Lock()
	se, ok := e.symbols[sym]
	e.mu.Unlock()
	if !ok {
		return Snapshot{Symbol: sym}
	}

	se.mu.RLock()
	defer se.mu.RUnlock()
	bestBid, hasBid := se.book.Best(common.Bid)
	bestAsk, hasAsk := se.book.Best(common.Ask)
	bidVol := se.book.TopDepth(common.Bid, se.book.LevelCount(common.Bid))
	askVol := se.book.TopDepth(common.Ask, se.book.LevelCount(common.Ask))

	snap := Snapshot{
		Symbol:    sym,
		BestBid:   bestBid,
		HasBid:    hasBid,
		BestAsk:   bestAsk,
		HasAsk:    hasAsk,
		BidVolume: bidVol,
		AskVolume: askVol,
		BidLevels: se.book.LevelCount(common.Bid),
		AskLevels: se.book.LevelCount(common.Ask),
	}
	total := int64(bidVol) + int64(askVol)
	if total > 0 {
		snap.Imbalance = float64(int64(bidVol)-int64(askVol)) / float64(total)
	}
	return snap
}

// History returns sym's bounded best-price trail, oldest first.
func (e *Engine) History(sym common.SymbolId) []book.HistoryPoint {
	e.mu.Lock()
	se, ok := e.symbols[sym]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	se.mu.RLock()
	defer se.mu.RUnlock()
	return se.book.History()
}

// Interner exposes the shared symbol table so callers can map SymbolId back
// to the original ticker string.
func (e *Engine) Interner() *symbol.Interner {
	return e.interner
}

// RegistryLen returns the number of live order records, for tests.
func (e *Engine) RegistryLen() int {
	return e.registry.Len()
}
