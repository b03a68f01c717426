// Command replay is the composition root: it wires the BookEngine and
// StrategyEngine across a MarketDataBus, drains a decoded event stream into
// the book, and writes the trade CSV and performance-summary JSON on exit.
// Grounded on the teacher's cmd/server/server.go (signal.NotifyContext +
// tomb.WithContext) generalized from a TCP listener to a replay pipeline.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"vidar/internal/bookengine"
	"vidar/internal/bus"
	"vidar/internal/config"
	"vidar/internal/event"
	"vidar/internal/ingest"
	"vidar/internal/ledger"
	"vidar/internal/strategy"
	"vidar/internal/symbol"
	"vidar/internal/workerpool"
)

const (
	exitNormal = 0
	exitIOOrDecode = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Error().Err(err).Msg("configuration error")
		return exitConfig
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	t, _ := tomb.WithContext(ctx)

	names := symbol.New()
	l := ledger.New(ledger.Config{InitialCapital: cfg.Strategy.InitialCapital}, log)
	engine := bookengine.New(names, bookengine.Config{
		DepthLevels:        cfg.Bus.DepthLevels,
		EmissionIntervalNS: cfg.Bus.EmissionTickIntervalNS,
	}, log)
	strat := strategy.New(cfg.Strategy, l, log)

	events := bus.New[event.Event](int(cfg.Bus.Capacity))
	updates := bus.New[bookengine.Update](int(cfg.Bus.Capacity))

	pool := workerpool.New(2, log)
	pool.Run(t, func(t *tomb.Tomb, task any) error {
		if tick, ok := task.(string); ok && tick == "report" {
			writeReports(l, names, log)
		}
		return nil
	})
	t.Go(func() error { return periodicReport(t, pool) })

	t.Go(func() error { return engine.Run(t, events, updates) })

	// strat.Run is the pipeline's final consumer; once it drains
	// EndOfStream the replay is complete, so its return kills the tomb and
	// stops the ancillary report ticker and worker pool.
	t.Go(func() error {
		err := strat.Run(t, updates)
		t.Kill(nil)
		return err
	})

	decodeErrCh := make(chan error, 1)
	t.Go(func() error {
		err := feedEvents(t, events, log)
		decodeErrCh <- err
		return err
	})

	pipelineErr := t.Wait()
	writeReports(l, names, log)

	decodeErr := <-decodeErrCh
	if decodeErr != nil && decodeErr != ingest.ErrEndOfStream {
		log.Error().Err(decodeErr).Msg("replay terminated abnormally")
		return exitIOOrDecode
	}
	if pipelineErr != nil && pipelineErr != bus.ErrClosed {
		log.Error().Err(pipelineErr).Msg("pipeline terminated abnormally")
		return exitIOOrDecode
	}
	return exitNormal
}

// feedEvents decodes the event stream from stdin and sends each event onto
// the bus in order, terminating the bus with EndOfStream.
func feedEvents(t *tomb.Tomb, out *bus.Bus[event.Event], log zerolog.Logger) error {
	dec := ingest.NewDecoder(os.Stdin, log)
	defer func() {
		if n := dec.Skipped(); n > 0 {
			log.Warn().Uint64("skipped", n).Msg("malformed records discarded during replay")
		}
	}()
	for {
		ev, err := dec.Next()
		if err != nil {
			out.SendEnd(t)
			if err == ingest.ErrEndOfStream {
				return nil
			}
			return err
		}
		if err := out.Send(t, ev); err != nil {
			return err
		}
	}
}

// periodicReport is the wall-clock reporting loop from spec.md §5: separate
// from the data path, with no dependency on event throughput.
func periodicReport(t *tomb.Tomb, pool *workerpool.Pool) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			pool.Submit(t, "report")
		}
	}
}

func writeReports(l *ledger.Ledger, names *symbol.Interner, log zerolog.Logger) {
	tradesFile, err := os.Create("trades.csv")
	if err != nil {
		log.Error().Err(err).Msg("could not open trades.csv")
	} else {
		defer tradesFile.Close()
		if err := ledger.WriteTradesCSV(tradesFile, l.Trades(), names); err != nil {
			log.Error().Err(err).Msg("could not write trades.csv")
		}
	}

	summaryFile, err := os.Create("performance.json")
	if err != nil {
		log.Error().Err(err).Msg("could not open performance.json")
		return
	}
	defer summaryFile.Close()
	if err := ledger.WritePerformanceSummary(summaryFile, l, names); err != nil {
		log.Error().Err(err).Msg("could not write performance.json")
	}
}
