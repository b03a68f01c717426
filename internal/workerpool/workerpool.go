// Package workerpool runs a fixed-size pool of background workers pulling
// tasks off a shared queue, adapted from the teacher's internal/worker.go.
// It is used for the Ledger's flush writer and for the wall-clock periodic
// reporting loop (spec.md §5: "Wall-clock periodic reporting is a separate
// loop... with no dependency on the data path").
package workerpool

import (
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const defaultQueueSize = 100

// Func does one unit of work. Returning an error kills the pool's tomb.
type Func = func(t *tomb.Tomb, task any) error

// Pool runs up to n workers pulling from a shared task queue.
type Pool struct {
	n     int
	tasks chan any
	log   zerolog.Logger
}

// New returns a Pool sized for n concurrent workers. n <= 0 defaults to 1.
func New(n int, log zerolog.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	return &Pool{
		n:     n,
		tasks: make(chan any, defaultQueueSize),
		log:   log.With().Str("component", "workerpool").Logger(),
	}
}

// Submit enqueues task, blocking if the queue is full.
func (p *Pool) Submit(t *tomb.Tomb, task any) error {
	select {
	case p.tasks <- task:
		return nil
	case <-t.Dying():
		return nil
	}
}

// Run starts n workers under t, each running work until t dies.
func (p *Pool) Run(t *tomb.Tomb, work Func) {
	p.log.Info().Int("workers", p.n).Msg("starting worker pool")
	for i := 0; i < p.n; i++ {
		t.Go(func() error {
			return p.worker(t, work)
		})
	}
}

func (p *Pool) worker(t *tomb.Tomb, work Func) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				p.log.Error().Err(err).Msg("worker task failed")
				return err
			}
		}
	}
}
