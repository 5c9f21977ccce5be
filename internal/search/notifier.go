package search

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ta21cos/thread-type-note-app/internal/metrics"
)

const (
	defaultQueueSize   = 256
	defaultCallTimeout = 10 * time.Second
)

type jobKind int

const (
	jobIndex jobKind = iota
	jobRemove
)

type job struct {
	kind    jobKind
	id      string
	content string
	ids     []string
}

// NotifierConfig tunes the queue and the circuit breaker.
type NotifierConfig struct {
	QueueSize int
	// Consecutive backend failures that open the breaker.
	MaxFailures uint32
	// How long the breaker stays open before probing again.
	OpenTimeout time.Duration
	CallTimeout time.Duration
}

// Notifier applies index writes asynchronously.
//
// A single goroutine drains a bounded queue and calls the backend through a
// circuit breaker. Enqueueing never blocks: when the queue is full the job is
// dropped and logged. Failures are logged and never reach the caller.
type Notifier struct {
	backend Backend
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger
	timeout time.Duration

	jobs    chan job
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewNotifier starts the notifier loop.
func NewNotifier(backend Backend, cfg NotifierConfig, logger *slog.Logger) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	n := &Notifier{
		backend: backend,
		logger:  logger,
		timeout: cfg.CallTimeout,
		jobs:    make(chan job, cfg.QueueSize),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	n.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "search-index",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("search: circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	go n.run()
	return n
}

func (n *Notifier) run() {
	defer close(n.stopped)
	for {
		select {
		case <-n.stopCh:
			// Flush what is already queued.
			for {
				select {
				case j := <-n.jobs:
					n.apply(j)
				default:
					return
				}
			}
		case j := <-n.jobs:
			n.apply(j)
		}
	}
}

func (n *Notifier) apply(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	_, err := n.cb.Execute(func() (any, error) {
		switch j.kind {
		case jobRemove:
			return nil, n.backend.Remove(ctx, j.ids)
		default:
			return nil, n.backend.Index(ctx, j.id, j.content)
		}
	})
	switch {
	case err == nil:
		metrics.TrackSearchIndex("ok")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.TrackSearchIndex("rejected")
		n.logger.Debug("search: breaker open, skipping index job", slog.String("id", j.id))
	default:
		metrics.TrackSearchIndex("failed")
		n.logger.Warn("search: index job failed",
			slog.String("id", j.id),
			slog.Int("ids", len(j.ids)),
			slog.String("error", err.Error()),
		)
	}
}

func (n *Notifier) enqueue(j job) {
	if n.closed.Load() {
		return
	}
	select {
	case n.jobs <- j:
	default:
		metrics.TrackSearchIndex("dropped")
		n.logger.Warn("search: queue full, dropping index job", slog.String("id", j.id))
	}
}

// NoteChanged queues an upsert of the note's content.
func (n *Notifier) NoteChanged(id, content string) {
	n.enqueue(job{kind: jobIndex, id: id, content: content})
}

// NotesRemoved queues removal of the given notes.
func (n *Notifier) NotesRemoved(ids []string) {
	if len(ids) == 0 {
		return
	}
	n.enqueue(job{kind: jobRemove, ids: append([]string(nil), ids...)})
}

// State returns the breaker state.
func (n *Notifier) State() gobreaker.State {
	return n.cb.State()
}

// Close stops accepting jobs, applies those already queued and waits for the
// loop to exit.
func (n *Notifier) Close() {
	if n.closed.CompareAndSwap(false, true) {
		close(n.stopCh)
	}
	<-n.stopped
}
