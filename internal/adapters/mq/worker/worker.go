// Package worker applies queued score updates: rescore the state and write
// it back to the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/ecoinvest/internal/adapters/mq/queue"
	"github.com/okian/ecoinvest/internal/adapters/repository"
	"github.com/okian/ecoinvest/internal/domain/model"
	"github.com/okian/ecoinvest/pkg/logger"
	"github.com/okian/ecoinvest/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Scorer computes the derived scores for a state.
type Scorer interface {
	Score(ctx context.Context, s model.State) (model.ScoredState, error)
}

// Store is the part of repository.Store a worker needs.
type Store interface {
	Get(ctx context.Context, name string) (model.ScoredState, error)
	Put(ctx context.Context, s model.ScoredState) error
}

// Queue defines how workers receive updates.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Update
}

// Worker consumes updates until its queue closes or it is stopped.
type Worker struct {
	queue  Queue
	scorer Scorer
	store  Store
	name   string
	logger logger.Logger

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// New creates a worker.
func New(q Queue, scorer Scorer, store Store, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		scorer:   scorer,
		store:    store,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes updates until ctx is done, Shutdown is called or the queue
// is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	updates := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := w.Process(ctx, u); err != nil {
				w.logger.Error(ctx, "update failed",
					logger.String("event_id", u.EventID),
					logger.String("state", u.State),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for its loop to exit.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker %s shutdown: %w", w.name, ctx.Err())
	}
}

// Process applies one update. An update for an unknown state adds it; one
// older than the state's last applied update is skipped.
func (w *Worker) Process(ctx context.Context, u queue.Update) error { //nolint:gocritic // hugeParam: received by value from the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	base, err := w.store.Get(ctx, u.State)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		base = model.ScoredState{State: model.State{Name: u.State}}
	case err != nil:
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("load %s: %w", u.State, err)
	}
	if u.StaleFor(base.State) {
		w.skipStale(ctx, u)
		return nil
	}

	scoreStart := time.Now()
	scored, err := w.scorer.Score(ctx, u.Apply(base.State))
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordScoringError()
		metrics.RecordErrorByComponent("worker", "scoring_error")
		return fmt.Errorf("score %s: %w", u.State, err)
	}

	err = w.store.Put(ctx, scored)
	if errors.Is(err, repository.ErrStale) {
		// A newer update landed between Get and Put.
		w.skipStale(ctx, u)
		return nil
	}
	if err != nil {
		metrics.RecordStoreError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store %s: %w", u.State, err)
	}

	metrics.RecordUpdateApplied()
	w.logger.Debug(ctx, "update applied",
		logger.String("event_id", u.EventID),
		logger.String("state", u.State),
		logger.Float64("combined_esi", scored.CombinedESI),
	)
	return nil
}

func (w *Worker) skipStale(ctx context.Context, u queue.Update) { //nolint:gocritic // hugeParam
	metrics.RecordUpdateStale()
	w.logger.Debug(ctx, "stale update skipped",
		logger.String("event_id", u.EventID),
		logger.String("state", u.State),
		logger.Any("ts", u.TS),
	)
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*Worker
	queue   Queue
	logger  logger.Logger
	wg      sync.WaitGroup
}

// NewPool creates count workers; count < 1 means runtime.NumCPU().
func NewPool(count int, q Queue, scorer Scorer, store Store, opts ...Option) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*Worker, count),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = New(q, scorer, store, wopts...)
	}
	metrics.UpdateWorkerCount(count)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown closes the queue, lets workers drain it and waits for them,
// bounded by ctx and a 30s ceiling.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "close queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-ctx.Done():
		for _, w := range p.workers {
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
