package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yuya-takeyama/sync-s3/internal/metadata"
	"github.com/yuya-takeyama/sync-s3/pkg/planner"
	"github.com/yuya-takeyama/sync-s3/pkg/s3client"
)

const DefaultConcurrency = 4

// ErrAlreadyRan is returned by a second call to Run. Failed records are re-executed
// with Retry instead.
var ErrAlreadyRan = errors.New("executor has already run")

type Options struct {
	Bucket   string
	Metadata metadata.Document
	// Force uploads Unchanged records too.
	Force bool
}

// Failure is the latest error of one record that is still failing.
type Failure struct {
	WorkerID int
	Record   *planner.Record
	Err      error
}

type Executor struct {
	logger  zerolog.Logger
	workers []*Worker

	mu        sync.Mutex
	observers []Observer
	ran       bool
}

func NewExecutor(client s3client.Client, logger zerolog.Logger, concurrency int, opts Options) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	workers := make([]*Worker, concurrency)
	for i := range workers {
		workers[i] = newWorker(i+1, client, logger, opts)
	}
	return &Executor{
		logger:  logger,
		workers: workers,
	}
}

// AddObserver registers o to receive every result. Observers added while a run is in
// progress only see later results.
func (e *Executor) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Executor) Workers() []*Worker { return e.workers }

// Run drains queue with all workers and reports whether every one of them finished
// without a failed record. The error is non-nil only for engine failures.
func (e *Executor) Run(ctx context.Context, queue *Queue) (bool, error) {
	e.mu.Lock()
	if e.ran {
		e.mu.Unlock()
		return false, ErrAlreadyRan
	}
	e.ran = true
	e.mu.Unlock()

	e.logger.Debug().
		Int("workers", len(e.workers)).
		Int("pending", queue.Len()).
		Msg("Starting transfer")

	return e.fanOut(ctx, func(ctx context.Context, w *Worker, emit func(Result)) error {
		return w.Run(ctx, queue, emit)
	})
}

// Retry runs a retry pass on every worker and reports whether no failed record is
// left afterwards.
func (e *Executor) Retry(ctx context.Context) (bool, error) {
	if _, err := e.fanOut(ctx, func(ctx context.Context, w *Worker, emit func(Result)) error {
		return w.Retry(ctx, emit)
	}); err != nil {
		return false, err
	}
	return !e.HasErrors(), nil
}

func (e *Executor) fanOut(ctx context.Context, fn func(context.Context, *Worker, func(Result)) error) (bool, error) {
	e.mu.Lock()
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	succeeded := make([]bool, len(e.workers))
	for i, w := range e.workers {
		succeeded[i] = true
		g.Go(func() error {
			return fn(gctx, w, func(res Result) {
				if res.Type == ResultError {
					succeeded[i] = false
				}
				for _, o := range observers {
					o.Observe(w.ID, res)
				}
			})
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for _, ok := range succeeded {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// HasErrors reports whether any worker still holds a failed record.
func (e *Executor) HasErrors() bool {
	for _, w := range e.workers {
		if w.errors.Len() > 0 {
			return true
		}
	}
	return false
}

// LatestErrors lists every failed record with only its most recent error, grouped by
// worker.
func (e *Executor) LatestErrors() []Failure {
	var failures []Failure
	for _, w := range e.workers {
		for _, record := range w.errors.Records() {
			err, ok := w.errors.Latest(record)
			if !ok {
				continue
			}
			failures = append(failures, Failure{WorkerID: w.ID, Record: record, Err: err})
		}
	}
	return failures
}
