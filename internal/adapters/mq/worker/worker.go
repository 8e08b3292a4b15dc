// Package worker scores client metrics on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/phucmetlamroi/agency-manager/internal/adapters/mq/queue"
	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
	"github.com/phucmetlamroi/agency-manager/internal/domain/scoring"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
	"github.com/phucmetlamroi/agency-manager/pkg/metrics"
)

// Scorer computes one client's result.
type Scorer interface {
	Score(m model.ClientMetrics) (model.ScoreResult, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Result is the outcome of scoring the job at Index.
type Result struct {
	Index    int
	ClientID string
	Score    model.ScoreResult
	Err      error
}

// Worker consumes jobs until its queue is drained or ctx is done.
type Worker interface {
	Run(ctx context.Context)
	Done() <-chan struct{}
}

// InMemoryWorker scores jobs and hands each result to a sink.
type InMemoryWorker struct {
	queue  Queue
	scorer Scorer
	sink   func(Result)
	name   string
	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a worker. sink must be safe for concurrent use
// across workers.
func NewInMemoryWorker(q Queue, scorer Scorer, sink func(Result), opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:  q,
		scorer: scorer,
		sink:   sink,
		name:   "worker",
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for j := range w.queue.Dequeue(ctx) {
		w.sink(w.process(ctx, j))
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) Result { //nolint:gocritic // hugeParam: Job is passed by value through the channel
	start := time.Now()
	res, err := w.scorer.Score(j.Metrics)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()))

	if err != nil {
		metrics.RecordErrorByComponent("worker", "computation")
		w.logger.Warn(ctx, "client metrics rejected",
			logger.String("client_id", j.Metrics.ClientID),
			logger.Error(err),
		)
		return Result{Index: j.Index, ClientID: j.Metrics.ClientID, Err: err}
	}
	return Result{Index: j.Index, ClientID: j.Metrics.ClientID, Score: res}
}

// Pool fans a batch out to a fixed number of workers.
type Pool struct {
	size   int
	scorer Scorer
	logger logger.Logger
}

// NewPool creates a pool. workerCount < 1 means one worker per CPU.
func NewPool(workerCount int, scorer Scorer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	cfg := &InMemoryWorker{name: "worker-pool"}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named(cfg.name)
	}

	metrics.UpdateWorkerCount(workerCount)
	return &Pool{size: workerCount, scorer: scorer, logger: cfg.logger}
}

// Size returns the configured worker count.
func (p *Pool) Size() int { return p.size }

// ScoreAll scores batch and returns one result per input, in input order.
// Jobs not reached before ctx is done carry ctx's error.
func (p *Pool) ScoreAll(ctx context.Context, batch []model.ClientMetrics) []Result {
	results := make([]Result, len(batch))
	if len(batch) == 0 {
		return results
	}
	seen := make([]bool, len(batch))

	q := queue.NewInMemoryQueue(queue.WithCapacity(len(batch)))
	for i := range batch {
		if err := q.Enqueue(ctx, queue.Job{Index: i, Metrics: batch[i]}); err != nil {
			results[i] = Result{Index: i, ClientID: batch[i].ClientID, Err: fmt.Errorf("enqueue: %w", err)}
			seen[i] = true
		}
	}
	_ = q.Close()

	n := p.size
	if n > len(batch) {
		n = len(batch)
	}

	// each index is written by exactly one worker
	sink := func(r Result) {
		results[r.Index] = r
		seen[r.Index] = true
	}

	workers := make([]*InMemoryWorker, n)
	for i := range workers {
		workers[i] = NewInMemoryWorker(q, p.scorer, sink,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
		go workers[i].Run(ctx)
	}
	for _, w := range workers {
		<-w.Done()
	}

	for i := range results {
		if !seen[i] {
			err := ctx.Err()
			if err == nil {
				err = errors.New("job not processed")
			}
			results[i] = Result{Index: i, ClientID: batch[i].ClientID, Err: err}
		}
	}
	return results
}

// IsAnomaly reports whether r failed because its metrics were malformed.
func IsAnomaly(r Result) bool { //nolint:gocritic // hugeParam: Result is a small value type
	return errors.Is(r.Err, scoring.ErrComputation)
}
