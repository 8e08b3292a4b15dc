// Package service runs batch client scoring: read all metrics, score every
// client, persist every result.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	workerpool "github.com/phucmetlamroi/agency-manager/internal/adapters/mq/worker"
	repository "github.com/phucmetlamroi/agency-manager/internal/adapters/repository"
	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
	"github.com/phucmetlamroi/agency-manager/internal/domain/runguard"
	"github.com/phucmetlamroi/agency-manager/internal/domain/scoring"
	"github.com/phucmetlamroi/agency-manager/internal/domain/types"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
	"github.com/phucmetlamroi/agency-manager/pkg/metrics"
)

// defaultGuardKey identifies the client population a run covers.
const defaultGuardKey = "clients"

// staleLeaseMargin is added to the run timeout before a held lease may be
// taken over.
const staleLeaseMargin = time.Minute

// Runner executes one scoring run.
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

// Service owns the scoring pipeline and its run history.
type Service struct {
	mu sync.RWMutex

	// Core components
	source repository.Source
	scorer scoring.Scorer
	guard  runguard.Guard
	pool   *workerpool.Pool

	// Configuration
	workerCount int
	runTimeout  time.Duration
	schedule    time.Duration
	guardKey    string

	// State
	state    State
	last     *Summary
	runs     int64
	failed   int64
	rejected int64
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of scoring goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithRunTimeout bounds each run. Zero leaves runs unbounded.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// WithSchedule makes Start trigger a run every interval.
func WithSchedule(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.schedule = interval
		}
	}
}

// WithScorer replaces the default scoring engine.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithGuard replaces the in-process run guard.
func WithGuard(g runguard.Guard) Option {
	return func(s *Service) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service reading from and writing to source.
func New(source repository.Source, opts ...Option) *Service {
	s := &Service{
		source:   source,
		scorer:   scoring.NewEngine(),
		guardKey: defaultGuardKey,
		state:    StateIdle,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("scoring-service")
	}
	if s.guard == nil {
		var gopts []runguard.Option
		if s.runTimeout > 0 {
			gopts = append(gopts, runguard.WithStaleAfter(s.runTimeout+staleLeaseMargin))
		}
		s.guard = runguard.New(gopts...)
	}
	s.pool = workerpool.NewPool(s.workerCount, s.scorer, workerpool.WithLogger(s.logger))
	s.workerCount = s.pool.Size()

	return s
}

// Start launches the periodic schedule, if one is configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.source == nil {
		return fmt.Errorf("%w: no data source", repository.ErrDataSource)
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.started = true

	if s.schedule <= 0 {
		close(s.doneCh)
		s.logger.Info(ctx, "scoring service started", logger.Int("workers", s.workerCount))
		return nil
	}

	go s.scheduleLoop(ctx, s.schedule, s.stopCh, s.doneCh)
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Duration("schedule", s.schedule),
	)
	return nil
}

func (s *Service) scheduleLoop(ctx context.Context, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil && !errors.Is(err, runguard.ErrRunInProgress) {
				s.logger.Error(ctx, "scheduled run failed", logger.Error(err))
			}
		}
	}
}

// Stop halts the schedule and waits for an in-flight scheduled run.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.doneCh
	s.started = false
	s.mu.Unlock()

	<-done
	s.logger.Info(context.Background(), "scoring service stopped")
}

// Run executes one batch run. It returns ErrRunInProgress without touching
// the data source when another run holds the guard. For finished runs the
// returned error is the summary's Err.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	if err := s.guard.TryAcquire(ctx, s.guardKey); err != nil {
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()
		metrics.RecordRun(metrics.OutcomeRejected, 0)
		s.logger.Warn(ctx, "scoring run rejected", logger.Error(err))
		return Summary{State: StateIdle, Err: err}, err
	}
	defer s.guard.Release(ctx, s.guardKey)

	sum := Summary{
		RunID:      uuid.NewString(),
		State:      StateRunning,
		StartedAt:  time.Now(),
		TierCounts: make(map[model.Tier]int),
	}
	s.setState(StateRunning)
	metrics.RunStarted()
	defer metrics.RunFinished()

	log := s.logger.With(logger.String("run_id", sum.RunID))
	log.Info(ctx, "scoring run started")

	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	s.execute(runCtx, log, &sum)
	s.finish(ctx, log, &sum)
	return sum, sum.Err
}

// Trigger runs once and returns the wire report, for the HTTP API.
func (s *Service) Trigger(ctx context.Context) (types.RunReport, error) {
	sum, err := s.Run(ctx)
	return sum.Report(), err
}

func (s *Service) execute(ctx context.Context, log logger.Logger, sum *Summary) {
	sess, err := s.source.Acquire(ctx)
	if err != nil {
		sum.Err = err
		return
	}
	defer sess.Release()

	records, err := sess.ReadMetrics(ctx)
	if err != nil {
		sum.Err = err
		return
	}
	sum.ClientsRead = len(records)
	metrics.UpdateClientsRead(len(records))

	results := s.pool.ScoreAll(ctx, records)

	attempted := 0
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			sum.Err = fmt.Errorf("%w after %d of %d clients: %w", ErrRunTimeout, attempted, len(records), err)
			return
		}

		if r.Err != nil {
			if !workerpool.IsAnomaly(r) {
				sum.Err = fmt.Errorf("%w: scoring client %s: %w", ErrRunTimeout, r.ClientID, r.Err)
				return
			}
			sum.AnomalyCount++
			sum.Failures = append(sum.Failures, Failure{ClientID: r.ClientID, Stage: StageCompute, Err: r.Err})
			metrics.RecordClientAnomaly()
			continue
		}

		attempted++
		if err := sess.WriteScore(ctx, r.Score); err != nil {
			sum.FailedCount++
			sum.Failures = append(sum.Failures, Failure{ClientID: r.ClientID, Stage: StagePersist, Err: err})
			metrics.RecordClientWriteError()
			metrics.RecordErrorByComponent("writer", "persistence")
			log.Warn(ctx, "client score not persisted",
				logger.String("client_id", r.ClientID),
				logger.Error(err),
			)
			continue
		}

		sum.UpdatedCount++
		sum.TierCounts[r.Score.Tier]++
		metrics.RecordClientUpdated()
		log.Debug(ctx, "client rescored",
			logger.String("client_id", r.ClientID),
			logger.Float64("score", r.Score.Score),
			logger.Float64("friction_index", r.Score.FrictionIndex),
			logger.String("tier", r.Score.Tier.String()),
		)
	}

	if attempted > 0 && sum.UpdatedCount == 0 {
		sum.Err = fmt.Errorf("%w: %d attempted", ErrAllWritesFailed, attempted)
	}
}

func (s *Service) finish(ctx context.Context, log logger.Logger, sum *Summary) {
	sum.Duration = time.Since(sum.StartedAt)

	outcome := metrics.OutcomeCompleted
	if sum.Err != nil {
		sum.State = StateFailed
		outcome = metrics.OutcomeFailed
		metrics.RecordErrorByComponent("orchestrator", failureKind(sum.Err))
		log.Error(ctx, "scoring run failed",
			logger.Int("clients_read", sum.ClientsRead),
			logger.Int("updated", sum.UpdatedCount),
			logger.Duration("duration", sum.Duration),
			logger.Error(sum.Err),
		)
	} else {
		sum.State = StateCompleted
		tiers := model.Tiers()
		names := make([]string, len(tiers))
		counts := make(map[string]int, len(tiers))
		for i, t := range tiers {
			names[i] = t.String()
			counts[t.String()] = sum.TierCounts[t]
		}
		metrics.UpdateTierDistribution(names, counts)
		log.Info(ctx, "scoring run completed",
			logger.Int("clients_read", sum.ClientsRead),
			logger.Int("updated", sum.UpdatedCount),
			logger.Int("failed", sum.FailedCount),
			logger.Int("anomalies", sum.AnomalyCount),
			logger.Duration("duration", sum.Duration),
		)
	}
	metrics.RecordRun(outcome, sum.Duration)

	s.mu.Lock()
	s.runs++
	if sum.State == StateFailed {
		s.failed++
	}
	s.state = sum.State
	last := *sum
	s.last = &last
	s.mu.Unlock()
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, repository.ErrDataSource):
		return "data_source"
	case errors.Is(err, ErrRunTimeout):
		return "timeout"
	case errors.Is(err, ErrAllWritesFailed):
		return "persistence"
	default:
		return "unknown"
	}
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the state of the most recent run.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastSummary returns the most recent finished run.
func (s *Service) LastSummary() (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Summary{}, false
	}
	return *s.last, true
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"state":        string(s.state),
		"workerCount":  s.workerCount,
		"runTimeoutMs": s.runTimeout.Milliseconds(),
		"scheduleSec":  int64(s.schedule.Seconds()),
		"runsTotal":    s.runs,
		"runsFailed":   s.failed,
		"runsRejected": s.rejected,
		"activeRuns":   s.guard.Active(),
	}
	if s.last != nil {
		stats["lastRun"] = s.last.Report()
	}

	metrics.UpdateWorkerCount(s.workerCount)
	return stats
}
