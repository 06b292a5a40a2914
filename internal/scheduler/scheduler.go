package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"taskfire/internal/cronexpr"
	"taskfire/internal/executor"
	"taskfire/internal/governor"
	"taskfire/internal/models"
	"taskfire/internal/retry"
	"taskfire/internal/state"
	"taskfire/internal/store"
	"taskfire/internal/task"
)

// persistTimeout bounds completion writes so a cancelled scheduler context
// cannot leave records stuck in running status.
const persistTimeout = 5 * time.Second

type Config struct {
	// PollInterval is how often due jobs are fetched. Default 10s.
	PollInterval time.Duration

	// BatchSize is the page size for due-job queries. Default 100.
	BatchSize int

	// MaxWorkers is the global ceiling on concurrently running attempts,
	// shared across all jobs. Default 10.
	MaxWorkers int64

	// ShutdownGrace is how long Stop waits for in-flight executions before
	// force-marking them cancelled. Default 30s.
	ShutdownGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 10
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 30 * time.Second
	}
	return c
}

// Scheduler is the coordinating loop: it polls for due jobs, claims their
// next occurrence, admits them through the governor and dispatches each
// admitted attempt chain onto its own goroutine. All mutable scheduling
// state lives behind this struct; there are no package-level singletons.
type Scheduler struct {
	jobs     store.JobStore
	execs    store.ExecutionStore
	registry *task.Registry
	gov      *governor.Governor
	exec     *executor.Executor
	env      *task.Env
	log      zerolog.Logger
	cfg      Config

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func New(jobs store.JobStore, execs store.ExecutionStore, registry *task.Registry, env *task.Env, log zerolog.Logger, cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		jobs:     jobs,
		execs:    execs,
		registry: registry,
		gov:      governor.New(),
		exec:     executor.New(log),
		env:      env,
		log:      log,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxWorkers),
	}
}

// Start arms fresh jobs and runs the poll loop until ctx is cancelled, then
// drains in-flight executions and returns. Errors from individual jobs
// never escape to the loop; only a failed startup is returned.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.initNextRuns(ctx); err != nil {
		return err
	}

	s.log.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Int64("max_workers", s.cfg.MaxWorkers).
		Msg("scheduler started")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.drain()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// initNextRuns computes a first next_run_at for enabled definitions that
// never got one. Definitions with an unparsable expression are disabled
// instead of scheduled.
func (s *Scheduler) initNextRuns(ctx context.Context) error {
	defs, err := s.jobs.FindEnabledMissingNextRun(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range defs {
		def := &defs[i]

		next, err := cronexpr.Next(def.CronExpression, now)
		if err != nil {
			s.disableInvalid(ctx, def, err)
			continue
		}
		if err := s.jobs.ClaimNextRun(ctx, def.ID, next); err != nil {
			s.log.Error().Err(err).Str("job", def.Name).Msg("failed to arm job")
			continue
		}
		s.log.Info().Str("job", def.Name).Time("next_run_at", next).Msg("armed job")
	}
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	page := 1
	for {
		result, err := s.jobs.FetchDue(ctx, time.Now(), page, s.cfg.BatchSize)
		if err != nil {
			// Persistence trouble is never fatal to the loop; skip the
			// tick and try again on the next one.
			s.log.Error().Err(err).Msg("failed to fetch due jobs, skipping tick")
			return
		}

		for i := range result.Items {
			s.dispatch(ctx, &result.Items[i])
		}

		if !result.HasNextPage {
			return
		}
		page++
	}
}

// dispatch handles one due job: claim its next occurrence, pass the
// governor, build the task and hand the attempt chain to a goroutine.
func (s *Scheduler) dispatch(ctx context.Context, def *models.JobDefinition) {
	now := time.Now()

	next, err := cronexpr.Next(def.CronExpression, now)
	if err != nil {
		s.disableInvalid(ctx, def, err)
		return
	}

	// Claim before dispatch: once next_run_at is advanced, a slow tick
	// cannot re-fire this occurrence.
	if err := s.jobs.ClaimNextRun(ctx, def.ID, next); err != nil {
		s.log.Error().Err(err).Str("job", def.Name).Msg("failed to claim next run, skipping job this tick")
		return
	}

	if !s.gov.TryAcquire(def.Name, def.AllowConcurrent, def.MaxConcurrent) {
		s.log.Debug().Str("job", def.Name).Msg("concurrency limit reached, skipping tick")
		return
	}

	t, err := s.registry.Build(def.TaskType, def.Payload)
	if err != nil {
		// Configuration errors are terminal: record one failed attempt
		// and never retry.
		s.recordConfigFailure(def, err)
		s.gov.Release(def.Name)
		return
	}

	if !s.sem.TryAcquire(1) {
		s.log.Debug().Str("job", def.Name).Msg("worker ceiling reached, skipping tick")
		s.gov.Release(def.Name)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		defer s.gov.Release(def.Name)
		s.runChain(ctx, def, t)
	}()
}

// runChain runs the initial attempt and any retries for one due firing of a
// job. The governor slot is held for the whole chain so attempts of a
// serial job stay strictly sequential even across retries.
func (s *Scheduler) runChain(ctx context.Context, def *models.JobDefinition, t task.Task) {
	attempt := 0
	finalStatus := state.StatusFailed

	for {
		outcome, recorded := s.runAttempt(ctx, def, t, attempt)
		if !recorded {
			return
		}
		finalStatus = outcome.Status

		if outcome.Status == state.StatusCancelled {
			break
		}

		decision := retry.Decide(def, attempt, outcome.Status)
		if !decision.Retry {
			break
		}

		s.log.Info().
			Str("job", def.Name).
			Int("attempt", attempt).
			Dur("after", decision.After).
			Msg("scheduling retry")

		timer := time.NewTimer(decision.After)
		select {
		case <-ctx.Done():
			// Shutdown during backoff: the previous attempt already
			// completed, the pending retry is simply dropped.
			timer.Stop()
			s.finishChain(def, finalStatus)
			return
		case <-timer.C:
		}
		attempt++
	}

	s.finishChain(def, finalStatus)
}

// runAttempt persists one running record, executes the task and completes
// the record. recorded is false when the record could not even be created;
// the chain aborts in that case.
func (s *Scheduler) runAttempt(ctx context.Context, def *models.JobDefinition, t task.Task, attempt int) (executor.Outcome, bool) {
	executionID := uuid.New()
	rec := &models.ExecutionRecord{
		JobID:        def.ID,
		JobName:      def.Name,
		ExecutionID:  executionID,
		StartedAt:    time.Now(),
		Status:       state.StatusRunning,
		RetryAttempt: attempt,
	}

	recID, err := s.execs.Create(ctx, rec)
	if err != nil {
		s.log.Error().Err(err).Str("job", def.Name).Msg("failed to create execution record, aborting chain")
		return executor.Outcome{}, false
	}

	log := s.log.With().
		Str("job", def.Name).
		Str("execution_id", executionID.String()).
		Int("attempt", attempt).
		Logger()
	log.Info().Msg("executing job")

	tc := task.Context{
		ExecutionID:  executionID,
		JobID:        def.ID,
		JobName:      def.Name,
		RetryAttempt: attempt,
		Env:          s.env,
	}

	outcome := s.exec.Run(ctx, t, tc, def.Timeout())

	var errMsg *string
	var errDetails json.RawMessage
	if outcome.Err != nil {
		msg := outcome.Err.Error()
		errMsg = &msg
	}
	if outcome.Panicked {
		errDetails, _ = json.Marshal(map[string]any{"panic": true, "stack": outcome.Stack})
	}

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if state.IsValidTransition(state.StatusRunning, outcome.Status) {
		if err := s.execs.Complete(persistCtx, recID, outcome.Status, outcome.Duration.Milliseconds(), errMsg, errDetails, outcome.Result); err != nil {
			log.Error().Err(err).Msg("failed to complete execution record")
		}
	} else {
		log.Error().Str("status", outcome.Status.String()).Msg("refusing illegal status transition")
	}

	switch outcome.Status {
	case state.StatusSuccess:
		log.Info().Dur("duration", outcome.Duration).Msg("job succeeded")
	default:
		log.Warn().Dur("duration", outcome.Duration).Str("status", outcome.Status.String()).Err(outcome.Err).Msg("job attempt did not succeed")
	}

	return outcome, true
}

// recordConfigFailure writes the single terminal failed record for a job
// whose task could not even be built.
func (s *Scheduler) recordConfigFailure(def *models.JobDefinition, buildErr error) {
	s.log.Error().Err(buildErr).Str("job", def.Name).Msg("task build failed")

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rec := &models.ExecutionRecord{
		JobID:        def.ID,
		JobName:      def.Name,
		ExecutionID:  uuid.New(),
		StartedAt:    time.Now(),
		Status:       state.StatusRunning,
		RetryAttempt: 0,
	}
	recID, err := s.execs.Create(persistCtx, rec)
	if err != nil {
		s.log.Error().Err(err).Str("job", def.Name).Msg("failed to record task build failure")
		return
	}

	msg := buildErr.Error()
	details, _ := json.Marshal(map[string]string{"error": "invalid_config"})
	if err := s.execs.Complete(persistCtx, recID, state.StatusFailed, 0, &msg, details, nil); err != nil {
		s.log.Error().Err(err).Str("job", def.Name).Msg("failed to record task build failure")
	}

	s.finishChain(def, state.StatusFailed)
}

func (s *Scheduler) finishChain(def *models.JobDefinition, status state.Status) {
	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.jobs.UpdateLastRun(persistCtx, def.ID, time.Now(), status); err != nil {
		s.log.Error().Err(err).Str("job", def.Name).Msg("failed to update last run")
	}
}

func (s *Scheduler) disableInvalid(ctx context.Context, def *models.JobDefinition, parseErr error) {
	s.log.Error().Err(parseErr).Str("job", def.Name).Msg("invalid cron expression, disabling job")
	if err := s.jobs.SetEnabled(ctx, def.ID, false); err != nil {
		s.log.Error().Err(err).Str("job", def.Name).Msg("failed to disable job")
	}
}

// drain stops dispatching, waits up to the grace period for in-flight
// chains, then force-marks anything still running as cancelled.
func (s *Scheduler) drain() error {
	s.log.Info().Dur("grace", s.cfg.ShutdownGrace).Msg("scheduler stopping, draining in-flight executions")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		s.log.Warn().Msg("shutdown grace period elapsed with executions still in flight")
	}

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	cancelled, err := s.execs.CancelRunning(persistCtx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to cancel leftover running executions")
	} else if cancelled > 0 {
		s.log.Warn().Int64("count", cancelled).Msg("force-cancelled leftover running executions")
	}

	s.log.Info().Msg("scheduler stopped")
	return nil
}
