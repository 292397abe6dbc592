package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cartolapse/internal/acquire"
	"cartolapse/internal/checkpoint"
	"cartolapse/internal/logging"
	"cartolapse/internal/services"
)

// Options configures a scheduler run.
type Options struct {
	// Workers is the number of concurrent sessions. Capped at the job count.
	Workers int
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries int
	// JobTimeout bounds a single attempt. Zero disables the bound.
	JobTimeout time.Duration
	Logger     *slog.Logger

	// Hooks run one at a time, from worker goroutines.
	OnAttempt func(Attempt)
	OnSuccess func(Outcome)
	OnFailure func(Outcome)
}

// Attempt describes one finished try of a job.
type Attempt struct {
	Artifact checkpoint.Artifact
	Worker   int
	Number   int
	Duration time.Duration
	Err      error
	// Requeued is true when the failed job went back to the front of the queue.
	Requeued bool
}

// Outcome is the terminal result of a job.
type Outcome struct {
	Artifact checkpoint.Artifact
	Attempts int
	// Worker is the slot that ran the last attempt, or 0 when none did.
	Worker int
	Err    error
}

// Result partitions every job into successes and permanent failures. Both
// slices are sorted by image name.
type Result struct {
	Succeeded []Outcome
	Failed    []Outcome
}

// Total is the number of jobs that reached a terminal outcome.
func (r Result) Total() int { return len(r.Succeeded) + len(r.Failed) }

type run struct {
	opts    Options
	factory acquire.SessionFactory
	queue   *deque
	logger  *slog.Logger

	mu     sync.Mutex
	result Result

	hookMu sync.Mutex
}

// Run acquires every job and returns once each one succeeded or failed
// permanently. The returned error is nil when nothing failed, an
// *AggregateAcquisitionFailure otherwise, joined with the context error if ctx
// ended the run early.
func Run(ctx context.Context, jobs []Job, opts Options, factory acquire.SessionFactory) (Result, error) {
	if factory == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "scheduler", "run", "no session factory", nil)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	r := &run{
		opts:    opts,
		factory: factory,
		queue:   newDeque(jobs),
		logger:  logging.NewComponentLogger(opts.Logger, "scheduler"),
	}
	if len(jobs) == 0 {
		return r.result, nil
	}

	r.logger.Info("acquisition started",
		logging.Int("jobs", len(jobs)),
		logging.Int("workers", workers),
		logging.Int("max_retries", opts.MaxRetries),
	)
	started := time.Now()

	var wg sync.WaitGroup
	wg.Add(workers)
	for id := 1; id <= workers; id++ {
		go r.worker(ctx, id, &wg)
	}
	wg.Wait()

	// Left over when every session failed to open or ctx ended the run.
	leftover := r.queue.drain()
	if len(leftover) > 0 {
		cause := ctx.Err()
		if cause == nil {
			cause = services.Wrap(services.ErrAcquisition, "scheduler", "run", "no acquisition session available", nil)
		}
		for _, job := range leftover {
			r.finish(Outcome{Artifact: job.Artifact, Attempts: job.State.Retries(), Err: cause})
		}
	}

	sortOutcomes(r.result.Succeeded)
	sortOutcomes(r.result.Failed)
	r.logger.Info("acquisition finished",
		logging.Int("succeeded", len(r.result.Succeeded)),
		logging.Int("failed", len(r.result.Failed)),
		logging.Duration("elapsed", time.Since(started)),
	)

	var errs []error
	if len(r.result.Failed) > 0 {
		identities := make([]string, 0, len(r.result.Failed))
		for _, outcome := range r.result.Failed {
			identities = append(identities, outcome.Artifact.ImageName)
		}
		errs = append(errs, &AggregateAcquisitionFailure{Count: len(identities), Identities: identities})
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("acquisition interrupted: %w", err))
	}
	return r.result, errors.Join(errs...)
}

func (r *run) worker(ctx context.Context, id int, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := r.logger.With(logging.Worker(id))

	if ctx.Err() != nil {
		return
	}
	session, err := r.factory.Open(services.WithWorker(ctx, id), id)
	if err != nil {
		logging.WarnWithContext(logger, "session open failed", "session_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the browser binary or remote debugging URL"),
			logging.String(logging.FieldImpact, "worker slot idle for this run"),
		)
		return
	}
	logger.Debug("session opened")
	defer func() {
		if err := session.Close(); err != nil {
			logging.WarnWithContext(logger, "session close failed", "session_close_failed", logging.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, ok := r.queue.popFront()
		if !ok {
			return
		}
		r.attempt(ctx, id, session, job, logger.With(logging.Artifact(job.Artifact.ImageName)))
	}
}

func (r *run) attempt(ctx context.Context, id int, session acquire.Session, job Job, logger *slog.Logger) {
	number := job.State.Retries() + 1
	jobCtx := services.WithArtifact(services.WithWorker(ctx, id), job.Artifact.ImageName)
	cancel := func() {}
	if r.opts.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(jobCtx, r.opts.JobTimeout)
	}
	started := time.Now()
	err := safeAcquire(jobCtx, session, job.Artifact)
	timedOut := errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	elapsed := time.Since(started)

	if err == nil {
		logger.Info("acquired", logging.Int("attempt", number), logging.Duration("elapsed", elapsed))
		r.hook(func() {
			if r.opts.OnAttempt != nil {
				r.opts.OnAttempt(Attempt{Artifact: job.Artifact, Worker: id, Number: number, Duration: elapsed})
			}
		})
		r.finish(Outcome{Artifact: job.Artifact, Attempts: number, Worker: id})
		return
	}
	if timedOut {
		err = services.Wrap(services.ErrTimeout, "scheduler", "attempt",
			fmt.Sprintf("exceeded %s", r.opts.JobTimeout), err)
	}

	retry := ctx.Err() == nil && job.State.Retries() < r.opts.MaxRetries
	r.hook(func() {
		if r.opts.OnAttempt != nil {
			r.opts.OnAttempt(Attempt{Artifact: job.Artifact, Worker: id, Number: number, Duration: elapsed, Err: err, Requeued: retry})
		}
	})
	if retry {
		logging.WarnWithContext(logger, "acquisition failed; retrying", "acquisition_retry",
			logging.Int("attempt", number),
			logging.Int("max_retries", r.opts.MaxRetries),
			logging.Error(err),
			logging.String(logging.FieldImpact, "checkpoint retried before other pending work"),
		)
		r.queue.pushFront(Job{Artifact: job.Artifact, State: Retrying(job.State.Retries() + 1)})
		return
	}
	logging.ErrorWithContext(logger, "acquisition failed permanently", "acquisition_failed",
		logging.Int("attempts", number),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect the save file or rerun to retry"),
	)
	r.finish(Outcome{Artifact: job.Artifact, Attempts: number, Worker: id, Err: err})
}

func (r *run) finish(outcome Outcome) {
	r.mu.Lock()
	if outcome.Err == nil {
		r.result.Succeeded = append(r.result.Succeeded, outcome)
	} else {
		r.result.Failed = append(r.result.Failed, outcome)
	}
	r.mu.Unlock()

	r.hook(func() {
		switch {
		case outcome.Err == nil && r.opts.OnSuccess != nil:
			r.opts.OnSuccess(outcome)
		case outcome.Err != nil && r.opts.OnFailure != nil:
			r.opts.OnFailure(outcome)
		}
	})
}

func (r *run) hook(fn func()) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	fn()
}

// safeAcquire turns a panicking adapter into an acquisition error.
func safeAcquire(ctx context.Context, session acquire.Session, artifact checkpoint.Artifact) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = services.Wrap(services.ErrAcquisition, "scheduler", "attempt", fmt.Sprintf("session panicked: %v", rec), nil)
		}
	}()
	return session.Acquire(ctx, artifact)
}

func sortOutcomes(outcomes []Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Artifact.ImageName < outcomes[j].Artifact.ImageName
	})
}
