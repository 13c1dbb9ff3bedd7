package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"clearsky/internal/types"
)

// Task is a unit of scheduled work. The now argument is the instant the
// run was started.
type Task func(ctx context.Context, now time.Time) error

// TaskSpec describes a recurring task registration.
type TaskSpec struct {
	Name   string
	Period time.Duration
	// Jitter spreads scheduled runs by adding a random delay in [0, Jitter)
	// to each period, so restarts do not synchronize load spikes.
	Jitter time.Duration
	// Precondition, when set, gates each scheduled run. A false result
	// skips the run and waits for the next period. RunNow ignores it.
	Precondition func(ctx context.Context) bool
	Run          Task
}

// Defaults applied to task specs with zero values.
const (
	DefaultPeriod     = 15 * time.Minute
	DefaultJitter     = 5 * time.Minute
	retryBaseWait     = 30 * time.Second
	maxRetryDoublings = 5
)

type taskHandle struct {
	spec   TaskSpec
	cancel context.CancelFunc
	runMu  sync.Mutex // serializes scheduled runs with RunNow
}

// Runner drives registered tasks on their periods. Registration is
// idempotent by name: registering an existing name keeps the running task
// and reports false, matching replace-never semantics for periodic work.
type Runner struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   map[string]*taskHandle
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// RunnerConfig holds the configuration for creating a Runner.
type RunnerConfig struct {
	Logger *slog.Logger
}

// NewRunner creates a Runner. Tasks registered afterwards start
// immediately on their schedule; call Stop to drain them.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		logger:  logger,
		tasks:   make(map[string]*taskHandle),
		baseCtx: ctx,
		stop:    cancel,
	}
}

// Register schedules the task unless one with the same name already
// exists. It returns true when the task was registered.
func (r *Runner) Register(spec TaskSpec) bool {
	if spec.Period <= 0 {
		spec.Period = DefaultPeriod
	}
	if spec.Jitter < 0 {
		spec.Jitter = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	if _, exists := r.tasks[spec.Name]; exists {
		r.logger.Info("task already registered, keeping existing schedule", "task", spec.Name)
		return false
	}

	taskCtx, cancel := context.WithCancel(r.baseCtx)
	h := &taskHandle{spec: spec, cancel: cancel}
	r.tasks[spec.Name] = h

	r.wg.Add(1)
	go r.loop(taskCtx, h)

	r.logger.Info("task registered",
		"task", spec.Name,
		"period", spec.Period.String(),
		"jitter", spec.Jitter.String(),
	)
	return true
}

// Cancel stops the named task's schedule. An in-flight run finishes.
// It returns false when no such task is registered.
func (r *Runner) Cancel(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.tasks[name]
	if !ok {
		return false
	}
	h.cancel()
	delete(r.tasks, name)
	r.logger.Info("task cancelled", "task", name)
	return true
}

// RunNow executes the named task immediately, bypassing its precondition
// and schedule. It serializes with any scheduled run of the same task.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	h, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return types.NewAppErrorWithDetails(types.ErrCodeNotFoundTask,
			"no task registered with that name", nil,
			map[string]any{"task": name})
	}

	h.runMu.Lock()
	defer h.runMu.Unlock()
	return h.spec.Run(ctx, time.Now().UTC())
}

// Stop cancels every task and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.stop()
	r.tasks = make(map[string]*taskHandle)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, h *taskHandle) {
	defer r.wg.Done()

	failures := 0
	timer := time.NewTimer(r.nextWait(h.spec, failures))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if h.spec.Precondition != nil && !h.spec.Precondition(ctx) {
			r.logger.InfoContext(ctx, "task precondition not met, skipping run", "task", h.spec.Name)
			timer.Reset(r.nextWait(h.spec, 0))
			continue
		}

		h.runMu.Lock()
		err := h.spec.Run(ctx, time.Now().UTC())
		h.runMu.Unlock()

		switch {
		case err == nil:
			failures = 0
		case IsRetryable(err):
			failures++
			r.logger.ErrorContext(ctx, "task failed, backing off",
				"task", h.spec.Name,
				"consecutive_failures", failures,
				"error", err,
			)
		default:
			failures = 0
			r.logger.ErrorContext(ctx, "task failed",
				"task", h.spec.Name,
				"error", err,
			)
		}

		if ctx.Err() != nil {
			return
		}
		timer.Reset(r.nextWait(h.spec, failures))
	}
}

// nextWait computes the delay before the next run: the period plus jitter,
// or an exponentially growing backoff capped at the period while the task
// keeps failing retryably.
func (r *Runner) nextWait(spec TaskSpec, failures int) time.Duration {
	if failures > 0 {
		n := failures - 1
		if n > maxRetryDoublings {
			n = maxRetryDoublings
		}
		wait := retryBaseWait << uint(n)
		if wait > spec.Period {
			wait = spec.Period
		}
		return wait
	}
	wait := spec.Period
	if spec.Jitter > 0 {
		wait += time.Duration(rand.Int63n(int64(spec.Jitter)))
	}
	return wait
}
