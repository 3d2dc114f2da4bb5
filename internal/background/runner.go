package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/logging"
)

const defaultTaskTimeout = 30 * time.Second

// ErrClosed is returned by Go after Close has been called.
var ErrClosed = errors.New("background runner closed")

// Task is a unit of best-effort work.
type Task func(ctx context.Context) error

// ErrorHook receives task failures. It must not block.
type ErrorHook func(name string, err error)

// Options configures a Runner.
type Options struct {
	// Timeout bounds each task; zero uses the default.
	Timeout time.Duration
	// OnError is invoked after a failed task has been logged.
	OnError ErrorHook
}

// Runner executes tasks on their own goroutines.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
	onError ErrorHook

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New constructs a Runner.
func New(logger *slog.Logger, opts Options) *Runner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	return &Runner{
		logger:  logging.NewComponentLogger(logger, "background"),
		timeout: timeout,
		onError: opts.OnError,
	}
}

// Go schedules task under name. The task context inherits values from ctx but
// not its cancellation, so it outlives the request that spawned it.
func (r *Runner) Go(ctx context.Context, name string, task Task) error {
	if r == nil || task == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		r.run(taskCtx, name, task)
	}()
	return nil
}

func (r *Runner) run(ctx context.Context, name string, task Task) {
	logger := logging.WithContext(ctx, r.logger)
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("task panicked: %v", recovered)
			}
		}()
		return task(ctx)
	}()
	if err == nil {
		logger.Debug("background task completed",
			logging.String("task", name),
			logging.Duration("duration", time.Since(start)),
		)
		return
	}
	logging.WarnWithContext(logger, "background task failed", "background_task_failed",
		logging.String("task", name),
		logging.Duration("duration", time.Since(start)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "side write was skipped; the response was unaffected"),
		logging.String(logging.FieldImpact, "cache or correction log may be missing this result"),
	)
	if r.onError != nil {
		r.onError(name, err)
	}
}

// Wait blocks until all scheduled tasks finish.
func (r *Runner) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// Close rejects new tasks and waits for in-flight ones.
func (r *Runner) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
	return nil
}
