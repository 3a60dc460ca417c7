package azcli

import (
	"context"
	"errors"
	"time"

	"github.com/hoiltd/azmp/pkg/logging"
)

// Default per-attempt timeout and retry budget, matching the configuration
// defaults in pkg/config.
const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 3
)

// ExecOptions are per-call overrides for Execute. Nil fields fall back to the
// executor defaults.
type ExecOptions struct {
	// Timeout overrides the per-attempt timeout. A zero or negative value
	// disables the timeout entirely rather than failing immediately.
	Timeout *time.Duration
	// Retries overrides the retry budget. Zero means a single attempt.
	Retries *int
}

// Result is the outcome of a successful execution.
type Result struct {
	// Stdout is the accumulated standard output of the final attempt.
	Stdout string
	// Duration is wall-clock time from admission to completion. Time spent
	// queued behind the concurrency ceiling is excluded.
	Duration time.Duration
	// Retries is the number of retries consumed; 0 if the first attempt
	// succeeded.
	Retries int
}

// Executor runs external CLI commands through a shared admission scheduler
// with per-attempt timeouts and bounded retries.
type Executor struct {
	Scheduler      *Scheduler
	Invoker        Invoker
	DefaultTimeout time.Duration
	DefaultRetries int
	Logger         *logging.Logger
}

// NewExecutor creates an executor over the system invoker with default
// timeout and retry settings.
func NewExecutor(sched *Scheduler) *Executor {
	return &Executor{
		Scheduler:      sched,
		Invoker:        &SystemInvoker{},
		DefaultTimeout: DefaultTimeout,
		DefaultRetries: DefaultRetries,
	}
}

// NewExecutorWithDefaults creates an executor with explicit timeout and retry
// defaults, typically sourced from configuration.
func NewExecutorWithDefaults(sched *Scheduler, timeout time.Duration, retries int) *Executor {
	return &Executor{
		Scheduler:      sched,
		Invoker:        &SystemInvoker{},
		DefaultTimeout: timeout,
		DefaultRetries: retries,
	}
}

// Execute runs one command with full admission, retry, timeout and
// cancellation handling. It blocks while the request is queued and while the
// process runs; cancel ctx to stop waiting or to terminate a live process.
func (e *Executor) Execute(ctx context.Context, args []string, opts *ExecOptions) (*Result, error) {
	timeout := e.DefaultTimeout
	retries := e.DefaultRetries
	if opts != nil {
		if opts.Timeout != nil {
			timeout = *opts.Timeout
		}
		if opts.Retries != nil {
			retries = *opts.Retries
		}
	}
	if retries < 0 {
		retries = 0
	}

	if err := e.Scheduler.Acquire(ctx); err != nil {
		return nil, err
	}
	defer e.Scheduler.Release()

	start := time.Now()
	out, used, err := e.runWithRetries(ctx, args, timeout, retries)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Error("command failed", "args", args, "error", err)
		}
		return nil, err
	}

	return &Result{
		Stdout:   out.Stdout,
		Duration: time.Since(start),
		Retries:  used,
	}, nil
}

// runAttempt spawns the command once, racing process exit against the
// per-attempt deadline and caller cancellation. A non-positive timeout means
// no timeout.
func (e *Executor) runAttempt(ctx context.Context, args []string, timeout time.Duration) (Output, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	handle, err := e.Invoker.Spawn(args)
	if err != nil {
		return Output{}, err
	}

	e.Scheduler.track(handle)
	defer e.Scheduler.untrack(handle)

	type waitOutcome struct {
		out Output
		err error
	}
	done := make(chan waitOutcome, 1)
	go func() {
		out, err := handle.Wait()
		done <- waitOutcome{out, err}
	}()

	select {
	case w := <-done:
		if w.err != nil {
			return w.out, w.err
		}
		return w.out, nil
	case <-ctx.Done():
		handle.Terminate()
		<-done // reap the process before reporting
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Output{ExitCode: -1}, &TimeoutError{Timeout: timeout}
		}
		return Output{ExitCode: -1}, ErrCancelled
	}
}
