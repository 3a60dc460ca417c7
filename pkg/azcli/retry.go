package azcli

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// runWithRetries attempts the command up to retries+1 times, stopping at the
// first success. There is no delay between attempts; each attempt is bounded
// only by its own timeout. Returns the final output, the number of retries
// consumed, and the terminal error if every attempt failed.
//
// Cancellation short-circuits: once ctx is cancelled no further attempts are
// made, regardless of remaining retry budget.
func (e *Executor) runWithRetries(ctx context.Context, args []string, timeout time.Duration, retries int) (Output, int, error) {
	attempts := retries + 1

	var lastOut Output
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := e.runAttempt(ctx, args, timeout)
		lastOut = out

		if err == nil && out.ExitCode == 0 {
			return out, attempt - 1, nil
		}

		if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
			return out, attempt - 1, ErrCancelled
		}

		if err == nil {
			// Ran but exited non-zero; attempt count is finalized below
			err = &CommandError{
				Attempts: attempt,
				ExitCode: out.ExitCode,
				Stdout:   out.Stdout,
				Stderr:   out.Stderr,
			}
		}
		lastErr = err

		if e.Logger != nil && attempt < attempts {
			e.Logger.Debug("attempt failed, retrying",
				"attempt", attempt, "max_attempts", attempts, "error", err)
		}
	}

	switch typed := lastErr.(type) {
	case *CommandError:
		typed.Attempts = attempts
	case *TimeoutError:
		// Surfaced as-is so callers can tell a timeout from a failure
	default:
		lastErr = fmt.Errorf("command failed after %d attempts: %w", attempts, lastErr)
	}
	return lastOut, attempts - 1, lastErr
}
