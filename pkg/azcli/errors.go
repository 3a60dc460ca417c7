package azcli

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled is returned when a request's context is cancelled while it is
// queued or running. Cancellation is terminal: a cancelled request is never
// retried.
var ErrCancelled = errors.New("execution cancelled")

// SpawnError indicates the external command could not be started at all,
// typically because the CLI binary is missing from PATH.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// CommandError indicates the command started, ran, and exited non-zero on
// every allowed attempt. Attempts is the total number of attempts made;
// Stdout and Stderr hold the captured output of the last one.
type CommandError struct {
	Attempts int
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Attempts == 1 {
		return fmt.Sprintf("command failed after 1 attempt: exit code %d", e.ExitCode)
	}
	return fmt.Sprintf("command failed after %d attempts: exit code %d", e.Attempts, e.ExitCode)
}

// TimeoutError indicates a single attempt exceeded its configured duration
// and the underlying process was terminated. A timeout on the final allowed
// attempt surfaces as a TimeoutError, not a CommandError, so callers can tell
// "the tool ran and failed" apart from "the tool never finished".
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s", e.Timeout)
}
