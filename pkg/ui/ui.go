package ui

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Reporter writes human-readable progress for long-running bundle
// operations. It is separate from structured logging: log output goes to
// operators and files, reporter output goes to the person at the terminal.
type Reporter struct {
	writer io.Writer
	quiet  bool
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{writer: w}
}

// SetQuiet enables or disables quiet mode (suppresses progress messages;
// summaries still print)
func (r *Reporter) SetQuiet(quiet bool) {
	r.quiet = quiet
}

// StepStart reports the start of a named operation step
func (r *Reporter) StepStart(step string) {
	if r.quiet {
		return
	}
	fmt.Fprintf(r.writer, "[azmp] %s...\n", step)
}

// StepDone reports a completed step with its elapsed time
func (r *Reporter) StepDone(step string, elapsed time.Duration) {
	if r.quiet {
		return
	}
	fmt.Fprintf(r.writer, "[azmp] %s done in %s.\n", step, FormatDuration(elapsed))
}

// StepFailed reports a failed step; printed even in quiet mode
func (r *Reporter) StepFailed(step string, err error) {
	fmt.Fprintf(r.writer, "[azmp] %s failed: %v\n", step, err)
}

// Summary reports the final outcome of a command
func (r *Reporter) Summary(success bool, what string, elapsed time.Duration) {
	if success {
		fmt.Fprintf(r.writer, "✅ [azmp] %s succeeded in %s.\n", what, FormatDuration(elapsed))
	} else {
		fmt.Fprintf(r.writer, "❌ [azmp] %s failed after %s.\n", what, FormatDuration(elapsed))
	}
}

// FormatDuration formats a duration for terminal output, trimming
// insignificant precision
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	if d < time.Second {
		return fmt.Sprintf("%.1fs", float64(d)/float64(time.Second))
	}

	if d < time.Minute {
		seconds := float64(d) / float64(time.Second)
		if seconds == float64(int(seconds)) {
			return fmt.Sprintf("%.0fs", seconds)
		}
		formatted := strings.TrimRight(fmt.Sprintf("%.2f", seconds), "0")
		formatted = strings.TrimRight(formatted, ".")
		return formatted + "s"
	}

	hours := d / time.Hour
	minutes := (d % time.Hour) / time.Minute
	seconds := (d % time.Minute) / time.Second

	var b strings.Builder
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	if seconds > 0 || b.Len() == 0 {
		fmt.Fprintf(&b, "%ds", seconds)
	}
	return b.String()
}
