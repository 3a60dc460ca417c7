// Package validator runs the external static-analysis validator over a
// rendered bundle and summarizes its findings.
package validator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hoiltd/azmp/pkg/azcli"
	"github.com/hoiltd/azmp/pkg/logging"
)

// Default classification patterns for arm-ttk style output lines
const (
	defaultPassPattern = `^\s*\[\+\]`
	defaultFailPattern = `^\s*\[-\]`
	defaultWarnPattern = `^\s*\[\?\]`
)

// Classifier sorts validator output lines into pass/fail/warn buckets
type Classifier struct {
	passPattern *regexp.Regexp
	failPattern *regexp.Regexp
	warnPattern *regexp.Regexp
}

// NewClassifier creates a classifier; empty patterns fall back to the
// arm-ttk defaults.
func NewClassifier(passPattern, failPattern, warnPattern string) (*Classifier, error) {
	if passPattern == "" {
		passPattern = defaultPassPattern
	}
	if failPattern == "" {
		failPattern = defaultFailPattern
	}
	if warnPattern == "" {
		warnPattern = defaultWarnPattern
	}

	pass, err := regexp.Compile(passPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pass pattern: %w", err)
	}
	fail, err := regexp.Compile(failPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid fail pattern: %w", err)
	}
	warn, err := regexp.Compile(warnPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid warn pattern: %w", err)
	}

	return &Classifier{passPattern: pass, failPattern: fail, warnPattern: warn}, nil
}

// Report is the summarized outcome of one validator run
type Report struct {
	Passed   int
	Failed   int
	Warnings int
	Failures []string
	Duration time.Duration
	Retries  int
}

// Clean reports whether the run found no failures
func (r *Report) Clean() bool {
	return r.Failed == 0
}

// Summary returns a one-line human-readable outcome
func (r *Report) Summary() string {
	return fmt.Sprintf("%d passed, %d failed, %d warnings", r.Passed, r.Failed, r.Warnings)
}

// Classify builds a report from raw validator output
func (c *Classifier) Classify(output string) *Report {
	report := &Report{}
	for _, line := range strings.Split(output, "\n") {
		switch {
		case c.failPattern.MatchString(line):
			report.Failed++
			report.Failures = append(report.Failures, strings.TrimSpace(line))
		case c.passPattern.MatchString(line):
			report.Passed++
		case c.warnPattern.MatchString(line):
			report.Warnings++
		}
	}
	return report
}

// Runner executes the validator through the shared admission scheduler
type Runner struct {
	Executor   *azcli.Executor
	Classifier *Classifier
	Logger     *logging.Logger
}

// NewRunner creates a runner for the given validator binary. It shares the
// scheduler's concurrency ceiling with the rest of the tool but never
// retries: a validator verdict is deterministic, so re-running a failed
// invocation only wastes a slot.
func NewRunner(sched *azcli.Scheduler, command string, timeout time.Duration, logger *logging.Logger) (*Runner, error) {
	classifier, err := NewClassifier("", "", "")
	if err != nil {
		return nil, err
	}

	exec := azcli.NewExecutorWithDefaults(sched, timeout, 0)
	exec.Invoker = &azcli.SystemInvoker{Command: command}

	return &Runner{
		Executor:   exec,
		Classifier: classifier,
		Logger:     logger,
	}, nil
}

// Validate runs the external validator over bundleDir and returns the
// classified report. A non-nil error means the tool never produced a
// judgement: it could not start, timed out, or was cancelled. A report with
// failures is not an error.
func (r *Runner) Validate(ctx context.Context, bundleDir string) (*Report, error) {
	return r.run(ctx, []string{"-TemplatePath", bundleDir}, bundleDir)
}

func (r *Runner) run(ctx context.Context, args []string, bundleDir string) (*Report, error) {
	result, err := r.Executor.Execute(ctx, args, nil)
	if err != nil {
		var cmdErr *azcli.CommandError
		if errors.As(err, &cmdErr) {
			// The validator exits non-zero when tests fail; that is a
			// judgement, not an execution error
			report := r.Classifier.Classify(cmdErr.Stdout + "\n" + cmdErr.Stderr)
			if report.Failed > 0 {
				return report, nil
			}
			// It ran to completion but produced nothing classifiable
			return nil, fmt.Errorf("validator exited with code %d without reporting failures: %w",
				cmdErr.ExitCode, err)
		}
		return nil, fmt.Errorf("validator did not finish: %w", err)
	}

	report := r.Classifier.Classify(result.Stdout)
	report.Duration = result.Duration
	report.Retries = result.Retries

	if r.Logger != nil {
		r.Logger.Info("validation completed", "bundle", bundleDir,
			"passed", report.Passed, "failed", report.Failed, "warnings", report.Warnings)
	}
	return report, nil
}
