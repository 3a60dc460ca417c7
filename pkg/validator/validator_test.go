package validator

import (
	"context"
	"testing"
	"time"

	"github.com/hoiltd/azmp/pkg/azcli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `
Validating managed-app
  [+] Template schema is valid
  [+] apiVersions are recent
  [?] Parameters should have descriptions
  [-] adminUsername must not have a default
  [+] Outputs are well formed
`

func TestClassifier_CountsByKind(t *testing.T) {
	classifier, err := NewClassifier("", "", "")
	require.NoError(t, err)

	report := classifier.Classify(sampleOutput)

	assert.Equal(t, 3, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Warnings)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0], "adminUsername")
	assert.False(t, report.Clean())
	assert.Equal(t, "3 passed, 1 failed, 1 warnings", report.Summary())
}

func TestClassifier_RejectsBadPattern(t *testing.T) {
	_, err := NewClassifier("[", "", "")
	assert.Error(t, err)
}

func TestRunner_ValidatesThroughShellScript(t *testing.T) {
	// Given a validator stub that prints findings and exits clean
	sched := azcli.NewScheduler(2)
	runner, err := NewRunner(sched, "sh", 5*time.Second, nil)
	require.NoError(t, err)

	report, err := runner.run(context.Background(),
		[]string{"-c", `printf '  [+] ok one\n  [+] ok two\n'`}, "bundle")
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 0, report.Retries)
}

func TestRunner_NonZeroExitWithFindingsIsAReport(t *testing.T) {
	sched := azcli.NewScheduler(2)
	runner, err := NewRunner(sched, "sh", 5*time.Second, nil)
	require.NoError(t, err)

	// The validator exits 1 when a test fails; that must surface as a
	// report with failures, not as an execution error
	report, err := runner.run(context.Background(),
		[]string{"-c", `printf '  [+] ok\n  [-] broken thing\n'; exit 1`}, "bundle")
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, 1, report.Failed)
}

func TestRunner_ToolNeverFinishingIsAnError(t *testing.T) {
	sched := azcli.NewScheduler(2)
	runner, err := NewRunner(sched, "definitely-not-a-real-validator", time.Second, nil)
	require.NoError(t, err)

	_, err = runner.Validate(context.Background(), "bundle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not finish")
}

func TestRunner_NonZeroExitWithoutFindingsIsDistinctError(t *testing.T) {
	sched := azcli.NewScheduler(2)
	runner, err := NewRunner(sched, "sh", 5*time.Second, nil)
	require.NoError(t, err)

	// The tool ran and exited non-zero, but nothing in its output
	// classifies; that is not the same as never finishing
	_, err = runner.run(context.Background(),
		[]string{"-c", `echo unparseable garbage; exit 2`}, "bundle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 2")
	assert.NotContains(t, err.Error(), "did not finish")
}
