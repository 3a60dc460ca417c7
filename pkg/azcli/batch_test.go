package azcli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteBatch_PartialFailure(t *testing.T) {
	// Given 5 items where only "item-3" fails
	fake := &fakeInvoker{
		ExitFor: func(args []string) int {
			if args[len(args)-1] == "item-3" {
				return 1
			}
			return 0
		},
	}
	exec := newTestExecutor(fake)

	var items []BatchItem
	for _, key := range []string{"item-1", "item-2", "item-3", "item-4", "item-5"} {
		items = append(items, BatchItem{Key: key, Args: []string{"resource", "show", key}})
	}

	// When the batch executes
	outcomes := exec.ExecuteBatch(context.Background(), items)

	// Then every item reaches a terminal state and only item-3 carries an error
	require.Len(t, outcomes, 5)
	succeeded := 0
	for key, outcome := range outcomes {
		if key == "item-3" {
			require.Error(t, outcome.Err)
			var cmdErr *CommandError
			assert.ErrorAs(t, outcome.Err, &cmdErr)
			assert.Nil(t, outcome.Result)
			continue
		}
		require.NoError(t, outcome.Err, "unexpected failure for %s", key)
		assert.True(t, outcome.Succeeded())
		succeeded++
	}
	assert.Equal(t, 4, succeeded)
}

func TestExecuteBatch_RespectsSharedCeiling(t *testing.T) {
	// Given a ceiling of 2 and five 50ms commands
	sched := NewScheduler(2)
	fake := &fakeInvoker{Delay: 50 * time.Millisecond}
	exec := NewExecutor(sched)
	exec.Invoker = fake

	items := []BatchItem{
		{Key: "a", Args: []string{"a"}},
		{Key: "b", Args: []string{"b"}},
		{Key: "c", Args: []string{"c"}},
		{Key: "d", Args: []string{"d"}},
		{Key: "e", Args: []string{"e"}},
	}

	statsSeen := make(chan Stats, 1)
	go func() {
		// Observe the scheduler shortly after submission
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			stats := sched.Stats()
			if stats.Running == 2 && stats.Queued == 3 {
				statsSeen <- stats
				return
			}
			time.Sleep(time.Millisecond)
		}
		statsSeen <- sched.Stats()
	}()

	start := time.Now()
	outcomes := exec.ExecuteBatch(context.Background(), items)
	elapsed := time.Since(start)

	// Then two run at once with three queued, and all five finish in
	// roughly three 50ms waves
	stats := <-statsSeen
	assert.Equal(t, 2, stats.Running)
	assert.Equal(t, 3, stats.Queued)
	require.Len(t, outcomes, 5)
	for key, outcome := range outcomes {
		assert.NoError(t, outcome.Err, "item %s", key)
	}
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestExecuteGrouped_MetricExpansion(t *testing.T) {
	// Given two resources with two named metrics each, where one metric
	// call for web-1 fails
	fake := &fakeInvoker{
		ExitFor: func(args []string) int {
			if args[len(args)-1] == "web-1/cpu" {
				return 1
			}
			return 0
		},
		Stdout: "42",
	}
	exec := newTestExecutor(fake)

	groups := []GroupItem{
		{Key: "web-1", Argv: [][]string{
			{"monitor", "metrics", "web-1/cpu"},
			{"monitor", "metrics", "web-1/memory"},
		}},
		{Key: "web-2", Argv: [][]string{
			{"monitor", "metrics", "web-2/cpu"},
			{"monitor", "metrics", "web-2/memory"},
		}},
	}

	outcomes := exec.ExecuteGrouped(context.Background(), groups)

	// Then outcomes reassemble per resource, index-aligned with the
	// sub-requests, and the one failure does not taint the rest
	require.Len(t, outcomes, 2)

	web1 := outcomes["web-1"]
	require.Len(t, web1.Results, 2)
	assert.True(t, web1.Failed())
	assert.Error(t, web1.Errs[0])
	assert.NoError(t, web1.Errs[1])
	assert.Equal(t, "42", web1.Results[1].Stdout)

	web2 := outcomes["web-2"]
	assert.False(t, web2.Failed())
	assert.NoError(t, web2.Errs[0])
	assert.NoError(t, web2.Errs[1])

	assert.Equal(t, 4, fake.Spawns())
}
