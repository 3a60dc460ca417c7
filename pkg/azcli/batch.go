package azcli

import (
	"context"
	"sync"
)

// BatchItem is one logical operation in a batch, identified by Key.
type BatchItem struct {
	Key  string
	Args []string
}

// BatchOutcome is the terminal state of one batch item: exactly one of Result
// and Err is set.
type BatchOutcome struct {
	Result *Result
	Err    error
}

// Succeeded reports whether the item completed without error.
func (o BatchOutcome) Succeeded() bool {
	return o.Err == nil
}

// ExecuteBatch fans the items out as concurrent requests through the shared
// scheduler and fans the outcomes back into a map keyed by item. No single
// item's failure aborts the batch: ExecuteBatch always waits for every item
// to reach a terminal state, so callers can report partial success.
func (e *Executor) ExecuteBatch(ctx context.Context, items []BatchItem) map[string]BatchOutcome {
	outcomes := make(map[string]BatchOutcome, len(items))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(item BatchItem) {
			defer wg.Done()
			result, err := e.Execute(ctx, item.Args, nil)

			mu.Lock()
			outcomes[item.Key] = BatchOutcome{Result: result, Err: err}
			mu.Unlock()
		}(item)
	}

	wg.Wait()
	return outcomes
}

// GroupItem is one logical operation that expands into several underlying
// requests, e.g. several named metrics for one resource.
type GroupItem struct {
	Key  string
	Argv [][]string
}

// GroupOutcome collects the per-request outcomes of one group, index-aligned
// with the group's Argv.
type GroupOutcome struct {
	Results []*Result
	Errs    []error
}

// Failed reports whether any sub-request of the group failed.
func (o GroupOutcome) Failed() bool {
	for _, err := range o.Errs {
		if err != nil {
			return true
		}
	}
	return false
}

// ExecuteGrouped expands each group into independent requests, still bounded
// by the same scheduler ceiling, and reassembles per-group outcomes once all
// of a group's sub-requests complete. Like ExecuteBatch, it tolerates
// per-request failure and always waits for everything.
func (e *Executor) ExecuteGrouped(ctx context.Context, groups []GroupItem) map[string]GroupOutcome {
	outcomes := make(map[string]GroupOutcome, len(groups))

	var mu sync.Mutex
	var wg sync.WaitGroup

	// Populate every group slot before any fan-out so goroutines only ever
	// write into pre-sized slices
	for _, group := range groups {
		outcomes[group.Key] = GroupOutcome{
			Results: make([]*Result, len(group.Argv)),
			Errs:    make([]error, len(group.Argv)),
		}
	}

	for _, group := range groups {
		for i, args := range group.Argv {
			wg.Add(1)
			go func(key string, i int, args []string) {
				defer wg.Done()
				result, err := e.Execute(ctx, args, nil)

				mu.Lock()
				outcomes[key].Results[i] = result
				outcomes[key].Errs[i] = err
				mu.Unlock()
			}(group.Key, i, args)
		}
	}

	wg.Wait()
	return outcomes
}
