// Package health collects resource health and metrics across many deployed
// resources at once. It is built on the executor's batch fan-out and is
// deliberately partial-failure tolerant: an unreachable resource shows up as
// a failed entry, never as a failed collection.
package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/hoiltd/azmp/pkg/azcli"
	"github.com/hoiltd/azmp/pkg/logging"
)

// Resource identifies one deployed resource to probe
type Resource struct {
	Key string // caller-chosen identifier used to key results
	ID  string // full resource ID passed to the CLI
}

// Status is the health outcome for one resource
type Status struct {
	Healthy bool
	State   string // provisioning state reported by the CLI
	Err     error  // set when the probe itself failed
}

// MetricValue is one collected metric for a resource
type MetricValue struct {
	Name  string
	Value string // raw CLI output, owned by the caller to interpret
	Err   error
}

// ResourceMetrics collects the metric values for one resource
type ResourceMetrics struct {
	Metrics []MetricValue
}

// Failed reports whether any metric for the resource could not be collected
func (m ResourceMetrics) Failed() bool {
	for _, metric := range m.Metrics {
		if metric.Err != nil {
			return true
		}
	}
	return false
}

// Collector probes resources through the shared command executor
type Collector struct {
	Executor *azcli.Executor
	Logger   *logging.Logger
}

// NewCollector creates a collector
func NewCollector(exec *azcli.Executor, logger *logging.Logger) *Collector {
	return &Collector{Executor: exec, Logger: logger}
}

// CollectHealth probes the provisioning state of every resource
// concurrently and returns per-resource statuses. All resources reach a
// terminal state before this returns.
func (c *Collector) CollectHealth(ctx context.Context, resources []Resource) map[string]Status {
	items := make([]azcli.BatchItem, 0, len(resources))
	for _, res := range resources {
		items = append(items, azcli.BatchItem{
			Key: res.Key,
			Args: []string{
				"resource", "show",
				"--ids", res.ID,
				"--query", "properties.provisioningState",
				"--output", "tsv",
			},
		})
	}

	outcomes := c.Executor.ExecuteBatch(ctx, items)

	statuses := make(map[string]Status, len(outcomes))
	for key, outcome := range outcomes {
		if outcome.Err != nil {
			statuses[key] = Status{Err: outcome.Err}
			continue
		}
		state := strings.TrimSpace(outcome.Result.Stdout)
		statuses[key] = Status{
			Healthy: state == "Succeeded",
			State:   state,
		}
	}

	if c.Logger != nil {
		healthy, total := CountHealthy(statuses)
		c.Logger.Info("health collected", "healthy", healthy, "total", total)
	}
	return statuses
}

// CollectMetrics fetches the named metrics for every resource. Each metric
// is an independent CLI call bounded by the shared concurrency ceiling;
// results are reassembled per resource once all of its calls complete.
func (c *Collector) CollectMetrics(ctx context.Context, resources []Resource, metricNames []string) map[string]ResourceMetrics {
	groups := make([]azcli.GroupItem, 0, len(resources))
	for _, res := range resources {
		argv := make([][]string, 0, len(metricNames))
		for _, name := range metricNames {
			argv = append(argv, []string{
				"monitor", "metrics", "list",
				"--resource", res.ID,
				"--metric", name,
				"--output", "json",
			})
		}
		groups = append(groups, azcli.GroupItem{Key: res.Key, Argv: argv})
	}

	outcomes := c.Executor.ExecuteGrouped(ctx, groups)

	collected := make(map[string]ResourceMetrics, len(outcomes))
	for key, outcome := range outcomes {
		metrics := make([]MetricValue, len(metricNames))
		for i, name := range metricNames {
			metrics[i] = MetricValue{Name: name, Err: outcome.Errs[i]}
			if outcome.Errs[i] == nil {
				metrics[i].Value = strings.TrimSpace(outcome.Results[i].Stdout)
			}
		}
		collected[key] = ResourceMetrics{Metrics: metrics}
	}
	return collected
}

// CountHealthy returns how many statuses are healthy and the total count
func CountHealthy(statuses map[string]Status) (healthy, total int) {
	for _, status := range statuses {
		if status.Healthy {
			healthy++
		}
	}
	return healthy, len(statuses)
}

// Summarize renders a "N of M succeeded" line for a health collection
func Summarize(statuses map[string]Status) string {
	healthy, total := CountHealthy(statuses)
	return fmt.Sprintf("%d of %d healthy", healthy, total)
}
