package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoiltd/azmp/pkg/health"
	"github.com/hoiltd/azmp/pkg/pack"
	"github.com/hoiltd/azmp/pkg/report"
	"github.com/hoiltd/azmp/pkg/template"
	"github.com/hoiltd/azmp/pkg/ui"
	"github.com/hoiltd/azmp/pkg/validator"
)

// withRuntime resolves configuration and wires the runtime for a subcommand
func withRuntime(cmd *cobra.Command, flags *flagValues, fn func(rt *runtime) error) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.reporter = ui.NewReporter(cmd.ErrOrStderr())
	rt.reporter.SetQuiet(flags.quiet)
	return fn(rt)
}

// record appends a run report to history when a history store is configured
func (rt *runtime) record(r *report.RunReport) {
	if rt.history == nil {
		return
	}
	if err := rt.history.Record(r); err != nil {
		rt.logger.Warn("failed to record run history", "error", err)
	}
}

func createGenerateCommand(flags *flagValues) *cobra.Command {
	var definitionFile string

	cmd := &cobra.Command{
		Use:   "generate [OFFER]",
		Short: "Render the deployment artifacts for an offer",
		Long: `Renders mainTemplate.json, createUiDefinition.json and viewDefinition.json
for a builtin offer definition, or for one loaded from a YAML file with
--definition.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, flags, func(rt *runtime) error {
				var def *template.Definition
				var err error
				switch {
				case definitionFile != "":
					def, err = template.LoadDefinitionFile(definitionFile)
				case len(args) == 1:
					def, err = template.FindBuiltinDefinition(args[0])
				default:
					return fmt.Errorf("specify an offer name or --definition file")
				}
				if err != nil {
					return err
				}

				step := "rendering " + def.Name
				rt.reporter.StepStart(step)

				start := time.Now()
				gen := template.NewGenerator(rt.logger.WithComponent("template"))
				bundle, err := gen.Generate(def, rt.cfg.OutputDir)

				r := report.NewRunReport(report.KindGenerate, def.Name, err == nil, time.Since(start), 0)
				rt.record(r)
				if err != nil {
					rt.reporter.StepFailed(step, err)
					return err
				}
				rt.reporter.StepDone(step, time.Since(start))

				fmt.Fprintf(cmd.OutOrStdout(), "Generated %s (%d files) in %s\n",
					def.Name, len(bundle.Files), bundle.Dir)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&definitionFile, "definition", "d", "", "Offer definition YAML file")
	return cmd
}

func createValidateCommand(flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "validate BUNDLE_DIR",
		Short: "Run the static-analysis validator over a rendered bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, flags, func(rt *runtime) error {
				runner, err := validator.NewRunner(rt.sched, rt.cfg.ValidatorCommand,
					rt.cfg.Timeout, rt.logger.WithComponent("validator"))
				if err != nil {
					return err
				}

				step := "validating " + args[0]
				rt.reporter.StepStart(step)

				start := time.Now()
				rep, err := runner.Validate(cmd.Context(), args[0])
				if err != nil {
					rt.reporter.StepFailed(step, err)
					rt.record(report.NewRunReport(report.KindValidate, args[0], false, time.Since(start), 0))
					return err
				}
				rt.reporter.Summary(rep.Clean(), step, time.Since(start))

				runReport := report.NewRunReport(report.KindValidate, args[0], rep.Clean(), time.Since(start), rep.Retries)
				runReport.Detail = rep.Summary()
				rt.record(runReport)

				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], rep.Summary())
				for _, failure := range rep.Failures {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", failure)
				}
				if !rep.Clean() {
					return fmt.Errorf("validation failed: %s", rep.Summary())
				}
				return nil
			})
		},
	}
}

func createPackageCommand(flags *flagValues) *cobra.Command {
	var archivePath string

	cmd := &cobra.Command{
		Use:     "package BUNDLE_DIR",
		Aliases: []string{"pack"},
		Short:   "Zip a rendered bundle for submission",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, flags, func(rt *runtime) error {
				bundleDir := args[0]
				out := archivePath
				if out == "" {
					out = filepath.Join(rt.cfg.OutputDir, filepath.Base(bundleDir)+".zip")
				}

				step := "packaging " + bundleDir
				rt.reporter.StepStart(step)

				start := time.Now()
				packager := pack.NewPackager(rt.logger.WithComponent("pack"))
				err := packager.Package(bundleDir, out)

				rt.record(report.NewRunReport(report.KindPackage, bundleDir, err == nil, time.Since(start), 0))
				if err != nil {
					rt.reporter.StepFailed(step, err)
					return err
				}
				rt.reporter.StepDone(step, time.Since(start))

				fmt.Fprintf(cmd.OutOrStdout(), "Packaged %s -> %s\n", bundleDir, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&archivePath, "archive", "", "Archive path (default: <output-dir>/<bundle>.zip)")
	return cmd
}

func createHealthCommand(flags *flagValues) *cobra.Command {
	var metricNames []string

	cmd := &cobra.Command{
		Use:   "health KEY=RESOURCE_ID [KEY=RESOURCE_ID...]",
		Short: "Collect health (and optionally metrics) across deployed resources",
		Long: `Probes every named resource concurrently through the shared scheduler.
Unreachable resources are reported per key; a partial failure never aborts
the collection.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, flags, func(rt *runtime) error {
				resources, err := parseResources(args)
				if err != nil {
					return err
				}

				collector := health.NewCollector(rt.exec, rt.logger.WithComponent("health"))
				rt.reporter.StepStart(fmt.Sprintf("probing %d resources", len(resources)))

				start := time.Now()
				statuses := collector.CollectHealth(cmd.Context(), resources)
				healthy, total := health.CountHealthy(statuses)

				for _, res := range resources {
					status := statuses[res.Key]
					switch {
					case status.Err != nil:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: error: %v\n", res.Key, status.Err)
					case status.Healthy:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: healthy\n", res.Key)
					default:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Key, status.State)
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), health.Summarize(statuses))

				if len(metricNames) > 0 {
					collected := collector.CollectMetrics(cmd.Context(), resources, metricNames)
					for _, res := range resources {
						for _, metric := range collected[res.Key].Metrics {
							if metric.Err != nil {
								fmt.Fprintf(cmd.OutOrStdout(), "%s %s: error: %v\n", res.Key, metric.Name, metric.Err)
								continue
							}
							fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", res.Key, metric.Name, metric.Value)
						}
					}
				}

				r := report.NewRunReport(report.KindHealth, fmt.Sprintf("%d resources", total),
					healthy == total, time.Since(start), 0)
				r.Detail = health.Summarize(statuses)
				rt.record(r)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&metricNames, "metric", "m", nil, "Metric name to collect per resource (repeatable)")
	return cmd
}

func createHistoryCommand(flags *flagValues) *cobra.Command {
	var limit int
	var summary bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, flags, func(rt *runtime) error {
				if rt.history == nil {
					return fmt.Errorf("no history database configured (set --history-db)")
				}

				if summary {
					stats, err := rt.history.Summary()
					if err != nil {
						return err
					}
					for _, entry := range stats {
						fmt.Fprintf(cmd.OutOrStdout(), "%-10s %3d runs, %.0f%% success, avg %s\n",
							entry.Kind, entry.TotalRuns, entry.SuccessRate*100, ui.FormatDuration(entry.AvgDuration))
					}
					return nil
				}

				runs, err := rt.history.Recent(limit)
				if err != nil {
					return err
				}
				for _, r := range runs {
					line := fmt.Sprintf("%s %-10s %-20s %s (%.2fs)",
						time.Unix(r.Timestamp, 0).Format(time.RFC3339),
						r.Kind, r.Target, r.FinalStatus, r.DurationSeconds())
					if r.Detail != "" {
						line += " - " + r.Detail
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&summary, "summary", false, "Show per-kind aggregates instead of individual runs")
	return cmd
}

// parseResources parses KEY=RESOURCE_ID arguments
func parseResources(args []string) ([]health.Resource, error) {
	resources := make([]health.Resource, 0, len(args))
	seen := make(map[string]bool)
	for _, arg := range args {
		key, id, found := strings.Cut(arg, "=")
		if !found || key == "" || id == "" {
			return nil, fmt.Errorf("invalid resource %q: expected KEY=RESOURCE_ID", arg)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate resource key %q", key)
		}
		seen[key] = true
		resources = append(resources, health.Resource{Key: key, ID: id})
	}
	return resources, nil
}
