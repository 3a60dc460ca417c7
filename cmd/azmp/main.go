package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoiltd/azmp/pkg/azcli"
	"github.com/hoiltd/azmp/pkg/config"
	"github.com/hoiltd/azmp/pkg/history"
	"github.com/hoiltd/azmp/pkg/logging"
	"github.com/hoiltd/azmp/pkg/ui"
)

var version = "dev"

// flagValues holds raw CLI flag values before they are merged with the
// config file and environment
type flagValues struct {
	configFile       string
	maxConcurrency   int
	timeout          time.Duration
	retries          int
	cliCommand       string
	validatorCommand string
	outputDir        string
	historyDB        string
	logLevel         string
	quiet            bool
}

// runtime is the wired-up application state shared by subcommands
type runtime struct {
	cfg      *config.Config
	logger   *logging.Logger
	sched    *azcli.Scheduler
	exec     *azcli.Executor
	history  *history.Store // nil when no history database is configured
	reporter *ui.Reporter
}

// loadConfig resolves configuration with full precedence: defaults < config
// file < AZMP_* environment < explicitly set flags.
func loadConfig(cmd *cobra.Command, flags *flagValues) (*config.Config, error) {
	configFile := flags.configFile
	if configFile == "" {
		if cwd, err := os.Getwd(); err == nil {
			configFile = config.FindConfigFile(cwd)
		}
	}

	flagConfig := &config.Config{
		MaxConcurrency:   flags.maxConcurrency,
		Timeout:          flags.timeout,
		Retries:          flags.retries,
		CLICommand:       flags.cliCommand,
		ValidatorCommand: flags.validatorCommand,
		OutputDir:        flags.outputDir,
		HistoryDB:        flags.historyDB,
		LogLevel:         flags.logLevel,
	}
	explicit := map[string]bool{
		"max_concurrency":   cmd.Flags().Changed("max-concurrency"),
		"timeout":           cmd.Flags().Changed("timeout"),
		"retries":           cmd.Flags().Changed("retries"),
		"cli_command":       cmd.Flags().Changed("cli-command"),
		"validator_command": cmd.Flags().Changed("validator-command"),
		"output_dir":        cmd.Flags().Changed("output-dir"),
		"history_db":        cmd.Flags().Changed("history-db"),
		"log_level":         cmd.Flags().Changed("log-level"),
	}

	return config.LoadWithPrecedence(configFile, flagConfig, explicit)
}

// newRuntime wires the shared scheduler, executor, logger and history store
// from resolved configuration.
func newRuntime(cfg *config.Config) (*runtime, error) {
	logger := logging.NewLogger("azmp", logging.Level(cfg.LogLevel))

	sched := azcli.NewScheduler(cfg.MaxConcurrency)
	exec := azcli.NewExecutorWithDefaults(sched, cfg.Timeout, cfg.Retries)
	exec.Invoker = &azcli.SystemInvoker{Command: cfg.CLICommand}
	exec.Logger = logger.WithComponent("azcli")

	rt := &runtime{cfg: cfg, logger: logger, sched: sched, exec: exec}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		rt.history = store
	}

	return rt, nil
}

// close releases runtime resources; safe to call once per runtime
func (rt *runtime) close() {
	rt.sched.CancelAll()
	if rt.history != nil {
		rt.history.Close()
	}
}

func newRootCommand() *cobra.Command {
	flags := &flagValues{}

	root := &cobra.Command{
		Use:     "azmp",
		Short:   "Generate, validate and package marketplace application bundles",
		Version: version,
		Long: `azmp renders marketplace application bundles from parameterized offer
definitions, checks them with an external static-analysis validator, and zips
the result for submission. Cloud CLI calls run through a shared scheduler
with a global concurrency ceiling, per-call timeouts and bounded retries.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "Path to config file (default: .azmp.toml in the working directory)")
	pf.IntVar(&flags.maxConcurrency, "max-concurrency", 10, "Maximum concurrent CLI invocations")
	pf.DurationVarP(&flags.timeout, "timeout", "t", 30*time.Second, "Per-attempt timeout (0 disables)")
	pf.IntVarP(&flags.retries, "retries", "r", 3, "Retries per CLI invocation")
	pf.StringVar(&flags.cliCommand, "cli-command", "az", "Cloud CLI binary")
	pf.StringVar(&flags.validatorCommand, "validator-command", "arm-ttk", "Static-analysis validator binary")
	pf.StringVarP(&flags.outputDir, "output-dir", "o", "dist", "Directory for rendered bundles and archives")
	pf.StringVar(&flags.historyDB, "history-db", "", "SQLite database for run history (empty disables)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress progress output")

	root.AddCommand(
		createGenerateCommand(flags),
		createValidateCommand(flags),
		createPackageCommand(flags),
		createHealthCommand(flags),
		createHistoryCommand(flags),
	)

	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "azmp: %v\n", err)
		os.Exit(1)
	}
}
