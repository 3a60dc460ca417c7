package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the azmp CLI
type Config struct {
	MaxConcurrency   int           `mapstructure:"max_concurrency"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Retries          int           `mapstructure:"retries"`
	CLICommand       string        `mapstructure:"cli_command"`
	ValidatorCommand string        `mapstructure:"validator_command"`
	OutputDir        string        `mapstructure:"output_dir"`
	HistoryDB        string        `mapstructure:"history_db"`
	LogLevel         string        `mapstructure:"log_level"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value '%v': %s", e.Field, e.Value, e.Message)
}

// envMappings maps environment variables to config keys
var envMappings = map[string]string{
	"AZMP_MAX_CONCURRENCY":   "max_concurrency",
	"AZMP_TIMEOUT":           "timeout",
	"AZMP_RETRIES":           "retries",
	"AZMP_CLI_COMMAND":       "cli_command",
	"AZMP_VALIDATOR_COMMAND": "validator_command",
	"AZMP_OUTPUT_DIR":        "output_dir",
	"AZMP_HISTORY_DB":        "history_db",
	"AZMP_LOG_LEVEL":         "log_level",
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("max_concurrency", 10)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("retries", 3)
	v.SetDefault("cli_command", "az")
	v.SetDefault("validator_command", "arm-ttk")
	v.SetDefault("output_dir", "dist")
	v.SetDefault("history_db", "")
	v.SetDefault("log_level", "info")
}

// LoadWithDefaults returns a configuration with default values
func LoadWithDefaults() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		// The defaults are static; failing to decode them is a programming
		// error, not a runtime condition
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return &config
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configFile)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadWithPrecedence loads configuration with defaults < config file <
// environment variables < explicitly set CLI flags.
func LoadWithPrecedence(configFile string, flagConfig *Config, explicitFields map[string]bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("AZMP")
	v.AutomaticEnv()
	for envVar, configKey := range envMappings {
		v.BindEnv(configKey, envVar)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if flagConfig != nil && explicitFields != nil {
		config = *config.MergeWithExplicitFlags(flagConfig, explicitFields)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// MergeWithExplicitFlags merges configuration with flag values that were
// explicitly set, so zero values on the command line are honored.
func (c *Config) MergeWithExplicitFlags(flags *Config, explicitFields map[string]bool) *Config {
	result := *c // Copy base config

	if explicitFields["max_concurrency"] {
		result.MaxConcurrency = flags.MaxConcurrency
	}
	if explicitFields["timeout"] {
		result.Timeout = flags.Timeout
	}
	if explicitFields["retries"] {
		result.Retries = flags.Retries
	}
	if explicitFields["cli_command"] {
		result.CLICommand = flags.CLICommand
	}
	if explicitFields["validator_command"] {
		result.ValidatorCommand = flags.ValidatorCommand
	}
	if explicitFields["output_dir"] {
		result.OutputDir = flags.OutputDir
	}
	if explicitFields["history_db"] {
		result.HistoryDB = flags.HistoryDB
	}
	if explicitFields["log_level"] {
		result.LogLevel = flags.LogLevel
	}

	return &result
}

// FindConfigFile searches for a configuration file in the given directory
func FindConfigFile(dir string) string {
	configNames := []string{".azmp.toml", "azmp.toml"}

	for _, name := range configNames {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errors []ValidationError

	if c.MaxConcurrency <= 0 {
		errors = append(errors, ValidationError{
			Field:   "max_concurrency",
			Value:   c.MaxConcurrency,
			Message: "must be greater than 0",
		})
	}
	if c.MaxConcurrency > 1000 {
		errors = append(errors, ValidationError{
			Field:   "max_concurrency",
			Value:   c.MaxConcurrency,
			Message: "must be 1000 or less to prevent excessive resource usage",
		})
	}

	if c.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "must be non-negative (0 means no timeout)",
		})
	}
	if c.Timeout > 24*time.Hour {
		errors = append(errors, ValidationError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "must be 24 hours or less",
		})
	}

	if c.Retries < 0 {
		errors = append(errors, ValidationError{
			Field:   "retries",
			Value:   c.Retries,
			Message: "must be non-negative",
		})
	}
	if c.Retries > 100 {
		errors = append(errors, ValidationError{
			Field:   "retries",
			Value:   c.Retries,
			Message: "must be 100 or less to prevent excessive resource usage",
		})
	}

	if c.CLICommand == "" {
		errors = append(errors, ValidationError{
			Field:   "cli_command",
			Value:   c.CLICommand,
			Message: "must not be empty",
		})
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "log_level",
			Value:   c.LogLevel,
			Message: "must be 'debug', 'info', 'warn' or 'error'",
		})
	}

	if len(errors) > 0 {
		var messages []string
		for _, err := range errors {
			messages = append(messages, err.Error())
		}
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(messages, "\n  - "))
	}

	return nil
}
