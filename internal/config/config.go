// Package config loads grove configuration from a file, the environment and
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jacentio/grove/reaper"
	"github.com/jacentio/grove/store/badger"
	"github.com/jacentio/grove/store/dynamo"
	"github.com/jacentio/grove/tree"
)

// Store backends.
const (
	StoreBadger   = "badger"
	StoreDynamoDB = "dynamodb"
)

// Config is the complete grove configuration.
//
// Environment variables use the GROVE_ prefix with underscores for nesting:
// GROVE_STORE_TYPE=dynamodb, GROVE_LOGGING_LEVEL=debug.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Store   StoreConfig   `mapstructure:"store"`
	Tree    tree.Config   `mapstructure:"tree"`
	Reaper  reaper.Config `mapstructure:"reaper"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN or ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is "stdout", "stderr" or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Type     string         `mapstructure:"type" validate:"required,oneof=badger dynamodb"`
	Badger   badger.Config  `mapstructure:"badger"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
}

// DynamoDBConfig configures the AWS client and table layout.
type DynamoDBConfig struct {
	// Region overrides the SDK's region resolution.
	Region string `mapstructure:"region"`

	// Profile selects a shared config profile.
	Profile string `mapstructure:"profile"`

	// Endpoint overrides the service endpoint (e.g., DynamoDB Local).
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`

	Tables dynamo.Config `mapstructure:",squash"`
}

// Load reads configuration from configPath (or the default location when
// empty), overlays GROVE_* environment variables, applies defaults and
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("GROVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"store.type",
	"store.badger.path",
	"store.badger.in_memory",
	"store.dynamodb.region",
	"store.dynamodb.profile",
	"store.dynamodb.endpoint",
	"store.dynamodb.table_prefix",
	"store.dynamodb.num_shards",
	"store.dynamodb.max_transact_items",
	"tree.max_depth",
	"tree.max_attempts",
	"tree.initial_interval",
	"tree.max_interval",
	"reaper.page_size",
	"reaper.max_depth",
	"reaper.max_retries",
	"reaper.retry_interval",
	"reaper.poll_interval",
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configPath == "" {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// configDir returns $XDG_CONFIG_HOME/grove, ~/.config/grove, or "." as a last resort.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "grove")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "grove")
}

// DefaultPath returns the config file consulted when no path is given.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}
