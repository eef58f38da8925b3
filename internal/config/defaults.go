package config

import (
	"path/filepath"
	"strings"

	"github.com/jacentio/grove/reaper"
	"github.com/jacentio/grove/store/dynamo"
	"github.com/jacentio/grove/tree"
)

// ApplyDefaults fills zero values with defaults. Explicit values are kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyTreeDefaults(&cfg.Tree, &cfg.Store)
	applyReaperDefaults(&cfg.Reaper)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = StoreBadger
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Type == StoreBadger && cfg.Badger.Path == "" && !cfg.Badger.InMemory {
		cfg.Badger.Path = filepath.Join(configDir(), "data")
	}

	d := dynamo.DefaultConfig()
	if cfg.DynamoDB.Tables.TablePrefix == "" {
		cfg.DynamoDB.Tables.TablePrefix = d.TablePrefix
	}
	if cfg.DynamoDB.Tables.NumShards == 0 {
		cfg.DynamoDB.Tables.NumShards = d.NumShards
	}
	if cfg.DynamoDB.Tables.MaxTransactItems == 0 {
		cfg.DynamoDB.Tables.MaxTransactItems = d.MaxTransactItems
	}
}

func applyTreeDefaults(cfg *tree.Config, st *StoreConfig) {
	d := tree.DefaultConfig()
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = d.MaxDepth
		if st.Type == StoreDynamoDB {
			cfg.MaxDepth = min(d.MaxDepth, DynamoMaxDepth(st.DynamoDB.Tables.MaxTransactItems))
		}
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = d.InitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = d.MaxInterval
	}
}

func applyReaperDefaults(cfg *reaper.Config) {
	d := reaper.DefaultConfig()
	if cfg.PageSize == 0 {
		cfg.PageSize = d.PageSize
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = d.MaxDepth
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = d.RetryInterval
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = d.PollInterval
	}
}

// DynamoMaxDepth is the deepest tree whose operations fit one DynamoDB
// transaction of maxTransactItems actions. A move touches the moved node and
// two ancestor chains of up to depth nodes each, plus one condition check.
func DynamoMaxDepth(maxTransactItems int) int {
	return max(1, (maxTransactItems-2)/2)
}
