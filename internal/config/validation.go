package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Store.Type == StoreBadger && !cfg.Store.Badger.InMemory && cfg.Store.Badger.Path == "" {
		return fmt.Errorf("store.badger: path is required unless in_memory is set")
	}
	if cfg.Tree.MaxDepth < 0 || cfg.Reaper.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	if cfg.Store.Type == StoreDynamoDB {
		items := cfg.Store.DynamoDB.Tables.MaxTransactItems
		if items < 1 || items > 100 {
			return fmt.Errorf("store.dynamodb.max_transact_items must be between 1 and 100, got %d", items)
		}
		if limit := DynamoMaxDepth(items); cfg.Tree.MaxDepth > limit {
			return fmt.Errorf("tree.max_depth (%d) exceeds %d, the deepest tree whose moves fit %d transaction actions", cfg.Tree.MaxDepth, limit, items)
		}
	}
	if cfg.Reaper.MaxDepth > 0 && cfg.Tree.MaxDepth > cfg.Reaper.MaxDepth {
		return fmt.Errorf("reaper.max_depth (%d) must be at least tree.max_depth (%d)", cfg.Reaper.MaxDepth, cfg.Tree.MaxDepth)
	}
	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
