package dynamo

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// TablePrefix is prepended to collection names to form table names.
	// Default: "grove_"
	TablePrefix string `mapstructure:"table_prefix"`

	// NumShards is the number of shards for index partition keys.
	// Higher values spread large directories across more partitions but
	// require more parallel queries per listing.
	// Default: 1 (no sharding, single query)
	// Max: 256
	//
	// Per-shard limits:
	//   - Writes: 1,000/sec
	//   - Reads: 3,000/sec
	NumShards int `mapstructure:"num_shards"`

	// MaxTransactItems is the action limit of one TransactWriteItems call.
	// Default: 100
	MaxTransactItems int `mapstructure:"max_transact_items"`
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		TablePrefix:      "grove_",
		NumShards:        1,
		MaxTransactItems: 100,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TablePrefix == "" {
		c.TablePrefix = "grove_"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 256 {
		c.NumShards = 256
	}
	if c.MaxTransactItems < 1 || c.MaxTransactItems > 100 {
		c.MaxTransactItems = 100
	}
}

// TableName returns the table holding a collection.
func (c Config) TableName(collection string) string {
	return c.TablePrefix + collection
}

// IndexName returns the GSI name serving queries on field.
func IndexName(field string) string {
	return field + "-index"
}

// IndexAttr returns the attribute carrying the sharded index key for field.
func IndexAttr(field string) string {
	return "_ix_" + field
}
