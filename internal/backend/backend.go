// Package backend opens the configured document store.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/grove/internal/config"
	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/store/badger"
	"github.com/jacentio/grove/store/dynamo"
	"github.com/jacentio/grove/tree"
)

// Tables lists the DynamoDB tables grove needs. Reap jobs carry a stream so
// the reaper Lambda is triggered on insert.
func Tables() []dynamo.TableSpec {
	return []dynamo.TableSpec{
		{Collection: tree.CollectionNamespaces},
		{Collection: tree.CollectionNodes},
		{Collection: tree.CollectionReapJobs, Stream: true},
	}
}

// Open returns the store selected by cfg.Type with the tree indexes registered.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case config.StoreBadger:
		bc := cfg.Badger
		bc.Logger = logger
		db, err := badger.Open(ctx, bc, tree.NewRegistry())
		if err != nil {
			return nil, err
		}
		logger.Debug("store opened", "type", cfg.Type, "path", bc.Path, "in_memory", bc.InMemory)
		return db, nil

	case config.StoreDynamoDB:
		client, err := DynamoClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, err
		}
		logger.Debug("store opened", "type", cfg.Type, "table_prefix", cfg.DynamoDB.Tables.TablePrefix)
		return dynamo.New(client, cfg.DynamoDB.Tables, tree.NewRegistry()), nil

	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

// DynamoClient builds a DynamoDB client from the default AWS credential chain,
// narrowed by the configured region, profile and endpoint.
func DynamoClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// InitTables creates any missing grove tables and waits for them to become active.
func InitTables(ctx context.Context, cfg config.DynamoDBConfig) error {
	client, err := DynamoClient(ctx, cfg)
	if err != nil {
		return err
	}
	return dynamo.CreateTables(ctx, client, cfg.Tables, tree.NewRegistry(), Tables())
}
