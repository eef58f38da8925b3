// Package dynamo implements store.DB on Amazon DynamoDB.
//
// Every collection lives in its own table named TablePrefix+collection with a
// string hash key "id". Each item carries a numeric "_version" attribute used
// for optimistic validation. Indexed fields get a companion attribute
// "_ix_<field>" holding a sharded partition key and are queried through a GSI
// named "<field>-index" (hash key "_ix_<field>", range key "id").
//
// Transactions buffer their writes and commit through a single
// TransactWriteItems call. Documents that were read but not written are
// validated with ConditionCheck actions.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/jacentio/grove/internal/shard"
	"github.com/jacentio/grove/store"
)

const (
	attrID      = "id"
	attrVersion = "_version"

	// batchSize is the BatchWriteItem request limit.
	batchSize = 25
)

// API is the subset of the DynamoDB client used by DB.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// KeyOf returns the primary key of a document.
func KeyOf(id string) PK {
	return PK{attrID: &types.AttributeValueMemberS{Value: id}}
}

// DB is a store.DB backed by DynamoDB.
type DB struct {
	client   API
	config   Config
	registry *store.Registry
}

var _ store.DB = (*DB)(nil)

// New creates a new DB instance.
func New(client API, config Config, registry *store.Registry) *DB {
	config.validate()
	if registry == nil {
		registry = store.NewRegistry()
	}
	return &DB{
		client:   client,
		config:   config,
		registry: registry,
	}
}

// Config returns the effective configuration.
func (d *DB) Config() Config {
	return d.config
}

// Registry returns the index registry.
func (d *DB) Registry() *store.Registry {
	return d.registry
}

// Close implements store.DB. The DynamoDB client holds no resources to release.
func (d *DB) Close() error {
	return nil
}

// Get reads a document with a strongly consistent read.
func (d *DB) Get(ctx context.Context, collection, id string) (*store.Snapshot, error) {
	snap, _, err := d.getItem(ctx, collection, id)
	return snap, err
}

func (d *DB) getItem(ctx context.Context, collection, id string) (*store.Snapshot, int64, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.config.TableName(collection)),
		Key:            KeyOf(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if result.Item == nil {
		return store.NewSnapshot(collection, id, false, nil), 0, nil
	}
	return snapshotOf(collection, id, result.Item), versionOf(result.Item), nil
}

// RunTransaction implements store.DB.
func (d *DB) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx := &txn{db: d, reads: make(map[docKey]readState)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

// Query returns documents whose indexed field equals input.Value, ordered by ID.
// Results come from a GSI and are eventually consistent.
func (d *DB) Query(ctx context.Context, input store.QueryInput) ([]*store.Snapshot, error) {
	if !d.registry.Has(input.Collection, input.Field) {
		return nil, fmt.Errorf("grove: field %q of %q is not indexed", input.Field, input.Collection)
	}

	keys := shard.IndexKeys(input.Value, d.config.NumShards)

	var items []map[string]types.AttributeValue
	var err error
	// Fast path for single shard (default)
	if len(keys) == 1 {
		items, err = d.queryShard(ctx, input, keys[0])
	} else {
		items, err = d.queryShards(ctx, input, keys)
	}
	if err != nil {
		return nil, err
	}

	snaps := make([]*store.Snapshot, 0, len(items))
	for _, item := range items {
		id := stringAttr(item, attrID)
		snaps = append(snaps, snapshotOf(input.Collection, id, item))
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	if input.Limit > 0 && len(snaps) > input.Limit {
		snaps = snaps[:input.Limit]
	}
	return snaps, nil
}

func (d *DB) queryShards(ctx context.Context, input store.QueryInput, keys []string) ([]map[string]types.AttributeValue, error) {
	var mu sync.Mutex
	var all []map[string]types.AttributeValue
	var wg sync.WaitGroup
	errs := make(chan error, len(keys))

	for i, key := range keys {
		wg.Add(1)
		go func(shardNum int, key string) {
			defer wg.Done()

			items, err := d.queryShard(ctx, input, key)
			if err != nil {
				errs <- fmt.Errorf("shard %02x: %w", shardNum, err)
				return
			}

			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
		}(i, key)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (d *DB) queryShard(ctx context.Context, input store.QueryInput, key string) ([]map[string]types.AttributeValue, error) {
	queryInput := &dynamodb.QueryInput{
		TableName:              aws.String(d.config.TableName(input.Collection)),
		IndexName:              aws.String(IndexName(input.Field)),
		KeyConditionExpression: aws.String("#ix = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#ix": IndexAttr(input.Field),
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: key},
		},
	}
	if input.Limit > 0 {
		queryInput.Limit = aws.Int32(int32(input.Limit))
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(d.client, queryInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if input.Limit > 0 && len(items) >= input.Limit {
			break
		}
	}
	return items, nil
}

// DeleteMany removes documents in BatchWriteItem chunks, retrying unprocessed items.
func (d *DB) DeleteMany(ctx context.Context, collection string, ids []string) error {
	table := d.config.TableName(collection)
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, id := range ids[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: KeyOf(id)},
			})
		}
		if err := d.batchWrite(ctx, table, requests); err != nil {
			return fmt.Errorf("delete %s: %w", collection, err)
		}
	}
	return nil
}

func (d *DB) batchWrite(ctx context.Context, table string, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{table: requests}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return backoff.Permanent(err)
		}
		if len(out.UnprocessedItems) == 0 || len(out.UnprocessedItems[table]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
		return fmt.Errorf("%d unprocessed items", len(pending[table]))
	}, backoff.WithContext(b, ctx))
}

// snapshotOf wraps a raw item into a store.Snapshot.
func snapshotOf(collection, id string, item map[string]types.AttributeValue) *store.Snapshot {
	return store.NewSnapshot(collection, id, true, func(out any) error {
		return attributevalue.UnmarshalMapWithOptions(item, out, decoderOptions)
	})
}

func decoderOptions(o *attributevalue.DecoderOptions) {
	o.TagKey = "json"
}

func encoderOptions(o *attributevalue.EncoderOptions) {
	o.TagKey = "json"
}

// versionOf returns the optimistic lock version of an item (0 if absent).
func versionOf(item map[string]types.AttributeValue) int64 {
	v, ok := item[attrVersion].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(v.Value, 10, 64)
	return n
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// mapTransactionError maps DynamoDB transaction errors onto store errors.
// actions describes each item of the request in order.
func mapTransactionError(err error, actions []action) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed":
				if i < len(actions) {
					return actions[i].conditionError()
				}
				return store.ErrConflict
			case "TransactionConflict":
				return store.ErrConflict
			}
		}
	}

	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return store.ErrConflict
	}
	return err
}
