package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/grove/store"
)

// tableWait bounds how long CreateTables waits for a table to become active.
const tableWait = 2 * time.Minute

// SchemaAPI is the subset of the DynamoDB client used to manage tables.
type SchemaAPI interface {
	dynamodb.DescribeTableAPIClient
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// TableSpec describes one collection table.
type TableSpec struct {
	// Collection is the collection stored in the table.
	Collection string

	// Stream enables a NEW_IMAGE stream on the table.
	Stream bool
}

// CreateTableInput builds the table definition for a collection: hash key "id"
// plus one GSI per registered index field.
func CreateTableInput(config Config, registry *store.Registry, spec TableSpec) *dynamodb.CreateTableInput {
	config.validate()
	input := &dynamodb.CreateTableInput{
		TableName: aws.String(config.TableName(spec.Collection)),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrID), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrID), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	}

	for _, idx := range registry.IndexesOf(spec.Collection) {
		attr := IndexAttr(idx.Field)
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(attr),
			AttributeType: types.ScalarAttributeTypeS,
		})
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName: aws.String(IndexName(idx.Field)),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attr), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(attrID), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	if spec.Stream {
		input.StreamSpecification = &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeNewImage,
		}
	}
	return input
}

// CreateTables creates the tables for specs and waits until all are active.
// Tables that already exist are left untouched.
func CreateTables(ctx context.Context, client SchemaAPI, config Config, registry *store.Registry, specs []TableSpec) error {
	config.validate()
	if registry == nil {
		registry = store.NewRegistry()
	}

	for _, spec := range specs {
		_, err := client.CreateTable(ctx, CreateTableInput(config, registry, spec))
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create table %s: %w", config.TableName(spec.Collection), err)
		}
	}

	// Wait for all tables to be active
	waiter := dynamodb.NewTableExistsWaiter(client)
	for _, spec := range specs {
		name := config.TableName(spec.Collection)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, tableWait); err != nil {
			return fmt.Errorf("wait for table %s: %w", name, err)
		}
	}
	return nil
}

// DeleteTables deletes the tables of the given collections. It returns every
// failure joined.
func DeleteTables(ctx context.Context, client SchemaAPI, config Config, collections []string) error {
	config.validate()
	var errs []error
	for _, collection := range collections {
		name := config.TableName(collection)
		if _, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
			errs = append(errs, fmt.Errorf("delete table %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
