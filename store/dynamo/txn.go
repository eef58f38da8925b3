package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/grove/internal/shard"
	"github.com/jacentio/grove/store"
)

type docKey struct {
	collection string
	id         string
}

// readState records what a transaction observed for one document.
type readState struct {
	snap    *store.Snapshot
	version int64
}

// txn is a store.Tx buffering writes until commit.
type txn struct {
	db      *DB
	reads   map[docKey]readState
	order   []docKey
	writes  store.WriteSet
	writing bool
}

// Get implements store.Tx. Repeated reads of a document return the first snapshot.
func (t *txn) Get(ctx context.Context, collection, id string) (*store.Snapshot, error) {
	if t.writing {
		return nil, fmt.Errorf("%w: get %s/%s", store.ErrReadAfterWrite, collection, id)
	}
	key := docKey{collection, id}
	if rs, ok := t.reads[key]; ok {
		return rs.snap, nil
	}
	snap, version, err := t.db.getItem(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	t.reads[key] = readState{snap: snap, version: version}
	t.order = append(t.order, key)
	return snap, nil
}

// Create implements store.Tx.
func (t *txn) Create(collection, id string, doc any) error {
	t.writing = true
	return t.writes.Create(collection, id, doc)
}

// Update implements store.Tx.
func (t *txn) Update(collection, id string, mutations ...store.Mutation) error {
	t.writing = true
	return t.writes.Update(collection, id, mutations...)
}

// Delete implements store.Tx.
func (t *txn) Delete(collection, id string) error {
	t.writing = true
	return t.writes.Delete(collection, id)
}

type actionKind int

const (
	actionPut actionKind = iota
	actionUpdate
	actionDelete
	actionCheck
)

// action describes one item of a TransactWriteItems request for error mapping.
type action struct {
	key  docKey
	kind actionKind
	read bool
}

// conditionError returns the store error for a failed condition on this action.
func (a action) conditionError() error {
	switch {
	case a.read:
		return store.ErrConflict
	case a.kind == actionPut:
		return fmt.Errorf("%w: %s/%s", store.ErrAlreadyExists, a.key.collection, a.key.id)
	case a.kind == actionUpdate:
		return fmt.Errorf("%w: %s/%s", store.ErrNotFound, a.key.collection, a.key.id)
	default:
		return store.ErrConflict
	}
}

// commit sends the buffered writes plus condition checks for every
// document that was read but not written.
func (t *txn) commit(ctx context.Context) error {
	ops := t.writes.Ops()
	if len(ops) == 0 {
		return nil
	}

	var checks []docKey
	for _, key := range t.order {
		if !t.writes.Has(key.collection, key.id) {
			checks = append(checks, key)
		}
	}
	if total := len(ops) + len(checks); total > t.db.config.MaxTransactItems {
		return fmt.Errorf("%w: %d actions, limit %d", store.ErrTxnTooLarge, total, t.db.config.MaxTransactItems)
	}

	items := make([]types.TransactWriteItem, 0, len(ops)+len(checks))
	actions := make([]action, 0, len(ops)+len(checks))

	for _, op := range ops {
		key := docKey{op.Collection, op.ID}
		rs, read := t.reads[key]

		var item types.TransactWriteItem
		var err error
		var kind actionKind
		switch op.Kind {
		case store.OpCreate:
			kind = actionPut
			item, err = t.db.buildPut(op)
		case store.OpUpdate:
			kind = actionUpdate
			if read && !rs.snap.Exists {
				return fmt.Errorf("%w: update of %s/%s", store.ErrNotFound, op.Collection, op.ID)
			}
			item, err = t.db.buildUpdate(op, rs, read)
		case store.OpDelete:
			kind = actionDelete
			item = t.db.buildDelete(op, rs, read)
		}
		if err != nil {
			return err
		}
		items = append(items, item)
		actions = append(actions, action{key: key, kind: kind, read: read})
	}

	sort.Slice(checks, func(i, j int) bool {
		if checks[i].collection != checks[j].collection {
			return checks[i].collection < checks[j].collection
		}
		return checks[i].id < checks[j].id
	})
	for _, key := range checks {
		items = append(items, t.db.buildCheck(key, t.reads[key]))
		actions = append(actions, action{key: key, kind: actionCheck, read: true})
	}

	_, err := t.db.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, actions)
}

func (d *DB) buildPut(op *store.Op) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMapWithOptions(op.Doc, encoderOptions)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal %s/%s: %w", op.Collection, op.ID, err)
	}

	// Set store-managed fields
	item[attrID] = &types.AttributeValueMemberS{Value: op.ID}
	item[attrVersion] = &types.AttributeValueMemberN{Value: "1"}
	for _, idx := range d.registry.IndexesOf(op.Collection) {
		if v := stringAttr(item, idx.Field); v != "" {
			item[IndexAttr(idx.Field)] = &types.AttributeValueMemberS{
				Value: shard.IndexPK(v, op.ID, d.config.NumShards),
			}
		}
	}

	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:                aws.String(d.config.TableName(op.Collection)),
			Item:                     item,
			ConditionExpression:      aws.String("attribute_not_exists(#id)"),
			ExpressionAttributeNames: map[string]string{"#id": attrID},
		},
	}, nil
}

func (d *DB) buildUpdate(op *store.Op, rs readState, read bool) (types.TransactWriteItem, error) {
	var b exprBuilder
	var setClauses []string

	for _, m := range op.Mutations {
		path := b.path(m.Segments())
		if m.IsIncrement() {
			delta := b.value(&types.AttributeValueMemberN{Value: strconv.FormatInt(m.Delta, 10)})
			setClauses = append(setClauses, fmt.Sprintf("%s = if_not_exists(%s, %s) + %s", path, path, b.zero(), delta))
			continue
		}

		av, err := attributevalue.MarshalWithOptions(m.Value, encoderOptions)
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("marshal %s of %s/%s: %w", m.Path, op.Collection, op.ID, err)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", path, b.value(av)))

		// Keep the index key in step with an indexed top-level field
		if s, ok := m.Value.(string); ok && s != "" && d.registry.Has(op.Collection, m.Path) {
			ix := b.value(&types.AttributeValueMemberS{Value: shard.IndexPK(s, op.ID, d.config.NumShards)})
			setClauses = append(setClauses, fmt.Sprintf("%s = %s", b.name(IndexAttr(m.Path)), ix))
		}
	}

	ver := b.name(attrVersion)
	setClauses = append(setClauses, fmt.Sprintf("%s = if_not_exists(%s, %s) + %s", ver, ver, b.zero(), b.one()))

	cond := fmt.Sprintf("attribute_exists(%s)", b.name(attrID))
	if read {
		cond = b.versionCondition(rs.version)
	}

	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(d.config.TableName(op.Collection)),
			Key:                       KeyOf(op.ID),
			UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  b.names,
			ExpressionAttributeValues: b.values,
		},
	}, nil
}

func (d *DB) buildDelete(op *store.Op, rs readState, read bool) types.TransactWriteItem {
	del := &types.Delete{
		TableName: aws.String(d.config.TableName(op.Collection)),
		Key:       KeyOf(op.ID),
	}
	if read {
		var b exprBuilder
		if rs.snap.Exists {
			del.ConditionExpression = aws.String(b.versionCondition(rs.version))
		} else {
			del.ConditionExpression = aws.String(fmt.Sprintf("attribute_not_exists(%s)", b.name(attrID)))
		}
		del.ExpressionAttributeNames = b.names
		del.ExpressionAttributeValues = b.values
	}
	return types.TransactWriteItem{Delete: del}
}

func (d *DB) buildCheck(key docKey, rs readState) types.TransactWriteItem {
	var b exprBuilder
	cond := fmt.Sprintf("attribute_not_exists(%s)", b.name(attrID))
	if rs.snap.Exists {
		cond = b.versionCondition(rs.version)
	}
	return types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(d.config.TableName(key.collection)),
			Key:                       KeyOf(key.id),
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  b.names,
			ExpressionAttributeValues: b.values,
		},
	}
}
