/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// item attributes next to PK and SK
const (
	attrDoc       = "doc"
	attrETag      = "_etag"
	attrTimestamp = "_ts"
)

// Container is a handle to a container table
type Container struct {
	client   *Client
	database string
	id       string
	table    string
}

var _ datastore.Container = (*Container)(nil)

func (ct *Container) ID() string { return ct.id }

func itemKey(id, partitionKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: partitionKey},
		attrSK: &types.AttributeValueMemberS{Value: id},
	}
}

func validateItem(item storagemodels.Item) error {
	if item.ID == "" {
		return errors.NewValidationError("id", "item id must not be empty")
	}
	if item.PartitionKey == "" {
		return errors.NewValidationError("partition_key", "item partition key must not be empty")
	}
	return nil
}

// marshalItem stamps the item with a fresh ETag and write time and builds
// the table row
func (ct *Container) marshalItem(item storagemodels.Item) (map[string]types.AttributeValue, *storagemodels.Receipt, error) {
	if err := validateItem(item); err != nil {
		return nil, nil, err
	}
	body := item.Body
	if body == nil {
		body = storagemodels.Document{}
	}

	now := ct.client.now().UTC()
	etag, err := storagemodels.ComputeETag(body, now.UnixNano())
	if err != nil {
		return nil, nil, errors.NewValidationError("body", err.Error())
	}
	doc, err := attributevalue.MarshalMap(map[string]any(body))
	if err != nil {
		return nil, nil, errors.NewValidationError("body", err.Error())
	}

	row := itemKey(item.ID, item.PartitionKey)
	row[attrDoc] = &types.AttributeValueMemberM{Value: doc}
	row[attrETag] = &types.AttributeValueMemberS{Value: etag}
	row[attrTimestamp] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixNano(), 10)}

	return row, &storagemodels.Receipt{
		ID:           item.ID,
		PartitionKey: item.PartitionKey,
		ETag:         etag,
		Timestamp:    now,
	}, nil
}

// unmarshalItem converts a table row back into an Item
func unmarshalItem(row map[string]types.AttributeValue) (storagemodels.Item, error) {
	var item storagemodels.Item
	if v, ok := row[attrPK].(*types.AttributeValueMemberS); ok {
		item.PartitionKey = v.Value
	}
	if v, ok := row[attrSK].(*types.AttributeValueMemberS); ok {
		item.ID = v.Value
	}
	if v, ok := row[attrETag].(*types.AttributeValueMemberS); ok {
		item.ETag = v.Value
	}
	if v, ok := row[attrTimestamp].(*types.AttributeValueMemberN); ok {
		if ns, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			item.Timestamp = time.Unix(0, ns).UTC()
		}
	}

	body := storagemodels.Document{}
	if m, ok := row[attrDoc].(*types.AttributeValueMemberM); ok {
		var doc map[string]any
		err := attributevalue.UnmarshalMapWithOptions(m.Value, &doc, func(o *attributevalue.DecoderOptions) {
			o.UseNumber = true
		})
		if err != nil {
			return item, fmt.Errorf("unmarshal item %q: %w", item.ID, err)
		}
		body = jsonNumbers(doc).(map[string]any)
	}
	item.Body = body
	return item, nil
}

// jsonNumbers turns the attributevalue.Number values produced by UseNumber
// into json.Number, the number type of a Document
func jsonNumbers(v any) any {
	switch x := v.(type) {
	case attributevalue.Number:
		return json.Number(x)
	case map[string]any:
		for k, el := range x {
			x[k] = jsonNumbers(el)
		}
		return x
	case []any:
		for i, el := range x {
			x[i] = jsonNumbers(el)
		}
		return x
	}
	return v
}

// tableError maps a missing table to NotFound for the container
func (ct *Container) tableError(op string, err error) error {
	if isResourceNotFound(err) {
		return errors.NewNotFoundError("container", ct.id)
	}
	return storeError(op, err)
}

// ReadItem returns the item stored under (id, partitionKey)
func (ct *Container) ReadItem(ctx context.Context, id, partitionKey string) (*storagemodels.Item, error) {
	if id == "" || partitionKey == "" {
		return nil, errors.NewNotFoundError("item", partitionKey+"|"+id)
	}
	out, err := ct.client.api.GetItem(ctx, &sdk.GetItemInput{
		TableName:      aws.String(ct.table),
		Key:            itemKey(id, partitionKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, ct.tableError("read item", err)
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError("item", partitionKey+"|"+id)
	}
	item, err := unmarshalItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem stores a new item, failing with ConflictError if the key is taken
func (ct *Container) CreateItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error) {
	row, receipt, err := ct.marshalItem(item)
	if err != nil {
		return nil, err
	}
	_, err = ct.client.api.PutItem(ctx, &sdk.PutItemInput{
		TableName:           aws.String(ct.table),
		Item:                row,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return nil, errors.NewConflictError("item", item.PartitionKey+"|"+item.ID)
		}
		return nil, ct.tableError("create item", err)
	}
	return receipt, nil
}

// UpsertItem stores an item, replacing any existing one with the same key
func (ct *Container) UpsertItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error) {
	row, receipt, err := ct.marshalItem(item)
	if err != nil {
		return nil, err
	}
	if _, err := ct.client.api.PutItem(ctx, &sdk.PutItemInput{
		TableName: aws.String(ct.table),
		Item:      row,
	}); err != nil {
		return nil, ct.tableError("upsert item", err)
	}
	return receipt, nil
}

// ReplaceItem overwrites an existing item. With opts.IfMatch set the write
// only succeeds while the stored ETag still matches.
func (ct *Container) ReplaceItem(ctx context.Context, item storagemodels.Item, opts storagemodels.ReplaceOptions) (*storagemodels.Receipt, error) {
	row, receipt, err := ct.marshalItem(item)
	if err != nil {
		return nil, err
	}

	input := &sdk.PutItemInput{
		TableName:                           aws.String(ct.table),
		Item:                                row,
		ConditionExpression:                 aws.String("attribute_exists(PK)"),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
	if opts.IfMatch != "" {
		input.ConditionExpression = aws.String("attribute_exists(PK) AND #etag = :etag")
		input.ExpressionAttributeNames = map[string]string{"#etag": attrETag}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":etag": &types.AttributeValueMemberS{Value: opts.IfMatch},
		}
	}

	if _, err := ct.client.api.PutItem(ctx, input); err != nil {
		if cfe, ok := conditionFailed(err); ok {
			// the old row comes back only when the item exists
			if len(cfe.Item) == 0 {
				return nil, errors.NewNotFoundError("item", item.PartitionKey+"|"+item.ID)
			}
			return nil, errors.NewConditionFailedError("replace", "etag = "+opts.IfMatch)
		}
		return nil, ct.tableError("replace item", err)
	}
	return receipt, nil
}

// DeleteItem removes the item stored under (id, partitionKey)
func (ct *Container) DeleteItem(ctx context.Context, id, partitionKey string) error {
	if id == "" || partitionKey == "" {
		return errors.NewNotFoundError("item", partitionKey+"|"+id)
	}
	_, err := ct.client.api.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:           aws.String(ct.table),
		Key:                 itemKey(id, partitionKey),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return errors.NewNotFoundError("item", partitionKey+"|"+id)
		}
		return ct.tableError("delete item", err)
	}
	return nil
}

// Query returns a pager over the items matching pred. Nothing is sent to
// DynamoDB until the first NextPage.
func (ct *Container) Query(ctx context.Context, pred query.Predicate, opts *storagemodels.QueryOptions) datastore.Pager {
	if opts == nil {
		opts = &storagemodels.QueryOptions{}
	}
	if opts.PartitionKey == "" && !opts.EnableCrossPartition {
		return &datastore.ErrPager{Err: errors.NewValidationError("partition_key",
			"query needs a partition key or cross-partition mode")}
	}
	if err := query.Validate(pred); err != nil {
		return &datastore.ErrPager{Err: errors.NewValidationError("predicate", err.Error())}
	}

	f, err := buildFilter(pred)
	if err != nil {
		return &datastore.ErrPager{Err: errors.NewValidationError("predicate", err.Error())}
	}

	var start map[string]types.AttributeValue
	if opts.ContinuationToken != "" {
		start, err = decodeToken(opts.ContinuationToken)
		if err != nil {
			return &datastore.ErrPager{Err: err}
		}
	}

	pageSize := opts.MaxItemCount
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Pager{
		container:    ct,
		filter:       f,
		partitionKey: opts.PartitionKey,
		pageSize:     pageSize,
		startKey:     start,
		more:         true,
	}
}
