/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-crypt/x/blake2b"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

const (
	attrPK = "PK"
	attrSK = "SK"

	databasePrefix  = "DATABASE#"
	containerPrefix = "CONTAINER#"
)

// catalogRecord is the catalog table row for a database or a container
type catalogRecord struct {
	PK               string `dynamodbav:"PK"`
	SK               string `dynamodbav:"SK"`
	ID               string `dynamodbav:"ID"`
	Throughput       int32  `dynamodbav:"Throughput"`
	PartitionKeyPath string `dynamodbav:"PartitionKeyPath,omitempty"`
	TableName        string `dynamodbav:"TableName,omitempty"`
}

func databaseKey(db string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: databasePrefix + db},
		attrSK: &types.AttributeValueMemberS{Value: databasePrefix + db},
	}
}

func containerKey(db, ct string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: databasePrefix + db},
		attrSK: &types.AttributeValueMemberS{Value: containerPrefix + ct},
	}
}

var tableNameInvalid = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

const (
	maxTableName  = 255
	tableHashSize = 6
)

// TableName returns the DynamoDB table backing container ct of database db.
// The readable part is sanitized to DynamoDB's alphabet; the hex suffix is a
// digest of the raw names, so distinct (db, ct) pairs never share a table.
func TableName(db, ct string) string {
	h, err := blake2b.New(tableHashSize, nil)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(db))
	h.Write([]byte{0})
	h.Write([]byte(ct))
	suffix := "-" + hex.EncodeToString(h.Sum(nil))

	readable := tableNameInvalid.ReplaceAllString(db+"."+ct, "_")
	if limit := maxTableName - len(suffix); len(readable) > limit {
		readable = readable[:limit]
	}
	return readable + suffix
}

func (c *Client) readRecord(ctx context.Context, op string, key map[string]types.AttributeValue) (*catalogRecord, error) {
	if err := c.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	out, err := c.api.GetItem(ctx, &sdk.GetItemInput{
		TableName:      aws.String(c.catalogTable),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var rec catalogRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("%s: unmarshal catalog record: %w", op, err)
	}
	return &rec, nil
}

// putRecord stores rec unless a record with the same key exists
func (c *Client) putRecord(ctx context.Context, op string, rec catalogRecord) (bool, error) {
	if err := c.ensureCatalog(ctx); err != nil {
		return false, err
	}
	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("%s: marshal catalog record: %w", op, err)
	}
	_, err = c.api.PutItem(ctx, &sdk.PutItemInput{
		TableName:           aws.String(c.catalogTable),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return false, nil
		}
		return false, storeError(op, err)
	}
	return true, nil
}

// deleteRecord removes a record, reporting false when it did not exist
func (c *Client) deleteRecord(ctx context.Context, op string, key map[string]types.AttributeValue) (bool, error) {
	if err := c.ensureCatalog(ctx); err != nil {
		return false, err
	}
	_, err := c.api.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:           aws.String(c.catalogTable),
		Key:                 key,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return false, nil
		}
		return false, storeError(op, err)
	}
	return true, nil
}

// ReadDatabase returns the properties of an existing database
func (c *Client) ReadDatabase(ctx context.Context, id string) (*storagemodels.DatabaseProperties, error) {
	rec, err := c.readRecord(ctx, "read database", databaseKey(id))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.NewNotFoundError("database", id)
	}
	return &storagemodels.DatabaseProperties{ID: rec.ID, Throughput: rec.Throughput}, nil
}

// CreateDatabase records a database, failing with ConflictError if it exists
func (c *Client) CreateDatabase(ctx context.Context, props storagemodels.DatabaseProperties) (*storagemodels.DatabaseProperties, error) {
	if props.ID == "" {
		return nil, errors.NewValidationError("id", "database id must not be empty")
	}
	key := databasePrefix + props.ID
	created, err := c.putRecord(ctx, "create database", catalogRecord{
		PK:         key,
		SK:         key,
		ID:         props.ID,
		Throughput: props.Throughput,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, errors.NewConflictError("database", props.ID)
	}
	c.logger.Info("database created", "database", props.ID)
	return &props, nil
}

// DeleteDatabase drops every container table of the database, then its
// catalog records
func (c *Client) DeleteDatabase(ctx context.Context, id string) error {
	if _, err := c.ReadDatabase(ctx, id); err != nil {
		return err
	}

	containers, err := c.listContainers(ctx, id)
	if err != nil {
		return err
	}
	db := c.Database(id)
	for _, rec := range containers {
		if err := db.DeleteContainer(ctx, rec.ID); err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("delete database %q: %w", id, err)
		}
	}

	deleted, err := c.deleteRecord(ctx, "delete database", databaseKey(id))
	if err != nil {
		return err
	}
	if !deleted {
		return errors.NewNotFoundError("database", id)
	}
	c.logger.Info("database deleted", "database", id, "containers", len(containers))
	return nil
}

func (c *Client) listContainers(ctx context.Context, db string) ([]catalogRecord, error) {
	input := &sdk.QueryInput{
		TableName:              aws.String(c.catalogTable),
		KeyConditionExpression: aws.String("#pk = :pk AND begins_with(#sk, :sk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
			"#sk": attrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: databasePrefix + db},
			":sk": &types.AttributeValueMemberS{Value: containerPrefix},
		},
		ConsistentRead: aws.Bool(true),
	}

	var records []catalogRecord
	for {
		out, err := c.api.Query(ctx, input)
		if err != nil {
			return nil, storeError("list containers", err)
		}
		for _, item := range out.Items {
			var rec catalogRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("list containers: unmarshal catalog record: %w", err)
			}
			records = append(records, rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return records, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Database returns a handle to the database id
func (c *Client) Database(id string) datastore.Database {
	return &Database{client: c, id: id}
}

// Database is a handle to a database recorded in the catalog table
type Database struct {
	client *Client
	id     string
}

var _ datastore.Database = (*Database)(nil)

func (d *Database) ID() string { return d.id }

// ReadContainer returns the properties of an existing container
func (d *Database) ReadContainer(ctx context.Context, id string) (*storagemodels.ContainerProperties, error) {
	rec, err := d.client.readRecord(ctx, "read container", containerKey(d.id, id))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.NewNotFoundError("container", id)
	}
	return &storagemodels.ContainerProperties{
		ID:               rec.ID,
		PartitionKeyPath: rec.PartitionKeyPath,
		Throughput:       rec.Throughput,
	}, nil
}

// CreateContainer records the container and creates its table. The catalog
// record is removed again if the table cannot be created.
func (d *Database) CreateContainer(ctx context.Context, props storagemodels.ContainerProperties) (*storagemodels.ContainerProperties, error) {
	if props.ID == "" {
		return nil, errors.NewValidationError("id", "container id must not be empty")
	}
	if !strings.HasPrefix(props.PartitionKeyPath, "/") {
		return nil, errors.NewValidationError("partition_key_path", "partition key path must start with '/'")
	}
	c := d.client
	if _, err := c.ReadDatabase(ctx, d.id); err != nil {
		return nil, err
	}

	table := TableName(d.id, props.ID)
	created, err := c.putRecord(ctx, "create container", catalogRecord{
		PK:               databasePrefix + d.id,
		SK:               containerPrefix + props.ID,
		ID:               props.ID,
		Throughput:       props.Throughput,
		PartitionKeyPath: props.PartitionKeyPath,
		TableName:        table,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, errors.NewConflictError("container", props.ID)
	}

	if err := c.createTable(ctx, table, props.Throughput); err != nil {
		if _, rbErr := c.deleteRecord(ctx, "create container rollback", containerKey(d.id, props.ID)); rbErr != nil {
			c.logger.Warn("failed to remove catalog record", "container", props.ID, "error", rbErr)
		}
		return nil, err
	}

	c.logger.Info("container created",
		"database", d.id,
		"container", props.ID,
		"table", table,
		"throughput", props.Throughput)
	return &props, nil
}

// DeleteContainer drops the container table and its catalog record
func (d *Database) DeleteContainer(ctx context.Context, id string) error {
	c := d.client
	rec, err := c.readRecord(ctx, "delete container", containerKey(d.id, id))
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.NewNotFoundError("container", id)
	}

	table := rec.TableName
	if table == "" {
		table = TableName(d.id, id)
	}
	if err := c.deleteTable(ctx, table); err != nil {
		return err
	}
	deleted, err := c.deleteRecord(ctx, "delete container", containerKey(d.id, id))
	if err != nil {
		return err
	}
	if !deleted {
		return errors.NewNotFoundError("container", id)
	}
	c.logger.Info("container deleted", "database", d.id, "container", id, "table", table)
	return nil
}

// Container returns a handle to the container id
func (d *Database) Container(id string) datastore.Container {
	return &Container{client: d.client, database: d.id, id: id, table: TableName(d.id, id)}
}
