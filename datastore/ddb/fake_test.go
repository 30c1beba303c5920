/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeAPI is an in-memory DynamoDB that understands the key conditions and
// condition expressions this package sends. FilterExpressions are recorded
// but not evaluated.
type fakeAPI struct {
	mu     sync.Mutex
	tables map[string]*fakeTable
	fail   func(op string) error

	scans   []*sdk.ScanInput
	queries []*sdk.QueryInput
	calls   map[string]int
}

type fakeTable struct {
	desc types.TableDescription
	rows map[string]map[string]types.AttributeValue
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{tables: map[string]*fakeTable{}, calls: map[string]int{}}
}

func (f *fakeAPI) before(op string) error {
	f.calls[op]++
	if f.fail != nil {
		return f.fail(op)
	}
	return nil
}

func (f *fakeAPI) table(name *string) (*fakeTable, error) {
	t, ok := f.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + aws.ToString(name))}
	}
	return t, nil
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func rowKey(key map[string]types.AttributeValue) string {
	return str(key[attrPK]) + "\x00" + str(key[attrSK])
}

func (f *fakeAPI) check(cond *string, names map[string]string, values map[string]types.AttributeValue, old map[string]types.AttributeValue) bool {
	switch aws.ToString(cond) {
	case "":
		return true
	case "attribute_not_exists(PK)":
		return old == nil
	case "attribute_exists(PK)":
		return old != nil
	case "attribute_exists(PK) AND #etag = :etag":
		return old != nil && str(old[names["#etag"]]) == str(values[":etag"])
	}
	panic("unsupported condition " + aws.ToString(cond))
}

func (f *fakeAPI) GetItem(_ context.Context, in *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.before("GetItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	return &sdk.GetItemOutput{Item: t.rows[rowKey(in.Key)]}, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.before("PutItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := rowKey(in.Item)
	old := t.rows[k]
	if !f.check(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, old) {
		cfe := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		if in.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
			cfe.Item = old
		}
		return nil, cfe
	}
	t.rows[k] = in.Item
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(_ context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.before("DeleteItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := rowKey(in.Key)
	if !f.check(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, t.rows[k]) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	delete(t.rows, k)
	return &sdk.DeleteItemOutput{}, nil
}

// page returns rows in key order after start, at most limit of them
func (t *fakeTable) page(keep func(map[string]types.AttributeValue) bool, start map[string]types.AttributeValue, limit *int32) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	keys := make([]string, 0, len(t.rows))
	for k, row := range t.rows {
		if keep(row) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if start != nil {
		after := rowKey(start)
		i := sort.SearchStrings(keys, after)
		if i < len(keys) && keys[i] == after {
			i++
		}
		keys = keys[i:]
	}

	n := len(keys)
	if limit != nil && int(*limit) < n {
		n = int(*limit)
	}
	var rows []map[string]types.AttributeValue
	for _, k := range keys[:n] {
		rows = append(rows, t.rows[k])
	}
	var last map[string]types.AttributeValue
	if n < len(keys) {
		row := t.rows[keys[n-1]]
		last = map[string]types.AttributeValue{attrPK: row[attrPK], attrSK: row[attrSK]}
	}
	return rows, last
}

func (f *fakeAPI) Query(_ context.Context, in *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.before("Query"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	f.queries = append(f.queries, in)

	pk := str(in.ExpressionAttributeValues[":pk"])
	var keep func(map[string]types.AttributeValue) bool
	switch aws.ToString(in.KeyConditionExpression) {
	case "#pk = :pk":
		keep = func(row map[string]types.AttributeValue) bool { return str(row[attrPK]) == pk }
	case "#pk = :pk AND begins_with(#sk, :sk)":
		prefix := str(in.ExpressionAttributeValues[":sk"])
		keep = func(row map[string]types.AttributeValue) bool {
			return str(row[attrPK]) == pk && strings.HasPrefix(str(row[attrSK]), prefix)
		}
	default:
		panic("unsupported key condition " + aws.ToString(in.KeyConditionExpression))
	}
	rows, last := t.page(keep, in.ExclusiveStartKey, in.Limit)
	return &sdk.QueryOutput{Items: rows, LastEvaluatedKey: last, Count: int32(len(rows))}, nil
}

func (f *fakeAPI) Scan(_ context.Context, in *sdk.ScanInput, _ ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.before("Scan"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	f.scans = append(f.scans, in)
	rows, last := t.page(func(map[string]types.AttributeValue) bool { return true }, in.ExclusiveStartKey, in.Limit)
	return &sdk.ScanOutput{Items: rows, LastEvaluatedKey: last, Count: int32(len(rows))}, nil
}

func (f *fakeAPI) CreateTable(_ context.Context, in *sdk.CreateTableInput, _ ...func(*sdk.Options)) (*sdk.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.before("CreateTable"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.TableName)
	if _, ok := f.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists: " + name)}
	}
	desc := types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
		KeySchema:   in.KeySchema,
		BillingModeSummary: &types.BillingModeSummary{
			BillingMode: in.BillingMode,
		},
	}
	if in.ProvisionedThroughput != nil {
		desc.ProvisionedThroughput = &types.ProvisionedThroughputDescription{
			ReadCapacityUnits:  in.ProvisionedThroughput.ReadCapacityUnits,
			WriteCapacityUnits: in.ProvisionedThroughput.WriteCapacityUnits,
		}
	}
	f.tables[name] = &fakeTable{desc: desc, rows: map[string]map[string]types.AttributeValue{}}
	return &sdk.CreateTableOutput{TableDescription: &desc}, nil
}

func (f *fakeAPI) DeleteTable(_ context.Context, in *sdk.DeleteTableInput, _ ...func(*sdk.Options)) (*sdk.DeleteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.before("DeleteTable"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	delete(f.tables, aws.ToString(in.TableName))
	return &sdk.DeleteTableOutput{TableDescription: &t.desc}, nil
}

func (f *fakeAPI) DescribeTable(_ context.Context, in *sdk.DescribeTableInput, _ ...func(*sdk.Options)) (*sdk.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.before("DescribeTable"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	desc := t.desc
	return &sdk.DescribeTableOutput{Table: &desc}, nil
}

func (f *fakeAPI) tableNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.tables))
	for n := range f.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (f *fakeAPI) rowCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[table]
	if !ok {
		return -1
	}
	return len(t.rows)
}

func (f *fakeAPI) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

var errFake = fmt.Errorf("fake failure")
