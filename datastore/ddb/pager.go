/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

// Pager pages through a Scan, or a Query when a partition key is given.
// DynamoDB applies Limit before the filter, so a page may hold fewer items
// than the page size; empty pages are skipped while more keys remain.
type Pager struct {
	container    *Container
	filter       *filter
	partitionKey string
	pageSize     int32
	startKey     map[string]types.AttributeValue
	more         bool
	pages        int
}

var _ datastore.Pager = (*Pager)(nil)

func (p *Pager) HasMoreResults() bool { return p.more }

// Pages returns how many pages have been fetched
func (p *Pager) Pages() int { return p.pages }

func (p *Pager) NextPage(ctx context.Context) (*storagemodels.Page, error) {
	if !p.more {
		return nil, fmt.Errorf("no more pages")
	}

	page := &storagemodels.Page{Items: []storagemodels.Item{}}
	for {
		rows, last, err := p.fetchWithRetry(ctx)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			item, err := unmarshalItem(row)
			if err != nil {
				return nil, err
			}
			page.Items = append(page.Items, item)
		}

		p.startKey = last
		if len(last) == 0 {
			p.more = false
			break
		}
		if len(page.Items) > 0 {
			break
		}
	}

	p.pages++
	if p.more {
		token, err := encodeToken(p.startKey)
		if err != nil {
			return nil, err
		}
		page.ContinuationToken = token
	}
	return page, nil
}

// fetch runs one Scan or Query call
func (p *Pager) fetch(ctx context.Context) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	ct := p.container
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	for k, v := range p.filter.names {
		names[k] = v
	}
	for k, v := range p.filter.values {
		values[k] = v
	}
	var filterExpr *string
	if p.filter.expression != "" {
		filterExpr = aws.String(p.filter.expression)
	}

	if p.partitionKey != "" {
		names["#pk"] = attrPK
		values[":pk"] = &types.AttributeValueMemberS{Value: p.partitionKey}
		out, err := ct.client.api.Query(ctx, &sdk.QueryInput{
			TableName:                 aws.String(ct.table),
			KeyConditionExpression:    aws.String("#pk = :pk"),
			FilterExpression:          filterExpr,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         p.startKey,
			Limit:                     aws.Int32(p.pageSize),
			ConsistentRead:            aws.Bool(true),
		})
		if err != nil {
			return nil, nil, err
		}
		return out.Items, out.LastEvaluatedKey, nil
	}

	input := &sdk.ScanInput{
		TableName:         aws.String(ct.table),
		FilterExpression:  filterExpr,
		ExclusiveStartKey: p.startKey,
		Limit:             aws.Int32(p.pageSize),
		ConsistentRead:    aws.Bool(true),
	}
	// DynamoDB rejects empty placeholder maps
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}
	out, err := ct.client.api.Scan(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return out.Items, out.LastEvaluatedKey, nil
}

// fetchWithRetry executes a page fetch with configurable retry logic
func (p *Pager) fetchWithRetry(ctx context.Context) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	c := p.container.client
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		rows, last, err := p.fetch(ctx)
		if err == nil {
			return rows, last, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, nil, p.container.tableError("query page", err)
		}

		if attempt < c.maxRetries {
			backoff := time.Duration(attempt+1) * c.retryBackoff
			c.logger.Debug("retrying page fetch",
				"table", p.container.table,
				"attempt", attempt+1,
				"backoff", backoff,
				"error", err)
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, nil, storeError(fmt.Sprintf("query page after %d retries", c.maxRetries), lastErr)
}

func encodeToken(key map[string]types.AttributeValue) (string, error) {
	var plain map[string]string
	if err := attributevalue.UnmarshalMap(key, &plain); err != nil {
		return "", fmt.Errorf("encode continuation token: %w", err)
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return "", fmt.Errorf("encode continuation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeToken(token string) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.NewValidationError("continuation_token", err.Error())
	}
	var plain map[string]string
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, errors.NewValidationError("continuation_token", err.Error())
	}
	if plain[attrPK] == "" || plain[attrSK] == "" {
		return nil, errors.NewValidationError("continuation_token", fmt.Sprintf("malformed token %q", token))
	}
	key, err := attributevalue.MarshalMap(plain)
	if err != nil {
		return nil, errors.NewValidationError("continuation_token", err.Error())
	}
	return key, nil
}
