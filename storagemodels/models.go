/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Document is the stored form of an entity: a JSON object decoded into
// generic values (map[string]any, []any, json.Number, string, bool, nil).
// Numbers stay json.Number so 64-bit integers survive unchanged.
type Document map[string]any

// DecodeJSON unmarshals data into v, keeping numbers as json.Number.
// Trailing data after the first value is an error.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// Clone returns a deep copy of d so callers can mutate the result freely.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = cloneValue(el)
		}
		return out
	case Document:
		return Document(cloneValue(map[string]any(x)).(map[string]any))
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = cloneValue(el)
		}
		return out
	default:
		return v
	}
}

// Item is one stored document together with the keys it is addressed by.
type Item struct {
	ID           string
	PartitionKey string
	Body         Document
	// ETag changes on every write; empty until the item has been stored.
	ETag      string
	Timestamp time.Time
}

// Receipt returns the acknowledgement for a stored item.
func (i *Item) Receipt() *Receipt {
	return &Receipt{
		ID:           i.ID,
		PartitionKey: i.PartitionKey,
		ETag:         i.ETag,
		Timestamp:    i.Timestamp,
	}
}

// Receipt acknowledges a successful write.
type Receipt struct {
	ID           string
	PartitionKey string
	ETag         string
	Timestamp    time.Time
}

// DatabaseProperties describes a database. Throughput 0 means the store's
// default (on-demand where the store supports it).
type DatabaseProperties struct {
	ID         string
	Throughput int32
}

// ContainerProperties describes a container. PartitionKeyPath is the JSON
// path of the partition key inside each document, e.g. "/LastName".
type ContainerProperties struct {
	ID               string
	PartitionKeyPath string
	Throughput       int32
}

// QueryOptions controls how a container query is paged.
type QueryOptions struct {
	// MaxItemCount caps the items per page; 0 lets the store decide.
	MaxItemCount int32
	// EnableCrossPartition allows the query to span partitions. When false
	// PartitionKey must be set.
	EnableCrossPartition bool
	// PartitionKey restricts the query to a single partition.
	PartitionKey string
	// ContinuationToken resumes a previous query after its last page.
	ContinuationToken string
}

// Page is one batch of query results.
type Page struct {
	Items []Item
	// ContinuationToken is empty on the last page.
	ContinuationToken string
}

// ReplaceOptions carries the preconditions of a replace.
type ReplaceOptions struct {
	// IfMatch, when set, must equal the stored item's ETag.
	IfMatch string
}
