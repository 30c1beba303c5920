/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory implementation of datastore.Client for testing
package mock

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

// DefaultPageSize is used when neither the query nor the client sets one.
const DefaultPageSize = 100

// Op names a client operation for fault injection and call counting.
type Op string

const (
	OpReadDatabase    Op = "ReadDatabase"
	OpCreateDatabase  Op = "CreateDatabase"
	OpDeleteDatabase  Op = "DeleteDatabase"
	OpReadContainer   Op = "ReadContainer"
	OpCreateContainer Op = "CreateContainer"
	OpDeleteContainer Op = "DeleteContainer"
	OpReadItem        Op = "ReadItem"
	OpCreateItem      Op = "CreateItem"
	OpUpsertItem      Op = "UpsertItem"
	OpReplaceItem     Op = "ReplaceItem"
	OpDeleteItem      Op = "DeleteItem"
	OpQueryPage       Op = "QueryPage"
)

var errClosed = stderrors.New("client is closed")

type itemKey struct {
	pk, id string
}

func (k itemKey) String() string {
	return k.pk + "|" + k.id
}

type container struct {
	props storagemodels.ContainerProperties
	items map[itemKey]storagemodels.Item
}

type database struct {
	props      storagemodels.DatabaseProperties
	containers map[string]*container
}

// Client is an in-memory document store. All methods are safe for concurrent use.
type Client struct {
	mu        sync.RWMutex
	databases map[string]*database
	closed    bool

	pageSize  int32
	errorFunc func(op Op, id string) error
	now       func() time.Time

	callsMu sync.Mutex
	calls   map[Op]int
}

var _ datastore.Client = (*Client)(nil)

// New creates an empty in-memory client
func New() *Client {
	return &Client{
		databases: make(map[string]*database),
		pageSize:  DefaultPageSize,
		now:       time.Now,
		calls:     make(map[Op]int),
	}
}

// WithPageSize sets the page size used when a query does not set MaxItemCount
func (c *Client) WithPageSize(n int32) *Client {
	c.pageSize = n
	return c
}

// WithErrorFunc installs a fault injector. It is called before every
// operation with the operation and the id it targets (database, container or
// item id); a non-nil result is returned instead of performing the operation.
func (c *Client) WithErrorFunc(f func(op Op, id string) error) *Client {
	c.errorFunc = f
	return c
}

// WithClock replaces time.Now for item timestamps and ETags
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// before counts the call and consults the fault injector
func (c *Client) before(op Op, id string) error {
	c.callsMu.Lock()
	c.calls[op]++
	c.callsMu.Unlock()

	if c.errorFunc != nil {
		if err := c.errorFunc(op, id); err != nil {
			return err
		}
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return errors.NewStoreError(string(op), errors.KindUnavailable, errClosed)
	}
	return nil
}

// ReadDatabase returns the properties of an existing database
func (c *Client) ReadDatabase(ctx context.Context, id string) (*storagemodels.DatabaseProperties, error) {
	if err := c.before(OpReadDatabase, id); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	db, ok := c.databases[id]
	if !ok {
		return nil, errors.NewNotFoundError("database", id)
	}
	props := db.props
	return &props, nil
}

// CreateDatabase creates a database, failing with ConflictError if it exists
func (c *Client) CreateDatabase(ctx context.Context, props storagemodels.DatabaseProperties) (*storagemodels.DatabaseProperties, error) {
	if err := c.before(OpCreateDatabase, props.ID); err != nil {
		return nil, err
	}
	if props.ID == "" {
		return nil, errors.NewValidationError("id", "database id must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.databases[props.ID]; ok {
		return nil, errors.NewConflictError("database", props.ID)
	}
	c.databases[props.ID] = &database{props: props, containers: make(map[string]*container)}
	return &props, nil
}

// DeleteDatabase removes a database and everything in it
func (c *Client) DeleteDatabase(ctx context.Context, id string) error {
	if err := c.before(OpDeleteDatabase, id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.databases[id]; !ok {
		return errors.NewNotFoundError("database", id)
	}
	delete(c.databases, id)
	return nil
}

// Database returns a handle to the database id
func (c *Client) Database(id string) datastore.Database {
	return &Database{client: c, id: id}
}

// Close marks the client closed; later calls fail with an unavailable StoreError
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Helper methods for testing

// CallCount returns how many times op has been invoked
func (c *Client) CallCount(op Op) int {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	return c.calls[op]
}

// Count returns the number of items in a container, or 0 if it does not exist
func (c *Client) Count(databaseID, containerID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ct := c.lookup(databaseID, containerID)
	if ct == nil {
		return 0
	}
	return len(ct.items)
}

// Snapshot returns copies of every item in a container in (partition key, id) order
func (c *Client) Snapshot(databaseID, containerID string) []storagemodels.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ct := c.lookup(databaseID, containerID)
	if ct == nil {
		return nil
	}
	keys := sortedKeys(ct.items)
	out := make([]storagemodels.Item, 0, len(keys))
	for _, k := range keys {
		out = append(out, cloneItem(ct.items[k]))
	}
	return out
}

// Clear removes all databases
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.databases = make(map[string]*database)
}

// lookup must be called with c.mu held
func (c *Client) lookup(databaseID, containerID string) *container {
	db, ok := c.databases[databaseID]
	if !ok {
		return nil
	}
	return db.containers[containerID]
}

func sortedKeys(items map[itemKey]storagemodels.Item) []itemKey {
	keys := make([]itemKey, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}

func less(a, b itemKey) bool {
	if a.pk != b.pk {
		return a.pk < b.pk
	}
	return a.id < b.id
}

func cloneItem(it storagemodels.Item) storagemodels.Item {
	it.Body = it.Body.Clone()
	return it
}

func encodeToken(k itemKey) string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.pk + "\x00" + k.id))
}

func decodeToken(token string) (itemKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return itemKey{}, errors.NewValidationError("continuation_token", err.Error())
	}
	pk, id, ok := strings.Cut(string(raw), "\x00")
	if !ok {
		return itemKey{}, errors.NewValidationError("continuation_token", fmt.Sprintf("malformed token %q", token))
	}
	return itemKey{pk: pk, id: id}, nil
}
