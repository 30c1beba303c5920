/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// Config names the database and container a repository works against.
type Config struct {
	Database  string
	Container string
	// PartitionKeyPath is the JSON path of the partition key, e.g. "/LastName".
	PartitionKeyPath string
	// Throughput is the provisioned throughput of a newly created container;
	// 0 leaves the choice to the store.
	Throughput int32
	// DatabaseThroughput is the provisioned throughput of a newly created
	// database; 0 leaves the choice to the store.
	DatabaseThroughput int32
}

// Validate checks that the config identifies a container.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return errors.NewValidationError("database", "must not be empty")
	}
	if strings.TrimSpace(c.Container) == "" {
		return errors.NewValidationError("container", "must not be empty")
	}
	if !strings.HasPrefix(c.PartitionKeyPath, "/") || len(c.PartitionKeyPath) < 2 {
		return errors.NewValidationError("partition_key_path", fmt.Sprintf("%q must look like /Field", c.PartitionKeyPath))
	}
	if c.Throughput < 0 || c.DatabaseThroughput < 0 {
		return errors.NewValidationError("throughput", "must not be negative")
	}
	return nil
}

// Option configures a Repository.
type Option[T any] func(*Repository[T])

// WithKeys sets the functions that extract id and partition key from T.
func WithKeys[T any](keys KeyFuncs[T]) Option[T] {
	return func(r *Repository[T]) {
		r.keyFuncs = &keys
	}
}

// WithCodec replaces the default JSON codec.
func WithCodec[T any](codec Codec[T]) Option[T] {
	return func(r *Repository[T]) {
		r.codec = codec
	}
}

// WithLazyInit makes the first data operation run Initialize instead of
// failing with ErrNotInitialized.
func WithLazyInit[T any]() Option[T] {
	return func(r *Repository[T]) {
		r.lazy = true
	}
}

// WithPageSize sets MaxItemCount for queries; 0 lets the store choose.
func WithPageSize[T any](n int32) Option[T] {
	return func(r *Repository[T]) {
		r.pageSize = n
	}
}

// WithLogger sets a logger for initialization steps at debug level.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(r *Repository[T]) {
		r.logger = logger
	}
}

// handle is the resolved container, published once by Initialize
type handle struct {
	container datastore.Container
}

// Repository provides typed document operations for entity type T on one
// container. It is safe for concurrent use once initialized.
type Repository[T any] struct {
	client   datastore.Client
	cfg      Config
	codec    Codec[T]
	keyFuncs *KeyFuncs[T]
	keys     keyer[T]
	lazy     bool
	pageSize int32
	logger   *slog.Logger
	typeName string

	initMu sync.Mutex
	ready  atomic.Pointer[handle]
}

// New creates a repository for T. Without WithKeys, the key map registered
// for T in package registry is used.
func New[T any](client datastore.Client, cfg Config, opts ...Option[T]) (*Repository[T], error) {
	if client == nil {
		return nil, errors.NewValidationError("client", "must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Repository[T]{
		client:   client,
		cfg:      cfg,
		codec:    JSONCodec[T]{},
		typeName: reflect.TypeOf((*T)(nil)).Elem().String(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.codec == nil {
		return nil, errors.NewValidationError("codec", "must not be nil")
	}
	if r.pageSize < 0 {
		return nil, errors.NewValidationError("page_size", "must not be negative")
	}

	var err error
	if r.keyFuncs != nil {
		r.keys, err = r.keyFuncs.keyer()
	} else {
		r.keys, err = registryKeyer[T](r.typeName)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Config returns the repository's configuration.
func (r *Repository[T]) Config() Config { return r.cfg }

// Ready reports whether Initialize has completed.
func (r *Repository[T]) Ready() bool { return r.ready.Load() != nil }

func (r *Repository[T]) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// Initialize makes sure the database and container exist, creating them when
// the store reports them missing. It is idempotent and serializes concurrent
// callers; a failed attempt leaves the repository uninitialized.
func (r *Repository[T]) Initialize(ctx context.Context) error {
	if r.ready.Load() != nil {
		return nil
	}

	r.initMu.Lock()
	defer r.initMu.Unlock()

	if r.ready.Load() != nil {
		return nil
	}

	if err := r.ensureDatabase(ctx); err != nil {
		return err
	}
	db := r.client.Database(r.cfg.Database)
	if err := r.ensureContainer(ctx, db); err != nil {
		return err
	}

	r.ready.Store(&handle{container: db.Container(r.cfg.Container)})
	r.debug("repository ready", "database", r.cfg.Database, "container", r.cfg.Container)
	return nil
}

func (r *Repository[T]) ensureDatabase(ctx context.Context) error {
	id := r.cfg.Database
	_, err := r.client.ReadDatabase(ctx, id)
	if err == nil {
		r.debug("database exists", "database", id)
		return nil
	}
	if !errors.IsNotFound(err) {
		return fmt.Errorf("read database %q: %w", id, err)
	}

	r.debug("creating database", "database", id, "throughput", r.cfg.DatabaseThroughput)
	_, err = r.client.CreateDatabase(ctx, storagemodels.DatabaseProperties{ID: id, Throughput: r.cfg.DatabaseThroughput})
	if err == nil {
		return nil
	}
	if !errors.IsConflict(err) {
		return fmt.Errorf("create database %q: %w", id, err)
	}

	// lost a creation race; the database exists now
	if _, err := r.client.ReadDatabase(ctx, id); err != nil {
		return fmt.Errorf("read database %q: %w", id, err)
	}
	return nil
}

func (r *Repository[T]) ensureContainer(ctx context.Context, db datastore.Database) error {
	id := r.cfg.Container
	_, err := db.ReadContainer(ctx, id)
	if err == nil {
		r.debug("container exists", "container", id)
		return nil
	}
	if !errors.IsNotFound(err) {
		return fmt.Errorf("read container %q: %w", id, err)
	}

	r.debug("creating container", "container", id, "partition_key_path", r.cfg.PartitionKeyPath, "throughput", r.cfg.Throughput)
	_, err = db.CreateContainer(ctx, storagemodels.ContainerProperties{
		ID:               id,
		PartitionKeyPath: r.cfg.PartitionKeyPath,
		Throughput:       r.cfg.Throughput,
	})
	if err == nil {
		return nil
	}
	if !errors.IsConflict(err) {
		return fmt.Errorf("create container %q: %w", id, err)
	}

	if _, err := db.ReadContainer(ctx, id); err != nil {
		return fmt.Errorf("read container %q: %w", id, err)
	}
	return nil
}

// container returns the ready handle, initializing first in lazy mode
func (r *Repository[T]) container(ctx context.Context) (datastore.Container, error) {
	if h := r.ready.Load(); h != nil {
		return h.container, nil
	}
	if !r.lazy {
		return nil, errors.ErrNotInitialized
	}
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}
	return r.ready.Load().container, nil
}

// toItem encodes item and derives its keys
func (r *Repository[T]) toItem(item T) (storagemodels.Item, error) {
	doc, err := r.codec.Encode(item)
	if err != nil {
		return storagemodels.Item{}, err
	}
	id, pk, err := r.keys(item, doc)
	if err != nil {
		return storagemodels.Item{}, err
	}
	if id == "" {
		return storagemodels.Item{}, errors.NewValidationError("id", "entity has an empty id")
	}
	if pk == "" {
		return storagemodels.Item{}, errors.NewValidationError("partition_key", "entity has an empty partition key")
	}
	return storagemodels.Item{ID: id, PartitionKey: pk, Body: doc}, nil
}

func (r *Repository[T]) decode(it *storagemodels.Item) (T, error) {
	v, err := r.codec.Decode(it.Body)
	if err != nil {
		var zero T
		return zero, errors.NewDecodeError(r.typeName, it.ID, err)
	}
	return v, nil
}

// GetItem reads one entity. A missing item is reported as (zero, false, nil).
func (r *Repository[T]) GetItem(ctx context.Context, id, partitionKey string) (T, bool, error) {
	var zero T
	c, err := r.container(ctx)
	if err != nil {
		return zero, false, err
	}

	it, err := c.ReadItem(ctx, id, partitionKey)
	if err != nil {
		if errors.IsNotFound(err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("get item %q: %w", id, err)
	}

	v, err := r.decode(it)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// QueryItems returns every entity matching pred across all partitions, in
// store order. A nil predicate matches everything; no matches yields an
// empty, non-nil slice.
func (r *Repository[T]) QueryItems(ctx context.Context, pred query.Predicate) ([]T, error) {
	c, err := r.container(ctx)
	if err != nil {
		return nil, err
	}

	pager := c.Query(ctx, pred, &storagemodels.QueryOptions{
		EnableCrossPartition: true,
		MaxItemCount:         r.pageSize,
	})

	items, err := datastore.Drain(ctx, pager)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	results := make([]T, 0, len(items))
	for i := range items {
		v, err := r.decode(&items[i])
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

// CreateItem inserts a new entity. An existing item with the same id and
// partition key fails with ConflictError and is left unchanged.
func (r *Repository[T]) CreateItem(ctx context.Context, item T) (*storagemodels.Receipt, error) {
	it, err := r.toItem(item)
	if err != nil {
		return nil, err
	}
	c, err := r.container(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := c.CreateItem(ctx, it)
	if err != nil {
		return nil, fmt.Errorf("create item %q: %w", it.ID, err)
	}
	return receipt, nil
}

// UpdateItem writes item whether or not it exists. id must equal the
// entity's own id.
func (r *Repository[T]) UpdateItem(ctx context.Context, id string, item T) (*storagemodels.Receipt, error) {
	it, err := r.toItem(item)
	if err != nil {
		return nil, err
	}
	if it.ID != id {
		return nil, errors.NewValidationError("id", fmt.Sprintf("%q does not match entity id %q", id, it.ID))
	}
	c, err := r.container(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := c.UpsertItem(ctx, it)
	if err != nil {
		return nil, fmt.Errorf("update item %q: %w", id, err)
	}
	return receipt, nil
}

// ReplaceItem overwrites an existing entity. The item must exist, and when
// ifMatch is non-empty the stored ETag must equal it.
func (r *Repository[T]) ReplaceItem(ctx context.Context, id string, item T, ifMatch string) (*storagemodels.Receipt, error) {
	it, err := r.toItem(item)
	if err != nil {
		return nil, err
	}
	if it.ID != id {
		return nil, errors.NewValidationError("id", fmt.Sprintf("%q does not match entity id %q", id, it.ID))
	}
	c, err := r.container(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := c.ReplaceItem(ctx, it, storagemodels.ReplaceOptions{IfMatch: ifMatch})
	if err != nil {
		return nil, fmt.Errorf("replace item %q: %w", id, err)
	}
	return receipt, nil
}

// DeleteItem removes an entity. It reports false with a nil error when the
// item did not exist.
func (r *Repository[T]) DeleteItem(ctx context.Context, id, partitionKey string) (bool, error) {
	c, err := r.container(ctx)
	if err != nil {
		return false, err
	}

	if err := c.DeleteItem(ctx, id, partitionKey); err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete item %q: %w", id, err)
	}
	return true, nil
}
