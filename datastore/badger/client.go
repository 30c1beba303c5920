/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package badger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

const (
	// DefaultPageSize is used when the query does not set one.
	DefaultPageSize = 100

	maxTxnRetries = 10
)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Client is a datastore.Client backed by an embedded BadgerDB
type Client struct {
	db       *badger.DB
	logger   *slog.Logger
	pageSize int32
	now      func() time.Time
}

var _ datastore.Client = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithLogger routes client and BadgerDB logs to logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPageSize sets the page size used when a query does not set one
func WithPageSize(n int32) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithClock replaces the time source used for item timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Open opens a BadgerDB database at path, creating the directory if it
// doesn't exist. With inMemory set the path is ignored and nothing is
// written to disk.
func Open(path string, inMemory bool, opts ...Option) (*Client, error) {
	c := &Client{
		logger:   slog.Default(),
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	var bopts badger.Options
	if inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(path)
	}
	bopts.Logger = &badgerLoggerAdapter{logger: c.logger}
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	c.db = db
	c.logger.Debug("badger store opened", "path", path, "in_memory", inMemory)
	return c, nil
}

func ensureDir(path string) error {
	if path == "" {
		return errors.NewValidationError("path", "badger path must not be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return err
		}
		info, err = os.Stat(path)
		if err != nil {
			return err
		}
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// Close closes the BadgerDB database.
func (c *Client) Close() error {
	if c.db.IsClosed() {
		return nil
	}
	return c.db.Close()
}

// IsClosed returns true if the database is closed.
func (c *Client) IsClosed() bool {
	return c.db.IsClosed()
}

// storeError wraps a BadgerDB failure in an errors.StoreError. Errors that
// already carry a docstore signal pass through.
func storeError(op string, err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, sentinel := range []error{errors.ErrNotFound, errors.ErrConflict, errors.ErrInvalidInput, errors.ErrConditionFailed, errors.ErrStore} {
		if stderrors.Is(err, sentinel) {
			return err
		}
	}
	kind := errors.KindUnknown
	switch {
	case stderrors.Is(err, badger.ErrDBClosed), stderrors.Is(err, badger.ErrBlockedWrites):
		kind = errors.KindUnavailable
	case stderrors.Is(err, badger.ErrConflict):
		kind = errors.KindThrottled
	}
	return errors.NewStoreError(op, kind, err)
}

// view runs fn in a read-only transaction
func (c *Client) view(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.db.IsClosed() {
		return storeError(op, badger.ErrDBClosed)
	}
	if err := c.db.View(fn); err != nil {
		return storeError(op, err)
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on write conflicts
func (c *Client) update(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.db.IsClosed() {
			return storeError(op, badger.ErrDBClosed)
		}
		err = c.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			break
		}
		c.logger.Debug("transaction conflict, retrying", "op", op, "attempt", attempt+1)
	}
	if err != nil {
		return storeError(op, err)
	}
	return nil
}

// getJSON decodes the value stored under key. It reports false when the key
// is absent.
func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return storagemodels.DecodeJSON(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, val)
}

// ReadDatabase returns the properties of an existing database
func (c *Client) ReadDatabase(ctx context.Context, id string) (*storagemodels.DatabaseProperties, error) {
	var props storagemodels.DatabaseProperties
	err := c.view(ctx, "read database", func(txn *badger.Txn) error {
		found, err := getJSON(txn, makeDatabaseKey(id), &props)
		if err != nil {
			return err
		}
		if !found {
			return errors.NewNotFoundError("database", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &props, nil
}

// CreateDatabase creates a database, failing with ConflictError if it exists
func (c *Client) CreateDatabase(ctx context.Context, props storagemodels.DatabaseProperties) (*storagemodels.DatabaseProperties, error) {
	if err := validateName("id", props.ID); err != nil {
		return nil, err
	}
	err := c.update(ctx, "create database", func(txn *badger.Txn) error {
		var existing storagemodels.DatabaseProperties
		found, err := getJSON(txn, makeDatabaseKey(props.ID), &existing)
		if err != nil {
			return err
		}
		if found {
			return errors.NewConflictError("database", props.ID)
		}
		return setJSON(txn, makeDatabaseKey(props.ID), props)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("database created", "database", props.ID)
	return &props, nil
}

// DeleteDatabase removes a database with its containers and items
func (c *Client) DeleteDatabase(ctx context.Context, id string) error {
	err := c.update(ctx, "delete database", func(txn *badger.Txn) error {
		if _, err := txn.Get(makeDatabaseKey(id)); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.NewNotFoundError("database", id)
			}
			return err
		}
		if err := deletePrefix(txn, makeContainerScanPrefix(id)); err != nil {
			return err
		}
		return txn.Delete(makeDatabaseKey(id))
	})
	if err != nil {
		return err
	}
	if err := c.db.DropPrefix(makeDatabaseItemPrefix(id)); err != nil {
		return storeError("delete database items", err)
	}
	c.logger.Info("database deleted", "database", id)
	return nil
}

// deletePrefix removes every key under prefix inside txn
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := txn.NewIterator(opts)
	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Database returns a handle to the database id
func (c *Client) Database(id string) datastore.Database {
	return &Database{client: c, id: id}
}
