/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

const (
	// DefaultPageSize is used when the query does not set one.
	DefaultPageSize = 100

	defaultConnectTimeout = 30 * time.Second
)

// Config selects the SQL dialect and connection.
type Config struct {
	// Type is one of "sqlite", "postgres" or "mysql".
	Type string
	DSN  string
	// QueryLog prints every statement through bundebug. BUNDEBUG in the
	// environment overrides it.
	QueryLog bool
}

// Client is a datastore.Client backed by a SQL database
type Client struct {
	db       *bun.DB
	logger   *slog.Logger
	pageSize int32
	now      func() time.Time
}

var _ datastore.Client = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for lifecycle events
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

// Open connects to the database described by cfg and creates the docstore
// tables if they are missing.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		logger:   slog.Default(),
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.DSN == "" {
		return nil, errors.NewValidationError("dsn", "sql dsn must not be empty")
	}

	db, err := newDB(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.QueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	c.db = db

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, storeError("connect", err)
	}
	if err := c.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	c.logger.Debug("sql store opened", "type", cfg.Type, "dialect", db.Dialect().Name().String())
	return c, nil
}

func newDB(cfg Config) (*bun.DB, error) {
	switch cfg.Type {
	case "sqlite", "sqlite3":
		sqlDB, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, err
		}
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY
		// and keeps in-memory databases alive.
		sqlDB.SetMaxOpenConns(1)
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	case "postgres", "postgresql":
		sqlDB, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqlDB, pgdialect.New()), nil
	case "mysql":
		sqlDB, err := sql.Open("mysql", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqlDB, mysqldialect.New()), nil
	default:
		return nil, errors.NewValidationError("type", fmt.Sprintf("unsupported database type: %s", cfg.Type))
	}
}

func (c *Client) migrate(ctx context.Context) error {
	for _, model := range models {
		if _, err := c.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return storeError("create tables", err)
		}
	}
	if c.db.Dialect().Name() != dialect.MySQL {
		return nil
	}
	for _, model := range models {
		if err := c.useBinaryCollation(ctx, tableName(c.db, model)); err != nil {
			return storeError("set key collation", err)
		}
	}
	return nil
}

func (c *Client) useBinaryCollation(ctx context.Context, table string) error {
	var folding int
	if err := foldingColumnsQuery(c.db, table).Scan(ctx, &folding); err != nil {
		return err
	}
	if folding == 0 {
		return nil
	}
	if _, err := binaryCollationQuery(c.db, table).Exec(ctx); err != nil {
		return err
	}
	c.logger.Info("table converted to binary collation", "table", table, "collation", binaryCollation)
	return nil
}

// Close closes the underlying connection pool
func (c *Client) Close() error {
	return c.db.Close()
}

// DB exposes the bun handle, mainly for tests and maintenance tooling
func (c *Client) DB() *bun.DB { return c.db }

// ReadDatabase returns the properties of an existing database
func (c *Client) ReadDatabase(ctx context.Context, id string) (*storagemodels.DatabaseProperties, error) {
	row := new(databaseRow)
	err := c.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("database", id)
	}
	if err != nil {
		return nil, storeError("read database", err)
	}
	return &storagemodels.DatabaseProperties{ID: row.ID, Throughput: row.Throughput}, nil
}

// CreateDatabase creates a database, failing with ConflictError if it exists
func (c *Client) CreateDatabase(ctx context.Context, props storagemodels.DatabaseProperties) (*storagemodels.DatabaseProperties, error) {
	if props.ID == "" {
		return nil, errors.NewValidationError("id", "id must not be empty")
	}
	row := &databaseRow{ID: props.ID, Throughput: props.Throughput}
	if _, err := c.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return nil, errors.NewConflictError("database", props.ID)
		}
		return nil, storeError("create database", err)
	}
	c.logger.Info("database created", "database", props.ID)
	return &props, nil
}

// DeleteDatabase removes a database with its containers and items
func (c *Client) DeleteDatabase(ctx context.Context, id string) error {
	err := c.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*databaseRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.NewNotFoundError("database", id)
		}
		if _, err := tx.NewDelete().Model((*containerRow)(nil)).Where("database_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err = tx.NewDelete().Model((*itemRow)(nil)).Where("database_id = ?", id).Exec(ctx)
		return err
	})
	if err != nil {
		return storeError("delete database", err)
	}
	c.logger.Info("database deleted", "database", id)
	return nil
}

// Database returns a handle to the database id
func (c *Client) Database(id string) datastore.Database {
	return &Database{client: c, id: id}
}
