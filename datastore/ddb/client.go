/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/docstore/datastore"
)

const (
	// DefaultCatalogTable holds database and container records.
	DefaultCatalogTable = "docstore-catalog"

	defaultMaxRetries   = 3
	defaultRetryBackoff = 200 * time.Millisecond
	defaultWaitTimeout  = 2 * time.Minute
	defaultPageSize     = 100
)

// Config selects the AWS account and endpoint. Empty credentials fall back
// to the SDK's default provider chain.
type Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Client is a datastore.Client backed by DynamoDB
type Client struct {
	api          API
	catalogTable string
	logger       *slog.Logger
	maxRetries   int
	retryBackoff time.Duration
	waitTimeout  time.Duration
	now          func() time.Time

	catalogMu    sync.Mutex
	catalogReady bool
}

var _ datastore.Client = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithCatalogTable overrides the table holding database and container records
func WithCatalogTable(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.catalogTable = name
		}
	}
}

// WithLogger sets the logger for table lifecycle events
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetry sets how often a throttled page fetch is repeated and the base
// backoff between attempts
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if backoff > 0 {
			c.retryBackoff = backoff
		}
	}
}

// WithWaitTimeout bounds how long table creation waits for ACTIVE.
// Zero disables waiting.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.waitTimeout = d
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

// New wraps an existing DynamoDB API client
func New(api API, opts ...Option) *Client {
	c := &Client{
		api:          api,
		catalogTable: DefaultCatalogTable,
		logger:       slog.Default(),
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
		waitTimeout:  defaultWaitTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig loads the AWS configuration and creates a Client
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	api := sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	c := New(api, opts...)
	c.logger.Debug("dynamodb client initialized",
		"region", awsCfg.Region,
		"endpoint", cfg.Endpoint,
		"catalog_table", c.catalogTable)
	return c, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (c *Client) Close() error {
	return nil
}

// ensureCatalog creates the catalog table on first use
func (c *Client) ensureCatalog(ctx context.Context) error {
	c.catalogMu.Lock()
	defer c.catalogMu.Unlock()
	if c.catalogReady {
		return nil
	}

	_, err := c.api.DescribeTable(ctx, &sdk.DescribeTableInput{TableName: aws.String(c.catalogTable)})
	if err == nil {
		c.catalogReady = true
		return nil
	}
	if !isResourceNotFound(err) {
		return storeError("describe catalog table", err)
	}

	c.logger.Info("creating catalog table", "table", c.catalogTable)
	if err := c.createTable(ctx, c.catalogTable, 0); err != nil {
		return err
	}
	c.catalogReady = true
	return nil
}

// createTable creates a PK/SK table and waits for it to become ACTIVE. A
// table that already exists is adopted.
func (c *Client) createTable(ctx context.Context, name string, throughput int32) error {
	input := &sdk.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
	}
	if throughput > 0 {
		input.BillingMode = types.BillingModeProvisioned
		input.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(int64(throughput)),
			WriteCapacityUnits: aws.Int64(int64(throughput)),
		}
	} else {
		input.BillingMode = types.BillingModePayPerRequest
	}

	if _, err := c.api.CreateTable(ctx, input); err != nil {
		if !isResourceInUse(err) {
			return storeError("create table "+name, err)
		}
		c.logger.Debug("table already exists", "table", name)
	}

	if c.waitTimeout <= 0 {
		return nil
	}
	waiter := sdk.NewTableExistsWaiter(c.api)
	if err := waiter.Wait(ctx, &sdk.DescribeTableInput{TableName: aws.String(name)}, c.waitTimeout); err != nil {
		return storeError("wait for table "+name, err)
	}
	return nil
}

func (c *Client) deleteTable(ctx context.Context, name string) error {
	_, err := c.api.DeleteTable(ctx, &sdk.DeleteTableInput{TableName: aws.String(name)})
	if err != nil && !isResourceNotFound(err) {
		return storeError("delete table "+name, err)
	}
	return nil
}
