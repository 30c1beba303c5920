/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/suparena/docstore/errors"
)

// Backend names a datastore implementation
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendDynamoDB Backend = "dynamodb"
	BackendBadger   Backend = "badger"
	BackendSQL      Backend = "sql"
)

// Config is the full set of command settings
type Config struct {
	Backend          Backend `yaml:"backend"`
	Database         string  `yaml:"database"`
	Container        string  `yaml:"container"`
	PartitionKeyPath string  `yaml:"partition_key_path"`
	Throughput       int32   `yaml:"throughput"`
	// BulkThroughput is provisioned for the bulk import container.
	BulkThroughput int32  `yaml:"bulk_throughput"`
	LogLevel       string `yaml:"log_level"`

	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	Badger   BadgerConfig   `yaml:"badger"`
	SQL      SQLConfig      `yaml:"sql"`
}

type DynamoDBConfig struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	CatalogTable string `yaml:"catalog_table"`
}

type BadgerConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type SQLConfig struct {
	// Type is sqlite, postgres or mysql.
	Type     string `yaml:"type"`
	DSN      string `yaml:"dsn"`
	QueryLog bool   `yaml:"query_log"`
}

// DefaultConfig returns the settings used when nothing overrides them
func DefaultConfig() *Config {
	return &Config{
		Backend:          BackendMemory,
		Database:         "ToDoList",
		Container:        "Items",
		PartitionKeyPath: "/id",
		Throughput:       400,
		BulkThroughput:   50000,
		LogLevel:         "info",
		DynamoDB: DynamoDBConfig{
			Region:       "us-east-1",
			CatalogTable: "docstore-catalog",
		},
		Badger: BadgerConfig{Path: "./docstore-data"},
		SQL:    SQLConfig{Type: "sqlite", DSN: "file:docstore.db?cache=shared"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), an optional .env file and the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.LogLevel, "DOCSTORE_LOG_LEVEL")
	setString(&c.Database, "DOCSTORE_DATABASE")
	setString(&c.Container, "DOCSTORE_CONTAINER")
	setString(&c.PartitionKeyPath, "DOCSTORE_PARTITION_KEY_PATH")
	if v, ok := os.LookupEnv("DOCSTORE_BACKEND"); ok && v != "" {
		c.Backend = Backend(v)
	}
	if err := setInt32(&c.Throughput, "DOCSTORE_THROUGHPUT"); err != nil {
		return err
	}
	if err := setInt32(&c.BulkThroughput, "DOCSTORE_BULK_THROUGHPUT"); err != nil {
		return err
	}

	setString(&c.DynamoDB.Region, "AWS_REGION")
	setString(&c.DynamoDB.Endpoint, "DOCSTORE_DYNAMODB_ENDPOINT")
	setString(&c.DynamoDB.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.DynamoDB.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.DynamoDB.CatalogTable, "DOCSTORE_CATALOG_TABLE")

	setString(&c.Badger.Path, "DOCSTORE_BADGER_PATH")
	if err := setBool(&c.Badger.InMemory, "DOCSTORE_BADGER_IN_MEMORY"); err != nil {
		return err
	}

	setString(&c.SQL.Type, "DOCSTORE_SQL_TYPE")
	setString(&c.SQL.DSN, "DOCSTORE_SQL_DSN")
	return setBool(&c.SQL.QueryLog, "DOCSTORE_SQL_QUERY_LOG")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt32(dst *int32, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return errors.NewValidationError(key, fmt.Sprintf("invalid integer %q", v))
	}
	*dst = int32(n)
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return errors.NewValidationError(key, fmt.Sprintf("invalid boolean %q", v))
	}
	*dst = b
	return nil
}

// Validate checks that the settings describe a usable store
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.NewValidationError("database", "database must not be empty")
	}
	if c.Container == "" {
		return errors.NewValidationError("container", "container must not be empty")
	}
	if !strings.HasPrefix(c.PartitionKeyPath, "/") {
		return errors.NewValidationError("partition_key_path", fmt.Sprintf("%q must start with '/'", c.PartitionKeyPath))
	}
	if c.Throughput < 0 {
		return errors.NewValidationError("throughput", "throughput must not be negative")
	}
	if c.BulkThroughput < 0 {
		return errors.NewValidationError("bulk_throughput", "bulk throughput must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewValidationError("log_level", fmt.Sprintf("unknown log level %q", c.LogLevel))
	}

	switch c.Backend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.DynamoDB.Region == "" {
			return errors.NewValidationError("dynamodb.region", "region is required for the dynamodb backend")
		}
	case BackendBadger:
		if c.Badger.Path == "" && !c.Badger.InMemory {
			return errors.NewValidationError("badger.path", "path is required unless in_memory is set")
		}
	case BackendSQL:
		switch c.SQL.Type {
		case "sqlite", "postgres", "mysql":
		default:
			return errors.NewValidationError("sql.type", fmt.Sprintf("unsupported sql type %q", c.SQL.Type))
		}
		if c.SQL.DSN == "" {
			return errors.NewValidationError("sql.dsn", "dsn is required for the sql backend")
		}
	default:
		return errors.NewValidationError("backend", fmt.Sprintf("unknown backend %q", c.Backend))
	}
	return nil
}
