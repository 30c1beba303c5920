/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/suparena/docstore/config"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/badger"
	"github.com/suparena/docstore/datastore/ddb"
	"github.com/suparena/docstore/datastore/mock"
	"github.com/suparena/docstore/datastore/sqlstore"
)

// openClient connects to the backend named in cfg. The memory backend
// lives only as long as the process.
func openClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (datastore.Client, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return mock.New(), nil
	case config.BackendDynamoDB:
		return ddb.NewFromConfig(ctx, ddb.Config{
			Region:    cfg.DynamoDB.Region,
			Endpoint:  cfg.DynamoDB.Endpoint,
			AccessKey: cfg.DynamoDB.AccessKey,
			SecretKey: cfg.DynamoDB.SecretKey,
		}, ddb.WithCatalogTable(cfg.DynamoDB.CatalogTable), ddb.WithLogger(logger))
	case config.BackendBadger:
		return badger.Open(cfg.Badger.Path, cfg.Badger.InMemory, badger.WithLogger(logger))
	case config.BackendSQL:
		return sqlstore.Open(ctx, sqlstore.Config{
			Type:     cfg.SQL.Type,
			DSN:      cfg.SQL.DSN,
			QueryLog: cfg.SQL.QueryLog,
		}, sqlstore.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
