/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/urfave/cli/v2"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/config"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/models"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

const todoRepo = "todo"

// session is the per-command store connection and its repositories
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  datastore.Client
	catalog *docstore.Catalog
	todo    *docstore.Repository[models.TodoItem]
	out     io.Writer
}

func openSession(c *cli.Context) (*session, error) {
	cfg := configFrom(c)
	logger := slog.Default()

	client, err := openClient(c.Context, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	s := &session{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		catalog: docstore.NewCatalog(),
		out:     c.App.Writer,
	}

	todos, err := docstore.New[models.TodoItem](client, docstore.Config{
		Database:         cfg.Database,
		Container:        cfg.Container,
		PartitionKeyPath: cfg.PartitionKeyPath,
		Throughput:       cfg.Throughput,
	}, docstore.WithLazyInit[models.TodoItem](), docstore.WithLogger[models.TodoItem](logger))
	if err != nil {
		client.Close()
		return nil, err
	}
	if err := docstore.Register(s.catalog, todoRepo, todos); err != nil {
		client.Close()
		return nil, err
	}
	s.todo = todos
	return s, nil
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		s.logger.Warn("close store", "error", err)
	}
}

func (s *session) todos() *docstore.Repository[models.TodoItem] {
	return s.todo
}

func (s *session) printJSON(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *session) printReceipt(verb string, r *storagemodels.Receipt) {
	fmt.Fprintf(s.out, "%s item %s (partition %s, etag %s)\n", verb, r.ID, r.PartitionKey, r.ETag)
}

// withSession opens a session for the duration of fn
func withSession(fn func(ctx context.Context, c *cli.Context, s *session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(c.Context, c, s)
	}
}

var initCommand = withSession(func(ctx context.Context, c *cli.Context, s *session) error {
	if err := s.catalog.InitializeAll(ctx); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "database %s, container %s ready\n", s.cfg.Database, s.cfg.Container)
	return nil
})

func partitionKey(c *cli.Context) string {
	if pk := c.String("pk"); pk != "" {
		return pk
	}
	return c.String("id")
}

var getCommand = withSession(func(ctx context.Context, c *cli.Context, s *session) error {
	item, found, err := s.todos().GetItem(ctx, c.String("id"), partitionKey(c))
	if err != nil {
		return err
	}
	if !found {
		return cli.Exit(fmt.Sprintf("item %s not found", c.String("id")), 1)
	}
	return s.printJSON(item)
})

var queryCommand = withSession(func(ctx context.Context, c *cli.Context, s *session) error {
	pred, err := query.ParseTerms(c.StringSlice("where"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	items, err := s.todos().QueryItems(ctx, pred)
	if err != nil {
		return err
	}
	s.logger.Debug("query finished", "predicate", query.Expr{Predicate: pred}.String(), "items", len(items))
	return s.printJSON(items)
})

// readTodo decodes the todo item in path, or stdin for "-"
func readTodo(path string, stdin io.Reader) (models.TodoItem, error) {
	var item models.TodoItem
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return item, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&item); err != nil {
		return item, fmt.Errorf("decode %s: %w", path, err)
	}
	if item.CreatedAt == nil {
		now := strfmt.DateTime(time.Now().UTC())
		item.CreatedAt = &now
	}
	return item, nil
}

var createCommand = withSession(func(ctx context.Context, c *cli.Context, s *session) error {
	item, err := readTodo(c.String("file"), c.App.Reader)
	if err != nil {
		return err
	}
	receipt, err := s.todos().CreateItem(ctx, item)
	if err != nil {
		return err
	}
	s.printReceipt("created", receipt)
	return nil
})

var upsertCommand = withSession(func(ctx context.Context, c *cli.Context, s *session) error {
	item, err := readTodo(c.String("file"), c.App.Reader)
	if err != nil {
		return err
	}
	receipt, err := s.todos().UpdateItem(ctx, item.ID, item)
	if err != nil {
		return err
	}
	s.printReceipt("upserted", receipt)
	return nil
})

var deleteCommand = withSession(func(ctx context.Context, c *cli.Context, s *session) error {
	id := c.String("id")
	deleted, err := s.todos().DeleteItem(ctx, id, partitionKey(c))
	if err != nil {
		return err
	}
	if !deleted {
		return cli.Exit(fmt.Sprintf("item %s not found", id), 1)
	}
	fmt.Fprintf(s.out, "deleted item %s\n", id)
	return nil
})
