/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// Client is the top-level handle to a document store. It owns whatever
// connections the backend holds and releases them on Close.
type Client interface {
	ReadDatabase(ctx context.Context, id string) (*storagemodels.DatabaseProperties, error)

	CreateDatabase(ctx context.Context, props storagemodels.DatabaseProperties) (*storagemodels.DatabaseProperties, error)

	DeleteDatabase(ctx context.Context, id string) error

	// Database returns a handle without contacting the store.
	Database(id string) Database

	Close() error
}

// Database groups containers.
type Database interface {
	ID() string

	ReadContainer(ctx context.Context, id string) (*storagemodels.ContainerProperties, error)

	CreateContainer(ctx context.Context, props storagemodels.ContainerProperties) (*storagemodels.ContainerProperties, error)

	DeleteContainer(ctx context.Context, id string) error

	// Container returns a handle without contacting the store.
	Container(id string) Container
}

// Container stores items addressed by (id, partition key).
type Container interface {
	ID() string

	ReadItem(ctx context.Context, id, partitionKey string) (*storagemodels.Item, error)

	CreateItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error)

	UpsertItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error)

	ReplaceItem(ctx context.Context, item storagemodels.Item, opts storagemodels.ReplaceOptions) (*storagemodels.Receipt, error)

	DeleteItem(ctx context.Context, id, partitionKey string) error

	// Query never fails up front; errors surface from Pager.NextPage.
	Query(ctx context.Context, pred query.Predicate, opts *storagemodels.QueryOptions) Pager
}

// Pager walks the pages of one query.
type Pager interface {
	HasMoreResults() bool

	NextPage(ctx context.Context) (*storagemodels.Page, error)
}

// Drain reads every remaining page of p and returns the items in store order.
func Drain(ctx context.Context, p Pager) ([]storagemodels.Item, error) {
	var items []storagemodels.Item
	for p.HasMoreResults() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// ErrPager is a Pager that yields a single error. Backends return it from
// Query when the query cannot even be started.
type ErrPager struct {
	Err  error
	done bool
}

func (p *ErrPager) HasMoreResults() bool { return !p.done }

func (p *ErrPager) NextPage(context.Context) (*storagemodels.Page, error) {
	p.done = true
	return nil, p.Err
}
