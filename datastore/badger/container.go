/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package badger

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// Database is a handle to a database in the key space
type Database struct {
	client *Client
	id     string
}

var _ datastore.Database = (*Database)(nil)

func (d *Database) ID() string { return d.id }

// ReadContainer returns the properties of an existing container
func (d *Database) ReadContainer(ctx context.Context, id string) (*storagemodels.ContainerProperties, error) {
	var props storagemodels.ContainerProperties
	err := d.client.view(ctx, "read container", func(txn *badger.Txn) error {
		found, err := getJSON(txn, makeContainerKey(d.id, id), &props)
		if err != nil {
			return err
		}
		if !found {
			return errors.NewNotFoundError("container", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &props, nil
}

// CreateContainer creates a container, failing with ConflictError if it exists
func (d *Database) CreateContainer(ctx context.Context, props storagemodels.ContainerProperties) (*storagemodels.ContainerProperties, error) {
	if err := validateName("id", props.ID); err != nil {
		return nil, err
	}
	err := d.client.update(ctx, "create container", func(txn *badger.Txn) error {
		if _, err := txn.Get(makeDatabaseKey(d.id)); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.NewNotFoundError("database", d.id)
			}
			return err
		}
		var existing storagemodels.ContainerProperties
		found, err := getJSON(txn, makeContainerKey(d.id, props.ID), &existing)
		if err != nil {
			return err
		}
		if found {
			return errors.NewConflictError("container", props.ID)
		}
		return setJSON(txn, makeContainerKey(d.id, props.ID), props)
	})
	if err != nil {
		return nil, err
	}
	d.client.logger.Info("container created", "database", d.id, "container", props.ID)
	return &props, nil
}

// DeleteContainer removes a container and its items
func (d *Database) DeleteContainer(ctx context.Context, id string) error {
	c := d.client
	err := c.update(ctx, "delete container", func(txn *badger.Txn) error {
		if _, err := txn.Get(makeContainerKey(d.id, id)); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.NewNotFoundError("container", id)
			}
			return err
		}
		return txn.Delete(makeContainerKey(d.id, id))
	})
	if err != nil {
		return err
	}
	if err := c.db.DropPrefix(makeItemScanPrefix(d.id, id)); err != nil {
		return storeError("delete container items", err)
	}
	c.logger.Info("container deleted", "database", d.id, "container", id)
	return nil
}

// Container returns a handle to the container id
func (d *Database) Container(id string) datastore.Container {
	return &Container{client: d.client, database: d.id, id: id}
}

// Container is a handle to a container in the key space
type Container struct {
	client   *Client
	database string
	id       string
}

var _ datastore.Container = (*Container)(nil)

func (ct *Container) ID() string { return ct.id }

// storedItem is the value written under an item key
type storedItem struct {
	Body      storagemodels.Document `json:"body"`
	ETag      string                 `json:"etag"`
	Timestamp time.Time              `json:"ts"`
}

func validateItem(item storagemodels.Item) error {
	if item.ID == "" {
		return errors.NewValidationError("id", "item id must not be empty")
	}
	if item.PartitionKey == "" {
		return errors.NewValidationError("partition_key", "item partition key must not be empty")
	}
	if strings.Contains(item.PartitionKey, keySep) {
		return errors.NewValidationError("partition_key", "item partition key must not contain NUL")
	}
	return nil
}

// requireContainer fails with NotFound unless the container exists
func (ct *Container) requireContainer(txn *badger.Txn) error {
	if _, err := txn.Get(makeContainerKey(ct.database, ct.id)); err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.NewNotFoundError("container", ct.id)
		}
		return err
	}
	return nil
}

// stamp assigns the write time and ETag
func (ct *Container) stamp(item storagemodels.Item) (storedItem, error) {
	body := item.Body
	if body == nil {
		body = storagemodels.Document{}
	}
	now := ct.client.now().UTC()
	etag, err := storagemodels.ComputeETag(body, now.UnixNano())
	if err != nil {
		return storedItem{}, errors.NewValidationError("body", err.Error())
	}
	return storedItem{Body: body, ETag: etag, Timestamp: now}, nil
}

func (ct *Container) receipt(item storagemodels.Item, s storedItem) *storagemodels.Receipt {
	return &storagemodels.Receipt{
		ID:           item.ID,
		PartitionKey: item.PartitionKey,
		ETag:         s.ETag,
		Timestamp:    s.Timestamp,
	}
}

// ReadItem returns the item stored under (id, partitionKey)
func (ct *Container) ReadItem(ctx context.Context, id, partitionKey string) (*storagemodels.Item, error) {
	var s storedItem
	err := ct.client.view(ctx, "read item", func(txn *badger.Txn) error {
		if err := ct.requireContainer(txn); err != nil {
			return err
		}
		found, err := getJSON(txn, makeItemKey(ct.database, ct.id, partitionKey, id), &s)
		if err != nil {
			return err
		}
		if !found {
			return errors.NewNotFoundError("item", partitionKey+"|"+id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &storagemodels.Item{
		ID:           id,
		PartitionKey: partitionKey,
		Body:         s.Body,
		ETag:         s.ETag,
		Timestamp:    s.Timestamp,
	}, nil
}

// write stores item after check has inspected the current value
func (ct *Container) write(ctx context.Context, op string, item storagemodels.Item, check func(current *storedItem) error) (*storagemodels.Receipt, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}
	s, err := ct.stamp(item)
	if err != nil {
		return nil, err
	}
	key := makeItemKey(ct.database, ct.id, item.PartitionKey, item.ID)

	err = ct.client.update(ctx, op, func(txn *badger.Txn) error {
		if err := ct.requireContainer(txn); err != nil {
			return err
		}
		var current storedItem
		found, err := getJSON(txn, key, &current)
		if err != nil {
			return err
		}
		var cur *storedItem
		if found {
			cur = &current
		}
		if err := check(cur); err != nil {
			return err
		}
		return setJSON(txn, key, s)
	})
	if err != nil {
		return nil, err
	}
	return ct.receipt(item, s), nil
}

// CreateItem stores a new item, failing with ConflictError if the key is taken
func (ct *Container) CreateItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error) {
	return ct.write(ctx, "create item", item, func(current *storedItem) error {
		if current != nil {
			return errors.NewConflictError("item", item.PartitionKey+"|"+item.ID)
		}
		return nil
	})
}

// UpsertItem stores an item, replacing any existing one with the same key
func (ct *Container) UpsertItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error) {
	return ct.write(ctx, "upsert item", item, func(*storedItem) error { return nil })
}

// ReplaceItem overwrites an existing item, honouring opts.IfMatch
func (ct *Container) ReplaceItem(ctx context.Context, item storagemodels.Item, opts storagemodels.ReplaceOptions) (*storagemodels.Receipt, error) {
	return ct.write(ctx, "replace item", item, func(current *storedItem) error {
		if current == nil {
			return errors.NewNotFoundError("item", item.PartitionKey+"|"+item.ID)
		}
		if opts.IfMatch != "" && opts.IfMatch != current.ETag {
			return errors.NewConditionFailedError("replace", "etag = "+opts.IfMatch)
		}
		return nil
	})
}

// DeleteItem removes the item stored under (id, partitionKey)
func (ct *Container) DeleteItem(ctx context.Context, id, partitionKey string) error {
	key := makeItemKey(ct.database, ct.id, partitionKey, id)
	return ct.client.update(ctx, "delete item", func(txn *badger.Txn) error {
		if err := ct.requireContainer(txn); err != nil {
			return err
		}
		if _, err := txn.Get(key); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.NewNotFoundError("item", partitionKey+"|"+id)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// Query returns a pager over the items matching pred in (partition key, id) order
func (ct *Container) Query(ctx context.Context, pred query.Predicate, opts *storagemodels.QueryOptions) datastore.Pager {
	if opts == nil {
		opts = &storagemodels.QueryOptions{}
	}
	if opts.PartitionKey == "" && !opts.EnableCrossPartition {
		return &datastore.ErrPager{Err: errors.NewValidationError("partition_key",
			"cross-partition query not enabled and no partition key given")}
	}
	if err := query.Validate(pred); err != nil {
		return &datastore.ErrPager{Err: errors.NewValidationError("predicate", err.Error())}
	}

	p := &Pager{
		container: ct,
		pred:      pred,
		pageSize:  opts.MaxItemCount,
		prefix:    makeItemScanPrefix(ct.database, ct.id),
		scan:      makeItemScanPrefix(ct.database, ct.id),
		more:      true,
	}
	if p.pageSize <= 0 {
		p.pageSize = ct.client.pageSize
	}
	if opts.PartitionKey != "" {
		p.scan = makePartitionScanPrefix(ct.database, ct.id, opts.PartitionKey)
	}
	if opts.ContinuationToken != "" {
		pk, id, err := decodeToken(opts.ContinuationToken)
		if err != nil {
			return &datastore.ErrPager{Err: err}
		}
		p.after = makeItemKey(ct.database, ct.id, pk, id)
	}
	return p
}

// Pager iterates a key prefix in one read transaction per page. The last
// returned key is the continuation token, so writes between pages never
// shift later pages.
type Pager struct {
	container *Container
	pred      query.Predicate
	pageSize  int32
	prefix    []byte
	scan      []byte
	after     []byte
	more      bool
	pages     int
}

var _ datastore.Pager = (*Pager)(nil)

func (p *Pager) HasMoreResults() bool { return p.more }

// Pages returns how many pages have been fetched
func (p *Pager) Pages() int { return p.pages }

func (p *Pager) NextPage(ctx context.Context) (*storagemodels.Page, error) {
	if !p.more {
		return nil, fmt.Errorf("no more pages")
	}
	ct := p.container
	page := &storagemodels.Page{Items: []storagemodels.Item{}}
	hasNext := false

	err := ct.client.view(ctx, "query page", func(txn *badger.Txn) error {
		if err := ct.requireContainer(txn); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p.scan
		iter := txn.NewIterator(opts)
		defer iter.Close()

		if p.after != nil {
			iter.Seek(p.after)
		} else {
			iter.Rewind()
		}
		for ; iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			it := iter.Item()
			key := it.KeyCopy(nil)
			if p.after != nil && string(key) == string(p.after) {
				continue
			}
			pk, id, ok := splitItemKey(key, p.prefix)
			if !ok {
				continue
			}

			var s storedItem
			if err := it.Value(func(val []byte) error { return storagemodels.DecodeJSON(val, &s) }); err != nil {
				return fmt.Errorf("decode item %q: %w", id, err)
			}
			matched, err := query.Match(p.pred, s.Body)
			if err != nil {
				return errors.NewValidationError("predicate", err.Error())
			}
			if !matched {
				continue
			}
			if int32(len(page.Items)) == p.pageSize {
				hasNext = true
				return nil
			}
			page.Items = append(page.Items, storagemodels.Item{
				ID:           id,
				PartitionKey: pk,
				Body:         s.Body,
				ETag:         s.ETag,
				Timestamp:    s.Timestamp,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.pages++
	p.more = hasNext
	if hasNext {
		last := page.Items[len(page.Items)-1]
		page.ContinuationToken = encodeToken(last.PartitionKey, last.ID)
		p.after = makeItemKey(ct.database, ct.id, last.PartitionKey, last.ID)
	}
	return page, nil
}
