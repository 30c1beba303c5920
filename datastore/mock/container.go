/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"context"
	"fmt"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// Database is a handle to an in-memory database
type Database struct {
	client *Client
	id     string
}

var _ datastore.Database = (*Database)(nil)

func (d *Database) ID() string { return d.id }

// ReadContainer returns the properties of an existing container
func (d *Database) ReadContainer(ctx context.Context, id string) (*storagemodels.ContainerProperties, error) {
	c := d.client
	if err := c.before(OpReadContainer, id); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	db, ok := c.databases[d.id]
	if !ok {
		return nil, errors.NewNotFoundError("database", d.id)
	}
	ct, ok := db.containers[id]
	if !ok {
		return nil, errors.NewNotFoundError("container", id)
	}
	props := ct.props
	return &props, nil
}

// CreateContainer creates a container, failing with ConflictError if it exists
func (d *Database) CreateContainer(ctx context.Context, props storagemodels.ContainerProperties) (*storagemodels.ContainerProperties, error) {
	c := d.client
	if err := c.before(OpCreateContainer, props.ID); err != nil {
		return nil, err
	}
	if props.ID == "" {
		return nil, errors.NewValidationError("id", "container id must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.databases[d.id]
	if !ok {
		return nil, errors.NewNotFoundError("database", d.id)
	}
	if _, ok := db.containers[props.ID]; ok {
		return nil, errors.NewConflictError("container", props.ID)
	}
	db.containers[props.ID] = &container{props: props, items: make(map[itemKey]storagemodels.Item)}
	return &props, nil
}

// DeleteContainer removes a container and its items
func (d *Database) DeleteContainer(ctx context.Context, id string) error {
	c := d.client
	if err := c.before(OpDeleteContainer, id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.databases[d.id]
	if !ok {
		return errors.NewNotFoundError("database", d.id)
	}
	if _, ok := db.containers[id]; !ok {
		return errors.NewNotFoundError("container", id)
	}
	delete(db.containers, id)
	return nil
}

// Container returns a handle to the container id
func (d *Database) Container(id string) datastore.Container {
	return &Container{client: d.client, database: d.id, id: id}
}

// Container is a handle to an in-memory container
type Container struct {
	client   *Client
	database string
	id       string
}

var _ datastore.Container = (*Container)(nil)

func (ct *Container) ID() string { return ct.id }

// resolve must be called with the client lock held
func (ct *Container) resolve() (*container, error) {
	db, ok := ct.client.databases[ct.database]
	if !ok {
		return nil, errors.NewNotFoundError("database", ct.database)
	}
	c, ok := db.containers[ct.id]
	if !ok {
		return nil, errors.NewNotFoundError("container", ct.id)
	}
	return c, nil
}

func validateItem(item storagemodels.Item) error {
	if item.ID == "" {
		return errors.NewValidationError("id", "item id must not be empty")
	}
	if item.PartitionKey == "" {
		return errors.NewValidationError("partition_key", "item partition key must not be empty")
	}
	return nil
}

// stamp assigns the write time and ETag and stores a private copy
func (ct *Container) stamp(item storagemodels.Item) (storagemodels.Item, error) {
	now := ct.client.now().UTC()
	etag, err := storagemodels.ComputeETag(item.Body, now.UnixNano())
	if err != nil {
		return item, errors.NewValidationError("body", err.Error())
	}
	stored := cloneItem(item)
	stored.ETag = etag
	stored.Timestamp = now
	return stored, nil
}

// ReadItem returns a copy of the stored item
func (ct *Container) ReadItem(ctx context.Context, id, partitionKey string) (*storagemodels.Item, error) {
	if err := ct.client.before(OpReadItem, id); err != nil {
		return nil, err
	}
	ct.client.mu.RLock()
	defer ct.client.mu.RUnlock()

	c, err := ct.resolve()
	if err != nil {
		return nil, err
	}
	key := itemKey{pk: partitionKey, id: id}
	it, ok := c.items[key]
	if !ok {
		return nil, errors.NewNotFoundError("item", key.String())
	}
	out := cloneItem(it)
	return &out, nil
}

// CreateItem inserts an item, failing with ConflictError if (id, partition key) is taken
func (ct *Container) CreateItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error) {
	if err := ct.client.before(OpCreateItem, item.ID); err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	stored, err := ct.stamp(item)
	if err != nil {
		return nil, err
	}

	ct.client.mu.Lock()
	defer ct.client.mu.Unlock()

	c, err := ct.resolve()
	if err != nil {
		return nil, err
	}
	key := itemKey{pk: item.PartitionKey, id: item.ID}
	if _, exists := c.items[key]; exists {
		return nil, errors.NewConflictError("item", key.String())
	}
	c.items[key] = stored
	return stored.Receipt(), nil
}

// UpsertItem inserts or overwrites an item
func (ct *Container) UpsertItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error) {
	if err := ct.client.before(OpUpsertItem, item.ID); err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	stored, err := ct.stamp(item)
	if err != nil {
		return nil, err
	}

	ct.client.mu.Lock()
	defer ct.client.mu.Unlock()

	c, err := ct.resolve()
	if err != nil {
		return nil, err
	}
	c.items[itemKey{pk: item.PartitionKey, id: item.ID}] = stored
	return stored.Receipt(), nil
}

// ReplaceItem overwrites an existing item, checking IfMatch when set
func (ct *Container) ReplaceItem(ctx context.Context, item storagemodels.Item, opts storagemodels.ReplaceOptions) (*storagemodels.Receipt, error) {
	if err := ct.client.before(OpReplaceItem, item.ID); err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	stored, err := ct.stamp(item)
	if err != nil {
		return nil, err
	}

	ct.client.mu.Lock()
	defer ct.client.mu.Unlock()

	c, err := ct.resolve()
	if err != nil {
		return nil, err
	}
	key := itemKey{pk: item.PartitionKey, id: item.ID}
	current, exists := c.items[key]
	if !exists {
		return nil, errors.NewNotFoundError("item", key.String())
	}
	if opts.IfMatch != "" && opts.IfMatch != current.ETag {
		return nil, errors.NewConditionFailedError("replace", fmt.Sprintf("etag = %s", opts.IfMatch))
	}
	c.items[key] = stored
	return stored.Receipt(), nil
}

// DeleteItem removes an item, returning NotFoundError if it is absent
func (ct *Container) DeleteItem(ctx context.Context, id, partitionKey string) error {
	if err := ct.client.before(OpDeleteItem, id); err != nil {
		return err
	}
	ct.client.mu.Lock()
	defer ct.client.mu.Unlock()

	c, err := ct.resolve()
	if err != nil {
		return err
	}
	key := itemKey{pk: partitionKey, id: id}
	if _, exists := c.items[key]; !exists {
		return errors.NewNotFoundError("item", key.String())
	}
	delete(c.items, key)
	return nil
}

// Query returns a pager over the items matching pred in (partition key, id) order
func (ct *Container) Query(ctx context.Context, pred query.Predicate, opts *storagemodels.QueryOptions) datastore.Pager {
	if err := query.Validate(pred); err != nil {
		return &datastore.ErrPager{Err: errors.NewValidationError("predicate", err.Error())}
	}
	p := &Pager{container: ct, pred: pred}
	if opts != nil {
		p.opts = *opts
	}
	if p.opts.ContinuationToken != "" {
		after, err := decodeToken(p.opts.ContinuationToken)
		if err != nil {
			return &datastore.ErrPager{Err: err}
		}
		p.after = &after
	}
	return p
}

// Pager pages through an in-memory query using the last returned key as the
// continuation token, so concurrent writes never shift later pages.
type Pager struct {
	container *Container
	pred      query.Predicate
	opts      storagemodels.QueryOptions
	after     *itemKey
	done      bool
	pages     int
}

var _ datastore.Pager = (*Pager)(nil)

func (p *Pager) HasMoreResults() bool { return !p.done }

// Pages returns how many pages have been fetched
func (p *Pager) Pages() int { return p.pages }

func (p *Pager) NextPage(ctx context.Context) (*storagemodels.Page, error) {
	if p.done {
		return nil, fmt.Errorf("no more pages")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ct := p.container
	if err := ct.client.before(OpQueryPage, ct.id); err != nil {
		return nil, err
	}
	if !p.opts.EnableCrossPartition && p.opts.PartitionKey == "" {
		p.done = true
		return nil, errors.NewValidationError("partition_key", "cross-partition query not enabled and no partition key given")
	}

	size := p.opts.MaxItemCount
	if size <= 0 {
		size = ct.client.pageSize
	}
	if size <= 0 {
		size = DefaultPageSize
	}

	ct.client.mu.RLock()
	defer ct.client.mu.RUnlock()

	c, err := ct.resolve()
	if err != nil {
		p.done = true
		return nil, err
	}

	page := &storagemodels.Page{Items: []storagemodels.Item{}}
	var last itemKey
	more := false
	for _, k := range sortedKeys(c.items) {
		if p.after != nil && !less(*p.after, k) {
			continue
		}
		if p.opts.PartitionKey != "" && k.pk != p.opts.PartitionKey {
			continue
		}
		it := c.items[k]
		ok, err := query.Match(p.pred, it.Body)
		if err != nil {
			p.done = true
			return nil, errors.NewValidationError("predicate", err.Error())
		}
		if !ok {
			continue
		}
		if int32(len(page.Items)) == size {
			more = true
			break
		}
		page.Items = append(page.Items, cloneItem(it))
		last = k
	}

	p.pages++
	if more {
		p.after = &last
		page.ContinuationToken = encodeToken(last)
	} else {
		p.done = true
	}
	return page, nil
}
