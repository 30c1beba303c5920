/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// Database is a handle to a row of docstore_databases
type Database struct {
	client *Client
	id     string
}

var _ datastore.Database = (*Database)(nil)

func (d *Database) ID() string { return d.id }

// ReadContainer returns the properties of an existing container
func (d *Database) ReadContainer(ctx context.Context, id string) (*storagemodels.ContainerProperties, error) {
	row := new(containerRow)
	err := d.client.db.NewSelect().Model(row).
		Where("database_id = ?", d.id).
		Where("id = ?", id).
		Scan(ctx)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("container", id)
	}
	if err != nil {
		return nil, storeError("read container", err)
	}
	return &storagemodels.ContainerProperties{
		ID:               row.ID,
		PartitionKeyPath: row.PartitionKeyPath,
		Throughput:       row.Throughput,
	}, nil
}

// CreateContainer creates a container, failing with ConflictError if it exists
func (d *Database) CreateContainer(ctx context.Context, props storagemodels.ContainerProperties) (*storagemodels.ContainerProperties, error) {
	if props.ID == "" {
		return nil, errors.NewValidationError("id", "id must not be empty")
	}
	row := &containerRow{
		DatabaseID:       d.id,
		ID:               props.ID,
		PartitionKeyPath: props.PartitionKeyPath,
		Throughput:       props.Throughput,
	}
	err := d.client.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*databaseRow)(nil)).Where("id = ?", d.id).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return errors.NewNotFoundError("database", d.id)
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			if isDuplicateKey(err) {
				return errors.NewConflictError("container", props.ID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeError("create container", err)
	}
	d.client.logger.Info("container created", "database", d.id, "container", props.ID)
	return &props, nil
}

// DeleteContainer removes a container and its items
func (d *Database) DeleteContainer(ctx context.Context, id string) error {
	err := d.client.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*containerRow)(nil)).
			Where("database_id = ?", d.id).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.NewNotFoundError("container", id)
		}
		_, err = tx.NewDelete().Model((*itemRow)(nil)).
			Where("database_id = ?", d.id).
			Where("container_id = ?", id).
			Exec(ctx)
		return err
	})
	if err != nil {
		return storeError("delete container", err)
	}
	d.client.logger.Info("container deleted", "database", d.id, "container", id)
	return nil
}

// Container returns a handle to the container id
func (d *Database) Container(id string) datastore.Container {
	return &Container{client: d.client, database: d.id, id: id}
}

// Container is a handle to the items of one container
type Container struct {
	client   *Client
	database string
	id       string
}

var _ datastore.Container = (*Container)(nil)

func (ct *Container) ID() string { return ct.id }

func validateItem(item storagemodels.Item) error {
	if item.ID == "" {
		return errors.NewValidationError("id", "item id must not be empty")
	}
	if item.PartitionKey == "" {
		return errors.NewValidationError("partition_key", "item partition key must not be empty")
	}
	return nil
}

func itemKey(pk, id string) string { return pk + "|" + id }

// whereItem restricts a query to the row of (partitionKey, id)
func (ct *Container) whereItem(partitionKey, id string) func(bun.QueryBuilder) bun.QueryBuilder {
	return func(q bun.QueryBuilder) bun.QueryBuilder {
		return q.Where("database_id = ?", ct.database).
			Where("container_id = ?", ct.id).
			Where("partition_key = ?", partitionKey).
			Where("id = ?", id)
	}
}

// requireContainer fails with NotFound unless the container exists
func (ct *Container) requireContainer(ctx context.Context, db bun.IDB) error {
	exists, err := db.NewSelect().Model((*containerRow)(nil)).
		Where("database_id = ?", ct.database).
		Where("id = ?", ct.id).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NewNotFoundError("container", ct.id)
	}
	return nil
}

// newRow encodes item and assigns its write time and ETag
func (ct *Container) newRow(item storagemodels.Item) (*itemRow, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}
	body := item.Body
	if body == nil {
		body = storagemodels.Document{}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewValidationError("body", err.Error())
	}
	now := ct.client.now().UTC()
	etag, err := storagemodels.ComputeETag(body, now.UnixNano())
	if err != nil {
		return nil, errors.NewValidationError("body", err.Error())
	}
	return &itemRow{
		DatabaseID:   ct.database,
		ContainerID:  ct.id,
		PartitionKey: item.PartitionKey,
		ID:           item.ID,
		Body:         string(raw),
		ETag:         etag,
		UpdatedAt:    now,
	}, nil
}

func receipt(row *itemRow) *storagemodels.Receipt {
	return &storagemodels.Receipt{
		ID:           row.ID,
		PartitionKey: row.PartitionKey,
		ETag:         row.ETag,
		Timestamp:    row.UpdatedAt,
	}
}

func (row *itemRow) item() (storagemodels.Item, error) {
	var body storagemodels.Document
	if err := storagemodels.DecodeJSON([]byte(row.Body), &body); err != nil {
		return storagemodels.Item{}, fmt.Errorf("decode item %q: %w", row.ID, err)
	}
	return storagemodels.Item{
		ID:           row.ID,
		PartitionKey: row.PartitionKey,
		Body:         body,
		ETag:         row.ETag,
		Timestamp:    row.UpdatedAt.UTC(),
	}, nil
}

// ReadItem returns the item stored under (id, partitionKey)
func (ct *Container) ReadItem(ctx context.Context, id, partitionKey string) (*storagemodels.Item, error) {
	row := new(itemRow)
	err := ct.client.db.NewSelect().Model(row).
		ApplyQueryBuilder(ct.whereItem(partitionKey, id)).
		Scan(ctx)
	if stderrors.Is(err, sql.ErrNoRows) {
		if err := ct.requireContainer(ctx, ct.client.db); err != nil {
			return nil, storeError("read item", err)
		}
		return nil, errors.NewNotFoundError("item", itemKey(partitionKey, id))
	}
	if err != nil {
		return nil, storeError("read item", err)
	}
	item, err := row.item()
	if err != nil {
		return nil, storeError("read item", err)
	}
	return &item, nil
}

// CreateItem stores a new item, failing with ConflictError if the key is taken
func (ct *Container) CreateItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error) {
	row, err := ct.newRow(item)
	if err != nil {
		return nil, err
	}
	err = ct.client.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := ct.requireContainer(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			if isDuplicateKey(err) {
				return errors.NewConflictError("item", itemKey(item.PartitionKey, item.ID))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeError("create item", err)
	}
	return receipt(row), nil
}

// UpsertItem stores an item, replacing any existing one with the same key
func (ct *Container) UpsertItem(ctx context.Context, item storagemodels.Item) (*storagemodels.Receipt, error) {
	row, err := ct.newRow(item)
	if err != nil {
		return nil, err
	}
	db := ct.client.db
	err = db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := ct.requireContainer(ctx, tx); err != nil {
			return err
		}
		q := tx.NewInsert().Model(row)
		switch {
		case db.HasFeature(feature.InsertOnConflict):
			q = q.On("CONFLICT (database_id, container_id, partition_key, id) DO UPDATE").
				Set("body = EXCLUDED.body").
				Set("etag = EXCLUDED.etag").
				Set("updated_at = EXCLUDED.updated_at")
		case db.HasFeature(feature.InsertOnDuplicateKey):
			q = q.On("DUPLICATE KEY UPDATE body = VALUES(body), etag = VALUES(etag), updated_at = VALUES(updated_at)")
		default:
			_, err := tx.NewDelete().Model((*itemRow)(nil)).
				ApplyQueryBuilder(ct.whereItem(item.PartitionKey, item.ID)).
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		_, err := q.Exec(ctx)
		return err
	})
	if err != nil {
		return nil, storeError("upsert item", err)
	}
	return receipt(row), nil
}

// ReplaceItem overwrites an existing item, honouring opts.IfMatch. The
// update is guarded by the ETag that was read, so a concurrent write makes
// it fail with ConditionFailedError.
func (ct *Container) ReplaceItem(ctx context.Context, item storagemodels.Item, opts storagemodels.ReplaceOptions) (*storagemodels.Receipt, error) {
	row, err := ct.newRow(item)
	if err != nil {
		return nil, err
	}
	err = ct.client.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := ct.requireContainer(ctx, tx); err != nil {
			return err
		}
		var current string
		err := tx.NewSelect().Model((*itemRow)(nil)).Column("etag").
			ApplyQueryBuilder(ct.whereItem(item.PartitionKey, item.ID)).
			Scan(ctx, &current)
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NewNotFoundError("item", itemKey(item.PartitionKey, item.ID))
		}
		if err != nil {
			return err
		}
		if opts.IfMatch != "" && opts.IfMatch != current {
			return errors.NewConditionFailedError("replace", "etag = "+opts.IfMatch)
		}

		res, err := tx.NewUpdate().Model(row).
			Column("body", "etag", "updated_at").
			ApplyQueryBuilder(ct.whereItem(item.PartitionKey, item.ID)).
			Where("etag = ?", current).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.NewConditionFailedError("replace", "etag = "+current)
		}
		return nil
	})
	if err != nil {
		return nil, storeError("replace item", err)
	}
	return receipt(row), nil
}

// DeleteItem removes the item stored under (id, partitionKey)
func (ct *Container) DeleteItem(ctx context.Context, id, partitionKey string) error {
	err := ct.client.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := ct.requireContainer(ctx, tx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*itemRow)(nil)).
			ApplyQueryBuilder(ct.whereItem(partitionKey, id)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.NewNotFoundError("item", itemKey(partitionKey, id))
		}
		return nil
	})
	return storeError("delete item", err)
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
		container:    ct,
		pred:         pred,
		partitionKey: opts.PartitionKey,
		pageSize:     opts.MaxItemCount,
		more:         true,
	}
	if p.pageSize <= 0 {
		p.pageSize = ct.client.pageSize
	}
	if opts.ContinuationToken != "" {
		pk, id, err := decodeToken(opts.ContinuationToken)
		if err != nil {
			return &datastore.ErrPager{Err: err}
		}
		p.after = &cursor{partitionKey: pk, id: id}
	}
	return p
}

type cursor struct {
	partitionKey string
	id           string
}

// Pager fetches rows in key order after the last returned key and filters
// them with the predicate. Rows are read in batches of the page size until a
// page plus one lookahead match is found or the container is exhausted.
type Pager struct {
	container    *Container
	pred         query.Predicate
	partitionKey string
	pageSize     int32
	after        *cursor
	more         bool
	pages        int
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
	if err := ct.requireContainer(ctx, ct.client.db); err != nil {
		return nil, storeError("query page", err)
	}

	page := &storagemodels.Page{Items: []storagemodels.Item{}}
	hasNext := false
	scanAfter := p.after
	for !hasNext {
		rows, err := p.fetch(ctx, scanAfter)
		if err != nil {
			return nil, storeError("query page", err)
		}
		for i := range rows {
			row := &rows[i]
			scanAfter = &cursor{partitionKey: row.PartitionKey, id: row.ID}
			item, err := row.item()
			if err != nil {
				return nil, storeError("query page", err)
			}
			matched, err := query.Match(p.pred, item.Body)
			if err != nil {
				return nil, errors.NewValidationError("predicate", err.Error())
			}
			if !matched {
				continue
			}
			if int32(len(page.Items)) == p.pageSize {
				hasNext = true
				break
			}
			page.Items = append(page.Items, item)
		}
		if int32(len(rows)) < p.pageSize {
			break
		}
	}

	p.pages++
	p.more = hasNext
	if hasNext {
		last := page.Items[len(page.Items)-1]
		page.ContinuationToken = encodeToken(last.PartitionKey, last.ID)
		p.after = &cursor{partitionKey: last.PartitionKey, id: last.ID}
	}
	return page, nil
}

// fetch reads the next batch of rows after c in key order
func (p *Pager) fetch(ctx context.Context, c *cursor) ([]itemRow, error) {
	ct := p.container
	var rows []itemRow
	q := ct.client.db.NewSelect().Model(&rows).
		Where("database_id = ?", ct.database).
		Where("container_id = ?", ct.id).
		OrderExpr("partition_key ASC, id ASC").
		Limit(int(p.pageSize))
	if p.partitionKey != "" {
		q = q.Where("partition_key = ?", p.partitionKey)
	}
	if c != nil {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("partition_key > ?", c.partitionKey).
				WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.Where("partition_key = ?", c.partitionKey).Where("id > ?", c.id)
				})
		})
	}
	if err := q.Scan(ctx); err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return rows, nil
}
