/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package processor_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/datastore/mock"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/models"
	"github.com/suparena/docstore/processor"
	"github.com/suparena/docstore/storagemodels"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func bulkRepo(t *testing.T, client *mock.Client) *docstore.Repository[models.BulkItem] {
	t.Helper()
	repo, err := docstore.New[models.BulkItem](client, docstore.Config{
		Database:         "bulk-tutorial",
		Container:        "items",
		PartitionKeyPath: models.BulkPartitionKeyPath,
		Throughput:       50000,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Initialize(context.Background()))
	return repo
}

func TestBulkImport(t *testing.T) {
	client := mock.New()
	repo := bulkRepo(t, client)
	items := models.GenerateBulkItems(10000)

	failing := map[string]bool{items[3].ID: true, items[7777].ID: true}
	client.WithErrorFunc(func(op mock.Op, id string) error {
		if op == mock.OpCreateItem && failing[id] {
			return errors.NewStoreError("CreateItem", errors.KindThrottled, fmt.Errorf("request rate too large"))
		}
		return nil
	})

	importer, err := processor.NewBulkImporter[models.BulkItem](repo,
		processor.WithPoolSize[models.BulkItem](32),
		processor.WithLogger[models.BulkItem](quiet),
		processor.WithIDFunc(func(it models.BulkItem) string { return it.ID }),
	)
	require.NoError(t, err)
	defer importer.Release()

	report, err := importer.Import(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 10000, report.Attempted)
	assert.Equal(t, 9998, report.Succeeded)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 3, report.Failures[0].Index)
	assert.Equal(t, items[3].ID, report.Failures[0].ID)
	assert.Equal(t, 7777, report.Failures[1].Index)
	assert.Equal(t, errors.KindThrottled, errors.KindOf(report.Failures[1].Err))
	assert.Positive(t, report.Duration)

	assert.Equal(t, 9998, client.Count("bulk-tutorial", "items"))
	got, found, err := repo.GetItem(context.Background(), items[9999].ID, items[9999].PK)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, items[9999], got)
}

func TestBulkImportConflictsAreFailures(t *testing.T) {
	repo := bulkRepo(t, mock.New())
	items := models.GenerateBulkItems(10)
	items = append(items, items[0])

	importer, err := processor.NewBulkImporter[models.BulkItem](repo, processor.WithLogger[models.BulkItem](quiet))
	require.NoError(t, err)
	defer importer.Release()

	report, err := importer.Import(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Succeeded)
	require.Len(t, report.Failures, 1)
	assert.True(t, errors.IsConflict(report.Failures[0].Err))
}

type countingCreator struct {
	calls  atomic.Int64
	cancel context.CancelFunc
	after  int64
}

func (c *countingCreator) CreateItem(ctx context.Context, item int) (*storagemodels.Receipt, error) {
	if c.calls.Add(1) == c.after {
		c.cancel()
	}
	return &storagemodels.Receipt{ID: fmt.Sprint(item)}, nil
}

func TestBulkImportCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	creator := &countingCreator{cancel: cancel, after: 5}

	importer, err := processor.NewBulkImporter[int](creator,
		processor.WithPoolSize[int](1),
		processor.WithLogger[int](quiet),
	)
	require.NoError(t, err)
	defer importer.Release()

	items := make([]int, 100)
	report, err := importer.Import(ctx, items)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 100, report.Succeeded+len(report.Failures))
	assert.NotEmpty(t, report.Failures)
	for _, f := range report.Failures {
		assert.ErrorIs(t, f.Err, context.Canceled)
	}
}

func TestNewBulkImporter(t *testing.T) {
	_, err := processor.NewBulkImporter[int](nil)
	assert.ErrorIs(t, err, processor.ErrCreatorRequired)

	importer, err := processor.NewBulkImporter[int](&countingCreator{}, processor.WithPoolSize[int](0))
	require.NoError(t, err)
	defer importer.Release()
	assert.Equal(t, 1, importer.PoolSize())
}
