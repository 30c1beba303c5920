/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlstore

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

func memoryDSN(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

func openTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	client, err := Open(context.Background(), Config{Type: "sqlite", DSN: memoryDSN(t)}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func openTestContainer(t *testing.T, opts ...Option) (*Client, datastore.Container) {
	t.Helper()
	ctx := context.Background()
	client := openTestClient(t, opts...)
	_, err := client.CreateDatabase(ctx, storagemodels.DatabaseProperties{ID: "FamilyDatabase"})
	require.NoError(t, err)
	db := client.Database("FamilyDatabase")
	_, err = db.CreateContainer(ctx, storagemodels.ContainerProperties{ID: "FamilyContainer", PartitionKeyPath: "/LastName"})
	require.NoError(t, err)
	return client, db.Container("FamilyContainer")
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{Type: "sqlite"})
	assert.True(t, errors.IsValidationError(err))

	_, err = Open(ctx, Config{Type: "oracle", DSN: "x"})
	assert.True(t, errors.IsValidationError(err))
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Type: "sqlite", DSN: "file:" + filepath.Join(t.TempDir(), "docstore.db")}

	client, err := Open(ctx, cfg)
	require.NoError(t, err)
	_, err = client.CreateDatabase(ctx, storagemodels.DatabaseProperties{ID: "db", Throughput: 400})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.ReadDatabase(ctx, "db")
	require.NoError(t, err)
	assert.Equal(t, int32(400), got.Throughput)
}

func TestDatabaseLifecycle(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t)

	_, err := client.ReadDatabase(ctx, "ToDoList")
	assert.True(t, errors.IsNotFound(err))

	_, err = client.CreateDatabase(ctx, storagemodels.DatabaseProperties{ID: "ToDoList", Throughput: 400})
	require.NoError(t, err)
	_, err = client.CreateDatabase(ctx, storagemodels.DatabaseProperties{ID: "ToDoList"})
	assert.True(t, errors.IsConflict(err))

	got, err := client.ReadDatabase(ctx, "ToDoList")
	require.NoError(t, err)
	assert.Equal(t, storagemodels.DatabaseProperties{ID: "ToDoList", Throughput: 400}, *got)

	_, err = client.CreateDatabase(ctx, storagemodels.DatabaseProperties{})
	assert.True(t, errors.IsValidationError(err))

	require.NoError(t, client.DeleteDatabase(ctx, "ToDoList"))
	assert.True(t, errors.IsNotFound(client.DeleteDatabase(ctx, "ToDoList")))
}

func TestContainerLifecycle(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t)
	db := client.Database("ToDoList")

	_, err := db.CreateContainer(ctx, storagemodels.ContainerProperties{ID: "Items", PartitionKeyPath: "/id"})
	assert.True(t, errors.IsNotFound(err))

	_, err = client.CreateDatabase(ctx, storagemodels.DatabaseProperties{ID: "ToDoList"})
	require.NoError(t, err)
	_, err = db.CreateContainer(ctx, storagemodels.ContainerProperties{ID: "Items", PartitionKeyPath: "/id", Throughput: 400})
	require.NoError(t, err)
	_, err = db.CreateContainer(ctx, storagemodels.ContainerProperties{ID: "Items", PartitionKeyPath: "/id"})
	assert.True(t, errors.IsConflict(err))

	got, err := db.ReadContainer(ctx, "Items")
	require.NoError(t, err)
	assert.Equal(t, storagemodels.ContainerProperties{ID: "Items", PartitionKeyPath: "/id", Throughput: 400}, *got)

	ct := db.Container("Items")
	_, err = ct.CreateItem(ctx, storagemodels.Item{ID: "1", PartitionKey: "1", Body: storagemodels.Document{"id": "1"}})
	require.NoError(t, err)

	require.NoError(t, db.DeleteContainer(ctx, "Items"))
	assert.True(t, errors.IsNotFound(db.DeleteContainer(ctx, "Items")))

	_, err = db.CreateContainer(ctx, storagemodels.ContainerProperties{ID: "Items", PartitionKeyPath: "/id"})
	require.NoError(t, err)
	items, err := datastore.Drain(ctx, ct.Query(ctx, nil, &storagemodels.QueryOptions{EnableCrossPartition: true}))
	require.NoError(t, err)
	assert.Empty(t, items, "recreated container starts empty")
}

func TestDeleteDatabaseRemovesItems(t *testing.T) {
	ctx := context.Background()
	client, ct := openTestContainer(t)
	_, err := ct.CreateItem(ctx, storagemodels.Item{ID: "a", PartitionKey: "A", Body: storagemodels.Document{}})
	require.NoError(t, err)

	require.NoError(t, client.DeleteDatabase(ctx, "FamilyDatabase"))

	_, err = client.CreateDatabase(ctx, storagemodels.DatabaseProperties{ID: "FamilyDatabase"})
	require.NoError(t, err)
	db := client.Database("FamilyDatabase")
	_, err = db.ReadContainer(ctx, "FamilyContainer")
	assert.True(t, errors.IsNotFound(err))
	_, err = db.CreateContainer(ctx, storagemodels.ContainerProperties{ID: "FamilyContainer", PartitionKeyPath: "/LastName"})
	require.NoError(t, err)
	_, err = ct.ReadItem(ctx, "a", "A")
	assert.True(t, errors.IsNotFound(err))
}

func TestItemLifecycle(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_, ct := openTestContainer(t, WithClock(func() time.Time { return fixed }))

	item := storagemodels.Item{
		ID:           "Andersen.1",
		PartitionKey: "Andersen",
		Body: storagemodels.Document{
			"id":       "Andersen.1",
			"LastName": "Andersen",
			"Address":  map[string]any{"State": "WA"},
		},
	}
	receipt, err := ct.CreateItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, fixed, receipt.Timestamp)
	assert.NotEmpty(t, receipt.ETag)

	_, err = ct.CreateItem(ctx, item)
	assert.True(t, errors.IsConflict(err))

	got, err := ct.ReadItem(ctx, "Andersen.1", "Andersen")
	require.NoError(t, err)
	assert.Equal(t, item.Body, got.Body)
	assert.Equal(t, receipt.ETag, got.ETag)
	assert.True(t, fixed.Equal(got.Timestamp))

	_, err = ct.ReadItem(ctx, "Andersen.1", "Wakefield")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, ct.DeleteItem(ctx, "Andersen.1", "Andersen"))
	assert.True(t, errors.IsNotFound(ct.DeleteItem(ctx, "Andersen.1", "Andersen")))
}

func TestKeysAreCaseAndAccentSensitive(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)

	ids := []string{"a", "A", "á", "a "}
	for _, id := range ids {
		_, err := ct.CreateItem(ctx, storagemodels.Item{ID: id, PartitionKey: "p", Body: storagemodels.Document{"id": id}})
		require.NoError(t, err, "id %q", id)
	}
	items, err := datastore.Drain(ctx, ct.Query(ctx, nil, &storagemodels.QueryOptions{PartitionKey: "p", MaxItemCount: 1}))
	require.NoError(t, err)
	got := make([]string, 0, len(items))
	for _, it := range items {
		got = append(got, it.ID)
	}
	assert.Equal(t, []string{"A", "a", "a ", "á"}, got, "byte order")
}

func TestMySQLKeyCollationDDL(t *testing.T) {
	db, err := newDB(Config{Type: "mysql", DSN: "docstore:secret@tcp(127.0.0.1:3306)/docstore"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "docstore_items", tableName(db, (*itemRow)(nil)))
	assert.Equal(t,
		"ALTER TABLE `docstore_items` CONVERT TO CHARACTER SET utf8mb4 COLLATE utf8mb4_bin",
		binaryCollationQuery(db, "docstore_items").String())

	check := foldingColumnsQuery(db, "docstore_containers").String()
	assert.Contains(t, check, "table_name = 'docstore_containers'")
	assert.Contains(t, check, "collation_name <> 'utf8mb4_bin'")
}

func TestItemNumbersKeepPrecision(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)

	body := storagemodels.Document{"id": "n", "seq": json.Number("9007199254740993"), "ratio": json.Number("0.1")}
	_, err := ct.CreateItem(ctx, storagemodels.Item{ID: "n", PartitionKey: "n", Body: body})
	require.NoError(t, err)
	got, err := ct.ReadItem(ctx, "n", "n")
	require.NoError(t, err)
	assert.Equal(t, body, got.Body)
}

func TestItemValidation(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)

	_, err := ct.CreateItem(ctx, storagemodels.Item{PartitionKey: "pk"})
	assert.True(t, errors.IsValidationError(err))
	_, err = ct.CreateItem(ctx, storagemodels.Item{ID: "id"})
	assert.True(t, errors.IsValidationError(err))
	_, err = ct.UpsertItem(ctx, storagemodels.Item{ID: "id", PartitionKey: "pk", Body: storagemodels.Document{"ch": make(chan int)}})
	assert.True(t, errors.IsValidationError(err))
}

func TestMissingContainer(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t)
	ct := client.Database("nope").Container("missing")

	_, err := ct.UpsertItem(ctx, storagemodels.Item{ID: "a", PartitionKey: "b"})
	assert.True(t, errors.IsNotFound(err))
	_, err = ct.ReadItem(ctx, "a", "b")
	assert.True(t, errors.IsNotFound(err))
	_, err = datastore.Drain(ctx, ct.Query(ctx, nil, &storagemodels.QueryOptions{EnableCrossPartition: true}))
	assert.True(t, errors.IsNotFound(err))
}

func TestUpsertAndReplace(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_, ct := openTestContainer(t, WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))

	item := storagemodels.Item{ID: "w", PartitionKey: "Wakefield", Body: storagemodels.Document{"IsRegistered": false}}
	_, err := ct.ReplaceItem(ctx, item, storagemodels.ReplaceOptions{})
	assert.True(t, errors.IsNotFound(err))

	first, err := ct.UpsertItem(ctx, item)
	require.NoError(t, err)
	second, err := ct.UpsertItem(ctx, item)
	require.NoError(t, err)
	assert.NotEqual(t, first.ETag, second.ETag, "every write gets a new etag")

	got, err := ct.ReadItem(ctx, "w", "Wakefield")
	require.NoError(t, err)
	assert.Equal(t, second.ETag, got.ETag)

	_, err = ct.ReplaceItem(ctx, item, storagemodels.ReplaceOptions{IfMatch: first.ETag})
	assert.True(t, errors.IsConditionFailed(err))

	item.Body["IsRegistered"] = true
	third, err := ct.ReplaceItem(ctx, item, storagemodels.ReplaceOptions{IfMatch: second.ETag})
	require.NoError(t, err)

	got, err = ct.ReadItem(ctx, "w", "Wakefield")
	require.NoError(t, err)
	assert.Equal(t, true, got.Body["IsRegistered"])
	assert.Equal(t, third.ETag, got.ETag)
}

func seedItems(t *testing.T, ct datastore.Container, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		pk := "even"
		if i%2 == 1 {
			pk = "odd"
		}
		_, err := ct.CreateItem(context.Background(), storagemodels.Item{
			ID:           fmt.Sprintf("item-%02d", i),
			PartitionKey: pk,
			Body:         storagemodels.Document{"N": i, "Kind": pk},
		})
		require.NoError(t, err)
	}
}

func TestQueryPaging(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)
	seedItems(t, ct, 10)

	pager := ct.Query(ctx, nil, &storagemodels.QueryOptions{EnableCrossPartition: true, MaxItemCount: 3})
	items, err := datastore.Drain(ctx, pager)
	require.NoError(t, err)
	require.Len(t, items, 10)
	assert.Equal(t, 4, pager.(*Pager).Pages())

	// (partition key, id) order
	assert.Equal(t, "even", items[0].PartitionKey)
	assert.Equal(t, "item-00", items[0].ID)
	assert.Equal(t, "odd", items[9].PartitionKey)
	assert.Equal(t, "item-09", items[9].ID)
}

func TestQueryExactPageMultiple(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)
	seedItems(t, ct, 6)

	pager := ct.Query(ctx, nil, &storagemodels.QueryOptions{EnableCrossPartition: true, MaxItemCount: 3})
	items, err := datastore.Drain(ctx, pager)
	require.NoError(t, err)
	assert.Len(t, items, 6)
	assert.Equal(t, 2, pager.(*Pager).Pages(), "no empty trailing page")
}

func TestQuerySparseMatchesSpanBatches(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)
	seedItems(t, ct, 20)

	// matches are spread over several row batches of the page size
	pager := ct.Query(ctx, query.Or(query.Eq("N", 2), query.Eq("N", 17), query.Eq("N", 19)),
		&storagemodels.QueryOptions{EnableCrossPartition: true, MaxItemCount: 2})
	items, err := datastore.Drain(ctx, pager)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 2, pager.(*Pager).Pages())
}

func TestQueryFilterAndPartition(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)
	seedItems(t, ct, 10)

	items, err := datastore.Drain(ctx, ct.Query(ctx, query.Where("N").Between(4, 8), &storagemodels.QueryOptions{EnableCrossPartition: true}))
	require.NoError(t, err)
	assert.Len(t, items, 5)

	items, err = datastore.Drain(ctx, ct.Query(ctx, query.Gt("N", 4), &storagemodels.QueryOptions{PartitionKey: "odd"}))
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, "odd", it.PartitionKey)
	}
}

func TestQueryResumeFromToken(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)
	seedItems(t, ct, 7)

	first, err := ct.Query(ctx, nil, &storagemodels.QueryOptions{EnableCrossPartition: true, MaxItemCount: 4}).NextPage(ctx)
	require.NoError(t, err)
	require.Len(t, first.Items, 4)
	require.NotEmpty(t, first.ContinuationToken)

	rest, err := datastore.Drain(ctx, ct.Query(ctx, nil, &storagemodels.QueryOptions{
		EnableCrossPartition: true,
		ContinuationToken:    first.ContinuationToken,
	}))
	require.NoError(t, err)
	assert.Len(t, rest, 3)
	assert.Equal(t, "odd", rest[0].PartitionKey)
}

func TestQueryErrors(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)

	_, err := datastore.Drain(ctx, ct.Query(ctx, nil, nil))
	assert.True(t, errors.IsValidationError(err))

	_, err = datastore.Drain(ctx, ct.Query(ctx, query.BeginsWith("", "x"), &storagemodels.QueryOptions{EnableCrossPartition: true}))
	assert.True(t, errors.IsValidationError(err))

	_, err = datastore.Drain(ctx, ct.Query(ctx, nil, &storagemodels.QueryOptions{EnableCrossPartition: true, ContinuationToken: "bm90b2tlbg"}))
	assert.True(t, errors.IsValidationError(err))
}

func TestQueryNoMatches(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)
	seedItems(t, ct, 3)

	pager := ct.Query(ctx, query.Eq("Kind", "none"), &storagemodels.QueryOptions{EnableCrossPartition: true})
	page, err := pager.NextPage(ctx)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.False(t, pager.HasMoreResults())
}

func TestClosedClient(t *testing.T) {
	ctx := context.Background()
	client, ct := openTestContainer(t)
	require.NoError(t, client.Close())

	_, err := client.ReadDatabase(ctx, "FamilyDatabase")
	assert.ErrorIs(t, err, errors.ErrStore)
	assert.Equal(t, errors.KindUnavailable, errors.KindOf(err))

	_, err = ct.CreateItem(ctx, storagemodels.Item{ID: "a", PartitionKey: "b"})
	assert.Equal(t, errors.KindUnavailable, errors.KindOf(err))
}

func TestConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	_, ct := openTestContainer(t)

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ct.CreateItem(ctx, storagemodels.Item{
				ID:           fmt.Sprintf("id-%03d", i),
				PartitionKey: "shared",
				Body:         storagemodels.Document{"N": i},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	items, err := datastore.Drain(ctx, ct.Query(ctx, nil, &storagemodels.QueryOptions{PartitionKey: "shared"}))
	require.NoError(t, err)
	assert.Len(t, items, n)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		duplicate bool
		kind      errors.Kind
	}{
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, true, errors.KindUnknown},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, false, errors.KindThrottled},
		{"mysql access denied", &mysql.MySQLError{Number: 1045}, false, errors.KindUnauthorized},
		{"postgres unique", &pq.Error{Code: "23505"}, true, errors.KindUnknown},
		{"postgres too many connections", &pq.Error{Code: "53300"}, false, errors.KindThrottled},
		{"postgres admin shutdown", &pq.Error{Code: "57P01"}, false, errors.KindUnavailable},
		{"postgres bad password", &pq.Error{Code: "28P01"}, false, errors.KindUnauthorized},
		{"sqlite unique", fmt.Errorf("constraint failed: UNIQUE constraint failed: docstore_items.id (1555)"), true, errors.KindUnknown},
		{"sqlite busy", fmt.Errorf("database is locked (5) (SQLITE_BUSY)"), false, errors.KindThrottled},
		{"bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), false, errors.KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.duplicate, isDuplicateKey(tt.err))
			assert.Equal(t, tt.kind, kindOf(tt.err))
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	pk, id, err := decodeToken(encodeToken("Wakefield", "Wakefield.7"))
	require.NoError(t, err)
	assert.Equal(t, "Wakefield", pk)
	assert.Equal(t, "Wakefield.7", id)

	_, _, err = decodeToken("!!")
	assert.True(t, errors.IsValidationError(err))
}
