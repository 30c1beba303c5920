/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/suparena/docstore/models"
)

// testEnv points the command at a fresh store in a scratch directory
func testEnv(t *testing.T, backend string) string {
	t.Helper()
	for _, k := range []string{
		"DOCSTORE_CONFIG", "DOCSTORE_DATABASE", "DOCSTORE_CONTAINER", "DOCSTORE_PARTITION_KEY_PATH",
		"DOCSTORE_THROUGHPUT", "DOCSTORE_BULK_THROUGHPUT", "DOCSTORE_LOG_LEVEL", "DOCSTORE_BADGER_IN_MEMORY",
		"DOCSTORE_SQL_TYPE", "DOCSTORE_SQL_DSN", "DOCSTORE_SQL_QUERY_LOG",
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DOCSTORE_BACKEND", backend)
	t.Setenv("DOCSTORE_BADGER_PATH", filepath.Join(dir, "data"))
	t.Setenv("DOCSTORE_SQL_TYPE", "sqlite")
	t.Setenv("DOCSTORE_SQL_DSN", "file:"+filepath.Join(dir, "docstore.db"))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"docstore"}, args...))
	return out.String(), err
}

func TestVersion(t *testing.T) {
	testEnv(t, "memory")
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "docstore version")
}

func TestInvalidLogLevel(t *testing.T) {
	testEnv(t, "memory")
	_, err := run(t, "--log-level", "loud", "init")
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	testEnv(t, "memory")
	out, err := run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "database ToDoList, container Items ready")
}

func TestDemo(t *testing.T) {
	testEnv(t, "memory")
	out, err := run(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "Created item in database with id: Andersen.1")
	assert.Contains(t, out, "Created item in database with id: Wakefield.7")
	assert.Contains(t, out, `"LastName":"Andersen"`)
	assert.Contains(t, out, "Updated Family [Wakefield,Wakefield.7]")
	assert.Contains(t, out, `"IsRegistered":true`)
	assert.Contains(t, out, "Deleted Family [Wakefield,Wakefield.7]")
	assert.Contains(t, out, "Deleted Database: FamilyDatabase")
}

func TestBulkImport(t *testing.T) {
	testEnv(t, "memory")
	out, err := run(t, "bulk-import", "--count", "200", "--concurrency", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 200 of 200 items")
	assert.Contains(t, out, "8 workers")

	_, err = run(t, "bulk-import", "--count", "0")
	assert.Error(t, err)
}

func writeTodo(t *testing.T, dir, name string, item map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(item)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestTodoCommands(t *testing.T) {
	for _, backend := range []string{"badger", "sql"} {
		t.Run(backend, func(t *testing.T) {
			dir := testEnv(t, backend)

			_, err := run(t, "init")
			require.NoError(t, err)

			groceries := writeTodo(t, dir, "groceries.json", map[string]any{"id": "1", "name": "groceries"})
			laundry := writeTodo(t, dir, "laundry.json", map[string]any{"id": "2", "name": "laundry", "isComplete": true})

			out, err := run(t, "create", "--file", groceries)
			require.NoError(t, err)
			assert.Contains(t, out, "created item 1")

			_, err = run(t, "create", "--file", groceries)
			assert.Error(t, err, "second create conflicts")

			_, err = run(t, "upsert", "-f", laundry)
			require.NoError(t, err)

			out, err = run(t, "get", "--id", "1")
			require.NoError(t, err)
			var got models.TodoItem
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, "groceries", got.Name)
			assert.NotNil(t, got.CreatedAt)

			out, err = run(t, "query", "--where", "isComplete=true")
			require.NoError(t, err)
			var done []models.TodoItem
			require.NoError(t, json.Unmarshal([]byte(out), &done))
			require.Len(t, done, 1)
			assert.Equal(t, "laundry", done[0].Name)

			_, err = run(t, "query", "--where", "nonsense")
			assert.Error(t, err)

			out, err = run(t, "delete", "--id", "1")
			require.NoError(t, err)
			assert.Contains(t, out, "deleted item 1")

			_, err = run(t, "delete", "--id", "1")
			assert.Error(t, err)
			_, err = run(t, "get", "--id", "1")
			assert.Error(t, err)
		})
	}
}
