/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/datastore/mock"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/models"
)

func TestCatalog(t *testing.T) {
	client := mock.New()
	catalog := docstore.NewCatalog()

	notes := newNotes(t, client)
	todos, err := docstore.New[models.TodoItem](client, docstore.Config{
		Database: "ToDoList", Container: "Items", PartitionKeyPath: models.TodoPartitionKeyPath,
	})
	require.NoError(t, err)

	// Test Register
	require.NoError(t, docstore.Register(catalog, "notes", notes))
	require.NoError(t, docstore.Register(catalog, "todos", todos))
	require.NoError(t, docstore.Register(catalog, "archive", notes))

	err = docstore.Register(catalog, "notes", notes)
	assert.Error(t, err, "duplicate registration must fail")

	// same name, different type is a different entry
	require.NoError(t, docstore.Register(catalog, "notes", todos))
	assert.Equal(t, 4, catalog.Len())

	// Test Lookup
	got, err := docstore.Lookup[note](catalog, "notes")
	require.NoError(t, err)
	assert.Same(t, notes, got)

	_, err = docstore.Lookup[note](catalog, "missing")
	assert.Error(t, err)

	// Test Names
	assert.Equal(t, []string{"archive", "notes"}, docstore.Names[note](catalog))
	assert.Equal(t, []string{"notes", "todos"}, docstore.Names[models.TodoItem](catalog))

	// Test InitializeAll
	require.NoError(t, catalog.InitializeAll(context.Background()))
	assert.True(t, notes.Ready())
	assert.True(t, todos.Ready())

	// Test Remove
	require.NoError(t, docstore.Remove[note](catalog, "archive"))
	assert.Error(t, docstore.Remove[note](catalog, "archive"))
	assert.Equal(t, []string{"notes"}, docstore.Names[note](catalog))
}

func TestCatalogInitializeAllStopsAtFirstError(t *testing.T) {
	client := mock.New()
	outage := errors.NewStoreError("ReadDatabase", errors.KindUnavailable, fmt.Errorf("down"))
	client.WithErrorFunc(func(op mock.Op, id string) error {
		if op == mock.OpReadDatabase && id == "Broken" {
			return outage
		}
		return nil
	})

	catalog := docstore.NewCatalog()
	broken, err := docstore.New[note](client, docstore.Config{
		Database: "Broken", Container: "c", PartitionKeyPath: "/owner",
	}, docstore.WithKeys(noteKeys))
	require.NoError(t, err)
	later := newNotes(t, client)

	require.NoError(t, docstore.Register(catalog, "broken", broken))
	require.NoError(t, docstore.Register(catalog, "later", later))

	err = catalog.InitializeAll(context.Background())
	assert.ErrorIs(t, err, outage)
	assert.False(t, later.Ready())
}
