/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentClone(t *testing.T) {
	doc := Document{
		"id":       "Wakefield.7",
		"Children": []any{map[string]any{"Grade": float64(1)}},
		"Address":  map[string]any{"State": "NY"},
	}

	c := doc.Clone()
	require.Equal(t, doc, c)

	c["Address"].(map[string]any)["State"] = "WA"
	c["Children"].([]any)[0].(map[string]any)["Grade"] = float64(2)

	assert.Equal(t, "NY", doc["Address"].(map[string]any)["State"])
	assert.Equal(t, float64(1), doc["Children"].([]any)[0].(map[string]any)["Grade"])
	assert.Nil(t, Document(nil).Clone())
}

func TestComputeETag(t *testing.T) {
	a := Document{"id": "1", "b": "x", "a": float64(2)}
	b := Document{"a": float64(2), "id": "1", "b": "x"}

	ea, err := ComputeETag(a, 100)
	require.NoError(t, err)
	eb, err := ComputeETag(b, 100)
	require.NoError(t, err)
	assert.Equal(t, ea, eb, "key order must not change the tag")
	assert.Len(t, ea, etagSize*2+2)

	later, err := ComputeETag(a, 101)
	require.NoError(t, err)
	assert.NotEqual(t, ea, later)

	_, err = ComputeETag(Document{"bad": func() {}}, 1)
	assert.Error(t, err)
}

func TestItemReceipt(t *testing.T) {
	it := &Item{ID: "1", PartitionKey: "p", ETag: `"e"`}
	r := it.Receipt()
	assert.Equal(t, "1", r.ID)
	assert.Equal(t, "p", r.PartitionKey)
	assert.Equal(t, `"e"`, r.ETag)
}

func TestStreamOptions(t *testing.T) {
	opts := DefaultStreamOptions()
	for _, o := range []StreamOption{WithBufferSize(5), WithPageSize(7), WithMaxRetries(1)} {
		o(&opts)
	}
	assert.Equal(t, 5, opts.BufferSize)
	assert.Equal(t, int32(7), opts.PageSize)
	assert.Equal(t, 1, opts.MaxRetries)
}

func TestDecodeJSONKeepsNumbers(t *testing.T) {
	var doc Document
	require.NoError(t, DecodeJSON([]byte(`{"seq": 9007199254740993, "n": [1.5]}`), &doc))
	assert.Equal(t, json.Number("9007199254740993"), doc["seq"])
	assert.Equal(t, []any{json.Number("1.5")}, doc["n"])

	assert.Error(t, DecodeJSON([]byte(`{"a": 1} {"b": 2}`), &doc))
	assert.Error(t, DecodeJSON([]byte(`{"a": `), &doc))
}
