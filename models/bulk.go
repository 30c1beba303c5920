/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package models

import (
	"github.com/google/uuid"

	"github.com/suparena/docstore/registry"
)

// BulkItem is the small document written by the bulk import. Each item is
// its own partition.
type BulkItem struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	PK       string `json:"pk"`
}

// BulkPartitionKeyPath is the partition key path of the bulk container.
const BulkPartitionKeyPath = "/pk"

func init() {
	registry.RegisterKeyMap[BulkItem](map[string]string{
		registry.KeyID:        "{id}",
		registry.KeyPartition: "{pk}",
	})
}

// GenerateBulkItems returns n items with random ids; pk equals id.
func GenerateBulkItems(n int) []BulkItem {
	if n <= 0 {
		return []BulkItem{}
	}
	items := make([]BulkItem, n)
	for i := range items {
		id := uuid.NewString()
		items[i] = BulkItem{
			ID:       id,
			Username: "user-" + id[:8],
			PK:       id,
		}
	}
	return items
}
