/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package models

import (
	"github.com/go-openapi/strfmt"

	"github.com/suparena/docstore/registry"
)

// TodoItem is a task in the todo container, which is partitioned by id.
type TodoItem struct {

	// Unique identifier of the task.
	// Required: true
	ID string `json:"id"`

	// Short name of the task.
	// Required: true
	Name string `json:"name"`

	// Longer description of the task.
	Description string `json:"description,omitempty"`

	// Whether the task is done.
	Completed bool `json:"isComplete"`

	// Timestamp when the task was created.
	// Format: date-time
	CreatedAt *strfmt.DateTime `json:"createdAt,omitempty"`
}

// TodoPartitionKeyPath is the partition key path of the todo container.
const TodoPartitionKeyPath = "/id"

func init() {
	registry.RegisterKeyMap[TodoItem](map[string]string{
		registry.KeyID:        "{id}",
		registry.KeyPartition: "{id}",
	})
}
