/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"fmt"

	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/registry"
	"github.com/suparena/docstore/storagemodels"
)

// KeyFuncs extracts the item id and partition key from an entity.
type KeyFuncs[T any] struct {
	ID           func(T) string
	PartitionKey func(T) string
}

// keyer derives (id, partition key) from an entity and its encoded document
type keyer[T any] func(item T, doc storagemodels.Document) (string, string, error)

func (k KeyFuncs[T]) keyer() (keyer[T], error) {
	if k.ID == nil || k.PartitionKey == nil {
		return nil, errors.NewValidationError("keys", "both ID and PartitionKey functions are required")
	}
	return func(item T, _ storagemodels.Document) (string, string, error) {
		return k.ID(item), k.PartitionKey(item), nil
	}, nil
}

func registryKeyer[T any](typeName string) (keyer[T], error) {
	keyMap, ok := registry.GetKeyMap[T]()
	if !ok {
		return nil, fmt.Errorf("%w: %w", errors.NewValidationError("keys",
			fmt.Sprintf("no key functions given for %s", typeName)), errors.ErrNoKeyMap)
	}
	if err := registry.ValidateKeyMap(keyMap); err != nil {
		return nil, err
	}
	return func(_ T, doc storagemodels.Document) (string, string, error) {
		keys, err := registry.ExpandKeyMap(keyMap, doc)
		if err != nil {
			return "", "", err
		}
		return keys[registry.KeyID], keys[registry.KeyPartition], nil
	}, nil
}
