/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
)

// Codec converts between an entity and its stored document.
type Codec[T any] interface {
	Encode(item T) (storagemodels.Document, error)
	Decode(doc storagemodels.Document) (T, error)
}

// JSONCodec maps T through encoding/json, so struct tags decide the stored
// field names. T must encode to a JSON object.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(item T) (storagemodels.Document, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, errors.NewValidationError("", fmt.Sprintf("encode entity: %v", err))
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return nil, errors.NewValidationError("", fmt.Sprintf("entity of type %T does not encode to a JSON object", item))
	}
	var doc storagemodels.Document
	if err := storagemodels.DecodeJSON(raw, &doc); err != nil {
		return nil, errors.NewValidationError("", fmt.Sprintf("encode entity: %v", err))
	}
	return doc, nil
}

func (JSONCodec[T]) Decode(doc storagemodels.Document) (T, error) {
	var out T
	raw, err := json.Marshal(doc)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
