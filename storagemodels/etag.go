/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/go-crypt/x/blake2b"
)

const etagSize = 16

// ComputeETag hashes the canonical JSON form of body together with the
// write time, so two writes of the same body still get distinct tags.
// encoding/json sorts map keys, which keeps the encoding stable.
func ComputeETag(body Document, writtenAt int64) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode document for etag: %w", err)
	}

	h, err := blake2b.New(etagSize, nil)
	if err != nil {
		return "", err
	}
	h.Write(raw)
	h.Write([]byte(fmt.Sprintf("|%d", writtenAt)))
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`, nil
}
