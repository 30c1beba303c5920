/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package badger

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/suparena/docstore/errors"
)

// Key prefixes for different record types
const (
	databasePrefix  = "db:"
	containerPrefix = "ct:"
	itemPrefix      = "it:"

	keySep = "\x00"
)

// makeDatabaseKey generates a key for a database record.
// Format: db:<db>
func makeDatabaseKey(db string) []byte {
	return []byte(databasePrefix + db)
}

// makeContainerKey generates a key for a container record.
// Format: ct:<db>/<ct>
func makeContainerKey(db, ct string) []byte {
	return []byte(containerPrefix + db + "/" + ct)
}

// makeContainerScanPrefix covers every container of a database
func makeContainerScanPrefix(db string) []byte {
	return []byte(containerPrefix + db + "/")
}

// makeItemKey generates a key for an item.
// Format: it:<db>/<ct>/<pk>\x00<id>
func makeItemKey(db, ct, pk, id string) []byte {
	return []byte(itemPrefix + db + "/" + ct + "/" + pk + keySep + id)
}

// makeItemScanPrefix covers every item of a container
func makeItemScanPrefix(db, ct string) []byte {
	return []byte(itemPrefix + db + "/" + ct + "/")
}

// makePartitionScanPrefix covers the items of one partition
func makePartitionScanPrefix(db, ct, pk string) []byte {
	return []byte(itemPrefix + db + "/" + ct + "/" + pk + keySep)
}

// makeDatabaseItemPrefix covers the items of every container in a database
func makeDatabaseItemPrefix(db string) []byte {
	return []byte(itemPrefix + db + "/")
}

// splitItemKey returns the partition key and id encoded in an item key
func splitItemKey(key, prefix []byte) (pk, id string, ok bool) {
	rest, found := bytes.CutPrefix(key, prefix)
	if !found {
		return "", "", false
	}
	return strings.Cut(string(rest), keySep)
}

// validateName rejects ids that would break the key layout
func validateName(field, name string) error {
	if name == "" {
		return errors.NewValidationError(field, field+" must not be empty")
	}
	if strings.ContainsAny(name, "/"+keySep) {
		return errors.NewValidationError(field, fmt.Sprintf("%q must not contain '/' or NUL", name))
	}
	return nil
}

func encodeToken(pk, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(pk + keySep + id))
}

func decodeToken(token string) (pk, id string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", errors.NewValidationError("continuation_token", err.Error())
	}
	pk, id, ok := strings.Cut(string(raw), keySep)
	if !ok {
		return "", "", errors.NewValidationError("continuation_token", fmt.Sprintf("malformed token %q", token))
	}
	return pk, id, nil
}
