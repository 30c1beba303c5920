/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
)

// Key map entries understood by the repository.
const (
	KeyID        = "id"
	KeyPartition = "pk"
)

// KeyMapRegistry associates Go types with the templates that derive their
// item id and partition key from the encoded document.

var (
	keyMapRegistry = make(map[reflect.Type]map[string]string)
	mu             sync.RWMutex

	macroPattern = regexp.MustCompile(`{([^}]+)}`)
)

// RegisterKeyMap associates a Go type T with a key map such as
// {"id": "{id}", "pk": "{LastName}"}.
func RegisterKeyMap[T any](keyMap map[string]string) {
	t := typeOf[T]()

	cp := make(map[string]string, len(keyMap))
	for k, v := range keyMap {
		cp[k] = v
	}

	mu.Lock()
	defer mu.Unlock()
	keyMapRegistry[t] = cp
}

// GetKeyMap retrieves the key map for type T, if any.
func GetKeyMap[T any]() (map[string]string, bool) {
	t := typeOf[T]()

	mu.RLock()
	defer mu.RUnlock()
	m, ok := keyMapRegistry[t]
	return m, ok
}

// UnregisterKeyMap removes the key map for type T.
func UnregisterKeyMap[T any]() {
	t := typeOf[T]()

	mu.Lock()
	defer mu.Unlock()
	delete(keyMapRegistry, t)
}

// typeOf works for interface types too, where reflect.TypeOf(zero) is nil
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// ValidateKeyMap checks that a key map names both the id and partition key templates.
func ValidateKeyMap(keyMap map[string]string) error {
	for _, k := range []string{KeyID, KeyPartition} {
		tmpl, ok := keyMap[k]
		if !ok || strings.TrimSpace(tmpl) == "" {
			return errors.NewValidationError(k, "key map has no template")
		}
	}
	return nil
}

// ExpandKeyMap replaces every {Field} macro in the key map templates with the
// value found at that dotted path in doc. A macro naming a missing or null
// field fails with a ValidationError for that path.
func ExpandKeyMap(keyMap map[string]string, doc map[string]any) (map[string]string, error) {
	res := make(map[string]string, len(keyMap))
	for name, template := range keyMap {
		var expandErr error
		expanded := macroPattern.ReplaceAllStringFunc(template, func(macro string) string {
			if expandErr != nil {
				return ""
			}
			path := strings.Trim(macro, "{}")
			val, ok := query.Lookup(doc, path)
			if !ok || val == nil {
				expandErr = errors.NewValidationError(path,
					fmt.Sprintf("%s template %q needs a value at %q", name, template, path))
				return ""
			}
			s, err := formatKeyValue(val)
			if err != nil {
				expandErr = errors.NewValidationError(path,
					fmt.Sprintf("expand %s template %q: %v", name, template, err))
			}
			return s
		})
		if expandErr != nil {
			return nil, expandErr
		}
		res[name] = expanded
	}
	return res, nil
}

func formatKeyValue(v any) (string, error) {
	switch tv := v.(type) {
	case string:
		return tv, nil
	case json.Number:
		return tv.String(), nil
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(tv), nil
	default:
		return "", fmt.Errorf("field of type %T cannot be used in a key", v)
	}
}
