/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// Match evaluates p against a decoded JSON document. A nil predicate matches.
//
// Numbers of any Go numeric kind compare exactly against json.Number or
// float64 document values, so Eq("Age", 8) matches a document decoded with
// encoding/json and 64-bit ids compare without rounding. Values implementing
// json.Marshaler (time.Time, strfmt.DateTime) are compared in their JSON
// form. A comparison
// on a missing field is false, and ordering comparisons between values of
// different types are false rather than errors.
func Match(p Predicate, doc map[string]any) (bool, error) {
	return match(Normalize(p), doc)
}

func match(p Predicate, doc map[string]any) (bool, error) {
	switch v := p.(type) {
	case nil:
		return true, nil
	case Comparison:
		return compare(v, doc)
	case Logical:
		for _, t := range v.Terms {
			ok, err := match(t, doc)
			if err != nil {
				return false, err
			}
			if v.Op == OpAnd && !ok {
				return false, nil
			}
			if v.Op == OpOr && ok {
				return true, nil
			}
		}
		return v.Op == OpAnd, nil
	case Negation:
		ok, err := match(v.Term, doc)
		return !ok, err
	default:
		return false, fmt.Errorf("unsupported predicate type %T", p)
	}
}

func compare(c Comparison, doc map[string]any) (bool, error) {
	got, present := Lookup(doc, c.Field)
	if c.Op == OpExists {
		return present, nil
	}
	if !present {
		return false, nil
	}

	want, err := normalize(c.Value)
	if err != nil {
		return false, fmt.Errorf("normalize value for %q: %w", c.Field, err)
	}
	got, err = normalize(got)
	if err != nil {
		return false, fmt.Errorf("normalize field %q: %w", c.Field, err)
	}

	switch c.Op {
	case OpEq:
		return equal(got, want), nil
	case OpNe:
		return !equal(got, want), nil
	case OpLt, OpLe, OpGt, OpGe:
		cmp, ok := order(got, want)
		if !ok {
			return false, nil
		}
		switch c.Op {
		case OpLt:
			return cmp < 0, nil
		case OpLe:
			return cmp <= 0, nil
		case OpGt:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case OpBeginsWith:
		s, ok1 := got.(string)
		prefix, ok2 := want.(string)
		return ok1 && ok2 && strings.HasPrefix(s, prefix), nil
	case OpContains:
		switch g := got.(type) {
		case string:
			sub, ok := want.(string)
			return ok && strings.Contains(g, sub), nil
		case []any:
			for _, el := range g {
				if equal(el, want) {
					return true, nil
				}
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown operator %q", c.Op)
	}
}

// equal compares two normalized values
func equal(a, b any) bool {
	switch x := a.(type) {
	case json.Number:
		y, ok := b.(json.Number)
		if !ok {
			return false
		}
		cmp, ok := compareNumbers(x, y)
		return ok && cmp == 0
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, el := range x {
			other, ok := y[k]
			if !ok || !equal(el, other) {
				return false
			}
		}
		return true
	}
	return a == b
}

// compareNumbers orders two JSON numbers exactly. NaN and infinities do not
// parse and are never ordered.
func compareNumbers(a, b json.Number) (int, bool) {
	x, ok := new(big.Rat).SetString(string(a))
	if !ok {
		return 0, false
	}
	y, ok := new(big.Rat).SetString(string(b))
	if !ok {
		return 0, false
	}
	return x.Cmp(y), true
}

func order(a, b any) (int, bool) {
	switch x := a.(type) {
	case json.Number:
		y, ok := b.(json.Number)
		if !ok {
			return 0, false
		}
		return compareNumbers(x, y)
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// Lookup resolves a dotted path inside a decoded document. Numeric segments
// index into arrays.
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// NormalizeValue brings a value into the shape encoding/json produces when
// it decodes into any with UseNumber: json.Number, string, bool, nil, []any,
// map[string]any. Backends use it before translating predicate values.
func NormalizeValue(v any) (any, error) {
	return normalize(v)
}

func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, json.Number:
		return x, nil
	case float64:
		return floatNumber(x), nil
	case float32:
		return floatNumber(float64(x)), nil
	case int:
		return intNumber(int64(x)), nil
	case int8:
		return intNumber(int64(x)), nil
	case int16:
		return intNumber(int64(x)), nil
	case int32:
		return intNumber(int64(x)), nil
	case int64:
		return intNumber(x), nil
	case uint:
		return uintNumber(uint64(x)), nil
	case uint8:
		return uintNumber(uint64(x)), nil
	case uint16:
		return uintNumber(uint64(x)), nil
	case uint32:
		return uintNumber(uint64(x)), nil
	case uint64:
		return uintNumber(x), nil
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			n, err := normalize(el)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			n, err := normalize(el)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		if _, ok := v.(json.Marshaler); !ok {
			return rv.String(), nil
		}
	case reflect.Bool:
		return rv.Bool(), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeNumbers(raw)
}

func intNumber(n int64) json.Number   { return json.Number(strconv.FormatInt(n, 10)) }
func uintNumber(n uint64) json.Number { return json.Number(strconv.FormatUint(n, 10)) }

func floatNumber(f float64) json.Number {
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}

func decodeNumbers(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return out, nil
}
