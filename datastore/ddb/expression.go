/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/docstore/query"
)

// filter is a predicate translated into a DynamoDB FilterExpression
type filter struct {
	expression string
	names      map[string]string
	values     map[string]types.AttributeValue

	segments map[string]string
}

// buildFilter translates pred into a FilterExpression over the doc
// attribute. Document paths become #name placeholders, numeric segments
// after the first become list indexes and values become :vN placeholders.
// A nil predicate yields an empty expression.
func buildFilter(pred query.Predicate) (*filter, error) {
	f := &filter{
		names:    map[string]string{},
		values:   map[string]types.AttributeValue{},
		segments: map[string]string{},
	}
	pred = query.Normalize(pred)
	if pred == nil {
		return f, nil
	}
	expr, err := f.term(pred)
	if err != nil {
		return nil, err
	}
	f.expression = expr
	return f, nil
}

func (f *filter) term(p query.Predicate) (string, error) {
	switch v := p.(type) {
	case query.Comparison:
		return f.comparison(v)
	case query.Logical:
		parts := make([]string, 0, len(v.Terms))
		for _, t := range v.Terms {
			s, err := f.term(t)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, " "+string(v.Op)+" ") + ")", nil
	case query.Negation:
		s, err := f.term(v.Term)
		if err != nil {
			return "", err
		}
		return "(NOT " + s + ")", nil
	default:
		return "", fmt.Errorf("unsupported predicate type %T", p)
	}
}

func (f *filter) comparison(c query.Comparison) (string, error) {
	path := f.path(c.Field)
	if c.Op == query.OpExists {
		return "attribute_exists(" + path + ")", nil
	}

	value, err := f.value(c.Value)
	if err != nil {
		return "", fmt.Errorf("value for %q: %w", c.Field, err)
	}

	switch c.Op {
	case query.OpEq, query.OpLt, query.OpLe, query.OpGt, query.OpGe:
		return fmt.Sprintf("%s %s %s", path, c.Op, value), nil
	case query.OpNe:
		// a missing attribute never matches
		return fmt.Sprintf("(attribute_exists(%s) AND %s <> %s)", path, path, value), nil
	case query.OpBeginsWith:
		return fmt.Sprintf("begins_with(%s, %s)", path, value), nil
	case query.OpContains:
		return fmt.Sprintf("contains(%s, %s)", path, value), nil
	default:
		return "", fmt.Errorf("unknown operator %q", c.Op)
	}
}

// path maps a dotted document path to a document path expression rooted at
// the doc attribute
func (f *filter) path(field string) string {
	var b strings.Builder
	b.WriteString(f.name(attrDoc))
	for i, seg := range strings.Split(field, ".") {
		if i > 0 {
			if n, err := strconv.Atoi(seg); err == nil && n >= 0 {
				b.WriteString("[" + strconv.Itoa(n) + "]")
				continue
			}
		}
		b.WriteString(".")
		b.WriteString(f.name(seg))
	}
	return b.String()
}

func (f *filter) name(segment string) string {
	if placeholder, ok := f.segments[segment]; ok {
		return placeholder
	}
	placeholder := fmt.Sprintf("#f%d", len(f.segments))
	f.segments[segment] = placeholder
	f.names[placeholder] = segment
	return placeholder
}

func (f *filter) value(v any) (string, error) {
	normalized, err := query.NormalizeValue(v)
	if err != nil {
		return "", err
	}
	av, err := attributevalue.Marshal(normalized)
	if err != nil {
		return "", err
	}
	placeholder := fmt.Sprintf(":v%d", len(f.values))
	f.values[placeholder] = av
	return placeholder, nil
}
