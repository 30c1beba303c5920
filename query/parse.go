/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// term operators, longest first so ">=" wins over ">"
var termOps = []struct {
	token string
	build func(field string, value any) Predicate
}{
	{"!=", Ne},
	{">=", Ge},
	{"<=", Le},
	{"^=", func(f string, v any) Predicate { return BeginsWith(f, fmt.Sprint(v)) }},
	{"~=", Contains},
	{"=", Eq},
	{">", Gt},
	{"<", Lt},
}

// ParseTerm turns a command-line term into a predicate.
//
//	LastName=Andersen     Eq
//	Age>=8                Ge
//	Name^=And             BeginsWith
//	Tags~=blue            Contains
//	Address?              Exists
//
// The value is read as JSON when it parses (numbers, true, false, null,
// quoted strings) and as a bare string otherwise.
func ParseTerm(term string) (Predicate, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("empty query term")
	}
	if strings.HasSuffix(term, "?") {
		field := strings.TrimSpace(strings.TrimSuffix(term, "?"))
		if field == "" {
			return nil, fmt.Errorf("term %q has no field", term)
		}
		return Exists(field), nil
	}

	best, at := -1, -1
	for i, op := range termOps {
		idx := strings.Index(term, op.token)
		if idx < 0 {
			continue
		}
		if at < 0 || idx < at || (idx == at && len(op.token) > len(termOps[best].token)) {
			best, at = i, idx
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("term %q has no operator", term)
	}

	op := termOps[best]
	field := strings.TrimSpace(term[:at])
	if field == "" {
		return nil, fmt.Errorf("term %q has no field", term)
	}
	return op.build(field, parseValue(strings.TrimSpace(term[at+len(op.token):]))), nil
}

// ParseTerms parses every term and joins them with AND. No terms yields nil,
// which matches everything.
func ParseTerms(terms []string) (Predicate, error) {
	preds := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		p, err := ParseTerm(t)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return And(preds...), nil
}

func parseValue(raw string) any {
	if v, err := decodeNumbers([]byte(raw)); err == nil {
		switch v.(type) {
		case nil, bool, json.Number, string:
			return v
		}
	}
	return raw
}
