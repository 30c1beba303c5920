/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"strings"
)

// Op is a comparison operator applied to a single document field.
type Op string

const (
	OpEq         Op = "="
	OpNe         Op = "<>"
	OpLt         Op = "<"
	OpLe         Op = "<="
	OpGt         Op = ">"
	OpGe         Op = ">="
	OpBeginsWith Op = "begins_with"
	OpContains   Op = "contains"
	OpExists     Op = "exists"
)

// LogicalOp joins several predicates.
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
)

// Predicate is a boolean condition over document fields. A nil Predicate
// matches every document.
type Predicate interface {
	fmt.Stringer
	predicate()
}

// Comparison tests one field, addressed by a dotted path such as
// "Address.State" or "Children.0.Grade".
type Comparison struct {
	Field string
	Op    Op
	Value any
}

// Logical combines Terms with AND or OR.
type Logical struct {
	Op    LogicalOp
	Terms []Predicate
}

// Negation inverts Term.
type Negation struct {
	Term Predicate
}

func (Comparison) predicate() {}
func (Logical) predicate()    {}
func (Negation) predicate()   {}

func (c Comparison) String() string {
	switch c.Op {
	case OpExists:
		return fmt.Sprintf("exists(%s)", c.Field)
	case OpBeginsWith, OpContains:
		return fmt.Sprintf("%s(%s, %v)", c.Op, c.Field, c.Value)
	default:
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
	}
}

func (l Logical) String() string {
	parts := make([]string, 0, len(l.Terms))
	for _, t := range l.Terms {
		parts = append(parts, "("+describe(t)+")")
	}
	return strings.Join(parts, " "+string(l.Op)+" ")
}

func (n Negation) String() string {
	return "NOT (" + describe(n.Term) + ")"
}

func describe(p Predicate) string {
	if p == nil {
		return "true"
	}
	return p.String()
}

// Eq matches documents whose field equals value.
func Eq(field string, value any) Predicate { return Comparison{Field: field, Op: OpEq, Value: value} }

// Ne matches documents whose field is present and differs from value.
func Ne(field string, value any) Predicate { return Comparison{Field: field, Op: OpNe, Value: value} }

// Lt matches documents whose field is less than value.
func Lt(field string, value any) Predicate { return Comparison{Field: field, Op: OpLt, Value: value} }

// Le matches documents whose field is less than or equal to value.
func Le(field string, value any) Predicate { return Comparison{Field: field, Op: OpLe, Value: value} }

// Gt matches documents whose field is greater than value.
func Gt(field string, value any) Predicate { return Comparison{Field: field, Op: OpGt, Value: value} }

// Ge matches documents whose field is greater than or equal to value.
func Ge(field string, value any) Predicate { return Comparison{Field: field, Op: OpGe, Value: value} }

// BeginsWith matches string fields starting with prefix.
func BeginsWith(field, prefix string) Predicate {
	return Comparison{Field: field, Op: OpBeginsWith, Value: prefix}
}

// Contains matches string fields containing value as a substring, and array
// fields holding an element equal to value.
func Contains(field string, value any) Predicate {
	return Comparison{Field: field, Op: OpContains, Value: value}
}

// Exists matches documents in which field is present.
func Exists(field string) Predicate { return Comparison{Field: field, Op: OpExists} }

// And matches when every term matches. Nil terms are dropped.
func And(terms ...Predicate) Predicate { return join(OpAnd, terms) }

// Or matches when any term matches. Nil terms are dropped.
func Or(terms ...Predicate) Predicate { return join(OpOr, terms) }

// Not inverts p.
func Not(p Predicate) Predicate { return Negation{Term: p} }

// All matches every document. Backends treat the nil predicate as no filter.
func All() Predicate { return nil }

func join(op LogicalOp, terms []Predicate) Predicate {
	kept := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		if t != nil {
			kept = append(kept, t)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return Logical{Op: op, Terms: kept}
}

// Validate reports structural problems that would make a predicate
// untranslatable: empty field paths, unknown operators, empty groups.
func Validate(p Predicate) error {
	switch v := Normalize(p).(type) {
	case nil:
		return nil
	case Comparison:
		if strings.TrimSpace(v.Field) == "" {
			return fmt.Errorf("comparison %q has an empty field path", v.Op)
		}
		for _, seg := range strings.Split(v.Field, ".") {
			if seg == "" {
				return fmt.Errorf("field path %q has an empty segment", v.Field)
			}
		}
		switch v.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpContains, OpExists:
		case OpBeginsWith:
			if _, ok := v.Value.(string); !ok {
				return fmt.Errorf("begins_with on %q needs a string prefix, got %T", v.Field, v.Value)
			}
		default:
			return fmt.Errorf("unknown operator %q", v.Op)
		}
		return nil
	case Logical:
		if v.Op != OpAnd && v.Op != OpOr {
			return fmt.Errorf("unknown logical operator %q", v.Op)
		}
		if len(v.Terms) == 0 {
			return fmt.Errorf("%s group has no terms", v.Op)
		}
		for _, t := range v.Terms {
			if t == nil {
				return fmt.Errorf("%s group has a nil term", v.Op)
			}
			if err := Validate(t); err != nil {
				return err
			}
		}
		return nil
	case Negation:
		if v.Term == nil {
			return fmt.Errorf("NOT has no term")
		}
		return Validate(v.Term)
	default:
		return fmt.Errorf("unsupported predicate type %T", p)
	}
}

// Fields returns the distinct field paths referenced by p in first-seen order.
func Fields(p Predicate) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch v := p.(type) {
		case Comparison:
			if !seen[v.Field] {
				seen[v.Field] = true
				out = append(out, v.Field)
			}
		case Logical:
			for _, t := range v.Terms {
				walk(t)
			}
		case Negation:
			walk(v.Term)
		}
	}
	walk(Normalize(p))
	return out
}
