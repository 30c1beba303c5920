/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

// Field starts a fluent comparison on a dotted field path.
type Field struct {
	path string
}

// Where starts a fluent predicate:
//
//	query.Where("LastName").Eq("Andersen").And(query.Where("Address.State").Eq("WA"))
func Where(path string) Field {
	return Field{path: path}
}

func (f Field) Eq(v any) Expr { return Expr{Eq(f.path, v)} }
func (f Field) Ne(v any) Expr { return Expr{Ne(f.path, v)} }
func (f Field) Lt(v any) Expr { return Expr{Lt(f.path, v)} }
func (f Field) Le(v any) Expr { return Expr{Le(f.path, v)} }
func (f Field) Gt(v any) Expr { return Expr{Gt(f.path, v)} }
func (f Field) Ge(v any) Expr { return Expr{Ge(f.path, v)} }
func (f Field) BeginsWith(p string) Expr { return Expr{BeginsWith(f.path, p)} }
func (f Field) Contains(v any) Expr { return Expr{Contains(f.path, v)} }
func (f Field) Exists() Expr { return Expr{Exists(f.path)} }
func (f Field) Between(lo, hi any) Expr { return Expr{And(Ge(f.path, lo), Le(f.path, hi))} }
func (f Field) In(values ...any) Expr { return Expr{anyOf(f.path, values)} }

func anyOf(path string, values []any) Predicate {
	terms := make([]Predicate, 0, len(values))
	for _, v := range values {
		terms = append(terms, Eq(path, v))
	}
	if len(terms) == 0 {
		// empty IN never matches
		return And(Exists(path), Not(Exists(path)))
	}
	return Or(terms...)
}

// Expr is a predicate under construction. It satisfies Predicate itself, so
// it can be passed anywhere a Predicate is expected.
type Expr struct {
	Predicate
}

// And joins e and other; consecutive Ands flatten into one group.
func (e Expr) And(other Predicate) Expr {
	return Expr{flatten(OpAnd, Normalize(e.Predicate), Normalize(other))}
}

// Or joins e and other; consecutive Ors flatten into one group.
func (e Expr) Or(other Predicate) Expr {
	return Expr{flatten(OpOr, Normalize(e.Predicate), Normalize(other))}
}

// Not inverts e.
func (e Expr) Not() Expr {
	return Expr{Not(Normalize(e.Predicate))}
}

// Build returns the plain predicate tree.
func (e Expr) Build() Predicate {
	return Normalize(e.Predicate)
}

func (e Expr) String() string {
	return describe(e.Predicate)
}

func flatten(op LogicalOp, left, right Predicate) Predicate {
	var terms []Predicate
	for _, p := range []Predicate{left, right} {
		if l, ok := p.(Logical); ok && l.Op == op {
			terms = append(terms, l.Terms...)
			continue
		}
		terms = append(terms, p)
	}
	return join(op, terms)
}

// Normalize strips builder wrappers so the result contains only Comparison,
// Logical and Negation nodes. Backends call it before translating.
func Normalize(p Predicate) Predicate {
	switch v := p.(type) {
	case Expr:
		return Normalize(v.Predicate)
	case Logical:
		terms := make([]Predicate, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = Normalize(t)
		}
		return Logical{Op: v.Op, Terms: terms}
	case Negation:
		return Negation{Term: Normalize(v.Term)}
	default:
		return p
	}
}
