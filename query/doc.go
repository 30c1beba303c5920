/*
Package query defines the predicates a repository forwards to its document
store.

Predicates are small trees of Comparison, Logical and Negation nodes over
dotted field paths. Backends with a native filter language (DynamoDB) walk
the tree and translate it; the others evaluate it in process with Match.

	p := query.Where("LastName").Eq("Andersen").
		And(query.Where("Address.State").Eq("WA"))

	ok, err := query.Match(p, doc)

A nil Predicate matches every document.
*/
package query
