// Package models contains the sample entities used by the docstore command
// and tests: families for the walkthrough, todo items, and bulk import items.
// Each type registers its key map with package registry on init.
package models
