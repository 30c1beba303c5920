/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Initializer is implemented by every *Repository[T].
type Initializer interface {
	Initialize(ctx context.Context) error
}

type catalogKey struct {
	typ  reflect.Type
	name string
}

// Catalog holds repositories of different entity types, keyed by type and
// name. It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	repos map[catalogKey]Initializer
	order []catalogKey
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		repos: make(map[catalogKey]Initializer),
	}
}

func keyFor[T any](name string) catalogKey {
	return catalogKey{typ: reflect.TypeOf((*T)(nil)).Elem(), name: name}
}

// Register adds a repository for T under name
func Register[T any](c *Catalog, name string, repo *Repository[T]) error {
	if repo == nil {
		return fmt.Errorf("repository %q is nil", name)
	}
	k := keyFor[T](name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.repos[k]; exists {
		return fmt.Errorf("repository %q for %s already registered", name, k.typ)
	}
	c.repos[k] = repo
	c.order = append(c.order, k)
	return nil
}

// Lookup retrieves the repository for T registered under name
func Lookup[T any](c *Catalog, name string) (*Repository[T], error) {
	k := keyFor[T](name)

	c.mu.RLock()
	defer c.mu.RUnlock()

	repo, exists := c.repos[k]
	if !exists {
		return nil, fmt.Errorf("repository %q for %s not found", name, k.typ)
	}
	return repo.(*Repository[T]), nil
}

// Remove deletes the repository for T registered under name
func Remove[T any](c *Catalog, name string) error {
	k := keyFor[T](name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.repos[k]; !exists {
		return fmt.Errorf("repository %q for %s not found", name, k.typ)
	}
	delete(c.repos, k)
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Names returns the sorted names under which repositories for T are registered
func Names[T any](c *Catalog) []string {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var names []string
	for k := range c.repos {
		if k.typ == typ {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered repositories
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.repos)
}

// InitializeAll initializes every repository in registration order and
// stops at the first failure.
func (c *Catalog) InitializeAll(ctx context.Context) error {
	c.mu.RLock()
	order := make([]catalogKey, len(c.order))
	copy(order, c.order)
	repos := make([]Initializer, len(order))
	for i, k := range order {
		repos[i] = c.repos[k]
	}
	c.mu.RUnlock()

	for i, repo := range repos {
		if err := repo.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize repository %q for %s: %w", order[i].name, order[i].typ, err)
		}
	}
	return nil
}
