/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package processor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/suparena/docstore/storagemodels"
)

// Creator inserts one entity. *docstore.Repository[T] satisfies it.
type Creator[T any] interface {
	CreateItem(ctx context.Context, item T) (*storagemodels.Receipt, error)
}

// Failure records one item that could not be imported.
type Failure struct {
	Index int
	ID    string
	Err   error
}

// Report summarizes an import.
type Report struct {
	Attempted int
	Succeeded int
	Failures  []Failure
	Duration  time.Duration
}

// Option configures a BulkImporter.
type Option[T any] func(*BulkImporter[T]) error

// WithPoolSize sets the number of concurrent creates.
// Default is runtime.NumCPU() * 4, with a minimum of 1.
func WithPoolSize[T any](size int) Option[T] {
	return func(b *BulkImporter[T]) error {
		if size < 1 {
			size = 1
		}
		b.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(b *BulkImporter[T]) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// WithIDFunc sets how failures are labelled. Without it Failure.ID is empty.
func WithIDFunc[T any](f func(T) string) Option[T] {
	return func(b *BulkImporter[T]) error {
		b.idFunc = f
		return nil
	}
}

// BulkImporter fans CreateItem calls out over a bounded worker pool.
type BulkImporter[T any] struct {
	creator  Creator[T]
	pool     *ants.Pool
	poolSize int
	idFunc   func(T) string
	logger   *slog.Logger
}

// NewBulkImporter creates an importer. Call Release when done with it.
func NewBulkImporter[T any](creator Creator[T], opts ...Option[T]) (*BulkImporter[T], error) {
	if creator == nil {
		return nil, ErrCreatorRequired
	}

	b := &BulkImporter[T]{
		creator:  creator,
		poolSize: runtime.NumCPU() * 4,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(b.poolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	b.pool = pool
	return b, nil
}

// PoolSize returns the number of workers.
func (b *BulkImporter[T]) PoolSize() int { return b.poolSize }

// Release stops the worker pool.
func (b *BulkImporter[T]) Release() {
	b.pool.Release()
}

func (b *BulkImporter[T]) id(item T) string {
	if b.idFunc == nil {
		return ""
	}
	return b.idFunc(item)
}

// Import creates every item concurrently and waits for all of them. Failed
// items are collected in the report without stopping the others. When ctx is
// cancelled, items not yet submitted are recorded as failures with ctx's
// error, and that error is returned along with the report.
func (b *BulkImporter[T]) Import(ctx context.Context, items []T) (*Report, error) {
	start := time.Now()
	report := &Report{Attempted: len(items)}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded atomic.Int64
	)
	fail := func(i int, item T, err error) {
		mu.Lock()
		report.Failures = append(report.Failures, Failure{Index: i, ID: b.id(item), Err: err})
		mu.Unlock()
	}

	b.logger.Info("bulk import started", "items", len(items), "workers", b.poolSize)

	var ctxErr error
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			for j := i; j < len(items); j++ {
				fail(j, items[j], err)
			}
			break
		}

		i, item := i, item
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			if _, err := b.creator.CreateItem(ctx, item); err != nil {
				b.logger.Debug("bulk item failed", "index", i, "id", b.id(item), "error", err)
				fail(i, item, err)
				return
			}
			succeeded.Add(1)
		})
		if err != nil {
			wg.Done()
			fail(i, item, fmt.Errorf("submit: %w", err))
		}
	}
	wg.Wait()

	sort.Slice(report.Failures, func(a, c int) bool {
		return report.Failures[a].Index < report.Failures[c].Index
	})
	report.Succeeded = int(succeeded.Load())
	report.Duration = time.Since(start)

	b.logger.Info("bulk import finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", len(report.Failures),
		"duration", report.Duration)

	return report, ctxErr
}
