/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/query"
	"github.com/suparena/docstore/storagemodels"
)

// StreamItems runs a cross-partition query and delivers entities one at a
// time as pages arrive. Decode failures are delivered as results carrying an
// Error; a page fetch failure is delivered last and closes the channel.
// Cancelling ctx stops the stream.
func (r *Repository[T]) StreamItems(ctx context.Context, pred query.Predicate, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	options := storagemodels.DefaultStreamOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.BufferSize < 0 {
		options.BufferSize = 0
	}

	resultCh := make(chan storagemodels.StreamResult[T], options.BufferSize)
	go r.streamWorker(ctx, pred, options, resultCh)
	return resultCh
}

func (r *Repository[T]) streamWorker(
	ctx context.Context,
	pred query.Predicate,
	options storagemodels.StreamOptions,
	resultCh chan<- storagemodels.StreamResult[T],
) {
	defer close(resultCh)

	var itemIndex int64
	var pageNumber int
	var token string
	var itemErrors []error
	startTime := time.Now()

	reportProgress := func() {
		if options.ProgressHandler == nil {
			return
		}
		progress := storagemodels.StreamProgress{
			ItemsProcessed:    itemIndex,
			PagesProcessed:    pageNumber,
			ContinuationToken: token,
			Errors:            itemErrors,
			StartTime:         startTime,
		}
		if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(itemIndex) / elapsed
		}
		options.ProgressHandler(progress)
	}

	send := func(res storagemodels.StreamResult[T]) bool {
		select {
		case <-ctx.Done():
			return false
		case resultCh <- res:
			return true
		}
	}

	fail := func(err error) {
		send(storagemodels.StreamResult[T]{
			Error: err,
			Meta: storagemodels.StreamMeta{
				Index:      itemIndex,
				PageNumber: pageNumber,
				Timestamp:  time.Now(),
			},
		})
	}

	c, err := r.container(ctx)
	if err != nil {
		fail(err)
		return
	}

	pager := c.Query(ctx, pred, &storagemodels.QueryOptions{
		EnableCrossPartition: true,
		MaxItemCount:         options.PageSize,
	})

	for pager.HasMoreResults() {
		if ctx.Err() != nil {
			return
		}

		page, err := nextPageWithRetry(ctx, pager, options)
		if err != nil {
			if ctx.Err() == nil {
				fail(fmt.Errorf("stream items: %w", err))
			}
			return
		}
		pageNumber++
		token = page.ContinuationToken

		for i := range page.Items {
			raw := &page.Items[i]
			res := storagemodels.StreamResult[T]{
				Raw: raw.Body,
				Meta: storagemodels.StreamMeta{
					Index:      itemIndex,
					PageNumber: pageNumber,
					Timestamp:  time.Now(),
				},
			}
			res.Item, res.Error = r.decode(raw)
			itemIndex++

			if !send(res) {
				return
			}
			if res.Error != nil {
				itemErrors = append(itemErrors, res.Error)
				if options.ErrorHandler != nil && !options.ErrorHandler(res.Error) {
					return
				}
			}
		}

		reportProgress()
	}
}

// nextPageWithRetry retries throttled and unavailable page fetches with a
// linear backoff. A pager keeps its position after a failed fetch.
func nextPageWithRetry(ctx context.Context, pager datastore.Pager, options storagemodels.StreamOptions) (*storagemodels.Page, error) {
	var lastErr error
	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		page, err := pager.NextPage(ctx)
		if err == nil {
			return page, nil
		}
		lastErr = err

		switch errors.KindOf(err) {
		case errors.KindThrottled, errors.KindUnavailable:
		default:
			return nil, err
		}

		if attempt < options.MaxRetries {
			backoff := time.Duration(attempt+1) * options.RetryBackoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("page fetch failed after %d retries: %w", options.MaxRetries, lastErr)
}
