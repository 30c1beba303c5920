/*
Package processor imports large batches of entities concurrently.

A BulkImporter submits one CreateItem per entity to an ants worker pool and
waits for all of them. Failures are collected rather than aborting the batch:

	importer, err := processor.NewBulkImporter[models.BulkItem](repo,
	    processor.WithPoolSize[models.BulkItem](64),
	    processor.WithIDFunc(func(it models.BulkItem) string { return it.ID }),
	)
	if err != nil {
	    return err
	}
	defer importer.Release()

	report, err := importer.Import(ctx, models.GenerateBulkItems(50000))
	// report.Succeeded, report.Failures, report.Duration

The pool bounds the number of requests in flight; the store's own throughput
limits decide how fast they complete.
*/
package processor
