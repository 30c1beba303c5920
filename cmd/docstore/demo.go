/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/models"
	"github.com/suparena/docstore/processor"
	"github.com/suparena/docstore/query"
)

const (
	familyDatabase  = "FamilyDatabase"
	familyContainer = "FamilyContainer"

	bulkDatabase  = "bulk-tutorial"
	bulkContainer = "items"

	maxReportedFailures = 10
)

func describeFamily(f models.Family) string {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf("%+v", f)
	}
	return string(raw)
}

// demoCommand walks a family container through create, query, replace and
// delete, then drops the database.
var demoCommand = withSession(func(ctx context.Context, c *cli.Context, s *session) error {
	repo, err := docstore.New[models.Family](s.client, docstore.Config{
		Database:         familyDatabase,
		Container:        familyContainer,
		PartitionKeyPath: models.FamilyPartitionKeyPath,
		Throughput:       s.cfg.Throughput,
	}, docstore.WithLogger[models.Family](s.logger))
	if err != nil {
		return err
	}
	if err := docstore.Register(s.catalog, "family", repo); err != nil {
		return err
	}
	if err := repo.Initialize(ctx); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Created Database: %s\n", familyDatabase)
	fmt.Fprintf(s.out, "Created Container: %s\n", familyContainer)

	andersen := models.AndersenFamily()
	if _, found, err := repo.GetItem(ctx, andersen.ID, andersen.LastName); err != nil {
		return err
	} else if found {
		fmt.Fprintf(s.out, "Item in database with id: %s already exists\n", andersen.ID)
	} else {
		if _, err := repo.CreateItem(ctx, andersen); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Created item in database with id: %s\n", andersen.ID)
	}

	wakefield := models.WakefieldFamily()
	if _, err := repo.UpdateItem(ctx, wakefield.ID, wakefield); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Created item in database with id: %s\n", wakefield.ID)

	pred := query.Where("LastName").Eq("Andersen")
	fmt.Fprintf(s.out, "Running query: %s\n", pred)
	families, err := repo.QueryItems(ctx, pred)
	if err != nil {
		return err
	}
	for _, f := range families {
		fmt.Fprintf(s.out, "\tRead %s\n", describeFamily(f))
	}

	item, found, err := repo.GetItem(ctx, wakefield.ID, wakefield.LastName)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("family %s disappeared", wakefield.ID)
	}
	item.IsRegistered = true
	item.Children[0].Grade = 6
	if _, err := repo.ReplaceItem(ctx, item.ID, item, ""); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Updated Family [%s,%s].\n\tBody is now: %s\n", item.LastName, item.ID, describeFamily(item))

	if _, err := repo.DeleteItem(ctx, wakefield.ID, wakefield.LastName); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Deleted Family [%s,%s]\n", wakefield.LastName, wakefield.ID)

	if c.Bool("keep") {
		return nil
	}
	if err := s.client.DeleteDatabase(ctx, familyDatabase); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Deleted Database: %s\n", familyDatabase)
	return nil
})

// bulkImportCommand creates generated items through a bounded worker pool
var bulkImportCommand = withSession(func(ctx context.Context, c *cli.Context, s *session) error {
	count := c.Int("count")
	if count < 1 {
		return cli.Exit("--count must be positive", 2)
	}

	repo, err := docstore.New[models.BulkItem](s.client, docstore.Config{
		Database:         bulkDatabase,
		Container:        bulkContainer,
		PartitionKeyPath: models.BulkPartitionKeyPath,
		Throughput:       s.cfg.BulkThroughput,
	}, docstore.WithLogger[models.BulkItem](s.logger))
	if err != nil {
		return err
	}
	if err := docstore.Register(s.catalog, "bulk", repo); err != nil {
		return err
	}
	if err := s.catalog.InitializeAll(ctx); err != nil {
		return err
	}

	opts := []processor.Option[models.BulkItem]{
		processor.WithLogger[models.BulkItem](s.logger),
		processor.WithIDFunc(func(it models.BulkItem) string { return it.ID }),
	}
	if n := c.Int("concurrency"); n > 0 {
		opts = append(opts, processor.WithPoolSize[models.BulkItem](n))
	}
	importer, err := processor.NewBulkImporter[models.BulkItem](repo, opts...)
	if err != nil {
		return err
	}
	defer importer.Release()

	report, err := importer.Import(ctx, models.GenerateBulkItems(count))
	if report != nil {
		rate := 0.0
		if secs := report.Duration.Seconds(); secs > 0 {
			rate = float64(report.Succeeded) / secs
		}
		fmt.Fprintf(s.out, "Imported %d of %d items in %s (%.0f items/s, %d workers)\n",
			report.Succeeded, report.Attempted, report.Duration.Round(time.Millisecond), rate, importer.PoolSize())
		for i, f := range report.Failures {
			if i == maxReportedFailures {
				fmt.Fprintf(s.out, "\t... and %d more failures\n", len(report.Failures)-i)
				break
			}
			fmt.Fprintf(s.out, "\tfailed %s: %v\n", f.ID, f.Err)
		}
	}
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		return cli.Exit(fmt.Sprintf("%d items failed", len(report.Failures)), 1)
	}
	return nil
})
