/*
Package ddb provides a DynamoDB implementation of the datastore.Client interface.

Databases and containers are recorded in a catalog table using a single-table
layout:

	PK                 SK                  record
	DATABASE#<db>      DATABASE#<db>       database properties
	DATABASE#<db>      CONTAINER#<ct>      container properties and table name

Each container is backed by its own table named "<db>.<ct>" with the item's
partition key value in PK and its id in SK. The document itself lives in the
"doc" map attribute next to the "_etag" and "_ts" system attributes:

	client, err := ddb.NewFromConfig(ctx, ddb.Config{Region: "us-east-1"},
	    ddb.WithCatalogTable("docstore-catalog"),
	    ddb.WithLogger(slog.Default()),
	)

Cross-partition queries run a Scan with a FilterExpression translated from
the query predicate. Queries restricted to one partition key run a Query
against PK instead. Continuation tokens carry the LastEvaluatedKey, so a
pager can be resumed from a token produced by an earlier one.

Throttling and internal server errors are retried with a linear backoff
before they are reported as errors.StoreError.
*/
package ddb
