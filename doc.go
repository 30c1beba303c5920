/*
Package docstore provides a typed repository over document databases.

A Repository[T] maps entities of type T to JSON documents stored in one
container of a document store, and exposes get, query, create, update,
replace and delete operations on them. The store itself is reached through
the datastore.Client interface, with in-memory, DynamoDB, BadgerDB and SQL
implementations under datastore/.

Key Features:
  - Type-safe operations using Go generics
  - Explicit or lazy creation of the backing database and container
  - Absence reported as a result, not an error: GetItem returns (T, bool, error)
  - Query predicates that every backend understands (package query)
  - Streaming with progress tracking and retry of throttled page fetches
  - Semantic error types for better error handling
  - Comprehensive mock implementations for testing

Basic Usage:

	client := mock.New()
	repo, err := docstore.New[models.Family](client, docstore.Config{
	    Database:         "FamilyDatabase",
	    Container:        "FamilyContainer",
	    PartitionKeyPath: "/LastName",
	    Throughput:       400,
	}, docstore.WithKeys(docstore.KeyFuncs[models.Family]{
	    ID:           func(f models.Family) string { return f.ID },
	    PartitionKey: func(f models.Family) string { return f.LastName },
	}))

	if err := repo.Initialize(ctx); err != nil {
	    return err
	}

	family, found, err := repo.GetItem(ctx, "Andersen.1", "Andersen")
	families, err := repo.QueryItems(ctx, query.Where("LastName").Eq("Andersen"))

Several repositories can be kept together in a Catalog and initialized with
InitializeAll.
*/
package docstore
