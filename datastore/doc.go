/*
Package datastore defines the document store client the repository talks to.

The hierarchy mirrors a document database account:

	Client     -> databases (ReadDatabase, CreateDatabase, DeleteDatabase)
	Database   -> containers (ReadContainer, CreateContainer, DeleteContainer)
	Container  -> items (ReadItem, CreateItem, UpsertItem, ReplaceItem, DeleteItem, Query)
	Pager      -> pages of query results (HasMoreResults, NextPage)

Every implementation reports outcomes with the types in package errors:
absent resources as NotFoundError, duplicate creates as ConflictError,
failed preconditions as ConditionFailedError and infrastructure failures as
StoreError.

Implementations:
  - mock: in-memory store with paging control and fault injection
  - ddb: Amazon DynamoDB, one table per container plus a catalog table
  - badger: embedded BadgerDB key-value store
  - sqlstore: relational databases through bun (sqlite, postgres, mysql)
*/
package datastore
