/*
Package sqlstore provides a relational implementation of datastore.Client on
top of bun. SQLite, PostgreSQL and MySQL are supported.

Three tables hold the whole store:

	docstore_databases   (id)
	docstore_containers  (database_id, id)
	docstore_items       (database_id, container_id, partition_key, id)

Item bodies are stored as JSON text. Predicates are evaluated in process
after rows are fetched in (partition_key, id) order, and the continuation
token is the last key returned. On MySQL the tables use the utf8mb4_bin
collation so keys are case and accent sensitive.

	client, err := sqlstore.Open(ctx, sqlstore.Config{
	    Type: "sqlite",
	    DSN:  "file:docstore.db?cache=shared",
	})
	if err != nil {
	    return err
	}
	defer client.Close()

Set Config.QueryLog to print every statement through bundebug.
*/
package sqlstore
