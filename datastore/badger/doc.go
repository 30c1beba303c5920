/*
Package badger provides an embedded BadgerDB implementation of datastore.Client.

Databases, containers and items share one key space:

	db:<db>                      database properties (JSON)
	ct:<db>/<ct>                 container properties (JSON)
	it:<db>/<ct>/<pk>\x00<id>    item body, ETag and write time (JSON)

Item keys sort by partition key and then id, so a query is a prefix
iteration over the container (or one partition) and the continuation token is
the last key returned. Writes run in read-write transactions that are retried
when BadgerDB reports a transaction conflict.

	client, err := badger.Open("/var/lib/docstore", false)
	if err != nil {
	    return err
	}
	defer client.Close()

Pass inMemory=true for tests and throwaway stores.
*/
package badger
