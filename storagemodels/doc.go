/*
Package storagemodels defines the data structures shared by the repository
and every datastore backend.

Key Types:

Item:
A stored document and the keys that address it:

	item := storagemodels.Item{
	    ID:           "Andersen.1",
	    PartitionKey: "Andersen",
	    Body:         storagemodels.Document{"id": "Andersen.1", "LastName": "Andersen"},
	}

QueryOptions and Page:
Paging parameters and one batch of results:

	opts := &QueryOptions{EnableCrossPartition: true, MaxItemCount: 25}
	page, err := pager.NextPage(ctx) // page.Items, page.ContinuationToken

StreamResult:
Results from streaming operations with metadata:

	type StreamResult[T any] struct {
	    Item  T          // The typed entity
	    Raw   Document   // Stored document
	    Error error      // Item-specific error, if any
	    Meta  StreamMeta // Metadata about this item
	}

StreamOptions:
Configuration for streaming behavior:

	opts := []StreamOption{
	    WithBufferSize(100),
	    WithPageSize(25),
	    WithProgressHandler(progressFunc),
	}

ETags are computed with ComputeETag (BLAKE2b over the canonical JSON body).
*/
package storagemodels
