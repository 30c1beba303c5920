/*
Package registry maps Go types to the key templates that address their
documents.

A key map holds two templates, "id" and "pk", whose {Field} macros are
filled in from the encoded document (JSON field names, dotted paths allowed):

	registry.RegisterKeyMap[models.Family](map[string]string{
	    "id": "{id}",
	    "pk": "{LastName}",
	})

A repository built without explicit key functions looks its type up here.
The registry is thread-safe and should be populated during initialization,
typically in init() functions.
*/
package registry
