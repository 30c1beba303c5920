/*
Package errors provides semantic error types for the docstore library.

Every backend reports the same small set of signals, so callers can branch on
the kind of failure without knowing which document store is underneath.

Common Errors:

	var (
	    ErrNotFound          = errors.New("resource not found")
	    ErrConflict          = errors.New("resource already exists")
	    ErrInvalidInput      = errors.New("invalid input")
	    ErrConditionFailed   = errors.New("condition check failed")
	    ErrMalformedDocument = errors.New("malformed document")
	    ErrNotInitialized    = errors.New("repository not initialized")
	    ErrStore             = errors.New("document store failure")
	)

Usage:

	receipt, err := repo.CreateItem(ctx, family)
	if err != nil {
	    if errors.IsConflict(err) {
	        // item already stored under this id and partition key
	    }
	    switch errors.KindOf(err) {
	    case errors.KindThrottled:
	        // back off and try again later
	    }
	    return err
	}

Infrastructure failures are wrapped in a StoreError carrying a Kind
(throttled, unavailable, unauthorized, unknown). All error types support
wrapping with fmt.Errorf("%w") and matching with errors.Is / errors.As.
*/
package errors
