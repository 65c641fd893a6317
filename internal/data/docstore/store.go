package docstore

import (
	"context"
	"errors"
	"time"
)

// Document is a JSON-shaped document. Nested objects are map[string]any.
type Document map[string]any

// TxFunc receives the current document (nil when absent) and returns a patch to
// merge into it. Returning (nil, nil) or ErrAbort ends the transaction
// without writing.
type TxFunc func(current Document) (Document, error)

// Store is the document store adapter contract.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// MergeSet deep-merges patch into the document, creating it when absent.
	MergeSet(ctx context.Context, collection, id string, patch Document) error
	// RunTransaction runs fn against the latest committed document and
	// retries on conflicting commits.
	RunTransaction(ctx context.Context, collection, id string, fn TxFunc) error
	// Now returns a strictly increasing store timestamp.
	Now() time.Time
}

var (
	ErrNotFound       = errors.New("docstore: document not found")
	ErrQuotaExhausted = errors.New("docstore: resource exhausted")
	ErrConflict       = errors.New("docstore: conflicting commit")
	ErrTransient      = errors.New("docstore: transient failure")
	// ErrAbort may be returned from a TxFunc to end the transaction without writing.
	ErrAbort = errors.New("docstore: transaction aborted")
)

// runTx applies fn to current and merges the resulting patch. The bool
// reports whether anything must be written.
func runTx(current Document, fn TxFunc, now time.Time) (Document, bool, error) {
	patch, err := fn(Clone(current))
	if errors.Is(err, ErrAbort) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if patch == nil {
		return nil, false, nil
	}
	return Merge(current, patch, now), true, nil
}
