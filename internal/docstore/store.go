// Package docstore is the document-store abstraction the adjudication
// core is written against. Documents are JSON values addressed by
// (collection, id); subcollections are encoded in the collection path,
// e.g. "packets/<id>/audit". Multi-document mutations go through
// RunTransaction or RunBatch and are all-or-nothing.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get for a missing document. Callers wrap
// it into their own taxonomy.
var ErrNotFound = errors.New("docstore: document not found")

// Doc is a raw document as stored.
type Doc struct {
	Collection string
	ID         string
	Data       json.RawMessage
}

// Reader is the read surface shared by the store and its transactions.
type Reader interface {
	// Get unmarshals the document into out.
	Get(ctx context.Context, collection, id string, out any) error
	// List returns every document in a collection, ordered by id.
	List(ctx context.Context, collection string) ([]Doc, error)
}

// Tx is a transaction handle. Reads are snapshot-consistent; staged
// writes are visible to subsequent reads in the same transaction and
// committed atomically when the transaction function returns nil.
type Tx interface {
	Reader
	Set(collection, id string, v any) error
	Delete(collection, id string) error
}

// Write is one entry of an atomic batch. A nil Data deletes.
type Write struct {
	Collection string
	ID         string
	Data       any
}

// Store is the full store surface. RunTransaction retries a bounded
// number of times on transient commit conflicts; an error returned by
// fn is terminal and is never retried.
type Store interface {
	Reader
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	RunBatch(ctx context.Context, writes []Write) error
}

func runBatch(ctx context.Context, s Store, writes []Write) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		for _, w := range writes {
			if w.Data == nil {
				if err := tx.Delete(w.Collection, w.ID); err != nil {
					return err
				}
				continue
			}
			if err := tx.Set(w.Collection, w.ID, w.Data); err != nil {
				return err
			}
		}
		return nil
	})
}
