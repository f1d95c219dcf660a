package database

import (
	"context"
	"errors"
)

// Collection names used by the backend.
const (
	UsersCollection     = "USERS"
	AuditLogsCollection = "AUDIT_LOGS"
)

// ErrNotFound is returned when a keyed document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a schemaless record. Storage-internal keys are never exposed.
type Document map[string]interface{}

// RecordStore is a keyed, schemaless document store.
type RecordStore interface {
	// Get returns the document stored under key or ErrNotFound.
	Get(ctx context.Context, collection, key string) (Document, error)
	// List returns every document of the collection in no particular order.
	List(ctx context.Context, collection string) ([]Document, error)
	// Set creates or fully replaces the document stored under key.
	Set(ctx context.Context, collection, key string, fields Document) error
	// Update merges patch into an existing document or returns ErrNotFound.
	Update(ctx context.Context, collection, key string, patch Document) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, key string) error
	// Add stores fields under a generated key and returns it.
	Add(ctx context.Context, collection string, fields Document) (string, error)
	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Collections lists every collection the backend relies on.
func Collections() []string {
	return []string{UsersCollection, AuditLogsCollection}
}

var internalKeys = []string{"_key", "_id", "_rev"}

func stripInternal(doc Document) Document {
	for _, k := range internalKeys {
		delete(doc, k)
	}
	return doc
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return cloneDocument(t)
	case map[string]interface{}:
		return map[string]interface{}(cloneDocument(Document(t)))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
