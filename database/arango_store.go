package database

import (
	"context"
	"fmt"

	"github.com/arangodb/go-driver/v2/arangodb"
)

// ArangoStore implements RecordStore on top of ArangoDB using AQL.
type ArangoStore struct {
	db DBConnection
}

// NewArangoStore wraps an initialized connection.
func NewArangoStore(db DBConnection) *ArangoStore {
	return &ArangoStore{db: db}
}

func (s *ArangoStore) query(ctx context.Context, aql string, bindVars map[string]interface{}) (arangodb.Cursor, error) {
	return s.db.Database.Query(ctx, aql, &arangodb.QueryOptions{BindVars: bindVars})
}

// Get returns the document stored under key.
func (s *ArangoStore) Get(ctx context.Context, collection, key string) (Document, error) {
	aql := `
		FOR d IN @@col
			FILTER d._key == @key
			LIMIT 1
			RETURN UNSET(d, "_key", "_id", "_rev")
	`
	cursor, err := s.query(ctx, aql, map[string]interface{}{"@col": collection, "key": key})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return nil, ErrNotFound
	}

	var doc Document
	if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

// List returns every document of the collection.
func (s *ArangoStore) List(ctx context.Context, collection string) ([]Document, error) {
	aql := `FOR d IN @@col RETURN UNSET(d, "_key", "_id", "_rev")`
	cursor, err := s.query(ctx, aql, map[string]interface{}{"@col": collection})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer cursor.Close()

	docs := []Document{}
	for cursor.HasMore() {
		var doc Document
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, fmt.Errorf("read %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Set upserts the document, replacing any previous content.
func (s *ArangoStore) Set(ctx context.Context, collection, key string, fields Document) error {
	aql := `
		UPSERT { _key: @key }
		INSERT MERGE(@doc, { _key: @key })
		REPLACE MERGE(@doc, { _key: @key })
		IN @@col
	`
	cursor, err := s.query(ctx, aql, map[string]interface{}{
		"@col": collection,
		"key":  key,
		"doc":  stripInternal(cloneDocument(fields)),
	})
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, key, err)
	}
	return cursor.Close()
}

// Update merges patch into the stored document.
func (s *ArangoStore) Update(ctx context.Context, collection, key string, patch Document) error {
	aql := `
		FOR d IN @@col
			FILTER d._key == @key
			UPDATE d WITH @patch IN @@col
			RETURN NEW._key
	`
	cursor, err := s.query(ctx, aql, map[string]interface{}{
		"@col":  collection,
		"key":   key,
		"patch": stripInternal(cloneDocument(patch)),
	})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document if present.
func (s *ArangoStore) Delete(ctx context.Context, collection, key string) error {
	aql := `
		FOR d IN @@col
			FILTER d._key == @key
			REMOVE d IN @@col
	`
	cursor, err := s.query(ctx, aql, map[string]interface{}{"@col": collection, "key": key})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return cursor.Close()
}

// Add inserts the document under a server generated key.
func (s *ArangoStore) Add(ctx context.Context, collection string, fields Document) (string, error) {
	aql := `INSERT @doc INTO @@col RETURN NEW._key`
	cursor, err := s.query(ctx, aql, map[string]interface{}{
		"@col": collection,
		"doc":  stripInternal(cloneDocument(fields)),
	})
	if err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	defer cursor.Close()

	var key string
	if _, err := cursor.ReadDocument(ctx, &key); err != nil {
		return "", fmt.Errorf("read key %s: %w", collection, err)
	}
	return key, nil
}

// Close is a no-op; the HTTP connection pool is released with the process.
func (s *ArangoStore) Close(_ context.Context) error {
	return nil
}
