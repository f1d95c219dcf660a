package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoConfig holds the MongoDB connection settings
type MongoConfig struct {
	URI        string
	Database   string
	MaxElapsed time.Duration
}

// MongoStore implements RecordStore on MongoDB. Keys live in _id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects with backoff retry and ensures the collection indexes.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("configure mongodb client: %w", err)
	}

	err = backoff.RetryNotify(func() error {
		logger.Info("Attempting to connect to MongoDB")
		return client.Ping(ctx, nil)
	}, newBackOff(ctx, cfg.MaxElapsed), func(err error, wait time.Duration) {
		logger.Warn("Retrying connection to MongoDB", zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	db := client.Database(cfg.Database)

	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}},
		},
		AuditLogsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return nil, fmt.Errorf("create %s indexes: %w", name, err)
		}
	}

	return &MongoStore{client: client, db: db}, nil
}

// Get returns the document stored under key.
func (s *MongoStore) Get(ctx context.Context, collection, key string) (Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return fromBSON(raw), nil
}

// List returns every document of the collection.
func (s *MongoStore) List(ctx context.Context, collection string) ([]Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

// Set upserts the document, replacing any previous content.
func (s *MongoStore) Set(ctx context.Context, collection, key string, fields Document) error {
	doc := toBSON(fields)
	doc["_id"] = key
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, key, err)
	}
	return nil
}

// Update merges patch into the stored document.
func (s *MongoStore) Update(ctx context.Context, collection, key string, patch Document) error {
	set := toBSON(patch)
	if len(set) == 0 {
		_, err := s.Get(ctx, collection, key)
		return err
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document if present.
func (s *MongoStore) Delete(ctx context.Context, collection, key string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// Add inserts the document under a generated key.
func (s *MongoStore) Add(ctx context.Context, collection string, fields Document) (string, error) {
	key := uuid.NewString()
	doc := toBSON(fields)
	doc["_id"] = key
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	return key, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toBSON(fields Document) bson.M {
	doc := bson.M{}
	for k, v := range stripInternal(cloneDocument(fields)) {
		doc[k] = v
	}
	return doc
}

func fromBSON(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = fromBSONValue(v)
	}
	return doc
}

func fromBSONValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return map[string]interface{}(fromBSON(t))
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = fromBSONValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = fromBSONValue(t[i])
		}
		return out
	default:
		return v
	}
}
