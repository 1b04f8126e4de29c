// Package mongodb copies application data out of the production MongoDB
// into the warehouse. Every synced collection is a full refresh: the
// source holds tens of thousands of documents, not millions, and a full
// swap keeps deletes visible.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fatgrid/insights/internal/warehouse"
)

const connectTimeout = 15 * time.Second

// Syncer copies configured collections into the warehouse.
type Syncer struct {
	client    *mongo.Client
	database  string
	warehouse *warehouse.Warehouse
	logger    *slog.Logger
}

// NewSyncer connects to MongoDB and verifies the connection.
func NewSyncer(ctx context.Context, uri, database string, wh *warehouse.Warehouse, logger *slog.Logger) (*Syncer, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo URI is required")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is required")
	}
	if wh == nil {
		return nil, fmt.Errorf("warehouse is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.SecondaryPreferred()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &Syncer{
		client:    client,
		database:  database,
		warehouse: wh,
		logger:    logger,
	}, nil
}

// Close disconnects from MongoDB.
func (s *Syncer) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Sync refreshes every configured collection and returns the total row
// count written.
func (s *Syncer) Sync(ctx context.Context) (int64, error) {
	db := s.client.Database(s.database)

	var total int64
	for _, spec := range Collections {
		n, err := s.syncCollection(ctx, db, spec)
		if err != nil {
			return total, fmt.Errorf("syncing %s: %w", spec.Collection, err)
		}
		total += n
	}

	s.logger.Info("mongo sync complete", "rows", total)
	return total, nil
}

func (s *Syncer) syncCollection(ctx context.Context, db *mongo.Database, spec CollectionSpec) (int64, error) {
	s.logger.Info("fetching collection", "collection", spec.Collection)

	cursor, err := db.Collection(spec.Collection).Find(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("querying collection: %w", err)
	}
	defer cursor.Close(ctx)

	var rows [][]any
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return 0, fmt.Errorf("decoding document: %w", err)
		}
		rows = append(rows, spec.ExtractRow(doc))
	}
	if err := cursor.Err(); err != nil {
		return 0, fmt.Errorf("iterating cursor: %w", err)
	}

	if len(rows) == 0 {
		s.logger.Info("collection empty, leaving table untouched", "collection", spec.Collection)
		return 0, nil
	}

	written, err := s.warehouse.Replace(ctx, spec.Table, spec.Columns(), rows)
	if err != nil {
		return 0, err
	}

	s.logger.Info("refreshed table",
		"table", spec.Table, "rows", written)
	return written, nil
}
