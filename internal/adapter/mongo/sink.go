// Package mongo stores location records and dataset documents in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/argovis/altimetry-etl/internal/config"
	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/pipeline"
)

var _ pipeline.DocumentSink = (*Sink)(nil)

// Sink writes records to the data collection and dataset documents to the
// metadata and summary collections. Inserts are ordered and never upsert, so
// rerunning into a populated collection fails on the first duplicate id.
type Sink struct {
	client   *mongo.Client
	data     *mongo.Collection
	metadata *mongo.Collection
	summary  *mongo.Collection
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSink connects to the configured deployment and verifies it with a ping.
func NewSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Sink, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	logger.Info("mongo connected",
		"database", cfg.MongoDatabase,
		"data", cfg.CollectionData,
		"metadata", cfg.CollectionMetadata,
		"summary", cfg.CollectionSummary,
	)
	return &Sink{
		client:   client,
		data:     db.Collection(cfg.CollectionData),
		metadata: db.Collection(cfg.CollectionMetadata),
		summary:  db.Collection(cfg.CollectionSummary),
		timeout:  cfg.MongoTimeout,
		logger:   logger,
	}, nil
}

// InsertLocations inserts one batch of location records.
func (s *Sink) InsertLocations(ctx context.Context, records []domain.LocationRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.data.InsertMany(ctx, documents(records))
	if err != nil {
		return fmt.Errorf("insert into %s: %w", s.data.Name(), err)
	}
	s.logger.Debug("records inserted", "collection", s.data.Name(), "count", len(res.InsertedIDs))
	return nil
}

// InsertMetadata inserts the dataset metadata document.
func (s *Sink) InsertMetadata(ctx context.Context, doc domain.MetadataDocument) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.metadata.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", s.metadata.Name(), err)
	}
	return nil
}

// InsertSummary inserts the dataset summary document.
func (s *Sink) InsertSummary(ctx context.Context, doc domain.SummaryDocument) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.summary.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", s.summary.Name(), err)
	}
	return nil
}

// Close disconnects the client.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func documents(records []domain.LocationRecord) []any {
	docs := make([]any, len(records))
	for i := range records {
		docs[i] = records[i]
	}
	return docs
}
