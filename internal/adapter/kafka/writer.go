package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/argovis/altimetry-etl/internal/config"
	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

var _ pipeline.DocumentSink = (*Writer)(nil)

// Document kinds, used as topic suffixes and in the "kind" header.
const (
	KindData     = "data"
	KindMetadata = "metadata"
	KindSummary  = "summary"
)

// Topics names the topic of each document kind.
type Topics struct {
	Data     string
	Metadata string
	Summary  string
}

// TopicsFor derives the topics "<prefix>-data", "<prefix>-metadata" and
// "<prefix>-summary".
func TopicsFor(prefix string) Topics {
	return Topics{
		Data:     prefix + "-" + KindData,
		Metadata: prefix + "-" + KindMetadata,
		Summary:  prefix + "-" + KindSummary,
	}
}

// Writer publishes documents as JSON messages keyed by document id.
// It implements pipeline.DocumentSink.
type Writer struct {
	writer *kafkago.Writer
	topics Topics
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic prefix.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topics: TopicsFor(cfg.KafkaTopicPrefix), logger: logger}
}

// InsertLocations publishes a batch of location records in a single
// WriteMessages call.
func (w *Writer) InsertLocations(ctx context.Context, records []domain.LocationRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serialize(w.topics.Data, KindData, records[i].ID, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

// InsertMetadata publishes the dataset metadata document.
func (w *Writer) InsertMetadata(ctx context.Context, doc domain.MetadataDocument) error {
	msg, err := serialize(w.topics.Metadata, KindMetadata, doc.ID, doc)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

// InsertSummary publishes the dataset summary document.
func (w *Writer) InsertSummary(ctx context.Context, doc domain.SummaryDocument) error {
	msg, err := serialize(w.topics.Summary, KindSummary, doc.ID, doc)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serialize marshals a document into a message for topic.
func serialize(topic, kind, id string, doc any) (kafkago.Message, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s document %s: %w", kind, id, err)
	}
	return kafkago.Message{
		Topic: topic,
		Key:   []byte(id),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kind)},
		},
	}, nil
}
