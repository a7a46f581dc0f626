package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/observability"
)

// DocumentSink stores location records and dataset documents.
type DocumentSink interface {
	InsertLocations(ctx context.Context, records []domain.LocationRecord) error
	InsertMetadata(ctx context.Context, doc domain.MetadataDocument) error
	InsertSummary(ctx context.Context, doc domain.SummaryDocument) error
}

// DocumentOptions configure a DocumentLoader.
type DocumentOptions struct {
	BatchSize   int
	Precision   int
	DataType    string
	MetadataID  string
	SummaryID   string
	Sources     []domain.SourceRef
	Corrections map[string][]float64
}

// DocumentLoader implements Loader by assembling sparse location records and
// writing them to a DocumentSink in batches.
type DocumentLoader struct {
	sink      DocumentSink
	assembler *domain.Assembler
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      DocumentOptions

	pending []domain.LocationRecord
	seen    map[string]struct{}
	emitted int
	dropped int
}

// NewDocumentLoader creates a loader that classifies cells with basins.
func NewDocumentLoader(sink DocumentSink, basins domain.BasinLocator, logger *slog.Logger, metrics *observability.Metrics, opts DocumentOptions) *DocumentLoader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	var metadataIDs []string
	if opts.MetadataID != "" {
		metadataIDs = []string{opts.MetadataID}
	}
	return &DocumentLoader{
		sink: sink,
		assembler: &domain.Assembler{
			Precision:   opts.Precision,
			Basins:      basins,
			MetadataIDs: metadataIDs,
		},
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		seen:    make(map[string]struct{}),
	}
}

// LoadRow assembles the row's records and flushes full batches.
func (l *DocumentLoader) LoadRow(ctx context.Context, row domain.AggregatedRow) error {
	records, dropped, err := l.assembler.AssembleRow(row)
	if err != nil {
		return err
	}
	l.dropped += dropped
	l.metrics.CellsDropped.Add(float64(dropped))

	for _, r := range records {
		if _, dup := l.seen[r.ID]; dup {
			return fmt.Errorf("record %s: %w", r.ID, domain.ErrDuplicateID)
		}
		l.seen[r.ID] = struct{}{}
	}
	l.pending = append(l.pending, records...)

	for len(l.pending) >= l.opts.BatchSize {
		if err := l.flush(ctx, l.opts.BatchSize); err != nil {
			return err
		}
	}
	return nil
}

// Finish flushes the remaining records, then writes the metadata document and,
// when configured, the summary document.
func (l *DocumentLoader) Finish(ctx context.Context, info domain.RunInfo) error {
	if len(l.pending) > 0 {
		if err := l.flush(ctx, len(l.pending)); err != nil {
			return err
		}
	}

	for name, series := range l.opts.Corrections {
		if len(series) != len(info.Periods) {
			return fmt.Errorf("corrections for %s: %d values for %d periods", name, len(series), len(info.Periods))
		}
	}

	meta := domain.BuildMetadata(domain.MetadataParams{
		ID:          l.opts.MetadataID,
		DataType:    l.opts.DataType,
		Timestamps:  domain.Timestamps(info.Periods),
		Variables:   info.Variables,
		Sources:     l.opts.Sources,
		Corrections: l.opts.Corrections,
	})
	if err := l.timed(ctx, "metadata", func(ctx context.Context) error {
		return l.sink.InsertMetadata(ctx, meta)
	}); err != nil {
		return fmt.Errorf("insert metadata %s: %w", meta.ID, err)
	}

	if l.opts.SummaryID != "" {
		summary := domain.BuildSummary(l.opts.SummaryID, info.Grid)
		if err := l.timed(ctx, "summary", func(ctx context.Context) error {
			return l.sink.InsertSummary(ctx, summary)
		}); err != nil {
			return fmt.Errorf("insert summary %s: %w", summary.ID, err)
		}
	}

	l.logger.Info("documents written", "records", l.emitted, "dropped_cells", l.dropped, "metadata", meta.ID)
	return nil
}

func (l *DocumentLoader) flush(ctx context.Context, n int) error {
	batch := l.pending[:n]
	if err := l.timed(ctx, "data", func(ctx context.Context) error {
		return l.sink.InsertLocations(ctx, batch)
	}); err != nil {
		return fmt.Errorf("insert %d records starting at %s: %w", len(batch), batch[0].ID, err)
	}
	l.emitted += n
	l.metrics.RecordsEmitted.Add(float64(n))
	l.pending = append([]domain.LocationRecord(nil), l.pending[n:]...)
	return nil
}

func (l *DocumentLoader) timed(ctx context.Context, collection string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	l.metrics.SinkBatches.WithLabelValues(collection).Inc()
	l.metrics.SinkBatchDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())
	return err
}
