package pipeline_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/observability"
	"github.com/argovis/altimetry-etl/internal/pipeline"
)

const testFill = -2147483647

// memFile is an in-memory gridded file: vars[name][t][lat][lon].
type memFile struct {
	grid   domain.GridSpec
	times  int
	vars   map[string][][][]float64
	fill   map[string]bool
	scale  float64
	attrs  map[string]domain.AttrValue
	series map[string][]float64
}

func (f *memFile) Grid() domain.GridSpec { return f.grid }
func (f *memFile) Times() int            { return f.times }

func (f *memFile) ReadRow(name string, t, lat int) (domain.RawRow, error) {
	v, ok := f.vars[name]
	if !ok {
		return domain.RawRow{}, fmt.Errorf("%s: %w", name, domain.ErrVariableNotFound)
	}
	row := append([]float64(nil), v[t][lat]...)
	return domain.RawRow{Values: row, Fill: testFill, HasFill: f.fill[name], Scale: f.scale}, nil
}

func (f *memFile) Attribute(variable, name string) (domain.AttrValue, bool) {
	a, ok := f.attrs[variable+"/"+name]
	return a, ok
}

func (f *memFile) ReadSeries(name string) ([]float64, error) {
	s, ok := f.series[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrVariableNotFound)
	}
	return s, nil
}

type memSource struct {
	files map[string]*memFile
	opens int
}

func (s *memSource) Open(_ context.Context, id string) (pipeline.SourceFile, error) {
	s.opens++
	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("no such file %s", id)
	}
	return f, nil
}

type recordingLoader struct {
	rows     []domain.AggregatedRow
	info     *domain.RunInfo
	failRow  int
	rowError error
}

func (l *recordingLoader) LoadRow(_ context.Context, row domain.AggregatedRow) error {
	if l.rowError != nil && row.Index == l.failRow {
		return l.rowError
	}
	l.rows = append(l.rows, row)
	return nil
}

func (l *recordingLoader) Finish(_ context.Context, info domain.RunInfo) error {
	l.info = &info
	return nil
}

type memSink struct {
	mu        sync.Mutex
	batches   [][]domain.LocationRecord
	metadata  []domain.MetadataDocument
	summaries []domain.SummaryDocument
	err       error
}

func (s *memSink) InsertLocations(_ context.Context, records []domain.LocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]domain.LocationRecord(nil), records...))
	return nil
}

func (s *memSink) InsertMetadata(_ context.Context, doc domain.MetadataDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = append(s.metadata, doc)
	return nil
}

func (s *memSink) InsertSummary(_ context.Context, doc domain.SummaryDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, doc)
	return nil
}

func (s *memSink) records() []domain.LocationRecord {
	var all []domain.LocationRecord
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

type constBasin int

func (b constBasin) Locate(float64, float64) (int, error) { return int(b), nil }

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

// grid3D allocates a [times][nlat][nlon] cube filled with v.
func grid3D(times, nlat, nlon int, v float64) [][][]float64 {
	cube := make([][][]float64, times)
	for t := range cube {
		cube[t] = make([][]float64, nlat)
		for i := range cube[t] {
			cube[t][i] = make([]float64, nlon)
			for j := range cube[t][i] {
				cube[t][i][j] = v
			}
		}
	}
	return cube
}
