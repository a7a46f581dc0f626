package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/observability"
)

// Source opens gridded files by identifier. Handles stay owned by the Source.
type Source interface {
	Open(ctx context.Context, id string) (SourceFile, error)
}

// SourceFile is one opened gridded file.
type SourceFile interface {
	Grid() domain.GridSpec
	Times() int
	// ReadRow reads latitude row lat of variable name at time step t. An absent
	// variable yields an error wrapping domain.ErrVariableNotFound.
	ReadRow(name string, t, lat int) (domain.RawRow, error)
	Attribute(variable, name string) (domain.AttrValue, bool)
	ReadSeries(name string) ([]float64, error)
}

// Loader receives finalized rows in ascending order, then the run summary.
type Loader interface {
	LoadRow(ctx context.Context, row domain.AggregatedRow) error
	Finish(ctx context.Context, info domain.RunInfo) error
}

// Options configure a run.
type Options struct {
	Variables []domain.Variable
	Periods   []domain.Period
	Policy    domain.Policy
	// CountPrefix, when set, names the observation count variables stored
	// beside each variable; sources are then treated as precomputed means.
	CountPrefix   string
	Epoch         time.Time
	RowStart      int
	RowEnd        int
	ProgressEvery int
}

// Pipeline aggregates source grids row by row and hands each row to a loader.
type Pipeline struct {
	source  Source
	loader  Loader
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	ready   atomic.Bool

	rowsDone  atomic.Int64
	rowsTotal atomic.Int64
	finished  atomic.Bool
}

// Progress is a snapshot of a run's position.
type Progress struct {
	RowsDone  int64 `json:"rows_done"`
	RowsTotal int64 `json:"rows_total"`
	Finished  bool  `json:"finished"`
}

// New creates a Pipeline with the given source, loader, and observability.
func New(source Source, loader Loader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		source:  source,
		loader:  loader,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

// CheckReadiness returns nil once the pipeline has loaded at least one row.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any rows yet")
	}
	return nil
}

// Progress reports how many rows have been loaded so far.
func (p *Pipeline) Progress() Progress {
	return Progress{
		RowsDone:  p.rowsDone.Load(),
		RowsTotal: p.rowsTotal.Load(),
		Finished:  p.finished.Load(),
	}
}

// Run processes every configured latitude row and finishes the loader. The
// first error aborts the run.
func (p *Pipeline) Run(ctx context.Context) error {
	if len(p.opts.Periods) == 0 || len(p.opts.Periods[0].Files) == 0 {
		return errors.New("no periods to aggregate")
	}
	if len(p.opts.Variables) == 0 {
		return errors.New("no variables to aggregate")
	}

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	first, err := p.source.Open(ctx, p.opts.Periods[0].Files[0].ID)
	if err != nil {
		return fmt.Errorf("open %s: %w", p.opts.Periods[0].Files[0].ID, err)
	}
	grid := first.Grid()
	if err := grid.Validate(); err != nil {
		return fmt.Errorf("grid of %s: %w", p.opts.Periods[0].Files[0].ID, err)
	}
	vars := p.describe(first)

	start, end := p.opts.RowStart, p.opts.RowEnd
	if end == 0 || end > grid.NLat {
		end = grid.NLat
	}
	p.rowsTotal.Store(int64(end - start))
	p.logger.Info("pipeline started",
		"grid", grid.String(),
		"periods", len(p.opts.Periods),
		"variables", len(vars),
		"rows", end-start,
	)

	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}

	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := p.processRow(ctx, grid, names, i); err != nil {
			return err
		}
		p.ready.Store(true)
		p.rowsDone.Add(1)
		if p.opts.ProgressEvery > 0 && (i-start+1)%p.opts.ProgressEvery == 0 {
			p.logger.Info("progress", "row", i, "done", i-start+1, "total", end-start)
		}
	}

	info := domain.RunInfo{Grid: grid, Periods: p.opts.Periods, Variables: vars, Epoch: p.opts.Epoch}
	if err := p.loader.Finish(ctx, info); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	p.finished.Store(true)
	p.logger.Info("pipeline finished", "rows", end-start)
	return nil
}

// processRow aggregates one latitude row across every period and loads it.
func (p *Pipeline) processRow(ctx context.Context, grid domain.GridSpec, names []string, lat int) error {
	start := time.Now()
	agg := domain.NewRowAggregator(names, len(p.opts.Periods), grid.NLon)

	for pi, period := range p.opts.Periods {
		for _, ref := range period.Files {
			f, err := p.source.Open(ctx, ref.ID)
			if err != nil {
				return fmt.Errorf("row %d: open %s: %w", lat, ref.ID, err)
			}
			if !f.Grid().Equal(grid) {
				return fmt.Errorf("row %d: %s has grid %s, want %s: %w", lat, ref.ID, f.Grid(), grid, domain.ErrGridMismatch)
			}
			for _, name := range names {
				if err := p.feed(agg.Variable(name), f, name, len(names), ref.Time, lat, pi, grid.NLon); err != nil {
					return fmt.Errorf("row %d: %s: %w", lat, ref.ID, err)
				}
			}
		}
	}

	row := domain.AggregatedRow{
		Index:   lat,
		Lat:     grid.Lat(lat),
		Grid:    grid,
		Periods: len(p.opts.Periods),
		Names:   names,
		Fields:  agg.Finalize(p.opts.Policy),
	}
	if err := p.loader.LoadRow(ctx, row); err != nil {
		return fmt.Errorf("row %d: load: %w", lat, err)
	}

	p.metrics.RowsProcessed.Inc()
	p.metrics.RowDuration.Observe(time.Since(start).Seconds())
	p.logger.Debug("row processed", "row", lat, "lat", row.Lat, "duration", time.Since(start))
	return nil
}

// feed reads one variable row from f into acc. With a count prefix the values
// are means weighted by their stored observation counts.
func (p *Pipeline) feed(acc *domain.Accumulator, f SourceFile, name string, tracked, t, lat, period, nlon int) error {
	raw, err := f.ReadRow(name, t, lat)
	if err != nil {
		return err
	}
	p.metrics.SourceReads.Inc()
	if len(raw.Values) != nlon {
		return fmt.Errorf("%s row has %d values, want %d: %w", name, len(raw.Values), nlon, domain.ErrGridMismatch)
	}

	if p.opts.CountPrefix == "" {
		for j := 0; j < nlon; j++ {
			v, fill := raw.Sample(j)
			acc.Accumulate(period, j, v, fill)
		}
		return nil
	}

	countName := domain.CountVariable(p.opts.CountPrefix, name, tracked)
	counts, err := f.ReadRow(countName, t, lat)
	if err != nil {
		return err
	}
	p.metrics.SourceReads.Inc()
	for j := 0; j < nlon; j++ {
		v, fill := raw.Sample(j)
		n, nfill := counts.Sample(j)
		if fill || nfill {
			continue
		}
		acc.AccumulateMean(period, j, v, int(n))
	}
	return nil
}

// describe fills missing units and long names from source attributes.
func (p *Pipeline) describe(f SourceFile) []domain.Variable {
	vars := make([]domain.Variable, len(p.opts.Variables))
	for i, v := range p.opts.Variables {
		if v.Units == "" {
			v.Units = p.textAttr(f, v.Name, "units")
		}
		if v.LongName == "" {
			v.LongName = p.textAttr(f, v.Name, "long_name")
		}
		vars[i] = v
	}
	return vars
}

func (p *Pipeline) textAttr(f SourceFile, variable, name string) string {
	a, ok := f.Attribute(variable, name)
	if !ok {
		return ""
	}
	s, err := a.AsText()
	if err != nil {
		p.logger.Warn("ignoring attribute", "variable", variable, "attribute", name, "error", err)
		return ""
	}
	return s
}
