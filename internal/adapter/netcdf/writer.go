package netcdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cdf "github.com/fhs/go-netcdf/netcdf"

	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/pipeline"
)

var _ pipeline.Loader = (*CompositeWriter)(nil)

// CompositeWriter stores aggregated rows as a gridded composite file: one
// mean and one observation count variable per tracked variable, the grid axes,
// and the day offset of every period in "timestamps".
type CompositeWriter struct {
	path        string
	vars        []domain.Variable
	countPrefix string
	fill        float64
	logger      *slog.Logger

	ds      cdf.Dataset
	open    bool
	means   []cdf.Var
	counts  []cdf.Var
	lat     cdf.Var
	lon     cdf.Var
	stamps  cdf.Var
	periods int
	grid    domain.GridSpec
	rows    int
}

// NewCompositeWriter creates a writer for path. The file is created, replacing
// any existing one, when the first row arrives.
func NewCompositeWriter(path string, vars []domain.Variable, countPrefix string, fill float64, logger *slog.Logger) *CompositeWriter {
	return &CompositeWriter{
		path:        path,
		vars:        append([]domain.Variable(nil), vars...),
		countPrefix: countPrefix,
		fill:        fill,
		logger:      logger,
	}
}

// LoadRow writes every period of row's means and counts.
func (w *CompositeWriter) LoadRow(_ context.Context, row domain.AggregatedRow) error {
	if len(row.Fields) != len(w.vars) {
		return fmt.Errorf("row %d has %d variables, writer has %d", row.Index, len(row.Fields), len(w.vars))
	}
	if !w.open {
		if err := w.create(row.Grid, row.Periods); err != nil {
			return err
		}
	}
	if !row.Grid.Equal(w.grid) || row.Periods != w.periods {
		return fmt.Errorf("row %d: grid %s with %d periods, file has %s with %d: %w",
			row.Index, row.Grid, row.Periods, w.grid, w.periods, domain.ErrGridMismatch)
	}

	nlon := w.grid.NLon
	count := []uint64{1, 1, uint64(nlon)} //nolint:gosec // grid sizes are positive
	for k, field := range row.Fields {
		for t := 0; t < row.Periods; t++ {
			start := []uint64{uint64(t), uint64(row.Index), 0} //nolint:gosec // indices are non-negative
			lo, hi := t*nlon, (t+1)*nlon
			if err := w.means[k].WriteFloat64Slice(field.Values[lo:hi], start, count); err != nil {
				return fmt.Errorf("write %s row %d period %d: %w", w.vars[k].Name, row.Index, t, err)
			}
			if err := w.counts[k].WriteInt32Slice(field.Counts[lo:hi], start, count); err != nil {
				return fmt.Errorf("write counts of %s row %d period %d: %w", w.vars[k].Name, row.Index, t, err)
			}
		}
	}
	w.rows++
	return nil
}

// Finish writes the coordinate axes and period day offsets, then closes the
// file.
func (w *CompositeWriter) Finish(_ context.Context, info domain.RunInfo) error {
	if !w.open {
		if err := w.create(info.Grid, len(info.Periods)); err != nil {
			return err
		}
	}

	lats := make([]float64, w.grid.NLat)
	for i := range lats {
		lats[i] = w.grid.Lat(i)
	}
	lons := make([]float64, w.grid.NLon)
	for j := range lons {
		lons[j] = w.grid.Lon(j)
	}
	epoch := info.Epoch
	if epoch.IsZero() {
		epoch = domain.DefaultEpoch
	}
	ti := domain.NewTimeIndexer(epoch)
	offsets := make([]int64, len(info.Periods))
	for i, p := range info.Periods {
		offsets[i] = int64(ti.DayOffset(p.Timestamp))
	}

	err := errors.Join(
		w.lat.WriteFloat64s(lats),
		w.lon.WriteFloat64s(lons),
	)
	if len(offsets) > 0 {
		err = errors.Join(err, w.stamps.WriteInt64s(offsets))
	}
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("write axes of %s: %w", w.path, err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	w.logger.Info("composite written", "path", w.path, "rows", w.rows, "periods", w.periods, "variables", len(w.vars))
	return nil
}

// Close closes the file if it is open. It is safe to call more than once.
func (w *CompositeWriter) Close() error {
	if !w.open {
		return nil
	}
	w.open = false
	if err := w.ds.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	return nil
}

func (w *CompositeWriter) create(grid domain.GridSpec, periods int) error {
	if err := grid.Validate(); err != nil {
		return err
	}
	if periods <= 0 {
		return errors.New("composite needs at least one period")
	}
	ds, err := cdf.CreateFile(w.path, cdf.CLOBBER|cdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("create %s: %w", w.path, err)
	}
	w.ds, w.open, w.grid, w.periods = ds, true, grid, periods

	if err := w.define(); err != nil {
		_ = w.Close()
		return fmt.Errorf("define %s: %w", w.path, err)
	}
	w.logger.Info("composite created", "path", w.path, "grid", grid.String(), "periods", periods)
	return nil
}

func (w *CompositeWriter) define() error {
	timeDim, err := w.ds.AddDim("time", uint64(w.periods)) //nolint:gosec // checked positive
	if err != nil {
		return err
	}
	latDim, err := w.ds.AddDim("latitude", uint64(w.grid.NLat)) //nolint:gosec // validated positive
	if err != nil {
		return err
	}
	lonDim, err := w.ds.AddDim("longitude", uint64(w.grid.NLon)) //nolint:gosec // validated positive
	if err != nil {
		return err
	}

	if w.lat, err = w.ds.AddVar("latitude", cdf.DOUBLE, []cdf.Dim{latDim}); err != nil {
		return err
	}
	if w.lon, err = w.ds.AddVar("longitude", cdf.DOUBLE, []cdf.Dim{lonDim}); err != nil {
		return err
	}
	if w.stamps, err = w.ds.AddVar(pipeline.TimestampsVariable, cdf.INT64, []cdf.Dim{timeDim}); err != nil {
		return err
	}
	if err := errors.Join(
		writeText(w.lat.Attr("units"), "degrees_north"),
		writeText(w.lon.Attr("units"), "degrees_east"),
	); err != nil {
		return err
	}

	cube := []cdf.Dim{timeDim, latDim, lonDim}
	w.means = make([]cdf.Var, len(w.vars))
	w.counts = make([]cdf.Var, len(w.vars))
	for k, v := range w.vars {
		if w.means[k], err = w.ds.AddVar(v.Name, cdf.DOUBLE, cube); err != nil {
			return fmt.Errorf("variable %s: %w", v.Name, err)
		}
		attrErr := w.means[k].Attr("_FillValue").WriteFloat64s([]float64{w.fill})
		if v.Units != "" {
			attrErr = errors.Join(attrErr, writeText(w.means[k].Attr("units"), v.Units))
		}
		if v.LongName != "" {
			attrErr = errors.Join(attrErr, writeText(w.means[k].Attr("long_name"), v.LongName))
		}
		if attrErr != nil {
			return fmt.Errorf("attributes of %s: %w", v.Name, attrErr)
		}

		name := domain.CountVariable(w.countPrefix, v.Name, len(w.vars))
		if w.counts[k], err = w.ds.AddVar(name, cdf.INT, cube); err != nil {
			return fmt.Errorf("variable %s: %w", name, err)
		}
		if err := writeText(w.counts[k].Attr("long_name"), "number of observations of "+v.Name); err != nil {
			return err
		}
	}
	return w.ds.EndDef()
}

func writeText(a cdf.Attr, s string) error {
	return a.WriteBytes([]byte(s))
}
