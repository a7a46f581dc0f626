//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/argovis/altimetry-etl/internal/adapter/basinmask"
	"github.com/argovis/altimetry-etl/internal/adapter/netcdf"
	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/observability"
	"github.com/argovis/altimetry-etl/internal/pipeline"
	"github.com/stretchr/testify/require"
)

const pattern = "dt_global_twosat_phy_l4_{date}_vDT2021.nc"

var testGrid = domain.GridSpec{Lat0: -0.375, Lon0: 0.125, DLat: 0.25, DLon: 0.25, NLat: 4, NLon: 4}

// oceanCells is the number of testGrid cells observed every day.
const oceanCells = 15

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeDays writes daily files for 1993-01-01..03. Cell (0, 0) is land.
func writeDays(t *testing.T, dir string) {
	t.Helper()
	for d := 1; d <= 3; d++ {
		field := make([][]float64, testGrid.NLat)
		for i := range field {
			field[i] = make([]float64, testGrid.NLon)
			for j := range field[i] {
				field[i][j] = 0.01*float64(i) + 0.001*float64(j) + 0.1*float64(d)
			}
		}
		field[0][0] = math.NaN()
		name := domain.SourceFileName(pattern, fmt.Sprintf("199301%02d", d))
		require.NoError(t, netcdf.WriteDailyGrid(filepath.Join(dir, name), netcdf.DailyGrid{
			Grid:   testGrid,
			Fields: map[string][][]float64{"sla": field},
			Units:  "m",
		}))
	}
}

// buildComposite aggregates the daily files into one weekly composite
// centered on 1993-01-02 and returns its file name.
func buildComposite(t *testing.T, dir string) string {
	t.Helper()
	writeDays(t, dir)

	ti := domain.NewTimeIndexer(domain.DefaultEpoch)
	center := time.Date(1993, 1, 2, 0, 0, 0, 0, time.UTC)
	periods, err := domain.WindowPeriods(ti, []time.Time{center}, 1, pattern)
	require.NoError(t, err)

	store := netcdf.NewStore(dir, 4, discardLogger())
	t.Cleanup(func() { _ = store.Close() })

	const name = "ssh_mean_1993.nc"
	vars := []domain.Variable{{Name: "sla", Units: "m", LongName: "Sea level anomaly"}}
	w := netcdf.NewCompositeWriter(filepath.Join(dir, name), vars, "nobs", domain.DefaultFill, discardLogger())
	t.Cleanup(func() { _ = w.Close() })

	p := pipeline.New(store, w, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{
		Variables: vars,
		Periods:   periods,
		Policy:    domain.SimpleMean{Fill: domain.DefaultFill},
		Epoch:     domain.DefaultEpoch,
	})
	require.NoError(t, p.Run(context.Background()))
	return name
}

// loadBasins writes and loads a 1° mask around testGrid. Every testGrid cell
// is nearest the column centered on 0.5°E, tagged basin 2.
func loadBasins(t *testing.T, dir string) *domain.BasinGrid {
	t.Helper()
	lats := []float64{-1.5, -0.5, 0.5, 1.5}
	lons := []float64{-0.5, 0.5, 1.5}
	ids := [][]int{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}, {1, 2, 3}}
	path := filepath.Join(dir, "basinmask.nc")
	require.NoError(t, netcdf.WriteBasinMask(path, lats, lons, ids))
	grid, err := basinmask.Load(path, basinmask.Options{Variable: "BASIN_TAG", Lat0: -1.5, Lon0: -0.5, Spacing: 1})
	require.NoError(t, err)
	return grid
}

// runDocuments aggregates the composite into location documents written to
// sink, gated on all three days being observed.
func runDocuments(t *testing.T, ctx context.Context, dir, composite string, sink pipeline.DocumentSink) {
	t.Helper()
	store := netcdf.NewStore(dir, 4, discardLogger())
	t.Cleanup(func() { _ = store.Close() })

	ti := domain.NewTimeIndexer(domain.DefaultEpoch)
	periods, err := pipeline.PlanFiles(ctx, store, []string{composite}, ti)
	require.NoError(t, err)

	metrics := observability.NewMetricsForTesting()
	ds, err := domain.LookupDataset("sla")
	require.NoError(t, err)
	loader := pipeline.NewDocumentLoader(sink, loadBasins(t, dir), discardLogger(), metrics, pipeline.DocumentOptions{
		BatchSize:  5,
		Precision:  6,
		DataType:   ds.DataType,
		MetadataID: ds.MetadataID,
		SummaryID:  ds.SummaryID,
		Sources:    ds.Sources,
	})
	p := pipeline.New(store, loader, discardLogger(), metrics, pipeline.Options{
		Variables:   []domain.Variable{{Name: "sla"}},
		Periods:     periods,
		Policy:      domain.GatedMean{Fill: domain.DefaultFill, Window: 3},
		CountPrefix: "nobs",
		Epoch:       domain.DefaultEpoch,
	})
	require.NoError(t, p.Run(ctx))
}
