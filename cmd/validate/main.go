// Command validate proofreads a weekly composite against the daily files it
// was built from. It samples random grid cells, recomputes the mean of every
// period's window directly from the daily files, and compares the result with
// the composite's stored mean and observation count.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -composite data/ssh_mean_1993.nc \
//	  -source-dir data \
//	  -samples 100
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/argovis/altimetry-etl/internal/adapter/netcdf"
	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/pipeline"
)

const tolerance = 1e-5

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

type options struct {
	composite string
	sourceDir string
	pattern   string
	variable  string
	count     string
	radius    int
	samples   int
	seed      uint64
	epoch     time.Time
}

func run() error {
	var opts options
	epoch := flag.String("epoch", domain.DefaultEpoch.Format(time.DateOnly), "day offset epoch of the composite timestamps")
	flag.StringVar(&opts.composite, "composite", "data/ssh_mean_1993.nc", "composite file to check")
	flag.StringVar(&opts.sourceDir, "source-dir", "data", "directory holding the daily files")
	flag.StringVar(&opts.pattern, "pattern", "dt_global_twosat_phy_l4_{date}_vDT2021.nc", "daily file name pattern")
	flag.StringVar(&opts.variable, "var", "sla", "variable to check")
	flag.StringVar(&opts.count, "count", "nobs", "observation count variable, empty to skip")
	flag.IntVar(&opts.radius, "radius", 3, "window radius in days")
	flag.IntVar(&opts.samples, "samples", 100, "number of random cells")
	flag.Uint64Var(&opts.seed, "seed", 1, "random seed")
	flag.Parse()

	var err error
	if opts.epoch, err = domain.ParseDate(*epoch); err != nil {
		return fmt.Errorf("-epoch: %w", err)
	}

	failures, checked, err := proofread(context.Background(), opts)
	if err != nil {
		return err
	}
	log.Printf("checked %d cell periods, %d mismatches", checked, failures)
	if failures > 0 {
		return fmt.Errorf("%s does not match its daily files", opts.composite)
	}
	return nil
}

func proofread(ctx context.Context, opts options) (failures, checked int, err error) {
	comp, err := netcdf.OpenFile(opts.composite)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = comp.Close() }()

	offsets, err := comp.ReadSeries(pipeline.TimestampsVariable)
	if err != nil {
		return 0, 0, err
	}
	grid := comp.Grid()
	ti := domain.NewTimeIndexer(opts.epoch)
	daily := netcdf.NewStore(opts.sourceDir, 16, slog.Default())
	defer func() { _ = daily.Close() }()

	rng := rand.New(rand.NewPCG(opts.seed, 0)) //nolint:gosec // sampling, not security
	for s := 0; s < opts.samples; s++ {
		i, j := rng.IntN(grid.NLat), rng.IntN(grid.NLon)
		for t, off := range offsets {
			center := ti.Date(int(math.Round(off)))
			want, n, err := windowMean(ctx, daily, ti, center, opts, i, j)
			if err != nil {
				return failures, checked, err
			}

			got, fill, err := cell(comp, opts.variable, t, i, j)
			if err != nil {
				return failures, checked, err
			}
			checked++

			switch {
			case n == 0 && !fill:
				log.Printf("MISMATCH %s (%d,%d): no observations but composite has %g", center.Format(time.DateOnly), i, j, got)
				failures++
			case n > 0 && (fill || math.Abs(got-want) > tolerance):
				log.Printf("MISMATCH %s (%d,%d): composite %g, recomputed %g from %d days", center.Format(time.DateOnly), i, j, got, want, n)
				failures++
			}

			if opts.count == "" {
				continue
			}
			stored, _, err := cell(comp, opts.count, t, i, j)
			if err != nil {
				return failures, checked, err
			}
			if int(stored) != n {
				log.Printf("MISMATCH %s (%d,%d): count %d, recomputed %d", center.Format(time.DateOnly), i, j, int(stored), n)
				failures++
			}
		}
	}
	return failures, checked, nil
}

// windowMean averages cell (i, j) over the daily files of the window around
// center.
func windowMean(ctx context.Context, daily *netcdf.Store, ti domain.TimeIndexer, center time.Time, opts options, i, j int) (float64, int, error) {
	tokens, err := ti.Window(center.Format(time.RFC3339), opts.radius)
	if err != nil {
		return 0, 0, err
	}
	sum, n := 0.0, 0
	for _, tok := range tokens {
		f, err := daily.Open(ctx, domain.SourceFileName(opts.pattern, tok))
		if err != nil {
			return 0, 0, err
		}
		row, err := f.ReadRow(opts.variable, 0, i)
		if err != nil {
			return 0, 0, err
		}
		if v, fill := row.Sample(j); !fill {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return sum / float64(n), n, nil
}

func cell(f *netcdf.File, name string, t, i, j int) (float64, bool, error) {
	row, err := f.ReadRow(name, t, i)
	if err != nil {
		return 0, false, err
	}
	v, fill := row.Sample(j)
	return v, fill, nil
}
