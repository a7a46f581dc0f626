// Command genmock writes synthetic daily altimetry files and a basin mask
// with the layout of the upstream CMEMS and Argovis products, so the ETL can
// be run end to end without downloading them.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data \
//	  -basin-out parameters/basinmask_01.nc \
//	  -start 1993-01-01 -end 1993-01-31 \
//	  -spacing 1
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/argovis/altimetry-etl/internal/adapter/netcdf"
	"github.com/argovis/altimetry-etl/internal/domain"
)

// Synthetic basin ids.
const (
	basinAtlantic = 1
	basinPacific  = 2
	basinIndian   = 3
	basinSouthern = 10
	basinArctic   = 11
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data", "directory for daily files")
	basinOut := flag.String("basin-out", "parameters/basinmask_01.nc", "output path for the basin mask, empty to skip")
	pattern := flag.String("pattern", "dt_global_twosat_phy_l4_{date}_vDT2021.nc", "daily file name pattern")
	start := flag.String("start", "1993-01-01", "first day")
	end := flag.String("end", "1993-01-31", "last day")
	spacing := flag.Float64("spacing", 1, "grid spacing in degrees; must divide 180")
	gaps := flag.Float64("gaps", 0.05, "fraction of ocean cells dropped each day")
	seed := flag.Uint64("seed", 1993, "random seed for data gaps")
	flag.Parse()

	first, err := domain.ParseDate(*start)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	last, err := domain.ParseDate(*end)
	if err != nil {
		return fmt.Errorf("-end: %w", err)
	}
	if last.Before(first) {
		return fmt.Errorf("-end %s is before -start %s", *end, *start)
	}
	n := 180 / *spacing
	if *spacing <= 0 || n != math.Trunc(n) {
		return fmt.Errorf("-spacing %g does not divide 180", *spacing)
	}

	grid := domain.GridSpec{
		Lat0: -90 + *spacing/2,
		Lon0: *spacing / 2,
		DLat: *spacing,
		DLon: *spacing,
		NLat: int(n),
		NLon: int(2 * n),
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, 0)) //nolint:gosec // reproducible test data
	days := 0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		path := filepath.Join(*out, domain.SourceFileName(*pattern, day.Format(domain.DateToken)))
		if err := netcdf.WriteDailyGrid(path, dailyGrid(grid, day, rng, *gaps)); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		days++
	}
	log.Printf("wrote %d daily files (%s) to %s", days, grid, *out)

	if *basinOut == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(*basinOut), 0o755); err != nil {
		return err
	}
	lats, lons, ids := basinMask()
	if err := netcdf.WriteBasinMask(*basinOut, lats, lons, ids); err != nil {
		return fmt.Errorf("writing basin mask: %w", err)
	}
	log.Printf("wrote basin mask %s (%dx%d)", *basinOut, len(lats), len(lons))
	return nil
}

// dailyGrid builds smooth sea level and geostrophic velocity fields that
// drift from day to day, with land and random gaps left missing.
func dailyGrid(grid domain.GridSpec, day time.Time, rng *rand.Rand, gaps float64) netcdf.DailyGrid {
	phase := 2 * math.Pi * float64(day.YearDay()) / 365
	sla := make([][]float64, grid.NLat)
	ugos := make([][]float64, grid.NLat)
	vgos := make([][]float64, grid.NLat)
	for i := range sla {
		lat := grid.Lat(i)
		sla[i] = make([]float64, grid.NLon)
		ugos[i] = make([]float64, grid.NLon)
		vgos[i] = make([]float64, grid.NLon)
		for j := range sla[i] {
			lon := grid.Lon(j)
			if land(lat, lon) || rng.Float64() < gaps {
				sla[i][j], ugos[i][j], vgos[i][j] = math.NaN(), math.NaN(), math.NaN()
				continue
			}
			rlat, rlon := lat*math.Pi/180, lon*math.Pi/180
			sla[i][j] = 0.2 * math.Cos(rlat) * math.Sin(2*rlon+phase)
			ugos[i][j] = 0.1 * math.Sin(2*rlat) * math.Cos(rlon+phase)
			vgos[i][j] = 0.1 * math.Cos(rlat) * math.Sin(rlon-phase)
		}
	}
	return netcdf.DailyGrid{
		Grid:   grid,
		Fields: map[string][][]float64{"sla": sla, "ugos": ugos, "vgos": vgos},
		Units:  "m",
	}
}

// land is a crude mask: Antarctica and two continental blocks.
func land(lat, lon float64) bool {
	lon = domain.NormalizeLongitude(lon)
	switch {
	case lat < -70:
		return true
	case lat > 10 && lat < 60 && lon > -120 && lon < -80:
		return true
	case lat > -30 && lat < 30 && lon > 15 && lon < 40:
		return true
	}
	return false
}

// basinMask returns a 1° mask on the default basin grid.
func basinMask() (lats, lons []float64, ids [][]int) {
	for lat := domain.DefaultBasinLat0; lat < 90; lat += domain.DefaultBasinSpacing {
		lats = append(lats, lat)
	}
	for lon := domain.DefaultBasinLon0; lon < 180; lon += domain.DefaultBasinSpacing {
		lons = append(lons, lon)
	}
	ids = make([][]int, len(lats))
	for i, lat := range lats {
		ids[i] = make([]int, len(lons))
		for j, lon := range lons {
			ids[i][j] = basinOf(lat, lon)
		}
	}
	return lats, lons, ids
}

func basinOf(lat, lon float64) int {
	switch {
	case lat < -60:
		return basinSouthern
	case lat > 66:
		return basinArctic
	case lon >= -70 && lon < 20:
		return basinAtlantic
	case lon >= 20 && lon < 120:
		return basinIndian
	default:
		return basinPacific
	}
}
