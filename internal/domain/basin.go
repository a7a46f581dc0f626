package domain

import (
	"fmt"
	"math"
)

// Default basin mask geometry: 1° cells centered on half degrees.
const (
	DefaultBasinLat0    = -77.5
	DefaultBasinLon0    = -179.5
	DefaultBasinSpacing = 1.0
)

// BasinLocator maps a coordinate to a basin id.
type BasinLocator interface {
	Locate(lon, lat float64) (int, error)
}

// BasinGrid is a regular grid of basin ids, indexed [lat][lon]. It is
// immutable once built.
type BasinGrid struct {
	Lat0    float64
	Lon0    float64
	Spacing float64
	NLat    int
	NLon    int
	ids     []int
}

// NewBasinGrid builds a basin grid from its coordinate axes and an id matrix
// shaped [len(lats)][len(lons)]. Both axes must be ascending with the same
// constant spacing.
func NewBasinGrid(lats, lons []float64, ids [][]int) (*BasinGrid, error) {
	g, err := GridFromAxes(lats, lons)
	if err != nil {
		return nil, fmt.Errorf("basin grid: %w", err)
	}
	if len(lats) > 1 && len(lons) > 1 && !near(g.DLat, g.DLon) {
		return nil, fmt.Errorf("basin grid spacing %g x %g is not square: %w", g.DLat, g.DLon, ErrBasinMismatch)
	}
	spacing := g.DLat
	if len(lats) == 1 {
		spacing = g.DLon
	}
	if len(ids) != g.NLat {
		return nil, fmt.Errorf("basin grid has %d id rows for %d latitudes: %w", len(ids), g.NLat, ErrBasinMismatch)
	}
	flat := make([]int, 0, g.NLat*g.NLon)
	for i, row := range ids {
		if len(row) != g.NLon {
			return nil, fmt.Errorf("basin grid row %d has %d ids for %d longitudes: %w", i, len(row), g.NLon, ErrBasinMismatch)
		}
		flat = append(flat, row...)
	}
	return &BasinGrid{
		Lat0:    g.Lat0,
		Lon0:    g.Lon0,
		Spacing: spacing,
		NLat:    g.NLat,
		NLon:    g.NLon,
		ids:     flat,
	}, nil
}

// CheckOrigin fails with ErrBasinMismatch unless the grid has the expected
// origin and spacing. Index arithmetic silently misplaces lookups otherwise.
func (b *BasinGrid) CheckOrigin(lat0, lon0, spacing float64) error {
	if !near(b.Lat0, lat0) || !near(b.Lon0, lon0) || !near(b.Spacing, spacing) {
		return fmt.Errorf("basin grid origin (%g, %g) spacing %g, want (%g, %g) spacing %g: %w",
			b.Lat0, b.Lon0, b.Spacing, lat0, lon0, spacing, ErrBasinMismatch)
	}
	return nil
}

// ID returns the basin id at index (i, j).
func (b *BasinGrid) ID(i, j int) (int, error) {
	if i < 0 || i >= b.NLat || j < 0 || j >= b.NLon {
		return 0, fmt.Errorf("index (%d, %d) outside %dx%d: %w", i, j, b.NLat, b.NLon, ErrBasinOutOfBounds)
	}
	return b.ids[i*b.NLon+j], nil
}

// Locate returns the id of the basin cell whose center is nearest to
// (lon, lat).
//
// The four candidate centers bracketing the point are visited lower-left,
// upper-left, upper-right, lower-right. A later candidate replaces the current
// choice only when strictly closer, so ties go to the earliest in that order.
// Only the chosen index is bounds checked.
func (b *BasinGrid) Locate(lon, lat float64) (int, error) {
	latLo, latHi := b.bracket(lat, b.Lat0)
	lonLo, lonHi := b.bracket(lon, b.Lon0)

	corners := [4][2]int{
		{latLo, lonLo},
		{latHi, lonLo},
		{latHi, lonHi},
		{latLo, lonHi},
	}

	best := corners[0]
	bestDist := math.Inf(1)
	for _, c := range corners {
		d := math.Hypot(lat-b.center(c[0], b.Lat0), lon-b.center(c[1], b.Lon0))
		if d < bestDist {
			best, bestDist = c, d
		}
	}

	id, err := b.ID(best[0], best[1])
	if err != nil {
		return 0, fmt.Errorf("locate basin at (%g, %g): %w", lon, lat, err)
	}
	return id, nil
}

// bracket returns the indices of the centers at or below and at or above c.
func (b *BasinGrid) bracket(c, origin float64) (lo, hi int) {
	k := (c - origin) / b.Spacing
	return int(math.Floor(k)), int(math.Ceil(k))
}

func (b *BasinGrid) center(idx int, origin float64) float64 {
	return origin + float64(idx)*b.Spacing
}
