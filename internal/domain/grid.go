package domain

import (
	"fmt"
	"math"
)

// coordTolerance bounds the drift accepted between axis values and the
// regular lattice they are supposed to lie on.
const coordTolerance = 1e-6

// GridSpec is the geometry of a regular latitude/longitude grid. Cell (i, j)
// is centered on (Lat(i), Lon(j)).
type GridSpec struct {
	Lat0 float64
	Lon0 float64
	DLat float64
	DLon float64
	NLat int
	NLon int
}

// Lat returns the center latitude of row i.
func (g GridSpec) Lat(i int) float64 {
	return roundCoord(g.Lat0 + float64(i)*g.DLat)
}

// Lon returns the center longitude of column j, in the source convention.
func (g GridSpec) Lon(j int) float64 {
	return roundCoord(g.Lon0 + float64(j)*g.DLon)
}

// Validate reports whether the grid has usable dimensions and spacing.
func (g GridSpec) Validate() error {
	switch {
	case g.NLat <= 0 || g.NLon <= 0:
		return fmt.Errorf("grid has %dx%d cells", g.NLat, g.NLon)
	case g.DLat <= 0 || g.DLon <= 0:
		return fmt.Errorf("grid spacing %gx%g must be positive", g.DLat, g.DLon)
	}
	return nil
}

// Equal reports whether two grids describe the same cells.
func (g GridSpec) Equal(o GridSpec) bool {
	return g.NLat == o.NLat && g.NLon == o.NLon &&
		near(g.Lat0, o.Lat0) && near(g.Lon0, o.Lon0) &&
		near(g.DLat, o.DLat) && near(g.DLon, o.DLon)
}

func (g GridSpec) String() string {
	return fmt.Sprintf("%dx%d from (%g, %g) step (%g, %g)", g.NLat, g.NLon, g.Lat0, g.Lon0, g.DLat, g.DLon)
}

// GridFromAxes derives a GridSpec from ascending, evenly spaced coordinate axes.
func GridFromAxes(lats, lons []float64) (GridSpec, error) {
	lat0, dlat, err := regularAxis(lats)
	if err != nil {
		return GridSpec{}, fmt.Errorf("latitude axis: %w", err)
	}
	lon0, dlon, err := regularAxis(lons)
	if err != nil {
		return GridSpec{}, fmt.Errorf("longitude axis: %w", err)
	}
	return GridSpec{Lat0: lat0, Lon0: lon0, DLat: dlat, DLon: dlon, NLat: len(lats), NLon: len(lons)}, nil
}

func regularAxis(axis []float64) (origin, spacing float64, err error) {
	switch len(axis) {
	case 0:
		return 0, 0, fmt.Errorf("empty axis")
	case 1:
		return axis[0], 1, nil
	}
	spacing = axis[1] - axis[0]
	if spacing <= 0 {
		return 0, 0, fmt.Errorf("axis is not ascending")
	}
	for k, v := range axis {
		if math.Abs(v-(axis[0]+float64(k)*spacing)) > coordTolerance {
			return 0, 0, fmt.Errorf("irregular spacing at index %d", k)
		}
	}
	return axis[0], spacing, nil
}

// RawRow is one latitude row of a stored variable at one time step, before
// fill detection and scaling.
type RawRow struct {
	Values  []float64
	Fill    float64
	HasFill bool
	Scale   float64
	Offset  float64
}

// Sample returns the scaled value of column j and whether it is a fill value.
// NaN is treated as fill.
func (r RawRow) Sample(j int) (float64, bool) {
	v := r.Values[j]
	if math.IsNaN(v) || (r.HasFill && v == r.Fill) {
		return 0, true
	}
	scale := r.Scale
	if scale == 0 {
		scale = 1
	}
	return v*scale + r.Offset, false
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= coordTolerance
}

// roundCoord strips accumulated binary noise from computed coordinates.
func roundCoord(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}
