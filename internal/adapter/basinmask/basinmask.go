// Package basinmask loads the ocean basin lookup grid from its netCDF file.
package basinmask

import (
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/argovis/altimetry-etl/internal/domain"
)

// Options name the mask variable and the grid geometry it must have.
type Options struct {
	Variable string
	Lat0     float64
	Lon0     float64
	Spacing  float64
}

// DefaultOptions match the 1° basinmask_01.nc product.
func DefaultOptions() Options {
	return Options{
		Variable: "BASIN_TAG",
		Lat0:     domain.DefaultBasinLat0,
		Lon0:     domain.DefaultBasinLon0,
		Spacing:  domain.DefaultBasinSpacing,
	}
}

// Load reads the mask at path. The grid's axes must match opts, so index
// arithmetic in BasinGrid.Locate lands on the right cell.
func Load(path string, opts Options) (*domain.BasinGrid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open basin mask %s: %w", path, err)
	}
	defer nc.Close()

	lats, err := axis(nc, "LATITUDE", "latitude", "lat")
	if err != nil {
		return nil, fmt.Errorf("basin mask %s: %w", path, err)
	}
	lons, err := axis(nc, "LONGITUDE", "longitude", "lon")
	if err != nil {
		return nil, fmt.Errorf("basin mask %s: %w", path, err)
	}

	v, err := nc.GetVariable(opts.Variable)
	if err != nil {
		return nil, fmt.Errorf("basin mask %s: %s: %w", path, opts.Variable, domain.ErrVariableNotFound)
	}
	ids, err := matrix(v.Values)
	if err != nil {
		return nil, fmt.Errorf("basin mask %s: %s: %w", path, opts.Variable, err)
	}

	grid, err := domain.NewBasinGrid(lats, lons, ids)
	if err != nil {
		return nil, fmt.Errorf("basin mask %s: %w", path, err)
	}
	if err := grid.CheckOrigin(opts.Lat0, opts.Lon0, opts.Spacing); err != nil {
		return nil, fmt.Errorf("basin mask %s: %w", path, err)
	}
	return grid, nil
}

func axis(nc api.Group, names ...string) ([]float64, error) {
	for _, name := range names {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		return vector(v.Values)
	}
	return nil, fmt.Errorf("no axis among %v: %w", names, domain.ErrVariableNotFound)
}

func vector(values any) ([]float64, error) {
	switch vs := values.(type) {
	case []float64:
		return vs, nil
	case []float32:
		return convert(vs), nil
	case []int32:
		return convert(vs), nil
	case []int16:
		return convert(vs), nil
	default:
		return nil, fmt.Errorf("unsupported axis type %T", values)
	}
}

func convert[T float32 | int32 | int16 | int8 | int64 | float64](vs []T) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}

// matrix converts a two-dimensional id variable to ints. Floating point ids
// must be whole numbers.
func matrix(values any) ([][]int, error) {
	switch vs := values.(type) {
	case [][]int32:
		return ints(vs), nil
	case [][]int16:
		return ints(vs), nil
	case [][]int8:
		return ints(vs), nil
	case [][]int64:
		return ints(vs), nil
	case [][]float64:
		return wholes(vs)
	case [][]float32:
		return wholes(vs)
	default:
		return nil, fmt.Errorf("want a two-dimensional numeric variable, got %T", values)
	}
}

func ints[T int8 | int16 | int32 | int64](rows [][]T) [][]int {
	out := make([][]int, len(rows))
	for i, row := range rows {
		out[i] = make([]int, len(row))
		for j, v := range row {
			out[i][j] = int(v)
		}
	}
	return out
}

func wholes[T float32 | float64](rows [][]T) ([][]int, error) {
	out := make([][]int, len(rows))
	for i, row := range rows {
		out[i] = make([]int, len(row))
		for j, v := range row {
			f := float64(v)
			if math.IsNaN(f) || f != math.Trunc(f) {
				return nil, fmt.Errorf("id %v at (%d, %d) is not a whole number", f, i, j)
			}
			out[i][j] = int(f)
		}
	}
	return out, nil
}
