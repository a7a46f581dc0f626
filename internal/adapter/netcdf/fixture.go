package netcdf

import (
	"errors"
	"fmt"
	"math"

	cdf "github.com/fhs/go-netcdf/netcdf"

	"github.com/argovis/altimetry-etl/internal/domain"
)

// CMEMS packing of daily gridded variables.
const (
	DailyFill  int32 = -2147483647
	DailyScale       = 0.0001
)

// DailyGrid is the content of one synthetic daily file. Fields maps a variable
// name to physical values indexed [lat][lon]; NaN marks a missing cell.
type DailyGrid struct {
	Grid   domain.GridSpec
	Fields map[string][][]float64
	Units  string
}

// WriteDailyGrid writes g as a classic netCDF file packed the way the daily
// CMEMS products are: integer variables shaped [time=1][lat][lon] with a fill
// value and scale factor.
func WriteDailyGrid(path string, g DailyGrid) (err error) {
	if err := g.Grid.Validate(); err != nil {
		return err
	}
	ds, err := cdf.CreateFile(path, cdf.CLOBBER)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { err = errors.Join(err, ds.Close()) }()

	timeDim, err := ds.AddDim("time", 1)
	if err != nil {
		return err
	}
	latDim, err := ds.AddDim("latitude", uint64(g.Grid.NLat)) //nolint:gosec // validated positive
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("longitude", uint64(g.Grid.NLon)) //nolint:gosec // validated positive
	if err != nil {
		return err
	}
	latVar, err := ds.AddVar("latitude", cdf.DOUBLE, []cdf.Dim{latDim})
	if err != nil {
		return err
	}
	lonVar, err := ds.AddVar("longitude", cdf.DOUBLE, []cdf.Dim{lonDim})
	if err != nil {
		return err
	}

	type packed struct {
		v    cdf.Var
		data []int32
	}
	var vars []packed
	for name, field := range g.Fields {
		if len(field) != g.Grid.NLat {
			return fmt.Errorf("%s has %d rows, want %d", name, len(field), g.Grid.NLat)
		}
		v, err := ds.AddVar(name, cdf.INT, []cdf.Dim{timeDim, latDim, lonDim})
		if err != nil {
			return fmt.Errorf("variable %s: %w", name, err)
		}
		if err := errors.Join(
			v.Attr("_FillValue").WriteInt32s([]int32{DailyFill}),
			v.Attr("scale_factor").WriteFloat64s([]float64{DailyScale}),
			v.Attr("add_offset").WriteFloat64s([]float64{0}),
			writeText(v.Attr("units"), g.Units),
		); err != nil {
			return fmt.Errorf("attributes of %s: %w", name, err)
		}

		data := make([]int32, 0, g.Grid.NLat*g.Grid.NLon)
		for i, row := range field {
			if len(row) != g.Grid.NLon {
				return fmt.Errorf("%s row %d has %d values, want %d", name, i, len(row), g.Grid.NLon)
			}
			for _, x := range row {
				data = append(data, pack(x))
			}
		}
		vars = append(vars, packed{v: v, data: data})
	}
	if err := ds.EndDef(); err != nil {
		return err
	}

	if err := errors.Join(
		latVar.WriteFloat64s(axis(g.Grid.NLat, g.Grid.Lat)),
		lonVar.WriteFloat64s(axis(g.Grid.NLon, g.Grid.Lon)),
	); err != nil {
		return err
	}
	for _, p := range vars {
		if err := p.v.WriteInt32s(p.data); err != nil {
			return err
		}
	}
	return nil
}

// WriteBasinMask writes a classic netCDF basin mask with the layout of the
// upstream basinmask_01.nc: variable BASIN_TAG over LATITUDE and LONGITUDE.
func WriteBasinMask(path string, lats, lons []float64, ids [][]int) (err error) {
	if len(ids) != len(lats) {
		return fmt.Errorf("%d id rows for %d latitudes", len(ids), len(lats))
	}
	ds, err := cdf.CreateFile(path, cdf.CLOBBER)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { err = errors.Join(err, ds.Close()) }()

	latDim, err := ds.AddDim("LATITUDE", uint64(len(lats)))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("LONGITUDE", uint64(len(lons)))
	if err != nil {
		return err
	}
	latVar, err := ds.AddVar("LATITUDE", cdf.DOUBLE, []cdf.Dim{latDim})
	if err != nil {
		return err
	}
	lonVar, err := ds.AddVar("LONGITUDE", cdf.DOUBLE, []cdf.Dim{lonDim})
	if err != nil {
		return err
	}
	tagVar, err := ds.AddVar("BASIN_TAG", cdf.INT, []cdf.Dim{latDim, lonDim})
	if err != nil {
		return err
	}
	if err := ds.EndDef(); err != nil {
		return err
	}

	tags := make([]int32, 0, len(lats)*len(lons))
	for i, row := range ids {
		if len(row) != len(lons) {
			return fmt.Errorf("id row %d has %d values for %d longitudes", i, len(row), len(lons))
		}
		for _, id := range row {
			tags = append(tags, int32(id)) //nolint:gosec // basin ids are small
		}
	}
	return errors.Join(
		latVar.WriteFloat64s(lats),
		lonVar.WriteFloat64s(lons),
		tagVar.WriteInt32s(tags),
	)
}

func pack(x float64) int32 {
	if math.IsNaN(x) {
		return DailyFill
	}
	return int32(math.Round(x / DailyScale))
}

func axis(n int, at func(int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = at(i)
	}
	return out
}
