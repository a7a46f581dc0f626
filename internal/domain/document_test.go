package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedBasin struct {
	id  int
	err error
	got [][2]float64
}

func (f *fixedBasin) Locate(lon, lat float64) (int, error) {
	f.got = append(f.got, [2]float64{lon, lat})
	return f.id, f.err
}

// rowOf builds a one-variable row over the given longitudes with two periods.
func rowOf(t *testing.T, lons []float64, fill func(acc *Accumulator)) AggregatedRow {
	t.Helper()
	acc := NewAccumulator(2, len(lons))
	fill(acc)
	grid := GridSpec{Lat0: -60.125, Lon0: lons[0], DLat: 0.25, DLon: 0.25, NLat: 1, NLon: len(lons)}
	return AggregatedRow{
		Index:   0,
		Lat:     grid.Lat(0),
		Grid:    grid,
		Periods: 2,
		Names:   []string{"sla"},
		Fields:  []Field{acc.Finalize(SimpleMean{Fill: DefaultFill})},
	}
}

func TestAssembler_DropsEmptyCells(t *testing.T) {
	basins := &fixedBasin{id: 1}
	a := &Assembler{Precision: 6, Basins: basins, MetadataIDs: []string{"copernicusSLA"}}

	row := rowOf(t, []float64{179.875, 180.125, 180.375}, func(acc *Accumulator) {
		acc.Accumulate(1, 1, 0.12345678, false)
	})

	records, dropped, err := a.AssembleRow(row)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "-179.875_-60.125", rec.ID)
	assert.Equal(t, 1, rec.Basin)
	assert.Equal(t, Point{Type: "Point", Coordinates: []float64{-179.875, -60.125}}, rec.Geolocation)
	assert.Equal(t, []string{"copernicusSLA"}, rec.Metadata)
	require.Len(t, rec.Data, 1)
	require.Len(t, rec.Data[0], 2)
	assert.Nil(t, rec.Data[0][0])
	require.NotNil(t, rec.Data[0][1])
	assert.Equal(t, 0.123457, *rec.Data[0][1])

	assert.Equal(t, [][2]float64{{-179.875, -60.125}}, basins.got, "basin lookup only for retained cells")
}

func TestAssembler_RetainsSingleEntryInLaterVariable(t *testing.T) {
	ugos := NewAccumulator(3, 2)
	vgos := NewAccumulator(3, 2)
	vgos.Accumulate(2, 1, -0.25, false)
	grid := GridSpec{Lat0: 10.125, Lon0: 200.125, DLat: 0.25, DLon: 0.25, NLat: 1, NLon: 2}
	row := AggregatedRow{
		Lat: grid.Lat(0), Grid: grid, Periods: 3,
		Names: []string{"ugos", "vgos"},
		Fields: []Field{
			ugos.Finalize(SimpleMean{Fill: DefaultFill}),
			vgos.Finalize(SimpleMean{Fill: DefaultFill}),
		},
	}

	a := &Assembler{Precision: 6, Basins: &fixedBasin{id: 2}}
	records, dropped, err := a.AssembleRow(row)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "-159.625_10.125", rec.ID)
	require.Len(t, rec.Data, 2)
	assert.Equal(t, []*float64{nil, nil, nil}, rec.Data[0])
	require.Len(t, rec.Data[1], 3)
	assert.Nil(t, rec.Data[1][0])
	assert.Nil(t, rec.Data[1][1])
	require.NotNil(t, rec.Data[1][2])
	assert.Equal(t, -0.25, *rec.Data[1][2])
}

func TestAssembler_BasinErrorIsFatal(t *testing.T) {
	a := &Assembler{Precision: 6, Basins: &fixedBasin{err: ErrBasinOutOfBounds}}
	row := rowOf(t, []float64{10.125}, func(acc *Accumulator) {
		acc.Accumulate(0, 0, 1, false)
	})

	_, _, err := a.AssembleRow(row)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBasinOutOfBounds))
}

func TestAssembler_GatedMissingMarkers(t *testing.T) {
	acc := NewAccumulator(2, 1)
	acc.AccumulateMean(0, 0, 0.5, 7)
	acc.AccumulateMean(1, 0, 0.7, 5)
	grid := GridSpec{Lat0: 0.125, Lon0: 0.125, DLat: 0.25, DLon: 0.25, NLat: 1, NLon: 1}
	row := AggregatedRow{
		Lat: grid.Lat(0), Grid: grid, Periods: 2,
		Names:  []string{"sla"},
		Fields: []Field{acc.Finalize(GatedMean{Fill: DefaultFill, Window: 7})},
	}

	a := &Assembler{Precision: 4, Basins: &fixedBasin{id: 2}}
	records, dropped, err := a.AssembleRow(row)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, records, 1)

	half := 0.5
	want := [][]*float64{{&half, nil}}
	assert.Empty(t, cmp.Diff(want, records[0].Data))
}

func TestLocationID(t *testing.T) {
	assert.Equal(t, "0.125_89.875", LocationID(0.125, 89.875))
	assert.Equal(t, "180_-0.5", LocationID(180, -0.5))
	assert.Equal(t, "-0.125_0", LocationID(-0.125, 0))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.1235, Round(0.12345678, 4))
	assert.Equal(t, -1.0, Round(-0.6, 0))
	assert.Equal(t, 0.123456789, Round(0.123456789, -1))
}

func TestBuildMetadata(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 15, 500, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	ts := []time.Time{
		time.Date(1993, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(1993, 1, 17, 0, 0, 0, 0, time.UTC),
	}
	doc := BuildMetadata(MetadataParams{
		ID:         "copernicusVelocity",
		DataType:   "altimetry",
		Timestamps: ts,
		Variables: []Variable{
			{Name: "ugos", Units: "m/s", LongName: "zonal"},
			{Name: "vgos", Units: "m/s", LongName: "meridional"},
		},
		Sources:     []SourceRef{{Source: []string{"CMEMS"}}},
		Corrections: map[string][]float64{"ugos": {0.1, 0.2}},
	})

	assert.Equal(t, "copernicusVelocity", doc.ID)
	assert.Equal(t, "altimetry", doc.DataType)
	assert.Equal(t, now.Truncate(time.Second), doc.DateUpdatedArgovis)
	assert.Equal(t, ts, doc.Timeseries)
	want := []any{
		[]string{"ugos", "vgos"},
		[]string{"units", "long_name"},
		[][]string{{"m/s", "zonal"}, {"m/s", "meridional"}},
	}
	assert.Equal(t, want, doc.DataInfo)
	assert.Equal(t, []float64{0.1, 0.2}, doc.Corrections["ugos"])
}

func TestBuildSummary(t *testing.T) {
	g := GridSpec{Lat0: -89.875, Lon0: 0.125, DLat: 0.25, DLon: 0.25, NLat: 720, NLon: 1440}

	doc := BuildSummary("copernicusSLAsummary", g)

	assert.Equal(t, "copernicusSLAsummary", doc.ID)
	assert.Equal(t, Lattice{
		Center:  [2]float64{0.125, 0.125},
		Spacing: [2]float64{0.25, 0.25},
		MinLat:  -89.875,
		MinLon:  -179.875,
		MaxLat:  89.875,
		MaxLon:  179.875,
	}, doc.Lattice)
}
