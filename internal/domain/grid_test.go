package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quarterDegreeAxes() (lats, lons []float64) {
	lats = make([]float64, 720)
	for i := range lats {
		lats[i] = -89.875 + 0.25*float64(i)
	}
	lons = make([]float64, 1440)
	for j := range lons {
		lons[j] = 0.125 + 0.25*float64(j)
	}
	return lats, lons
}

func TestGridFromAxes(t *testing.T) {
	lats, lons := quarterDegreeAxes()

	g, err := GridFromAxes(lats, lons)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	assert.Equal(t, 720, g.NLat)
	assert.Equal(t, 1440, g.NLon)
	assert.Equal(t, 0.25, g.DLat)
	assert.Equal(t, -89.875, g.Lat(0))
	assert.Equal(t, 89.875, g.Lat(719))
	assert.Equal(t, 359.875, g.Lon(1439))
	assert.True(t, g.Equal(g))

	other := g
	other.Lon0 = -179.875
	assert.False(t, g.Equal(other))
}

func TestGridFromAxes_Errors(t *testing.T) {
	_, err := GridFromAxes(nil, []float64{1, 2})
	require.Error(t, err)

	_, err = GridFromAxes([]float64{2, 1}, []float64{1, 2})
	require.Error(t, err)

	_, err = GridFromAxes([]float64{0, 1, 2.5}, []float64{1, 2})
	require.Error(t, err)
}

func TestGridSpec_Validate(t *testing.T) {
	require.Error(t, GridSpec{NLat: 0, NLon: 1, DLat: 1, DLon: 1}.Validate())
	require.Error(t, GridSpec{NLat: 1, NLon: 1, DLat: 0, DLon: 1}.Validate())
}

func TestRawRow_Sample(t *testing.T) {
	row := RawRow{
		Values:  []float64{-2147483647, 1234, math.NaN(), -50},
		Fill:    -2147483647,
		HasFill: true,
		Scale:   0.0001,
	}

	_, fill := row.Sample(0)
	assert.True(t, fill)

	v, fill := row.Sample(1)
	assert.False(t, fill)
	assert.InDelta(t, 0.1234, v, 1e-12)

	_, fill = row.Sample(2)
	assert.True(t, fill, "NaN is fill")

	v, _ = row.Sample(3)
	assert.InDelta(t, -0.005, v, 1e-12)

	unscaled := RawRow{Values: []float64{2.5}, Offset: 1}
	v, fill = unscaled.Sample(0)
	assert.False(t, fill)
	assert.Equal(t, 3.5, v)
}
