package domain

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"antimeridian stays positive", 180, 180},
		{"just past antimeridian", 180.125, -179.875},
		{"western hemisphere", 200, -160},
		{"last source column", 359.875, -0.125},
		{"eastern hemisphere", 90.5, 90.5},
		{"full turn wraps", 360, 0},
		{"negative input wraps", -10, -10},
		{"beyond two turns", 740, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizeLongitude(tt.in), 1e-12)
		})
	}
}

func TestNormalizeLongitude_IdempotentOnOutputRange(t *testing.T) {
	for lon := -179.875; lon <= 180; lon += 0.25 {
		once := NormalizeLongitude(lon)
		assert.Equal(t, once, NormalizeLongitude(once), "lon %v", lon)
		assert.Greater(t, once, -180.0)
		assert.LessOrEqual(t, once, 180.0)
	}
}

func TestNormalizeLongitude_LeavesOutputRangeUntouched(t *testing.T) {
	rng := rand.New(rand.NewPCG(1993, 10))
	for range 10000 {
		lon := 360*rng.Float64() - 180
		if lon == -180 {
			continue
		}
		assert.Equal(t, lon, NormalizeLongitude(lon), "lon %v", lon)
	}
	assert.Equal(t, -25.274612302657232, NormalizeLongitude(-25.274612302657232))
	assert.Equal(t, -180.0+1e-9, NormalizeLongitude(-180.0+1e-9))
}
