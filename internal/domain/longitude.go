package domain

import "math"

// NormalizeLongitude maps a longitude to (-180, 180].
// Values already in that range are returned unchanged. Values on [0, 360)
// above 180 are shifted down by 360; anything else is wrapped onto [0, 360)
// first.
func NormalizeLongitude(lon float64) float64 {
	if lon > -180 && lon <= 180 {
		return lon
	}
	if lon < 0 || lon >= 360 {
		lon = math.Mod(lon, 360)
		if lon < 0 {
			lon += 360
		}
	}
	if lon <= 180 {
		return lon
	}
	return lon - 360
}
