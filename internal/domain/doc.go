// Package domain models gridded satellite altimetry composites and the sparse
// per-location documents built from them.
//
// # Data Source
//
// Daily fields come from the Copernicus Marine global ocean gridded L4 sea
// surface heights product (SEALEVEL_GLO_PHY_L4_MY_008_047), one NetCDF file per
// day named like "dt_global_twosat_phy_l4_19930110_vDT2021.nc". Each file holds
// a single time step on a 0.25° grid:
//
//	latitude   720 cells, centers -89.875 .. 89.875
//	longitude 1440 cells, centers   0.125 .. 359.875
//
// Variables of interest are stored as scaled int32 with a _FillValue of
// -2147483647 and a scale_factor of 0.0001:
//
//	sla   sea level anomaly (m)
//	adt   absolute dynamic topography (m)
//	ugos  absolute geostrophic velocity, zonal (m/s)
//	vgos  absolute geostrophic velocity, meridional (m/s)
//
// # Composites
//
// A period is a list of contributing files. Windowed periods take the 2r+1 days
// around a center date (r=3 gives the weekly composites centered on the 1993
// Sundays 1993-01-10, 1993-01-17, ...). Yearly periods take every day of a
// calendar year. File periods take each time step of an already-composited
// file, together with its observation count.
//
// Means are accumulated per cell with fill values skipped:
//
//	simple mean:  sum/count when count > 0, else the fill sentinel (-999.9)
//	gated mean:   sum/count only when count == window length, else missing
//
// The gated policy is used on weekly composites so that a week missing even a
// single daily sample at a cell is reported as missing rather than estimated.
//
// # Basins
//
// Every emitted cell is tagged with the id of the nearest cell center of a 1°
// basin mask whose centers sit on half degrees (latitude -77.5 .. 89.5,
// longitude -179.5 .. 179.5). See [BasinGrid.Locate].
//
// # Documents
//
// Longitudes are mapped to (-180, 180] before they are used anywhere (MongoDB
// 2dsphere indexes reject 0..360). Document ids are "<lon>_<lat>", e.g.
// "-179.875_-60.125". Cells with no value at any time for any variable are not
// written.
package domain
