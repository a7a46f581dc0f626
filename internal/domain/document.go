package domain

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Point is a GeoJSON point, coordinates [lon, lat].
type Point struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// LocationRecord is the time series of every tracked variable at one grid
// cell. Data is indexed [variable][period]; nil entries are missing.
type LocationRecord struct {
	ID          string       `json:"_id" bson:"_id"`
	Basin       int          `json:"basin" bson:"basin"`
	Geolocation Point        `json:"geolocation" bson:"geolocation"`
	Metadata    []string     `json:"metadata" bson:"metadata"`
	Data        [][]*float64 `json:"data" bson:"data"`
}

// LocationID formats the record id for a normalized coordinate, e.g.
// "-179.875_-60.125".
func LocationID(lon, lat float64) string {
	return strconv.FormatFloat(lon, 'f', -1, 64) + "_" + strconv.FormatFloat(lat, 'f', -1, 64)
}

// Round rounds v to precision decimal places. A negative precision leaves v
// untouched.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}

// Assembler turns finalized rows into sparse location records.
type Assembler struct {
	Precision   int
	Basins      BasinLocator
	MetadataIDs []string
}

// AssembleRow builds one record per cell of row that has at least one
// non-missing value. Cells with nothing to report are counted in dropped.
func (a *Assembler) AssembleRow(row AggregatedRow) (records []LocationRecord, dropped int, err error) {
	lat := row.Lat
	for j := 0; j < row.Grid.NLon; j++ {
		data, found := a.series(row, j)
		if !found {
			dropped++
			continue
		}

		lon := NormalizeLongitude(row.Grid.Lon(j))
		basin, lerr := a.Basins.Locate(lon, lat)
		if lerr != nil {
			return nil, dropped, fmt.Errorf("row %d column %d: %w", row.Index, j, lerr)
		}

		records = append(records, LocationRecord{
			ID:          LocationID(lon, lat),
			Basin:       basin,
			Geolocation: Point{Type: "Point", Coordinates: []float64{lon, lat}},
			Metadata:    a.MetadataIDs,
			Data:        data,
		})
	}
	return records, dropped, nil
}

func (a *Assembler) series(row AggregatedRow, j int) ([][]*float64, bool) {
	data := make([][]*float64, len(row.Fields))
	found := false
	for v, f := range row.Fields {
		s := make([]*float64, row.Periods)
		for t := 0; t < row.Periods; t++ {
			if f.Missing(t, j) {
				continue
			}
			val := Round(f.Value(t, j), a.Precision)
			s[t] = &val
			found = true
		}
		data[v] = s
	}
	return data, found
}

// SourceRef attributes the upstream product.
type SourceRef struct {
	Source []string `json:"source" bson:"source"`
	URL    string   `json:"url,omitempty" bson:"url,omitempty"`
}

// MetadataDocument describes a dataset: its variables, shared timestamps and
// provenance.
type MetadataDocument struct {
	ID                 string               `json:"_id" bson:"_id"`
	DataType           string               `json:"data_type" bson:"data_type"`
	DateUpdatedArgovis time.Time            `json:"date_updated_argovis" bson:"date_updated_argovis"`
	Timeseries         []time.Time          `json:"timeseries" bson:"timeseries"`
	Source             []SourceRef          `json:"source" bson:"source"`
	DataInfo           []any                `json:"data_info" bson:"data_info"`
	Corrections        map[string][]float64 `json:"corrections,omitempty" bson:"corrections,omitempty"`
}

// MetadataParams are the inputs to BuildMetadata.
type MetadataParams struct {
	ID          string
	DataType    string
	Timestamps  []time.Time
	Variables   []Variable
	Sources     []SourceRef
	Corrections map[string][]float64
}

// BuildMetadata assembles the dataset metadata document, stamped with the
// current clock time.
func BuildMetadata(p MetadataParams) MetadataDocument {
	names := make([]string, len(p.Variables))
	details := make([][]string, len(p.Variables))
	for i, v := range p.Variables {
		names[i] = v.Name
		details[i] = []string{v.Units, v.LongName}
	}
	ts := make([]time.Time, len(p.Timestamps))
	for i, t := range p.Timestamps {
		ts[i] = t.UTC()
	}
	return MetadataDocument{
		ID:                 p.ID,
		DataType:           p.DataType,
		DateUpdatedArgovis: clock.Now().UTC().Truncate(time.Second),
		Timeseries:         ts,
		Source:             p.Sources,
		DataInfo:           []any{names, []string{"units", "long_name"}, details},
		Corrections:        p.Corrections,
	}
}

// Lattice describes the effective working grid in normalized longitudes.
type Lattice struct {
	Center  [2]float64 `json:"center" bson:"center"`
	Spacing [2]float64 `json:"spacing" bson:"spacing"`
	MinLat  float64    `json:"minLat" bson:"minLat"`
	MinLon  float64    `json:"minLon" bson:"minLon"`
	MaxLat  float64    `json:"maxLat" bson:"maxLat"`
	MaxLon  float64    `json:"maxLon" bson:"maxLon"`
}

// SummaryDocument records grid spacing and center offsets of a dataset.
type SummaryDocument struct {
	ID      string  `json:"_id" bson:"_id"`
	Lattice Lattice `json:"lattice" bson:"lattice"`
}

// BuildSummary describes g. Center is the offset of cell centers from the
// nearest multiple of the spacing, as [lon, lat].
func BuildSummary(id string, g GridSpec) SummaryDocument {
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for j := 0; j < g.NLon; j++ {
		lon := NormalizeLongitude(g.Lon(j))
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
	}
	return SummaryDocument{
		ID: id,
		Lattice: Lattice{
			Center:  [2]float64{latticeOffset(g.Lon0, g.DLon), latticeOffset(g.Lat0, g.DLat)},
			Spacing: [2]float64{g.DLon, g.DLat},
			MinLat:  g.Lat(0),
			MinLon:  minLon,
			MaxLat:  g.Lat(g.NLat - 1),
			MaxLon:  maxLon,
		},
	}
}

func latticeOffset(origin, spacing float64) float64 {
	off := math.Mod(origin, spacing)
	if off < 0 {
		off += spacing
	}
	return roundCoord(off)
}
