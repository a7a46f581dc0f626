package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Variable is a tracked gridded variable. Units and LongName are filled from
// source attributes when left empty.
type Variable struct {
	Name     string
	Units    string
	LongName string
}

// PlanKind selects how periods and their contributing files are derived.
type PlanKind string

const (
	// PlanWindow averages the 2r+1 daily files around each center date.
	PlanWindow PlanKind = "window"
	// PlanYear averages every daily file of a calendar year.
	PlanYear PlanKind = "year"
	// PlanFile uses each time step of already composited files as a period.
	PlanFile PlanKind = "file"
)

// Output selects where a run writes.
type Output string

const (
	OutputMongo  Output = "mongo"
	OutputKafka  Output = "kafka"
	OutputNetCDF Output = "netcdf"
)

// Dataset is a named preset: everything that differs between the products
// this service builds.
type Dataset struct {
	Name          string
	DataType      string
	Variables     []Variable
	Plan          PlanKind
	Radius        int
	GateWindow    int
	SourcePattern string
	SourceFiles   []string
	Output        Output
	Collection    string
	MetadataID    string
	SummaryID     string
	Sources       []SourceRef
}

// Policy returns the finalize policy for the dataset: gated when GateWindow
// is set, otherwise a simple mean.
func (d Dataset) Policy(fill float64) Policy {
	if d.GateWindow > 0 {
		return GatedMean{Fill: fill, Window: d.GateWindow}
	}
	return SimpleMean{Fill: fill}
}

// VariableNames returns the names of the tracked variables in order.
func (d Dataset) VariableNames() []string {
	names := make([]string, len(d.Variables))
	for i, v := range d.Variables {
		names[i] = v.Name
	}
	return names
}

const (
	dailyPattern     = "dt_global_twosat_phy_l4_{date}_vDT2021.nc"
	cmemsProductURL  = "https://doi.org/10.48670/moi-00148"
	cmemsProductName = "SEALEVEL_GLO_PHY_L4_MY_008_047"
)

var cmemsSource = []SourceRef{{Source: []string{"CMEMS", cmemsProductName}, URL: cmemsProductURL}}

var datasets = map[string]Dataset{
	"sla-composite": {
		Name:          "sla-composite",
		DataType:      "altimetry",
		Variables:     []Variable{{Name: "sla", Units: "m", LongName: "Sea level anomaly"}},
		Plan:          PlanWindow,
		Radius:        3,
		SourcePattern: dailyPattern,
		Output:        OutputNetCDF,
		Sources:       cmemsSource,
	},
	"sla": {
		Name:        "sla",
		DataType:    "altimetry",
		Variables:   []Variable{{Name: "sla", Units: "m", LongName: "Sea level anomaly"}},
		Plan:        PlanFile,
		GateWindow:  7,
		SourceFiles: []string{"ssh_mean_1993.nc"},
		Output:      OutputMongo,
		Collection:  "copernicusSLA",
		MetadataID:  "copernicusSLA",
		SummaryID:   "copernicusSLAsummary",
		Sources:     cmemsSource,
	},
	"velocity": {
		Name:     "velocity",
		DataType: "altimetry",
		Variables: []Variable{
			{Name: "ugos", Units: "m/s", LongName: "Absolute geostrophic velocity: zonal component"},
			{Name: "vgos", Units: "m/s", LongName: "Absolute geostrophic velocity: meridian component"},
		},
		Plan:        PlanFile,
		GateWindow:  7,
		SourceFiles: []string{"velocity_mean_1993.nc"},
		Output:      OutputMongo,
		Collection:  "copernicusVelocity",
		MetadataID:  "copernicusVelocity",
		SummaryID:   "copernicusVelocitySummary",
		Sources:     cmemsSource,
	},
	"sla-yearly": {
		Name:          "sla-yearly",
		DataType:      "altimetry",
		Variables:     []Variable{{Name: "sla", Units: "m", LongName: "Sea level anomaly"}},
		Plan:          PlanYear,
		SourcePattern: dailyPattern,
		Output:        OutputMongo,
		Collection:    "copernicusSLAyearly",
		MetadataID:    "copernicusSLAyearly",
		SummaryID:     "copernicusSLAyearlySummary",
		Sources:       cmemsSource,
	},
}

// LookupDataset returns the named preset.
func LookupDataset(name string) (Dataset, error) {
	d, ok := datasets[name]
	if !ok {
		return Dataset{}, fmt.Errorf("unknown dataset %q (known: %s)", name, strings.Join(DatasetNames(), ", "))
	}
	d.Variables = append([]Variable(nil), d.Variables...)
	d.SourceFiles = append([]string(nil), d.SourceFiles...)
	return d, nil
}

// DatasetNames lists the preset names in sorted order.
func DatasetNames() []string {
	names := make([]string, 0, len(datasets))
	for n := range datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CountVariable returns the observation count variable stored next to name
// in a composite. A single tracked variable uses the bare prefix.
func CountVariable(prefix, name string, tracked int) string {
	if tracked <= 1 {
		return prefix
	}
	return prefix + "_" + name
}

// FileRef identifies one time step of one source file.
type FileRef struct {
	ID   string
	Time int
}

// Period is one output time step and the file slices averaged into it.
type Period struct {
	Timestamp time.Time
	Files     []FileRef
}

// SourceFileName substitutes a date token into pattern.
func SourceFileName(pattern, token string) string {
	return strings.ReplaceAll(pattern, "{date}", token)
}

// WindowPeriods plans one period per center, each averaging the daily files
// of the window around it.
func WindowPeriods(ti TimeIndexer, centers []time.Time, radius int, pattern string) ([]Period, error) {
	periods := make([]Period, 0, len(centers))
	for _, c := range centers {
		tokens, err := ti.Window(c.Format(time.RFC3339), radius)
		if err != nil {
			return nil, err
		}
		periods = append(periods, Period{Timestamp: startOfDay(c), Files: dailyRefs(tokens, pattern)})
	}
	return periods, nil
}

// YearPeriods plans one period per year, stamped on January 1st, averaging
// every daily file of that year.
func YearPeriods(years []int, pattern string) []Period {
	periods := make([]Period, 0, len(years))
	for _, y := range years {
		periods = append(periods, Period{
			Timestamp: time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC),
			Files:     dailyRefs(YearDates(y), pattern),
		})
	}
	return periods
}

// Timestamps returns the timestamp of every period in order.
func Timestamps(periods []Period) []time.Time {
	ts := make([]time.Time, len(periods))
	for i, p := range periods {
		ts[i] = p.Timestamp
	}
	return ts
}

// MaxPeriodFiles returns the largest number of files any one period reads.
func MaxPeriodFiles(periods []Period) int {
	n := 0
	for _, p := range periods {
		n = max(n, len(p.Files))
	}
	return n
}

func dailyRefs(tokens []string, pattern string) []FileRef {
	refs := make([]FileRef, len(tokens))
	for i, tok := range tokens {
		refs[i] = FileRef{ID: SourceFileName(pattern, tok)}
	}
	return refs
}

// RunInfo summarizes a completed run for loaders.
type RunInfo struct {
	Grid      GridSpec
	Periods   []Period
	Variables []Variable
	Epoch     time.Time
}
