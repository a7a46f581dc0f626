package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/argovis/altimetry-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all run settings, populated from environment variables.
// Dataset presets supply defaults that individual variables override.
type Config struct {
	Dataset domain.Dataset

	// Sources and period planning.
	SourceDir      string
	SourcePattern  string
	SourceFiles    []string
	Plan           domain.PlanKind
	PeriodStart    time.Time
	PeriodEnd      time.Time
	PeriodStepDays int
	PeriodYears    []int
	WindowRadius   int
	GateWindow     int
	Variables      []string
	CountPrefix    string
	Precision      int
	Corrections    map[string][]float64
	Epoch          time.Time
	RowStart       int
	RowEnd         int
	OpenFiles      int

	// Basin mask.
	BasinPath     string
	BasinVariable string
	BasinLat0     float64
	BasinLon0     float64
	BasinSpacing  float64

	// Output.
	Output             domain.Output
	MongoURI           string
	MongoDatabase      string
	MongoTimeout       time.Duration
	CollectionData     string
	CollectionMetadata string
	CollectionSummary  string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	CompositePath      string
	BatchSize          int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ProgressEvery   int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	ds, err := domain.LookupDataset(sharedcfg.EnvOrDefault("DATASET", "sla"))
	if err != nil {
		return nil, fmt.Errorf("DATASET: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		Dataset:        ds,
		SourceDir:      sharedcfg.EnvOrDefault("SOURCE_DIR", "data"),
		SourcePattern:  sharedcfg.EnvOrDefault("SOURCE_PATTERN", ds.SourcePattern),
		SourceFiles:    splitList(sharedcfg.EnvOrDefault("SOURCE_FILES", strings.Join(ds.SourceFiles, ","))),
		Plan:           domain.PlanKind(sharedcfg.EnvOrDefault("PLAN", string(ds.Plan))),
		PeriodStart:    p.date("PERIOD_START", "1993-01-10"),
		PeriodEnd:      p.date("PERIOD_END", "1993-12-26"),
		PeriodStepDays: p.integer("PERIOD_STEP_DAYS", 7),
		PeriodYears:    p.integers("PERIOD_YEARS", "1993"),
		WindowRadius:   p.integer("WINDOW_RADIUS", ds.Radius),
		GateWindow:     p.integer("GATE_WINDOW", ds.GateWindow),
		Variables:      splitList(sharedcfg.EnvOrDefault("VARIABLES", strings.Join(ds.VariableNames(), ","))),
		CountPrefix:    sharedcfg.EnvOrDefault("COUNT_VARIABLE_PREFIX", "nobs"),
		Precision:      p.integer("ROUND_PRECISION", 6),
		Corrections:    p.corrections("CORRECTIONS_PATH"),
		Epoch:          p.date("EPOCH", domain.DefaultEpoch.Format(time.DateOnly)),
		OpenFiles:      p.integer("OPEN_FILES", 16),

		BasinPath:     sharedcfg.EnvOrDefault("BASIN_PATH", "parameters/basinmask_01.nc"),
		BasinVariable: sharedcfg.EnvOrDefault("BASIN_VARIABLE", "BASIN_TAG"),
		BasinLat0:     p.number("BASIN_LAT0", domain.DefaultBasinLat0),
		BasinLon0:     p.number("BASIN_LON0", domain.DefaultBasinLon0),
		BasinSpacing:  p.number("BASIN_SPACING", domain.DefaultBasinSpacing),

		Output:             domain.Output(sharedcfg.EnvOrDefault("OUTPUT", string(ds.Output))),
		MongoURI:           sharedcfg.EnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:      sharedcfg.EnvOrDefault("MONGODB_DATABASE", "argo"),
		MongoTimeout:       p.duration("MONGODB_TIMEOUT", "30s"),
		CollectionData:     sharedcfg.EnvOrDefault("COLLECTION_DATA", ds.Collection),
		CollectionMetadata: sharedcfg.EnvOrDefault("COLLECTION_METADATA", "timeseriesMeta"),
		CollectionSummary:  sharedcfg.EnvOrDefault("COLLECTION_SUMMARY", "summaries"),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopicPrefix:   sharedcfg.EnvOrDefault("KAFKA_TOPIC_PREFIX", "altimetry"),
		CompositePath:      sharedcfg.EnvOrDefault("COMPOSITE_PATH", "data/ssh_mean_1993.nc"),
		BatchSize:          batchSize,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		ProgressEvery:   p.integer("PROGRESS_EVERY", 36),
	}
	cfg.RowStart, cfg.RowEnd = p.rows("ROWS")

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Plan {
	case domain.PlanWindow:
		if c.SourcePattern == "" || !strings.Contains(c.SourcePattern, "{date}") {
			return errors.New("SOURCE_PATTERN must contain {date} for the window plan")
		}
		if c.PeriodEnd.Before(c.PeriodStart) {
			return errors.New("PERIOD_END is before PERIOD_START")
		}
		if c.PeriodStepDays <= 0 {
			return errors.New("PERIOD_STEP_DAYS must be positive")
		}
		if c.WindowRadius < 0 {
			return errors.New("WINDOW_RADIUS must not be negative")
		}
	case domain.PlanYear:
		if c.SourcePattern == "" || !strings.Contains(c.SourcePattern, "{date}") {
			return errors.New("SOURCE_PATTERN must contain {date} for the year plan")
		}
		if len(c.PeriodYears) == 0 {
			return errors.New("PERIOD_YEARS is required for the year plan")
		}
	case domain.PlanFile:
		if len(c.SourceFiles) == 0 {
			return errors.New("SOURCE_FILES is required for the file plan")
		}
	default:
		return fmt.Errorf("invalid PLAN %q", c.Plan)
	}

	if len(c.Variables) == 0 {
		return errors.New("VARIABLES is required")
	}
	for name := range c.Corrections {
		if !slices.Contains(c.Variables, name) {
			return fmt.Errorf("CORRECTIONS_PATH names untracked variable %q", name)
		}
	}
	if c.GateWindow < 0 {
		return errors.New("GATE_WINDOW must not be negative")
	}
	if c.OpenFiles <= 0 {
		return errors.New("OPEN_FILES must be positive")
	}
	if c.BasinSpacing <= 0 {
		return errors.New("BASIN_SPACING must be positive")
	}
	if c.RowEnd != 0 && c.RowEnd <= c.RowStart {
		return errors.New("ROWS must be an ascending start:end range")
	}

	switch c.Output {
	case domain.OutputMongo:
		if c.CollectionData == "" {
			return errors.New("COLLECTION_DATA is required")
		}
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required")
		}
		if c.MongoDatabase == "" {
			return errors.New("MONGODB_DATABASE is required")
		}
	case domain.OutputKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
	case domain.OutputNetCDF:
		if c.CompositePath == "" {
			return errors.New("COMPOSITE_PATH is required")
		}
	default:
		return fmt.Errorf("invalid OUTPUT %q", c.Output)
	}
	if c.Output != domain.OutputNetCDF && c.BasinPath == "" {
		return errors.New("BASIN_PATH is required")
	}
	return nil
}

// TrackedVariables returns the configured variables, with units and long
// names taken from the dataset preset where it defines them.
func (c *Config) TrackedVariables() []domain.Variable {
	known := make(map[string]domain.Variable, len(c.Dataset.Variables))
	for _, v := range c.Dataset.Variables {
		known[v.Name] = v
	}
	vars := make([]domain.Variable, len(c.Variables))
	for i, name := range c.Variables {
		v, ok := known[name]
		if !ok {
			v = domain.Variable{Name: name}
		}
		vars[i] = v
	}
	return vars
}

// Policy returns the dataset's finalize policy with GATE_WINDOW applied.
func (c *Config) Policy() domain.Policy {
	ds := c.Dataset
	ds.GateWindow = c.GateWindow
	return ds.Policy(domain.DefaultFill)
}

// parser collects the first parse error so Load can report it after
// building the whole Config.
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (p *parser) integer(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) integers(key, def string) []int {
	var out []int
	for _, s := range splitList(sharedcfg.EnvOrDefault(key, def)) {
		n, err := strconv.Atoi(s)
		if err != nil {
			p.fail(key, err)
			return nil
		}
		out = append(out, n)
	}
	return out
}

func (p *parser) number(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) duration(key, def string) time.Duration {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		p.fail(key, err)
		return 0
	}
	if d <= 0 {
		p.fail(key, errors.New("must be positive"))
	}
	return d
}

func (p *parser) date(key, def string) time.Time {
	t, err := domain.ParseDate(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		p.fail(key, err)
	}
	return t
}

// corrections reads a JSON object of per-variable, per-period scalars from
// the file named by key. An unset key means no corrections.
func (p *parser) corrections(key string) map[string][]float64 {
	path := strings.TrimSpace(os.Getenv(key))
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		p.fail(key, err)
		return nil
	}
	var out map[string][]float64
	if err := json.Unmarshal(data, &out); err != nil {
		p.fail(key, err)
		return nil
	}
	return out
}

// rows parses "start:end" latitude row bounds; end 0 means every row.
func (p *parser) rows(key string) (start, end int) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, 0
	}
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		p.fail(key, errors.New("want start:end"))
		return 0, 0
	}
	var err error
	if start, err = strconv.Atoi(lo); err != nil || start < 0 {
		p.fail(key, fmt.Errorf("bad start %q", lo))
		return 0, 0
	}
	if end, err = strconv.Atoi(hi); err != nil {
		p.fail(key, fmt.Errorf("bad end %q", hi))
		return 0, 0
	}
	return start, end
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
