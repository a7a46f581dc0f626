package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sla", cfg.Dataset.Name)
	assert.Equal(t, domain.PlanFile, cfg.Plan)
	assert.Equal(t, []string{"ssh_mean_1993.nc"}, cfg.SourceFiles)
	assert.Equal(t, "data", cfg.SourceDir)
	assert.Equal(t, []string{"sla"}, cfg.Variables)
	assert.Equal(t, 7, cfg.GateWindow)
	assert.Equal(t, "nobs", cfg.CountPrefix)
	assert.Equal(t, 6, cfg.Precision)
	assert.Equal(t, domain.DefaultEpoch, cfg.Epoch)
	assert.Equal(t, 16, cfg.OpenFiles)
	assert.Zero(t, cfg.RowStart)
	assert.Zero(t, cfg.RowEnd)

	assert.Equal(t, "BASIN_TAG", cfg.BasinVariable)
	assert.Equal(t, -77.5, cfg.BasinLat0)
	assert.Equal(t, -179.5, cfg.BasinLon0)
	assert.Equal(t, 1.0, cfg.BasinSpacing)

	assert.Equal(t, domain.OutputMongo, cfg.Output)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "argo", cfg.MongoDatabase)
	assert.Equal(t, 30*time.Second, cfg.MongoTimeout)
	assert.Equal(t, "copernicusSLA", cfg.CollectionData)
	assert.Equal(t, "timeseriesMeta", cfg.CollectionMetadata)
	assert.Equal(t, "summaries", cfg.CollectionSummary)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, 50, cfg.BatchSize)

	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, domain.GatedMean{Fill: domain.DefaultFill, Window: 7}, cfg.Policy())
}

func TestLoad_CompositeDataset(t *testing.T) {
	t.Setenv("DATASET", "sla-composite")
	t.Setenv("PERIOD_START", "1993-01-10T00:00:00.000Z")
	t.Setenv("PERIOD_END", "1993-01-24")
	t.Setenv("COMPOSITE_PATH", "/tmp/xx_ssh_mean_1993.nc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, domain.PlanWindow, cfg.Plan)
	assert.Equal(t, domain.OutputNetCDF, cfg.Output)
	assert.Equal(t, 3, cfg.WindowRadius)
	assert.Equal(t, "dt_global_twosat_phy_l4_{date}_vDT2021.nc", cfg.SourcePattern)
	assert.Equal(t, time.Date(1993, 1, 10, 0, 0, 0, 0, time.UTC), cfg.PeriodStart)
	assert.Equal(t, time.Date(1993, 1, 24, 0, 0, 0, 0, time.UTC), cfg.PeriodEnd)
	assert.Equal(t, "/tmp/xx_ssh_mean_1993.nc", cfg.CompositePath)
	assert.Equal(t, domain.SimpleMean{Fill: domain.DefaultFill}, cfg.Policy())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATASET", "velocity")
	t.Setenv("SOURCE_DIR", "/data/cmems")
	t.Setenv("SOURCE_FILES", "velocity_mean_1993.nc, velocity_mean_1994.nc")
	t.Setenv("OUTPUT", "kafka")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC_PREFIX", "argovis")
	t.Setenv("ROWS", "100:200")
	t.Setenv("ROUND_PRECISION", "4")
	t.Setenv("OPEN_FILES", "4")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/cmems", cfg.SourceDir)
	assert.Equal(t, []string{"velocity_mean_1993.nc", "velocity_mean_1994.nc"}, cfg.SourceFiles)
	assert.Equal(t, []string{"ugos", "vgos"}, cfg.Variables)
	assert.Equal(t, domain.OutputKafka, cfg.Output)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "argovis", cfg.KafkaTopicPrefix)
	assert.Equal(t, 100, cfg.RowStart)
	assert.Equal(t, 200, cfg.RowEnd)
	assert.Equal(t, 4, cfg.Precision)
	assert.Equal(t, 4, cfg.OpenFiles)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestLoad_Corrections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sla": [0.01, -0.02]}`), 0o600))
	t.Setenv("CORRECTIONS_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[string][]float64{"sla": {0.01, -0.02}}, cfg.Corrections)
}

func TestLoad_CorrectionsRejectUntrackedVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"adt": [1]}`), 0o600))
	t.Setenv("CORRECTIONS_PATH", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `untracked variable "adt"`)
}

func TestLoad_GateWindowOverridesPreset(t *testing.T) {
	t.Setenv("GATE_WINDOW", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, domain.SimpleMean{Fill: domain.DefaultFill}, cfg.Policy())
}

func TestConfig_TrackedVariables(t *testing.T) {
	t.Setenv("DATASET", "velocity")
	t.Setenv("VARIABLES", "ugos,adt")

	cfg, err := Load()
	require.NoError(t, err)

	vars := cfg.TrackedVariables()
	require.Len(t, vars, 2)
	assert.Equal(t, "m/s", vars[0].Units)
	assert.Equal(t, domain.Variable{Name: "adt"}, vars[1])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown dataset", map[string]string{"DATASET": "chlorophyll"}, "DATASET"},
		{"invalid shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "not-a-duration"}, "SHUTDOWN_TIMEOUT"},
		{"negative shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, "SHUTDOWN_TIMEOUT"},
		{"zero batch size", map[string]string{"BATCH_SIZE": "0"}, "BATCH_SIZE"},
		{"batch size too large", map[string]string{"BATCH_SIZE": "9999"}, "BATCH_SIZE"},
		{"bad plan", map[string]string{"PLAN": "monthly"}, "PLAN"},
		{"bad output", map[string]string{"OUTPUT": "postgres"}, "OUTPUT"},
		{"empty file list", map[string]string{"SOURCE_FILES": " , "}, "SOURCE_FILES"},
		{"bad precision", map[string]string{"ROUND_PRECISION": "six"}, "ROUND_PRECISION"},
		{"bad epoch", map[string]string{"EPOCH": "1993/01/01"}, "EPOCH"},
		{"bad basin origin", map[string]string{"BASIN_LAT0": "south"}, "BASIN_LAT0"},
		{"zero open files", map[string]string{"OPEN_FILES": "0"}, "OPEN_FILES"},
		{"rows without colon", map[string]string{"ROWS": "100"}, "ROWS"},
		{"descending rows", map[string]string{"ROWS": "200:100"}, "ROWS"},
		{"bad mongo timeout", map[string]string{"MONGODB_TIMEOUT": "0s"}, "MONGODB_TIMEOUT"},
		{"missing corrections file", map[string]string{"CORRECTIONS_PATH": "/nonexistent/corrections.json"}, "CORRECTIONS_PATH"},
		{"bad years", map[string]string{"DATASET": "sla-yearly", "PERIOD_YEARS": "1993,x"}, "PERIOD_YEARS"},
		{
			"window pattern without date",
			map[string]string{"DATASET": "sla-composite", "SOURCE_PATTERN": "daily.nc"},
			"SOURCE_PATTERN",
		},
		{
			"window end before start",
			map[string]string{"DATASET": "sla-composite", "PERIOD_START": "1993-02-01", "PERIOD_END": "1993-01-01"},
			"PERIOD_END",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
