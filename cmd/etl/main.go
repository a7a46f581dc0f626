package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/argovis/altimetry-etl/internal/adapter/basinmask"
	"github.com/argovis/altimetry-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/argovis/altimetry-etl/internal/adapter/kafka"
	mongoadapter "github.com/argovis/altimetry-etl/internal/adapter/mongo"
	"github.com/argovis/altimetry-etl/internal/adapter/netcdf"
	"github.com/argovis/altimetry-etl/internal/config"
	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/observability"
	"github.com/argovis/altimetry-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger, metrics)
	stop()
	if err != nil {
		logger.Error("run failed", "dataset", cfg.Dataset.Name, "error", err)
		os.Exit(1)
	}
	logger.Info("run complete", "dataset", cfg.Dataset.Name)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	store := netcdf.NewStore(cfg.SourceDir, cfg.OpenFiles, logger)
	defer func() { _ = store.Close() }()

	ti := domain.NewTimeIndexer(cfg.Epoch)
	periods, err := planPeriods(ctx, cfg, store, ti)
	if err != nil {
		return fmt.Errorf("plan periods: %w", err)
	}
	openFiles := max(cfg.OpenFiles, domain.MaxPeriodFiles(periods))
	store.Reserve(openFiles)
	logger.Info("periods planned", "plan", cfg.Plan, "periods", len(periods), "open_files", openFiles)

	vars := cfg.TrackedVariables()
	loader, closeLoader, err := newLoader(ctx, cfg, vars, logger, metrics)
	if err != nil {
		return err
	}
	defer closeLoader()

	opts := pipeline.Options{
		Variables:     vars,
		Periods:       periods,
		Policy:        cfg.Policy(),
		Epoch:         cfg.Epoch,
		RowStart:      cfg.RowStart,
		RowEnd:        cfg.RowEnd,
		ProgressEvery: cfg.ProgressEvery,
	}
	if cfg.Plan == domain.PlanFile {
		opts.CountPrefix = cfg.CountPrefix
	}
	p := pipeline.New(store, loader, logger, metrics, opts)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	return p.Run(ctx)
}

func planPeriods(ctx context.Context, cfg *config.Config, source pipeline.Source, ti domain.TimeIndexer) ([]domain.Period, error) {
	switch cfg.Plan {
	case domain.PlanWindow:
		centers := domain.WeeklyCenters(cfg.PeriodStart, cfg.PeriodEnd, cfg.PeriodStepDays)
		return domain.WindowPeriods(ti, centers, cfg.WindowRadius, cfg.SourcePattern)
	case domain.PlanYear:
		return domain.YearPeriods(cfg.PeriodYears, cfg.SourcePattern), nil
	case domain.PlanFile:
		return pipeline.PlanFiles(ctx, source, cfg.SourceFiles, ti)
	default:
		return nil, fmt.Errorf("unknown plan %q", cfg.Plan)
	}
}

// newLoader builds the loader for the configured output and a function that
// releases it.
func newLoader(ctx context.Context, cfg *config.Config, vars []domain.Variable, logger *slog.Logger, metrics *observability.Metrics) (pipeline.Loader, func(), error) {
	if cfg.Output == domain.OutputNetCDF {
		w := netcdf.NewCompositeWriter(cfg.CompositePath, vars, cfg.CountPrefix, domain.DefaultFill, logger)
		return w, func() {
			if err := w.Close(); err != nil {
				logger.Error("composite close error", "error", err)
			}
		}, nil
	}

	basins, err := basinmask.Load(cfg.BasinPath, basinmask.Options{
		Variable: cfg.BasinVariable,
		Lat0:     cfg.BasinLat0,
		Lon0:     cfg.BasinLon0,
		Spacing:  cfg.BasinSpacing,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("basin mask loaded", "path", cfg.BasinPath, "lat", basins.NLat, "lon", basins.NLon)

	docOpts := pipeline.DocumentOptions{
		BatchSize:   cfg.BatchSize,
		Precision:   cfg.Precision,
		DataType:    cfg.Dataset.DataType,
		MetadataID:  cfg.Dataset.MetadataID,
		SummaryID:   cfg.Dataset.SummaryID,
		Sources:     cfg.Dataset.Sources,
		Corrections: cfg.Corrections,
	}

	switch cfg.Output {
	case domain.OutputKafka:
		w := kafkaadapter.NewWriter(cfg, logger)
		loader := pipeline.NewDocumentLoader(w, basins, logger, metrics, docOpts)
		return loader, func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}, nil
	case domain.OutputMongo:
		sink, err := mongoadapter.NewSink(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		loader := pipeline.NewDocumentLoader(sink, basins, logger, metrics, docOpts)
		return loader, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := sink.Close(closeCtx); err != nil {
				logger.Error("mongo disconnect error", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown output %q", cfg.Output)
	}
}
