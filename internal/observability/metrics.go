package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "altimetry_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for a run.
type Metrics struct {
	RowsProcessed   prometheus.Counter
	SourceReads     prometheus.Counter
	RecordsEmitted  prometheus.Counter
	CellsDropped    prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Per-row and per-batch timings.
	RowDuration       prometheus.Histogram
	SinkBatches       *prometheus.CounterVec // labels: collection={data,metadata,summary}
	SinkBatchDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Total latitude rows aggregated and handed to the loader.",
		}),
		SourceReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_reads_total",
			Help:      "Total row reads from gridded source files.",
		}),
		RecordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Total location records written to the sink.",
		}),
		CellsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_dropped_total",
			Help:      "Total grid cells skipped because every value was missing.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is active, 0 otherwise.",
		}),
		RowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_duration_seconds",
			Help:      "Duration of reading, aggregating, and loading one latitude row.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SinkBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_batches_total",
			Help:      "Sink write calls by collection.",
		}, []string{"collection"}),
		SinkBatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_batch_duration_seconds",
			Help:      "Duration of a single sink write call.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"collection"}),
	}

	prometheus.MustRegister(
		m.RowsProcessed,
		m.SourceReads,
		m.RecordsEmitted,
		m.CellsDropped,
		m.PipelineRunning,
		m.RowDuration,
		m.SinkBatches,
		m.SinkBatchDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RowsProcessed:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "rows_processed_total"}),
		SourceReads:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "source_reads_total"}),
		RecordsEmitted:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "records_emitted_total"}),
		CellsDropped:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "cells_dropped_total"}),
		PipelineRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		RowDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "row_duration_seconds"}),
		SinkBatches:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "sink_batches_total"}, []string{"collection"}),
		SinkBatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "sink_batch_duration_seconds"}, []string{"collection"}),
	}
}
