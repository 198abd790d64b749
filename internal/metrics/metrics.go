package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all route geocoder metrics
const namespace = "routegeo"

// Registry is the process-wide registry shared by the applier and the API.
var Registry = prometheus.NewRegistry()

// Applier metrics
var (
	// ReferenceEntries is the number of distinct names in the last built index
	ReferenceEntries = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reference_entries",
			Help:      "Distinct stop names in the reference index",
		},
	)

	// RecordsTotal counts stored records by outcome (enriched, skipped)
	RecordsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Stored records seen by the applier",
		},
		[]string{"outcome"},
	)

	// StopsTotal counts enriched stops by lookup result (hit, miss)
	StopsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stops_total",
			Help:      "Stops enriched, by lookup result",
		},
		[]string{"result"},
	)

	// BatchesTotal counts upsert batches by status (success, error, dry_run)
	BatchesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Upsert batches attempted, by status",
		},
		[]string{"status"},
	)

	// BatchDuration observes the latency of a single batch upsert
	BatchDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of one batch upsert",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RunDuration is the wall time of the last run
	RunDuration = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last applier run",
		},
	)

	// LastRunSuccess is the unix time of the last successful run
	LastRunSuccess = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last successful applier run",
		},
	)

	// RunsTotal counts applier runs by result (success, config_error, source_error, persist_error, error)
	RunsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Applier runs, by result",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
