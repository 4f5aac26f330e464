package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LinesRead counts input lines consumed by the parser
	LinesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topgrep_lines_read_total",
		Help: "Input lines consumed by the snapshot parser",
	})

	// SnapshotsParsed counts complete snapshots emitted
	SnapshotsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topgrep_snapshots_parsed_total",
		Help: "Complete snapshots emitted by the parser",
	})

	// ProcessRecords counts process rows across all snapshots
	ProcessRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topgrep_process_records_total",
		Help: "Process rows parsed across all snapshots",
	})

	// StructuralMismatches counts rows whose token count differed from the header
	StructuralMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topgrep_structural_mismatches_total",
		Help: "Rows whose field count did not match the column header",
	})

	// TruncatedSnapshots counts snapshots discarded because input ended early, by phase
	TruncatedSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topgrep_truncated_snapshots_total",
		Help: "Snapshots discarded because input ended before the process table",
	}, []string{"phase"})

	// LastSnapshotProcesses is the row count of the latest snapshot
	LastSnapshotProcesses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topgrep_last_snapshot_processes",
		Help: "Number of process rows in the most recent snapshot",
	})

	// ConfigReloads counts successful SIGHUP reloads
	ConfigReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topgrep_config_reloads_total",
		Help: "Successful configuration reloads",
	})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer exposes /metrics on addr. It blocks like http.ListenAndServe.
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
