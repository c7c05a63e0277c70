package metrics

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/rolloutd/agent/pkg/errs"
)

var (
	StepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_agent_steps_total",
			Help: "Total number of steps executed, by outcome.",
		},
		[]string{"outcome"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_agent_errors_total",
			Help: "Total number of errors encountered, by kind.",
		},
		[]string{"kind"},
	)

	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rollout_agent_fetch_duration_seconds",
			Help:    "Time taken to fetch a step or module over HTTP.",
			Buckets: prometheus.DefBuckets,
		},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rollout_agent_run_duration_seconds",
			Help:    "Total wall-clock time for one agent run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

// Registry collects this package's metrics in isolation, so a textfile
// write never picks up unrelated process-default collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(StepsTotal, ErrorsTotal, FetchDuration, RunDuration)
}

// WriteTextfile renders Registry to the Prometheus text exposition
// format and writes it atomically to path, for a node_exporter
// textfile-collector drop (DOMAIN STACK). Written once, at
// CONFIG_WRITTEN.
func WriteTextfile(path string) error {
	families, err := Registry.Gather()
	if err != nil {
		return &errs.LocalFileError{Path: path, Op: "gather metrics", Err: err}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &errs.LocalFileError{Path: tmp, Op: "create", Err: err}
	}

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			f.Close()
			os.Remove(tmp)
			return &errs.LocalFileError{Path: tmp, Op: "encode", Err: err}
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &errs.LocalFileError{Path: tmp, Op: "close", Err: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &errs.LocalFileError{Path: path, Op: "rename", Err: err}
	}
	return nil
}
