// Package metrics provides Prometheus instrumentation for cloudfs pipelines.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels
const (
	OpCopy    = "copy"
	OpCompare = "compare"
)

// Outcome labels
const (
	OutcomeCopied     = "copied"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
	OutcomeIdentical  = "identical"
	OutcomeDifferent  = "different"
	OutcomeSourceOnly = "source_only"
)

// Pipeline holds the collectors updated by the copy and compare pipelines.
// A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	FilesTotal      *prometheus.CounterVec
	BytesCopied     prometheus.Counter
	FileDuration    *prometheus.HistogramVec
	DiscoveryErrors *prometheus.CounterVec
}

// New creates the pipeline collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloudfs_files_total",
				Help: "Total number of files processed by a pipeline",
			},
			[]string{"op", "outcome"},
		),
		BytesCopied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cloudfs_bytes_copied_total",
				Help: "Total number of bytes streamed into destination backends",
			},
		),
		FileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cloudfs_file_duration_seconds",
				Help:    "Time spent processing a single file",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		DiscoveryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloudfs_discovery_errors_total",
				Help: "Total number of traversals that stopped on an error",
			},
			[]string{"op"},
		),
	}

	for _, c := range []prometheus.Collector{p.FilesTotal, p.BytesCopied, p.FileDuration, p.DiscoveryErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveFile records one processed file.
func (p *Pipeline) ObserveFile(op, outcome string, started time.Time) {
	if p == nil {
		return
	}
	p.FilesTotal.WithLabelValues(op, outcome).Inc()
	p.FileDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// AddBytes records bytes written to a destination.
func (p *Pipeline) AddBytes(n int64) {
	if p == nil || n <= 0 {
		return
	}
	p.BytesCopied.Add(float64(n))
}

// DiscoveryFailed records a traversal that stopped on an error.
func (p *Pipeline) DiscoveryFailed(op string) {
	if p == nil {
		return
	}
	p.DiscoveryErrors.WithLabelValues(op).Inc()
}
