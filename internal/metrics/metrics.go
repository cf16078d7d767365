// Package metrics records statement timings and save outcomes with
// Prometheus collectors. Recorder implements record.Observer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "activerow"

// Statement statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder holds the collectors. A nil *Recorder records nothing.
type Recorder struct {
	statements *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	saves      *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg. A nil reg
// leaves the collectors unregistered.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Statements executed, by table, shape and status.",
		}, []string{"table", "shape", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_duration_seconds",
			Help:      "Statement round-trip time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "shape"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_saves_total",
			Help:      "Row save cycles, by resource and outcome.",
		}, []string{"resource", "outcome"}),
	}
	if reg == nil {
		return r, nil
	}
	for _, c := range []prometheus.Collector{r.statements, r.durations, r.saves} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveStatement records one executed statement.
func (r *Recorder) ObserveStatement(table, shape string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	r.statements.WithLabelValues(table, shape, status).Inc()
	r.durations.WithLabelValues(table, shape).Observe(elapsed.Seconds())
}

// ObserveSave records the outcome of one save cycle.
func (r *Recorder) ObserveSave(resource, outcome string) {
	if r == nil {
		return
	}
	r.saves.WithLabelValues(resource, outcome).Inc()
}
