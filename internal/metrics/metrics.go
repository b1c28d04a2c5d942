// Package metrics exports dataset state changes as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
)

const namespace = "reprolab"

// #region collector
// Collector is a dataset.Observer backed by Prometheus collectors. One
// Collector is shared by every dataset of a process.
type Collector struct {
	// TasksTotal counts committed tasks. Labels: kind
	TasksTotal *prometheus.CounterVec
	// UndoTotal counts successful undos.
	UndoTotal prometheus.Counter
	// RedoTotal counts successful redos.
	RedoTotal prometheus.Counter
	// ReplayedSteps observes how many steps one reconstruction replayed.
	ReplayedSteps prometheus.Histogram
	// ReconstructionFailures counts records whose type could not be resolved.
	// Labels: kind
	ReconstructionFailures *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks committed to dataset logs by kind.",
		}, []string{"kind"}),
		UndoTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undo_total",
			Help:      "Processing steps undone.",
		}),
		RedoTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redo_total",
			Help:      "Processing steps redone.",
		}),
		ReplayedSteps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replayed_steps",
			Help:      "Processing steps replayed per reconstruction.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		ReconstructionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconstruction_failures_total",
			Help:      "Records that could not be turned back into operations.",
		}, []string{"kind"}),
	}
}
// #endregion collector

// #region observer
func (c *Collector) TaskCommitted(kind dataset.TaskKind, _ string) {
	c.TasksTotal.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) Undone() { c.UndoTotal.Inc() }

func (c *Collector) Redone() { c.RedoTotal.Inc() }

func (c *Collector) Replayed(steps int) { c.ReplayedSteps.Observe(float64(steps)) }

func (c *Collector) ReconstructionFailed(kind dataset.TaskKind, _ string) {
	c.ReconstructionFailures.WithLabelValues(string(kind)).Inc()
}

var _ dataset.Observer = (*Collector)(nil)
// #endregion observer

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
