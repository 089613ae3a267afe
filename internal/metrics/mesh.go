package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Mesh reconciliation Prometheus metrics. Standalone package to avoid
// import cycles between the reconcile core and the HTTP surface.

var (
	RunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pgmesh_runs_total",
		Help: "Passes de reconciliación ejecutados",
	})

	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pgmesh_run_duration_seconds",
		Help:    "Duración de cada pass de reconciliación",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	EdgesDesired = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pgmesh_edges_desired",
		Help: "Tamaño del desired edge set: N*(N-1)",
	})

	EdgesConverged = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pgmesh_edges_converged",
		Help: "Edges activos y correctos al final del último pass",
	})

	EdgesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pgmesh_edges_created_total",
		Help: "Suscripciones creadas (incluye recreaciones por repair)",
	})

	EdgesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pgmesh_edges_dropped_total",
		Help: "Suscripciones dropeadas por stale target o status down",
	})

	EdgesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pgmesh_edges_skipped_total",
		Help: "Edges salteados en un pass por fallo transitorio",
	})

	NodesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pgmesh_nodes_created_total",
		Help: "Nodos registrados en el fabric",
	})

	NodesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pgmesh_nodes_dropped_total",
		Help: "Nodos dropeados por no estar en el desired set",
	})
)

// RegisterMesh registers the mesh metrics on the given registry (or default if nil).
func RegisterMesh(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		RunsTotal, RunDuration,
		EdgesDesired, EdgesConverged,
		EdgesCreated, EdgesDropped, EdgesSkipped,
		NodesCreated, NodesDropped,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
