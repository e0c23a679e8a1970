package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/polyga/internal/controller"
)

// Metrics exposes session progress to Prometheus on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	generation   *prometheus.GaugeVec
	bestFitness  *prometheus.GaugeVec
	stability    *prometheus.GaugeVec
	generations  prometheus.Counter
	convergences prometheus.Counter
	sessions     prometheus.Gauge
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "polyga_session_generation",
			Help: "Current generation of each session.",
		}, []string{"session_id"}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "polyga_session_best_fitness",
			Help: "Best fitness value of each session under its goal.",
		}, []string{"session_id", "goal"}),
		stability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "polyga_session_stability",
			Help: "Consecutive steps without a change in best fitness.",
		}, []string{"session_id"}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyga_generations_total",
			Help: "Generations computed across all sessions.",
		}),
		convergences: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyga_convergences_total",
			Help: "Sessions that reached convergence.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyga_sessions",
			Help: "Number of live sessions.",
		}),
	}
	m.registry.MustRegister(m.generation, m.bestFitness, m.stability, m.generations, m.convergences, m.sessions)
	return m
}

// Observe records a snapshot. advanced is the number of generations since
// the previous snapshot of the same session.
func (m *Metrics) Observe(id string, snap controller.Snapshot, advanced int, converged bool) {
	m.generation.WithLabelValues(id).Set(float64(snap.Generation))
	m.stability.WithLabelValues(id).Set(float64(snap.Stability))
	if snap.Best != nil {
		m.bestFitness.DeletePartialMatch(prometheus.Labels{"session_id": id})
		m.bestFitness.WithLabelValues(id, string(snap.Goal)).Set(snap.Best.Y)
	}
	if advanced > 0 {
		m.generations.Add(float64(advanced))
	}
	if converged {
		m.convergences.Inc()
	}
}

// Forget drops a session's series.
func (m *Metrics) Forget(id string) {
	m.generation.DeleteLabelValues(id)
	m.stability.DeleteLabelValues(id)
	m.bestFitness.DeletePartialMatch(prometheus.Labels{"session_id": id})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
