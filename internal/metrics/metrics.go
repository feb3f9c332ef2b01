// Package metrics exports reaction statistics in the Prometheus text format.
// Experiments are batch jobs, so metrics are written to a textfile for the
// node exporter rather than served over HTTP.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leapstack-labs/alchemy/internal/soup"
)

// Metrics holds the collectors of one process. Each instance has its own
// registry, so tests and concurrent experiments never share state.
type Metrics struct {
	reg *prometheus.Registry

	collisions  *prometheus.CounterVec
	population  *prometheus.GaugeVec
	entropy     *prometheus.GaugeVec
	runDuration *prometheus.HistogramVec
}

// New registers the alchemy collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		collisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alchemy_collisions_total",
			Help: "Reaction attempts by outcome",
		}, []string{"experiment", "outcome"}),
		population: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alchemy_population_size",
			Help: "Soup size at the last poll",
		}, []string{"experiment", "replicate"}),
		entropy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alchemy_population_entropy_bits",
			Help: "Shannon entropy of the soup at the last poll",
		}, []string{"experiment", "replicate"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alchemy_run_duration_seconds",
			Help:    "Wall time of one replicate",
			Buckets: []float64{0.01, 0.1, 1, 10, 60, 600, 3600},
		}, []string{"experiment"}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// AddStats adds the outcome tally of a finished replicate.
func (m *Metrics) AddStats(experiment string, st soup.Stats) {
	m.collisions.WithLabelValues(experiment, soup.OutcomeName(nil)).Add(float64(st.Productive))
	for kind, n := range st.Rejected {
		m.collisions.WithLabelValues(experiment, kind.String()).Add(float64(n))
	}
}

// SetPopulation records the size and entropy seen at a poll.
func (m *Metrics) SetPopulation(experiment string, replicate, size int, entropy float64) {
	r := strconv.Itoa(replicate)
	m.population.WithLabelValues(experiment, r).Set(float64(size))
	m.entropy.WithLabelValues(experiment, r).Set(entropy)
}

// ObserveRun records the wall time of a replicate.
func (m *Metrics) ObserveRun(experiment string, d time.Duration) {
	m.runDuration.WithLabelValues(experiment).Observe(d.Seconds())
}

// WriteTextfile writes every metric to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
