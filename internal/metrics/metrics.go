// Package metrics exposes prometheus collectors for batches, request units
// and deliveries. A nil *Collectors is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lyricgen"

type Collectors struct {
	units       *prometheus.CounterVec
	unitLatency prometheus.Histogram
	inFlight    prometheus.Gauge
	batches     *prometheus.CounterVec
	discarded   prometheus.Counter
	deliveries  *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		units: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_units_total",
			Help:      "Request units finished, by outcome.",
		}, []string{"outcome"}),
		unitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_unit_duration_seconds",
			Help:      "Latency of completion calls issued by request units.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "request_units_in_flight",
			Help:      "Request units currently waiting on the completion API.",
		}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches finished, by terminal status.",
		}, []string{"status"}),
		discarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_results_discarded_total",
			Help:      "Completions that arrived after their batch reached a terminal state.",
		}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Artifact deliveries, by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

func (c *Collectors) UnitStarted() {
	if c == nil {
		return
	}
	c.inFlight.Inc()
}

func (c *Collectors) UnitFinished(outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.inFlight.Dec()
	c.units.WithLabelValues(outcome).Inc()
	c.unitLatency.Observe(seconds)
}

func (c *Collectors) BatchFinished(status string) {
	if c == nil {
		return
	}
	c.batches.WithLabelValues(status).Inc()
}

func (c *Collectors) LateResultDiscarded() {
	if c == nil {
		return
	}
	c.discarded.Inc()
}

func (c *Collectors) Delivered(sink string, err error) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.deliveries.WithLabelValues(sink, outcome).Inc()
}
