package prometrics

import (
	"fmt"
	"net/http"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics registers every declared metric key on one registry.
type Metrics struct {
	reg        *prometheus.Registry
	counters   map[observability.MetricKey]*prometheus.CounterVec
	histograms map[observability.MetricKey]*prometheus.HistogramVec
}

// New creates a private registry with process and Go collectors plus the
// counters and histograms in observability.CounterSpecs and HistogramSpecs.
func New(namespace string) (*Metrics, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("prometrics: go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("prometrics: process collector: %w", err)
	}

	m := &Metrics{
		reg:        reg,
		counters:   make(map[observability.MetricKey]*prometheus.CounterVec),
		histograms: make(map[observability.MetricKey]*prometheus.HistogramVec),
	}
	for _, s := range observability.CounterSpecs {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: string(s.Key), Help: s.Help,
		}, s.Labels)
		if err := reg.Register(cv); err != nil {
			return nil, fmt.Errorf("prometrics: register %s: %w", s.Key, err)
		}
		m.counters[s.Key] = cv
	}
	for _, s := range observability.HistogramSpecs {
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: string(s.Key), Help: s.Help, Buckets: prometheus.DefBuckets,
		}, s.Labels)
		if err := reg.Register(hv); err != nil {
			return nil, fmt.Errorf("prometrics: register %s: %w", s.Key, err)
		}
		m.histograms[s.Key] = hv
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

func (m *Metrics) Counter(name observability.MetricKey) observability.Counter {
	if cv, ok := m.counters[name]; ok {
		return &counter{v: cv}
	}
	return observability.NopCounter()
}

func (m *Metrics) Histogram(name observability.MetricKey) observability.Histogram {
	if hv, ok := m.histograms[name]; ok {
		return &histogram{v: hv}
	}
	return observability.NopHistogram()
}

type counter struct{ v *prometheus.CounterVec }

func (c *counter) Add(d float64, labels ...observability.Label) {
	if obs, err := c.v.GetMetricWith(labelMap(labels)); err == nil {
		obs.Add(d)
	}
}

func (c *counter) Bind(labels ...observability.Label) observability.BoundCounter {
	obs, err := c.v.GetMetricWith(labelMap(labels))
	if err != nil {
		return observability.NopCounter().Bind()
	}
	return obs
}

type histogram struct{ v *prometheus.HistogramVec }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	if obs, err := h.v.GetMetricWith(labelMap(labels)); err == nil {
		obs.Observe(v)
	}
}

func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	obs, err := h.v.GetMetricWith(labelMap(labels))
	if err != nil {
		return observability.NopHistogram().Bind()
	}
	return obs
}

// Label sets that do not match the registered keys are rejected by
// GetMetricWith and the sample is skipped.
func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}
