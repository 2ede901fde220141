package telemetry

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements Metrics by lazily registering a Prometheus
// gauge, counter, or histogram the first time a given metric name is
// observed, then routing subsequent calls with the same name and label set
// to the same vector. This trades the teacher's fixed, hand-declared metric
// set (inflight_nodes, queue_depth, step_latency_ms, ...) for a dynamic one,
// since meshrun's Metrics interface is shared across the workflow runner,
// the actor runtime, and the handoff coordinator, each with its own metric
// names.
//
// All metrics are namespaced "meshrun_".
type PrometheusMetrics struct {
	registry prometheus.Registerer
	factory  promauto.Factory

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics registers metrics against the given registry. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for test isolation.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		registry:   registry,
		factory:    promauto.With(registry),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func vecKey(name string, names []string) string {
	return name + "|" + strings.Join(names, ",")
}

func (pm *PrometheusMetrics) IncCounter(name string, labels map[string]string, delta float64) {
	names := labelNames(labels)
	key := vecKey(name, names)

	pm.mu.Lock()
	vec, ok := pm.counters[key]
	if !ok {
		vec = pm.factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshrun",
			Name:      name,
			Help:      "meshrun counter " + name,
		}, names)
		pm.counters[key] = vec
	}
	pm.mu.Unlock()

	vec.With(labels).Add(delta)
}

func (pm *PrometheusMetrics) SetGauge(name string, labels map[string]string, value float64) {
	names := labelNames(labels)
	key := vecKey(name, names)

	pm.mu.Lock()
	vec, ok := pm.gauges[key]
	if !ok {
		vec = pm.factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meshrun",
			Name:      name,
			Help:      "meshrun gauge " + name,
		}, names)
		pm.gauges[key] = vec
	}
	pm.mu.Unlock()

	vec.With(labels).Set(value)
}

func (pm *PrometheusMetrics) ObserveDuration(name string, labels map[string]string, seconds float64) {
	names := labelNames(labels)
	key := vecKey(name, names)

	pm.mu.Lock()
	vec, ok := pm.histograms[key]
	if !ok {
		vec = pm.factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meshrun",
			Name:      name,
			Help:      "meshrun duration seconds " + name,
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, names)
		pm.histograms[key] = vec
	}
	pm.mu.Unlock()

	vec.With(labels).Observe(seconds)
}
