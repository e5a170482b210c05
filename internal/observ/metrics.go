package observ

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric vectors are created lazily on first use so components don't need a
// registration phase. A metric name must always be used with the same label
// keys; prometheus enforces this at creation time.
type metricRegistry struct {
	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

var reg = &metricRegistry{
	counters: map[string]*prometheus.CounterVec{},
	gauges:   map[string]*prometheus.GaugeVec{},
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IncCounter increments a labeled counter by one.
func IncCounter(name string, labels map[string]string) {
	reg.mu.Lock()
	c, ok := reg.counters[name]
	if !ok {
		c = promauto.NewCounterVec(prometheus.CounterOpts{Name: name}, labelKeys(labels))
		reg.counters[name] = c
	}
	reg.mu.Unlock()
	c.With(labels).Inc()
}

// SetGauge sets a labeled gauge to the given value.
func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	g, ok := reg.gauges[name]
	if !ok {
		g = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: name}, labelKeys(labels))
		reg.gauges[name] = g
	}
	reg.mu.Unlock()
	g.With(labels).Set(value)
}

// MetricsHandler serves the prometheus exposition endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
