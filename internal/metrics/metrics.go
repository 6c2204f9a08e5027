package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensor_overlay"

// Fetch outcomes used as the "result" label.
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultEmpty       = "empty"
	ResultBreakerOpen = "breaker_open"
)

// Metrics bundles the collectors the overlay exports on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	FetchTotal    *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	Running       prometheus.Gauge
	Sessions      prometheus.Gauge
	Temperature   prometheus.Gauge
	Humidity      prometheus.Gauge
	CO2           prometheus.Gauge
}

// New registers all collectors on a fresh registry, so tests can build as
// many instances as they need.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Sensor API fetch attempts by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of sensor API calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_running",
			Help:      "1 while the refresh timer is active.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Connected viewer pages.",
		}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last cached temperature reading.",
		}),
		Humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last cached relative humidity reading.",
		}),
		CO2: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "co2_ppm",
			Help:      "Last cached CO2 reading.",
		}),
	}
	reg.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.Running,
		m.Sessions,
		m.Temperature,
		m.Humidity,
		m.CO2,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
