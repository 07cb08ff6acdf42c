package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every exported metric.
const DefaultNamespace = "nanobanana"

// PrometheusCollector exports batch, task and HTTP metrics. Each collector
// owns its registry, so several can coexist in one process (and in tests).
type PrometheusCollector struct {
	registry *prometheus.Registry

	batchesTotal   *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec
	tasksTotal     *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	upstreamStatus *prometheus.CounterVec
	imagesTotal    prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	inFlight            prometheus.Gauge
}

// NewPrometheusCollector registers all metrics under namespace, plus the Go
// runtime and process collectors.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		batchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generate_requests_total",
				Help:      "Generation requests by outcome",
			},
			[]string{"outcome"},
		),
		batchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generate_request_duration_seconds",
				Help:      "Wall time of a generation request",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 60},
			},
			[]string{"outcome"},
		),
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_tasks_total",
				Help:      "Generation tasks by result",
			},
			[]string{"result"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_task_duration_seconds",
				Help:      "Latency of a single upstream generation call",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30},
			},
			[]string{"result"},
		),
		upstreamStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Upstream error responses by HTTP status (0 for transport errors)",
			},
			[]string{"status"},
		),
		imagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_returned_total",
			Help:      "Images returned to clients",
		}),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
	}
}

// RecordBatch implements Recorder.
func (c *PrometheusCollector) RecordBatch(rec BatchRecord) {
	c.batchesTotal.WithLabelValues(rec.Outcome).Inc()
	c.batchDuration.WithLabelValues(rec.Outcome).Observe(rec.Duration.Seconds())
	c.imagesTotal.Add(float64(rec.Images))

	for _, t := range rec.Tasks {
		c.tasksTotal.WithLabelValues(t.Result).Inc()
		if t.Result == TaskResultUnclaimed {
			continue
		}
		c.taskDuration.WithLabelValues(t.Result).Observe(t.Latency.Seconds())
		if t.Result == "upstream" {
			c.upstreamStatus.WithLabelValues(strconv.Itoa(t.Status)).Inc()
		}
	}
}

// RecordHTTPRequest counts one served request.
func (c *PrometheusCollector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (c *PrometheusCollector) TrackInFlight() func() {
	c.inFlight.Inc()
	return c.inFlight.Dec
}

// Registry exposes the underlying registry.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var _ Recorder = (*PrometheusCollector)(nil)
