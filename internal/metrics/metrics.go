package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry             *prometheus.Registry
	httpRequests         *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	flattens             *prometheus.CounterVec
	unflattens           *prometheus.CounterVec
	missingFiles         prometheus.Counter
	validations          *prometheus.CounterVec
	previewFetchDuration *prometheus.HistogramVec
}

// New creates a fresh Metrics registry with HTTP and map engine metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sensormap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by core-go",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sensormap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by core-go",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	flattens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sensormap",
		Name:      "flatten_total",
		Help:      "Data map flatten calls by result",
	}, []string{"result"})

	unflattens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sensormap",
		Name:      "unflatten_total",
		Help:      "Data map unflatten calls by result",
	}, []string{"result"})

	missingFiles := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sensormap",
		Name:      "missing_files_total",
		Help:      "Sensors given a placeholder file during unflatten",
	})

	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sensormap",
		Name:      "validations_total",
		Help:      "Schema validations by outcome (valid, invalid, error, stale)",
	}, []string{"outcome"})

	previewFetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sensormap",
		Name:      "preview_fetch_duration_seconds",
		Help:      "Duration of file preview fetches",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"result"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		flattens,
		unflattens,
		missingFiles,
		validations,
		previewFetchDuration,
	)

	return &Metrics{
		registry:             registry,
		httpRequests:         httpRequests,
		httpRequestDuration:  httpRequestDuration,
		flattens:             flattens,
		unflattens:           unflattens,
		missingFiles:         missingFiles,
		validations:          validations,
		previewFetchDuration: previewFetchDuration,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) ObserveFlatten(err error) {
	if m == nil {
		return
	}
	m.flattens.WithLabelValues(result(err)).Inc()
}

// ObserveUnflatten records one unflatten call and the placeholders it produced.
func (m *Metrics) ObserveUnflatten(err error, missingFiles int) {
	if m == nil {
		return
	}
	m.unflattens.WithLabelValues(result(err)).Inc()
	if missingFiles > 0 {
		m.missingFiles.Add(float64(missingFiles))
	}
}

func (m *Metrics) ObserveValidation(outcome string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePreviewFetch(err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.previewFetchDuration.WithLabelValues(result(err)).Observe(duration.Seconds())
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
