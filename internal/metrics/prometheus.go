package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ultrasound_detections_total",
			Help: "Total number of labels returned per detection model",
		},
		[]string{"model"},
	)

	quickTestsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quicktests_stored_total",
			Help: "Total number of questionnaire documents written",
		},
		[]string{"source"},
	)

	diagnosesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quicktest_diagnoses_total",
			Help: "Total number of classifier diagnoses by label",
		},
		[]string{"diagnosis"},
	)

	reportsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_rendered_total",
			Help: "Total number of PDF reports rendered",
		},
		[]string{"source"},
	)

	chatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat completions requested",
		},
		[]string{"provider", "status"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_call_duration_seconds",
			Help:    "Duration of calls to models, stores and hosted APIs",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"dependency"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count, latency and in-flight requests.
// The route template is used as the path label to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func RecordDetections(model string, n int) {
	detectionsTotal.WithLabelValues(model).Add(float64(n))
}

func RecordQuickTestStored(source string) {
	quickTestsStored.WithLabelValues(source).Inc()
}

func RecordDiagnosis(diagnosis string) {
	diagnosesTotal.WithLabelValues(diagnosis).Inc()
}

func RecordReport(source string) {
	switch source {
	case "ultrasound", "quiz":
	default:
		source = "other"
	}
	reportsRendered.WithLabelValues(source).Inc()
}

func RecordChat(provider string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	chatRequestsTotal.WithLabelValues(provider, status).Inc()
}

// ObserveUpstream returns a func that records the elapsed time when called.
//
//	defer metrics.ObserveUpstream("firestore")()
func ObserveUpstream(dependency string) func() {
	start := time.Now()
	return func() {
		upstreamDuration.WithLabelValues(dependency).Observe(time.Since(start).Seconds())
	}
}
