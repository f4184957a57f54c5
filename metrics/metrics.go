package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gray_wms",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gray_wms",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	// PullDuration observes RasterSource.Pull per layer.
	PullDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gray_wms",
		Subsystem: "raster",
		Name:      "pull_duration_seconds",
		Help:      "Duration of raster window reads",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"layer"})

	// PullErrors counts failed pulls by layer and error kind.
	PullErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gray_wms",
		Subsystem: "raster",
		Name:      "pull_errors_total",
		Help:      "Total failed raster window reads",
	}, []string{"layer", "status"})

	// PullsInFlight is the number of pulls holding a concurrency slot.
	PullsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gray_wms",
		Subsystem: "raster",
		Name:      "pulls_in_flight",
		Help:      "Raster window reads currently running",
	})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency. path labels the route, not
// the raw URL, to keep cardinality bounded.
func Middleware(path string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
