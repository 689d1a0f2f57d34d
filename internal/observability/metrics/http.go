package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics captures low-cardinality HTTP server metrics.
type HTTPMetrics struct {
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewHTTPMetrics registers HTTP metrics instruments on the given registry.
func NewHTTPMetrics(reg prometheus.Registerer) (*HTTPMetrics, error) {
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_server_duration_ms",
		Help:    "HTTP request duration in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"endpoint", "status_code"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_server_in_flight",
		Help: "In-flight HTTP requests.",
	})

	if err := reg.Register(requestDuration); err != nil {
		return nil, err
	}
	if err := reg.Register(inFlight); err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requestDuration: requestDuration,
		inFlight:        inFlight,
	}, nil
}

// GinMiddleware records request duration and in-flight metrics.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		endpoint := normalizeEndpoint(c.FullPath())
		m.inFlight.Inc()
		start := time.Now()
		c.Next()
		m.inFlight.Dec()

		status := strconv.Itoa(c.Writer.Status())
		m.requestDuration.WithLabelValues(endpoint, status).
			Observe(float64(time.Since(start).Milliseconds()))
	}
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "unknown"
	}
	return endpoint
}
