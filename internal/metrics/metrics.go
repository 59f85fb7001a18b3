// Package metrics exposes benchmark counters for Prometheus.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Units = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verifierbench",
			Subsystem: "unit",
			Name:      "completed_total",
			Help:      "Run units completed, by verdict",
		},
		[]string{"variant", "backend", "verdict"},
	)

	UnitErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verifierbench",
			Subsystem: "unit",
			Name:      "errors_total",
			Help:      "Run units that recorded an error, by error kind",
		},
		[]string{"variant", "backend", "kind"},
	)

	UnitLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verifierbench",
			Subsystem: "unit",
			Name:      "latency_seconds",
			Help:      "Wall time of one run unit",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		},
		[]string{"variant", "backend"},
	)

	Tokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verifierbench",
			Subsystem: "model",
			Name:      "tokens_total",
			Help:      "Model tokens consumed, by direction",
		},
		[]string{"backend", "direction"},
	)
)

// Observe records one finished unit.
func Observe(variant, backend, verdict, errKind string, latency time.Duration, inTokens, outTokens int) {
	if verdict == "" {
		verdict = "none"
	}
	Units.WithLabelValues(variant, backend, verdict).Inc()
	if errKind != "" {
		UnitErrors.WithLabelValues(variant, backend, errKind).Inc()
	}
	UnitLatency.WithLabelValues(variant, backend).Observe(latency.Seconds())
	Tokens.WithLabelValues(backend, "input").Add(float64(inTokens))
	Tokens.WithLabelValues(backend, "output").Add(float64(outTokens))
}

// Server serves /metrics.
type Server struct {
	Addr string
	srv  *http.Server
}

// Serve starts exposing /metrics on addr in the background.
func Serve(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go srv.Serve(ln)
	return &Server{Addr: ln.Addr().String(), srv: srv}, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
