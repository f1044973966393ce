package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serveMetricsHTTP exposes the Prometheus registry on addr until ctx is
// canceled. It runs as its own goroutine; listen failures are logged, not
// fatal, since the binary STATS frame remains the primary interface (§6,
// Domain Stack: the two are two views onto one Metrics struct).
func (s *Server) serveMetricsHTTP(ctx context.Context, reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Warn().Err(err).Str("addr", addr).Msg("metrics: http server exited")
	}
}
