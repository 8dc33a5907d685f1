// Package observability provides the application-internal instruments and
// diagnostics endpoints built on the providers from
// [github.com/dwellscope/dwellscope/pkg/observability].
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	pkgobs "github.com/dwellscope/dwellscope/pkg/observability"
)

// scopeName is the instrumentation scope of the diagnostics instruments.
const scopeName = "dwellscope"

// DiagnosticsServer exposes health, readiness, and Prometheus metrics
// endpoints over HTTP for operational monitoring.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
	provider *sdkmetric.MeterProvider
}

// NewDiagnosticsServer starts an HTTP server at addr with /healthz, /readyz,
// and /metrics endpoints. Runtime scheduler gauges are registered on the
// scrape-backed meter provider, so they appear in /metrics output even when
// OTLP export is disabled. A non-nil tracer wraps the mux so scrapes and
// probes produce server spans. Ready checks gate /readyz.
func NewDiagnosticsServer(addr string, tracer trace.Tracer, checks ...ReadyCheck) (*DiagnosticsServer, error) {
	mux := http.NewServeMux()

	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(checks...))

	metricsHandler, provider, err := PrometheusHandler()
	if err != nil {
		return nil, fmt.Errorf("create prometheus handler: %w", err)
	}

	mux.Handle("/metrics", metricsHandler)

	_, err = NewSchedulerMetrics(provider.Meter(scopeName))
	if err != nil {
		return nil, fmt.Errorf("register scheduler metrics: %w", err)
	}

	var handler http.Handler = mux
	if tracer != nil {
		handler = pkgobs.HTTPMiddleware(tracer, mux)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: handler}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	return &DiagnosticsServer{server: srv, listener: listener, provider: provider}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close gracefully shuts down the diagnostics server and its meter provider.
func (d *DiagnosticsServer) Close() error {
	err := d.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	err = d.provider.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown diagnostics meter provider: %w", err)
	}

	return nil
}
