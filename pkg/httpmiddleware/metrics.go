package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentConfig carries the telemetry providers for Instrument.
type InstrumentConfig struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Instrument traces every request via otelhttp and records route-labeled
// request count and duration metrics. Route patterns keep attribute
// cardinality bounded.
func Instrument(service string, cfg InstrumentConfig) Middleware {
	meter := cfg.MeterProvider.Meter(service)

	requests, _ := meter.Int64Counter("http.server.request_count",
		metric.WithDescription("Number of HTTP requests handled."),
	)
	duration, _ := meter.Float64Histogram("http.server.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("HTTP request handling duration."),
	)

	tracing := otelhttp.NewMiddleware(service,
		otelhttp.WithTracerProvider(cfg.TracerProvider),
		otelhttp.WithMeterProvider(cfg.MeterProvider),
	)

	return func(next http.Handler) http.Handler {
		measured := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", sw.status),
			)
			requests.Add(r.Context(), 1, attrs)
			duration.Record(r.Context(), float64(time.Since(start))/float64(time.Millisecond), attrs)
		})
		return tracing(measured)
	}
}
