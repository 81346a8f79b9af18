// Package tracing configures OpenTelemetry and provides span decorators for
// the HTTP gateway and the storage client.
package tracing

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const defaultServiceName = "bucketfs"

// Options controls tracing initialization.
type Options struct {
	Enabled     bool
	Endpoint    string  // OTLP/HTTP collector endpoint (host:port or URL)
	SampleRatio float64 // 0.0 - 1.0
	ServiceName string
}

// OptionsFromValues reads the "tracing" section of the daemon config.
func OptionsFromValues(v config.Values) Options {
	ratio := 1.0
	if raw := v.String("sample_ratio", ""); raw != "" {
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			ratio = n
		}
	}
	return Options{
		Enabled:     v.Bool("enabled", false),
		Endpoint:    v.String("endpoint", ""),
		SampleRatio: ratio,
		ServiceName: v.String("service_name", defaultServiceName),
	}
}

// Init configures the global tracer provider from opt. The returned function
// flushes and stops the provider and must be called on shutdown.
func Init(ctx context.Context, opt Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if !opt.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	log := logger.Global().Named("tracing")

	svc := strings.TrimSpace(opt.ServiceName)
	if svc == "" {
		svc = defaultServiceName
	}
	res, err := resource.New(ctx,
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(attribute.String("service.name", svc)),
	)
	if err != nil {
		log.ErrorWith("resource init failed, using empty resource", err, nil)
		res = resource.Empty()
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opt.SampleRatio)),
	}

	if ep := strings.TrimSpace(opt.Endpoint); ep != "" {
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(stripScheme(ep))}
		if isInsecure(ep) {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			log.ErrorWith("otlp exporter init failed", err, map[string]interface{}{"endpoint": ep})
		} else {
			opts = append(opts, sdktrace.WithBatcher(exp,
				sdktrace.WithBatchTimeout(5*time.Second),
				sdktrace.WithMaxExportBatchSize(512),
			))
		}
	} else {
		log.Warn("tracing enabled without endpoint; spans will not be exported")
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1.0:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Middleware wraps next in a server span per request. Health and metrics
// endpoints are not traced.
func Middleware(tp trace.TracerProvider) func(http.Handler) http.Handler {
	tracer := tp.Tracer("bucketfs/http")
	skipped := map[string]struct{}{
		"/healthz": {},
		"/metrics": {},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skipped[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.EscapedPath(),
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.RequestURI()),
				attribute.Int("http.status_code", rec.status),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// isInsecure decides whether to use plain HTTP based on endpoint hints.
func isInsecure(endpoint string) bool {
	ep := strings.ToLower(strings.TrimSpace(endpoint))
	if strings.HasPrefix(ep, "http://") {
		return true
	}
	return strings.Contains(ep, "localhost") || strings.Contains(ep, "127.0.0.1")
}

func stripScheme(endpoint string) string {
	e := strings.TrimSpace(endpoint)
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(strings.ToLower(e), scheme) {
			return e[len(scheme):]
		}
	}
	return e
}
