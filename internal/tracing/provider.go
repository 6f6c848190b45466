// Package tracing wires OpenTelemetry into the replay server and consumer:
// an OTLP exporter, W3C trace context propagation and span helpers.
package tracing

import (
	"context"
	"os"
	"strings"

	"github.com/juju/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"

	"github.com/torosent/streamsim/internal/config"
)

const instrumentationName = "github.com/torosent/streamsim"

// Provider owns the process tracer. The zero value and a nil *Provider are
// usable and trace nothing.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// Init installs a global tracer provider exporting to the configured OTLP
// endpoint. role names the binary ("streamsim", "streamsim-consumer"); it is
// the service name unless one is configured and is recorded as
// streamsim.role. Without an endpoint Init returns a provider that only
// decides propagation.
func Init(ctx context.Context, cfg config.TracingConfig, role string) (*Provider, error) {
	endpoint := resolveEndpoint(cfg)
	if endpoint == "" {
		return &Provider{propagate: cfg.ShouldPropagate()}, nil
	}

	sampler, err := newSampler(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(resolveServiceName(cfg, role)),
		attribute.String("streamsim.role", role),
	))
	if err != nil {
		return nil, errors.Annotate(err, "building trace resource")
	}
	exporter, err := newExporter(ctx, cfg, endpoint, role)
	if err != nil {
		return nil, errors.Annotatef(err, "creating OTLP exporter for %s", endpoint)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(instrumentationName),
		propagate: cfg.ShouldPropagate(),
	}, nil
}

func resolveEndpoint(cfg config.TracingConfig) string {
	if e := strings.TrimSpace(cfg.Endpoint); e != "" {
		return e
	}
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
}

func resolveServiceName(cfg config.TracingConfig, role string) string {
	for _, name := range []string{cfg.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), role} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return "streamsim"
}

// newSampler honours a remote parent's decision and samples root spans at
// rate.
func newSampler(rate float64) (sdktrace.Sampler, error) {
	var root sdktrace.Sampler
	switch {
	case rate < 0 || rate > 1:
		return nil, errors.NotValidf("tracing sample_rate %g (want 0.0 to 1.0)", rate)
	case rate == 0:
		root = sdktrace.NeverSample()
	case rate == 1:
		root = sdktrace.AlwaysSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root), nil
}

func newExporter(ctx context.Context, cfg config.TracingConfig, endpoint, role string) (sdktrace.SpanExporter, error) {
	switch protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol)); protocol {
	case "", "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent(role + "-otlp")),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, errors.NotSupportedf("OTLP protocol %q", protocol)
	}
}

// Tracer returns the process tracer, or a no-op tracer when tracing is off.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether outgoing polls carry trace headers.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return errors.Trace(p.tp.Shutdown(ctx))
}
