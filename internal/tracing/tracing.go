// Package tracing writes per-stage OpenTelemetry spans for benchmark runs.
// Without Setup the global no-op provider is used and spans cost nothing.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalnine/verifierbench"

var (
	AttrGoalID  = attribute.Key("verifierbench.goal.id")
	AttrVariant = attribute.Key("verifierbench.variant")
	AttrBackend = attribute.Key("verifierbench.backend")
	AttrStage   = attribute.Key("verifierbench.stage")
	AttrRole    = attribute.Key("verifierbench.role")
	AttrVerdict = attribute.Key("verifierbench.verdict")
)

// Provider owns the exporter file.
type Provider struct {
	provider *sdktrace.TracerProvider
	file     *os.File
}

// Setup installs a global tracer provider that writes spans as JSON lines
// to path.
func Setup(path, version string) (*Provider, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("verifierbench"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return &Provider{provider: provider, file: f}, nil
}

// Shutdown flushes pending spans and closes the file.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.provider.Shutdown(ctx), p.file.Close())
}

func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
