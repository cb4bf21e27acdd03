package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/gqlproject/internal/eventbus"
	events "github.com/hanpama/gqlproject/internal/events"
	opid "github.com/hanpama/gqlproject/internal/opid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("gqlproject")}
	sub.register()

	return tp.Shutdown, nil
}

type subscriber struct {
	tracer        trace.Tracer
	fetchSpans    sync.Map // opid -> trace.Span
	validateSpans sync.Map // opid -> trace.Span
	annotateSpans sync.Map // opid -> trace.Span
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.SchemaFetchStart) {
		id, _ := opid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "schema.fetch")
		span.SetAttributes(attribute.String("schema.tag", e.Tag))
		s.fetchSpans.Store(id, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.SchemaFetchFinish) {
		id, _ := opid.FromContext(ctx)
		v, ok := s.fetchSpans.LoadAndDelete(id)
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.SchemaMergeFailed) {
		id, _ := opid.FromContext(ctx)
		if v, ok := s.fetchSpans.Load(id); ok {
			v.(trace.Span).RecordError(e.Err)
		}
	})

	eventbus.Subscribe(func(ctx context.Context, e events.ValidationStart) {
		id, _ := opid.FromContext(ctx)
		parent := ctx
		if v, ok := s.fetchSpans.Load(id); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "project.validate")
		span.SetAttributes(attribute.Int("project.files", e.Files))
		s.validateSpans.Store(id, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.ValidationFinish) {
		id, _ := opid.FromContext(ctx)
		v, ok := s.validateSpans.LoadAndDelete(id)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("project.issues", e.Issues))
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.AnnotationStart) {
		id, _ := opid.FromContext(ctx)
		parent := ctx
		if v, ok := s.validateSpans.Load(id); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		} else if v, ok := s.fetchSpans.Load(id); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "project.annotate")
		span.SetAttributes(attribute.Int("project.files", e.Files))
		s.annotateSpans.Store(id, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.AnnotationFinish) {
		id, _ := opid.FromContext(ctx)
		v, ok := s.annotateSpans.LoadAndDelete(id)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("project.decorations", e.Decorations))
		span.End()
	})
}
