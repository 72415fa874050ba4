package gel_api

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func InitTracerProvider(ctx context.Context, hostName string, port int, serviceName, env string, logger *zap.Logger) (func(), error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			// the service name used to display traces in backends
			semconv.ServiceNameKey.String(serviceName),
			semconv.DeploymentEnvironmentKey.String(env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("Cannot create OTel trace provider %v", err)
	}

	endpoint := fmt.Sprintf("%s:%d", hostName, port)
	logger.Info("Sending traces to gRPC endpoint", zap.String("endpoint", endpoint))
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithBlock()),
	)
	if err != nil {
		return nil, fmt.Errorf("Cannot create OTel trace exporter %v", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tracerProvider)

	// set global propagator to tracecontext (the default is no-op).
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func() {
		logger.Info("Shutting down OTel trace provider")
		tracerProvider.Shutdown(ctx)
	}, nil
}

// NewTracer returns an exporting tracer when a tracer host is configured and a
// no-op tracer otherwise.
func NewTracer(ctx context.Context, hostName string, port int, serviceName, env string, logger *zap.Logger) (trace.Tracer, func(), error) {
	if hostName == "" {
		return noop.NewTracerProvider().Tracer(serviceName), func() {}, nil
	}
	shutdown, err := InitTracerProvider(ctx, hostName, port, serviceName, env, logger)
	if err != nil {
		return nil, nil, err
	}
	return otel.Tracer(serviceName + "-tracer"), shutdown, nil
}
