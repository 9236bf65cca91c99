// Package tracing 初始化 OTLP/HTTP trace 导出；未配置 endpoint 时保持 otel 默认的 no-op。
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/John-Robertt/numscan"

// ShutdownFunc 刷出未导出的 span 并释放 exporter。
type ShutdownFunc func(context.Context) error

// Init 在 endpoint 非空时安装全局 TracerProvider。
//
// endpoint 是完整 URL，例如 http://localhost:4318/v1/traces。
func Init(ctx context.Context, endpoint, version string) (ShutdownFunc, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("numscan"),
			semconv.ServiceVersionKey.String(version),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer 返回本程序使用的 tracer（始终来自当前全局 provider）。
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}
