// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

// Package tracing 封装 OpenTelemetry 初始化与常用 span，不依赖 internal
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "forge-platform"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer；未调用时 otel 使用 no-op provider
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartTaskSpan 开始一次任务执行 span
func StartTaskSpan(ctx context.Context, taskID, taskType string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task.execute",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.type", taskType),
			attribute.Int("task.attempt", attempt),
		),
	)
}

// StartSearchSpan 开始一次相似度检索 span
func StartSearchSpan(ctx context.Context, agentID string, limit int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "embedding.search",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.Int("search.limit", limit),
		),
	)
}

// EndSpan 记录错误（如有）并结束 span
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
