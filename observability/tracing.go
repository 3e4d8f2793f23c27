package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nullfake/config"
	"nullfake/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Enabled 是否配置了链路追踪导出
func Enabled(cfg config.TracingConfig) bool {
	switch strings.ToLower(strings.TrimSpace(cfg.Exporter)) {
	case "stdout", "otlp":
		return true
	}
	return false
}

// InitTracer 按配置初始化全局 TracerProvider，返回关闭函数；未启用时返回空操作
func InitTracer(ctx context.Context, cfg config.TracingConfig, log *logger.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !Enabled(cfg) {
		return noop, nil
	}

	exporter, err := buildExporter(ctx, cfg)
	if err != nil {
		return noop, fmt.Errorf("初始化链路追踪导出失败: %w", err)
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "nullfake"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", config.Version),
	))
	if err != nil {
		log.Warn("链路追踪资源初始化失败", "error", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("链路追踪已启用", "exporter", cfg.Exporter, "service", serviceName)
	return tp.Shutdown, nil
}

func buildExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	if strings.ToLower(strings.TrimSpace(cfg.Exporter)) == "stdout" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	return otlptracehttp.New(ctx, opts...)
}

func sampleRatio(v float64) float64 {
	if v <= 0 || v > 1 {
		return 1
	}
	return v
}
