// Package metrics Agent运行指标，基于OpenTelemetry，未启用时所有记录调用为空操作
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"nodeagent/internal/config"
)

// 导出器类型
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// 帧类别与丢弃原因
const (
	StreamTelemetry = "telemetry"
	StreamResponse  = "response"

	DropClosed = "closed"
	DropDecode = "decode"
)

const serviceName = "nodeagent"

// Metrics 指标集合，nil 接收者可安全调用
type Metrics struct {
	provider *sdkmetric.MeterProvider

	framesSent      metric.Int64Counter
	framesDropped   metric.Int64Counter
	commands        metric.Int64Counter
	commandDuration metric.Float64Histogram
	faults          metric.Int64Counter
}

// NewMetrics 根据配置创建指标，未启用时返回 nil
func NewMetrics(ctx context.Context, cfg *config.MetricsConfig, serviceVersion string) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled || cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return nil, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName(serviceName), semconv.ServiceVersion(serviceVersion)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	return newWithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...), res)
}

// newWithReader 使用指定reader构建，测试中传入 ManualReader
func newWithReader(reader sdkmetric.Reader, res *resource.Resource) (*Metrics, error) {
	opts := []sdkmetric.Option{sdkmetric.WithReader(reader)}
	if res != nil {
		opts = append(opts, sdkmetric.WithResource(res))
	}
	m := &Metrics{provider: sdkmetric.NewMeterProvider(opts...)}
	if err := m.registerInstruments(m.provider.Meter(serviceName)); err != nil {
		return nil, err
	}
	return m, nil
}

func createExporter(ctx context.Context, cfg *config.MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Exporter)
	}
}

func (m *Metrics) registerInstruments(meter metric.Meter) error {
	var err error

	m.framesSent, err = meter.Int64Counter(
		"nodeagent.frames.sent",
		metric.WithDescription("Frames written to the collector"),
	)
	if err != nil {
		return fmt.Errorf("failed to create frames sent counter: %w", err)
	}

	m.framesDropped, err = meter.Int64Counter(
		"nodeagent.frames.dropped",
		metric.WithDescription("Frames dropped before or after the wire"),
	)
	if err != nil {
		return fmt.Errorf("failed to create frames dropped counter: %w", err)
	}

	m.commands, err = meter.Int64Counter(
		"nodeagent.commands",
		metric.WithDescription("Commands reaching a terminal status"),
	)
	if err != nil {
		return fmt.Errorf("failed to create commands counter: %w", err)
	}

	m.commandDuration, err = meter.Float64Histogram(
		"nodeagent.command.duration",
		metric.WithDescription("Command execution time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create command duration histogram: %w", err)
	}

	m.faults, err = meter.Int64Counter(
		"nodeagent.collection.faults",
		metric.WithDescription("Telemetry collection faults replaced by empty data"),
	)
	if err != nil {
		return fmt.Errorf("failed to create collection faults counter: %w", err)
	}
	return nil
}

// FrameSent 记录一帧成功写出
func (m *Metrics) FrameSent(ctx context.Context, stream string) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1, metric.WithAttributes(attribute.String("stream", stream)))
}

// FrameDropped 记录一帧被丢弃
func (m *Metrics) FrameDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.framesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// CommandFinished 记录命令终态与耗时
func (m *Metrics) CommandFinished(ctx context.Context, kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind), attribute.String("status", status))
	m.commands.Add(ctx, 1, attrs)
	m.commandDuration.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
}

// CollectionFault 记录一次采集失败，part 为 system 或 units
func (m *Metrics) CollectionFault(ctx context.Context, part string) {
	if m == nil {
		return
	}
	m.faults.Add(ctx, 1, metric.WithAttributes(attribute.String("part", part)))
}

// Shutdown 刷新并关闭导出器
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
