package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the equity split instruments.
type Metrics struct {
	splitOutcomes   metric.Int64Counter
	settlements     metric.Int64Counter
	equityCents     metric.Int64Counter
	optionsReserved metric.Int64Counter
	alerts          metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "payequity"
	}
	meter := provider.Meter(name)

	splitOutcomes, err := meter.Int64Counter("payequity_split_calculations_total",
		metric.WithDescription("Equity split calculations by outcome"))
	if err != nil {
		return nil, err
	}
	settlements, err := meter.Int64Counter("payequity_invoice_settlements_total")
	if err != nil {
		return nil, err
	}
	equityCents, err := meter.Int64Counter("payequity_equity_settled_cents_total",
		metric.WithUnit("{cent}"))
	if err != nil {
		return nil, err
	}
	optionsReserved, err := meter.Int64Counter("payequity_options_reserved_total")
	if err != nil {
		return nil, err
	}
	alerts, err := meter.Int64Counter("payequity_alerts_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		splitOutcomes:   splitOutcomes,
		settlements:     settlements,
		equityCents:     equityCents,
		optionsReserved: optionsReserved,
		alerts:          alerts,
	}, nil
}

// RecordSplit counts a calculation. outcome is "ok", "zero" or the failure kind.
func (m *Metrics) RecordSplit(ctx context.Context, companyID, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("company_id", strings.TrimSpace(companyID)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.splitOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSettlement counts a settled invoice and the equity it reserved.
func (m *Metrics) RecordSettlement(ctx context.Context, companyID, result string, equityCents, options int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("company_id", strings.TrimSpace(companyID)),
		attribute.String("result", strings.TrimSpace(result)),
	)...)
	m.settlements.Add(ctx, 1, attrs)
	if equityCents > 0 {
		m.equityCents.Add(ctx, equityCents, attrs)
	}
	if options > 0 {
		m.optionsReserved.Add(ctx, options, attrs)
	}
}

// RecordAlert counts alert deliveries by channel and status.
func (m *Metrics) RecordAlert(ctx context.Context, channel, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("channel", strings.TrimSpace(channel)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.alerts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"company_id":  {},
	"endpoint":    {},
	"status_code": {},
	"outcome":     {},
	"result":      {},
	"channel":     {},
	"status":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
