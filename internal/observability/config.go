package observability

import (
	"strings"

	"github.com/smallbiznis/payequity/internal/config"
)

const defaultMetricsPath = "/metrics"

// Config is the observability slice of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	MetricsPath string
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "payequity"
	}

	obs := cfg.Observability
	level := strings.ToLower(strings.TrimSpace(obs.LogLevel))
	if level == "" {
		level = "info"
	}
	format := strings.ToLower(strings.TrimSpace(obs.LogFormat))
	if format != "console" {
		format = "json"
	}
	protocol := strings.ToLower(strings.TrimSpace(obs.OtelProtocol))
	if protocol != "http" {
		protocol = "grpc"
	}
	ratio := obs.SamplingRatio
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	metricsPath := strings.TrimSpace(obs.MetricsPath)
	if metricsPath == "" || !strings.HasPrefix(metricsPath, "/") {
		metricsPath = defaultMetricsPath
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             level,
		LogFormat:            format,
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
		MetricsPath:          metricsPath,
	}
}

// Debug turns on verbose request and SQL logging.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// MetricsRoute is the path the prometheus handler is mounted on.
func (c Config) MetricsRoute() string {
	if c.MetricsPath == "" {
		return defaultMetricsPath
	}
	return c.MetricsPath
}
