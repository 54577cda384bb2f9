package observability

import (
	"testing"

	"github.com/smallbiznis/payequity/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Normalizes(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:  "production",
		AppVersion:   " 1.2.3 ",
		OTLPEndpoint: "collector:4317",
		Observability: config.ObservabilityConfig{
			LogLevel:      "WARN",
			LogFormat:     "text",
			OtelEnabled:   true,
			OtelProtocol:  "HTTP",
			SamplingRatio: 4,
			MetricsPath:   "metrics",
		},
	})

	assert.Equal(t, "payequity", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.Equal(t, "/metrics", cfg.MetricsRoute())
	assert.False(t, cfg.Debug())
}

func TestConfig_DebugInDevelopment(t *testing.T) {
	assert.True(t, Config{Environment: "development"}.Debug())
	assert.True(t, Config{LogLevel: "debug", Environment: "production"}.Debug())
	assert.Equal(t, "/metrics", Config{}.MetricsRoute())
}
