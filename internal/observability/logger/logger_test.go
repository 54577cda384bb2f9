package logger

import (
	"context"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/payequity/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextSkipsEmptyFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithCompanyID(ctx, "42")
	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "42", fields["company_id"])
	assert.NotContains(t, fields, "actor_id")
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContractor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	WithContractor(WithCompany(zap.New(core), " 7 "), "c1", 2024).Debug("split")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "7", fields["company_id"])
	assert.Equal(t, "c1", fields["contractor_id"])
	assert.Equal(t, int64(2024), fields["invoice_year"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestSamplingDefaults(t *testing.T) {
	window, initial, thereafter := samplingOf(Config{})
	assert.Equal(t, time.Second, window)
	assert.Equal(t, 100, initial)
	assert.Equal(t, 100, thereafter)
}
