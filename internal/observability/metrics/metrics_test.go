package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("company_id", "123"),
		attribute.String("contractor_id", "456"),
		attribute.String("outcome", "missing_share_price"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("company_id"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestMetricsRecordWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordSplit(ctx, "1", "ok")
		m.RecordSettlement(ctx, "1", "paid", 2500, 10)
		m.RecordAlert(ctx, "slack", "sent")
	})

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordSplit(ctx, "1", "ok") })
}
