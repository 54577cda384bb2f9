package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/payequity/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareRecordsRouteAndActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(GinMiddleware("/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/companies/:company_id/invoices/:id", func(c *gin.Context) {
		ctx := obscontext.WithCompanyID(c.Request.Context(), c.Param("company_id"))
		ctx = obscontext.WithActor(ctx, "user", "7")
		c.Request = c.Request.WithContext(ctx)
		c.Status(http.StatusInternalServerError)
	})

	for _, path := range []string{"/health", "/api/companies/1/invoices/2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP GET /api/companies/:company_id/invoices/:id", span.Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "1", attrs["company_id"].AsString())
	assert.Equal(t, "user", attrs["actor.type"].AsString())
	assert.Equal(t, int64(500), attrs["http.status_code"].AsInt64())
}

func TestSpanName(t *testing.T) {
	assert.Equal(t, "HTTP POST", spanName("post", ""))
	assert.Equal(t, "HTTP GET /health", spanName("GET", "/health"))
}
