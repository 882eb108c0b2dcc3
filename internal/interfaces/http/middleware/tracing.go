// Package middleware provides HTTP middleware for the order sync API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fbsamples/cp-reference/internal/infrastructure/telemetry"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
	// TracerProvider overrides the global provider when set.
	TracerProvider trace.TracerProvider
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "cp-reference",
		Enabled:     true,
	}
}

// TracingWithConfig returns the otelgin server-span middleware.
// The span is named after the matched route, e.g. "POST /api/v1/orders/:id/fulfill".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	var opts []otelgin.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// SpanEnricher must follow TracingWithConfig in the chain.
// It tags the server span with request_id, store_id and order_id from the matched
// route, and marks the span as an error for responses with status >= 400.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
		c.Next()
		markSpanStatus(c, span)
	}
}

func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := GetRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	// Path values are only trusted as attributes when they parse as UUIDs
	if storeID := c.Param("store_id"); storeID != "" {
		if _, err := uuid.Parse(storeID); err == nil {
			span.SetAttributes(attribute.String(telemetry.SpanAttrStoreID, storeID))
		}
	}
	if orderID := c.Param("id"); orderID != "" {
		if _, err := uuid.Parse(orderID); err == nil {
			span.SetAttributes(attribute.String(telemetry.SpanAttrOrderID, orderID))
		}
	}
}

func markSpanStatus(c *gin.Context, span trace.Span) {
	if !span.IsRecording() {
		return
	}
	status := c.Writer.Status()
	if status < http.StatusBadRequest {
		return
	}
	span.SetStatus(codes.Error, http.StatusText(status))
	span.SetAttributes(attribute.Int("http.status_code", status))
}
