package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLoggedRouter(t *testing.T, handler gin.HandlerFunc) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	r.Use(Recovery(log), GinMiddleware(log))
	r.GET("/orders/:id", handler)
	return r, logs
}

func TestGinMiddleware_LogsRequest(t *testing.T) {
	r, logs := newLoggedRouter(t, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1?verbose=1", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "/orders/:id", fields["route"])
	assert.Equal(t, "verbose=1", fields["query"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	for status, level := range map[int]zapcore.Level{
		http.StatusNotFound:           zapcore.WarnLevel,
		http.StatusServiceUnavailable: zapcore.ErrorLevel,
		http.StatusAccepted:           zapcore.InfoLevel,
	} {
		code := status
		r, logs := newLoggedRouter(t, func(c *gin.Context) { c.Status(code) })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/1", nil))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, level, logs.All()[0].Level, "status %d", code)
	}
}

func TestGinMiddleware_ExposesLoggerToHandlers(t *testing.T) {
	r, logs := newLoggedRouter(t, func(c *gin.Context) {
		GetGinLogger(c).Info("from gin context")
		FromContext(c.Request.Context()).Info("from request context")
		assert.Equal(t, "req-42", GetRequestID(c.Request.Context()))
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/1", nil))

	require.Equal(t, 3, logs.Len())
	for _, entry := range logs.All()[:2] {
		assert.Equal(t, "req-42", entry.ContextMap()["request_id"])
		assert.Equal(t, "GET", entry.ContextMap()["method"])
	}
}

func TestWithGinStoreID(t *testing.T) {
	r, logs := newLoggedRouter(t, func(c *gin.Context) {
		WithGinStoreID(c, "store-9")
		assert.Equal(t, "store-9", GetStoreID(c.Request.Context()))
		GetGinLogger(c).Info("from gin context")
		L(c.Request.Context()).Info("from request context")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/1", nil))

	require.Equal(t, 3, logs.Len())
	for _, entry := range logs.All()[:2] {
		assert.Equal(t, "store-9", entry.ContextMap()["store_id"])
		assert.Equal(t, "req-42", entry.ContextMap()["request_id"])
	}
}

func TestRecovery_Returns500(t *testing.T) {
	r, logs := newLoggedRouter(t, func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`, w.Body.String())
	assert.NotEmpty(t, logs.FilterMessage("Panic recovered").All())
}

func TestGetGinLogger_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}
