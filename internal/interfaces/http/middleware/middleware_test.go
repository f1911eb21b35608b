package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prom "github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	logtest "github.com/turtacn/trialscope/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusNoContent)
	})

	rec := serve(r, "/x", http.Header{HeaderRequestID: {"abc-123"}})
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))

	rec = serve(r, "/x", nil)
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
}

func TestRequestLogging_Levels(t *testing.T) {
	logger := logtest.NewMockLogger()
	r := gin.New()
	r.Use(RequestID(), RequestLogging(logger, DefaultLoggingConfig()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, "/ok?name=imatinib", nil)
	serve(r, "/bad", nil)
	serve(r, "/boom", nil)
	serve(r, "/healthz", nil)

	require.True(t, logger.HasMessage("info", "HTTP request completed"))
	assert.True(t, logger.HasMessage("warn", "HTTP request completed with client error"))
	assert.True(t, logger.HasMessage("error", "HTTP request completed with server error"))
	assert.Equal(t, 1, logger.CountLevel("info"))

	msg := logger.Find("info", "HTTP request completed")[0]
	path, _ := msg.Field("path")
	assert.Equal(t, "/ok?name=imatinib", path)
	id, _ := msg.Field("request_id")
	assert.NotEmpty(t, id)
}

func TestRecovery(t *testing.T) {
	logger := logtest.NewMockLogger()
	r := gin.New()
	r.Use(Recovery(logger))
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	rec := serve(r, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":"INTERNAL","message":"internal server error"}`, rec.Body.String())
	assert.True(t, logger.HasMessage("error", "panic recovered"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 2, SkipPaths: []string{"/healthz"}})
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := serve(r, "/api", nil)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, serve(r, "/api", nil).Code)

	limited := serve(r, "/api", nil)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "2", limited.Header().Get("Retry-After"))
	assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, serve(r, "/healthz", nil).Code)
	assert.Equal(t, 0, rl.Prune())
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	assert.Equal(t, DefaultRateLimitConfig().RequestsPerSecond, rl.cfg.RequestsPerSecond)
	assert.Equal(t, DefaultRateLimitConfig().BurstSize, rl.cfg.BurstSize)
}

func TestMetrics(t *testing.T) {
	collector, err := prom.NewMetricsCollector(prom.CollectorConfig{Namespace: "test"}, nil)
	require.NoError(t, err)
	m := prom.NewAppMetrics(collector)

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/v1/molecules/:id/mechanisms", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, "/api/v1/molecules/CHEMBL941/mechanisms", nil)
	serve(r, "/api/v1/molecules/CHEMBL25/mechanisms", nil)
	serve(r, "/nope", nil)

	out := serve(collector.Handler(), "/metrics", nil).Body.String()
	assert.Contains(t, out, `test_http_requests_total{method="GET",path="/api/v1/molecules/:id/mechanisms",status_code="200"} 2`)
	assert.Contains(t, out, `test_http_requests_total{method="GET",path="unmatched",status_code="404"} 1`)
}
