package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/infrastructure/metrics"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doRequest(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowAll(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig()))

	w := doRequest(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://app.example.com"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig()))

	w := doRequest(r, http.MethodOptions, "/ping", map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	r := newEngine(CORS(cfg))

	w := doRequest(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example.com"})

	// The request still runs; the browser enforces the missing header.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSCredentialsEchoOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	cfg.AllowCredentials = true
	r := newEngine(CORS(cfg))

	w := doRequest(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://app.example.com"})

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSIgnoresSameOriginRequests(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig()))

	w := doRequest(r, http.MethodGet, "/ping", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitExhaustsBurst(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}
	r := newEngine(RateLimit(cfg))

	for i := 0; i < 2; i++ {
		w := doRequest(r, http.MethodGet, "/ping", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i)
	}

	w := doRequest(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "COMMON_007")
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitSkipsProbePaths(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, SkipPaths: []string{"/healthz"}}
	r := newEngine(RateLimit(cfg))

	for i := 0; i < 5; i++ {
		w := doRequest(r, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Now()
	l := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 1})
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("10.0.0.1")
	require.True(t, ok)
	ok, _ = l.Allow("10.0.0.1")
	require.False(t, ok, "bucket should be empty")

	now = now.Add(200 * time.Millisecond) // 10 rps refills 2 tokens, capped at burst 1
	ok, remaining := l.Allow("10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	ok, _ := l.Allow("10.0.0.1")
	require.True(t, ok)
	ok, _ = l.Allow("10.0.0.1")
	require.False(t, ok)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok, "a fresh client gets its own bucket")
}

func TestRequestLoggingPassesThrough(t *testing.T) {
	cfg := DefaultLoggingConfig()
	r := newEngine(RequestLogging(logging.NewNopLogger(), metrics.NewForTesting(), cfg))

	w := doRequest(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	// Skipped paths and nil metrics must not panic either.
	r2 := newEngine(RequestLogging(logging.NewNopLogger(), nil, cfg))
	w = doRequest(r2, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
