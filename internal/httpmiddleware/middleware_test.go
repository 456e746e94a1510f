package httpmiddleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func do(r http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BurstThen429(t *testing.T) {
	r := newEngine(NewRateLimiter(2).GinMiddleware())

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", nil).Code)

	rec := do(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRateLimiter_OnLimited(t *testing.T) {
	rejected := 0
	r := newEngine(NewRateLimiter(1).OnLimited(func(*gin.Context) { rejected++ }).GinMiddleware())

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, 0, rejected)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, 1, rejected)
}

func TestRateLimiter_DisabledWhenNonPositive(t *testing.T) {
	r := newEngine(NewRateLimiter(0).GinMiddleware())
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", nil).Code)
	}
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://app.example.com"}))

	rec := do(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(r, http.MethodOptions, "/ping", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	r := newEngine(CORS([]string{"*"}))
	rec := do(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://anywhere.example.com"})
	assert.Equal(t, "https://anywhere.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(newEngine(CORS([]string{"https://app.example.com"})), http.MethodGet, "/ping",
		map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := do(newEngine(SecurityHeaders()), http.MethodGet, "/ping", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRequestLogger_SkipsPaths(t *testing.T) {
	var buf bytes.Buffer
	r := newEngine(RequestLogger(zerolog.New(&buf), "/health"))

	do(r, http.MethodGet, "/health", nil)
	assert.Empty(t, buf.String())

	do(r, http.MethodGet, "/ping", nil)
	assert.Contains(t, buf.String(), `"path":"/ping"`)
	assert.Contains(t, buf.String(), `"status":200`)
}
