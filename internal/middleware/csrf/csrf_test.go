package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer() *echo.Echo {
	e := echo.New()
	e.Use(Middleware(Config{SkipPaths: []string{"/health/live"}}))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/api/cart", ok)
	e.POST("/api/cart", ok)
	e.POST("/health/live", ok)
	return e
}

func TestCSRF_SafeMethodIssuesToken(t *testing.T) {
	e := newServer()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	token := rec.Header().Get("X-CSRF-Token")
	require.NotEmpty(t, token)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, token, rec.Result().Cookies()[0].Value)
}

func TestCSRF_UnsafeMethod(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		header string
		want   int
	}{
		{"matching token", "http://example.com", "tok", http.StatusNoContent},
		{"missing token", "http://example.com", "", http.StatusForbidden},
		{"wrong token", "http://example.com", "nope", http.StatusForbidden},
		{"foreign origin", "http://evil.test", "tok", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer()
			req := httptest.NewRequest(http.MethodPost, "/api/cart", nil)
			req.Host = "example.com"
			req.Header.Set("Origin", tt.origin)
			req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "tok"})
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCSRF_SkipPaths(t *testing.T) {
	e := newServer()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health/live", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
