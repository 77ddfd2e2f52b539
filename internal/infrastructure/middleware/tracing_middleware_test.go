package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// With no tracer provider installed the middleware runs against the otel
// noop tracer; requests must still pass through untouched.
func TestTracingMiddleware_PassesRequestsThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(TracingMiddleware())

	var sawTag string
	router.GET("/api/v1/content/:tag", func(c *gin.Context) {
		sawTag = c.Param("tag")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/content/tagfall?providers=MASTODON", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if sawTag != "tagfall" {
		t.Fatalf("expected tag param to reach the handler, got %q", sawTag)
	}
}

func TestTracingMiddleware_ErrorStatusStillReturned(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(TracingMiddleware())
	router.GET("/boom", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
