package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"alive-keeper/internal/middleware"
	"alive-keeper/internal/services"
)

type stubSession struct {
	auth bool
}

func (s stubSession) Authenticated() bool { return s.auth }
func (s stubSession) Address() string     { return "0xabc" }

func newRouter(t *testing.T, session stubSession) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	limiter := services.NewRedisServiceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { limiter.Close() })

	router := gin.New()
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(session), middleware.RateLimitMiddleware(limiter))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"address": c.GetString("address")})
	})
	api.POST("/checkin", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func TestAuthMiddlewareRequiresSession(t *testing.T) {
	router := newRouter(t, stubSession{auth: false})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareSetsAddress(t *testing.T) {
	router := newRouter(t, stubSession{auth: true})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"address":"0xabc"}` {
		t.Errorf("Unexpected body %s", body)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	router := newRouter(t, stubSession{auth: true})

	for i := 0; i < services.DefaultRateLimitActions; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/checkin", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Request %d should pass, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/checkin", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}

	// Reads are not limited
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for reads, got %d", w.Code)
	}
}
