package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within the limit", func(t *testing.T) {
		rl := NewRateLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("10.0.0.1"), "request %d", i)
		}
	})

	t.Run("blocks once the limit is spent", func(t *testing.T) {
		rl := NewRateLimiter(2, time.Minute)

		assert.True(t, rl.Allow("10.0.0.1"))
		assert.True(t, rl.Allow("10.0.0.1"))
		assert.False(t, rl.Allow("10.0.0.1"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl := NewRateLimiter(1, time.Minute)

		assert.True(t, rl.Allow("10.0.0.1"))
		assert.False(t, rl.Allow("10.0.0.1"))
		assert.True(t, rl.Allow("10.0.0.2"))
	})

	t.Run("window expiry refills the budget", func(t *testing.T) {
		rl := NewRateLimiter(1, 10*time.Millisecond)

		assert.True(t, rl.Allow("10.0.0.1"))
		assert.False(t, rl.Allow("10.0.0.1"))

		time.Sleep(15 * time.Millisecond)
		assert.True(t, rl.Allow("10.0.0.1"))
	})

	t.Run("remaining tracks consumption", func(t *testing.T) {
		rl := NewRateLimiter(5, time.Minute)

		assert.Equal(t, 5, rl.Remaining("10.0.0.1"))
		rl.Allow("10.0.0.1")
		assert.Equal(t, 4, rl.Remaining("10.0.0.1"))
		rl.Allow("10.0.0.1")
		assert.Equal(t, 3, rl.Remaining("10.0.0.1"))
	})

	t.Run("concurrent callers never exceed the limit", func(t *testing.T) {
		rl := NewRateLimiter(50, time.Minute)

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if rl.Allow("10.0.0.1") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	newRouter := func(mw gin.HandlerFunc) *gin.Engine {
		router := gin.New()
		router.Use(mw)
		router.GET("/deliveries", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}
	get := func(router *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/deliveries", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("passes within limit and advertises the budget", func(t *testing.T) {
		router := newRouter(RateLimit(NewRateLimiter(5, time.Minute)))

		w := get(router, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("answers 429 once the limit is spent", func(t *testing.T) {
		router := newRouter(RateLimit(NewRateLimiter(2, time.Minute)))

		get(router, nil)
		get(router, nil)
		w := get(router, nil)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_TOO_MANY_REQUESTS")
	})

	t.Run("tenants have separate budgets", func(t *testing.T) {
		router := newRouter(RateLimit(NewRateLimiter(1, time.Minute)))

		assert.Equal(t, http.StatusOK, get(router, map[string]string{"X-Company-ID": "company-a"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, get(router, map[string]string{"X-Company-ID": "company-a"}).Code)
		assert.Equal(t, http.StatusOK, get(router, map[string]string{"X-Company-ID": "company-b"}).Code)
	})

	t.Run("custom key extractor drives the bucket", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		router := newRouter(RateLimitByKey(limiter, func(c *gin.Context) string {
			return c.GetHeader("X-Carrier-Code")
		}))

		assert.Equal(t, http.StatusOK, get(router, map[string]string{"X-Carrier-Code": "SHIPROCKET"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, get(router, map[string]string{"X-Carrier-Code": "SHIPROCKET"}).Code)
		assert.Equal(t, http.StatusOK, get(router, map[string]string{"X-Carrier-Code": "DELHIVERY"}).Code)
	})
}
