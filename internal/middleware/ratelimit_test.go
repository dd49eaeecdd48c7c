package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/serenispa/booking-engine/internal/limiter"
)

func TestRateLimitDeniesOverCapacity(t *testing.T) {
	store := limiter.NewMemoryStore(limiter.Config{
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            time.Hour,
	})
	e := echo.New()
	e.GET("/v1/slots", okHandler, RateLimit(store, "rl"))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		last = httptest.NewRecorder()
		e.ServeHTTP(last, req)
		if i < 2 && last.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, last.Code)
		}
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After")
	}
}

func TestRateLimitSeparatesClients(t *testing.T) {
	store := limiter.NewMemoryStore(limiter.Config{
		Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour,
	})
	e := echo.New()
	e.GET("/v1/slots", okHandler, RateLimit(store, "rl"))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send("10.0.0.1:1"); code != http.StatusOK {
		t.Fatalf("first client: %d", code)
	}
	if code := send("10.0.0.1:1"); code != http.StatusTooManyRequests {
		t.Fatalf("first client second request: %d, want 429", code)
	}
	if code := send("10.0.0.2:1"); code != http.StatusOK {
		t.Fatalf("second client blocked by first client's bucket: %d", code)
	}
}

func TestRateLimitNilStorePassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/v1/slots", okHandler, RateLimit(nil, "rl"))
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d with nil store: status = %d", i, rec.Code)
		}
	}
}
