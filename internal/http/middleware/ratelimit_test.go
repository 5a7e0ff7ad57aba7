package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sathicare/booking-core/internal/identity"
	"github.com/sathicare/booking-core/pkg/logging"
)

func TestRateLimitPerKey(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	handler := rl.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-Ip", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("10.0.0.1") != http.StatusOK || send("10.0.0.1") != http.StatusOK {
		t.Fatal("burst should be allowed")
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other ip should have its own bucket, got %d", code)
	}
}

func TestRateLimitKeysByPrincipal(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := rl.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	p := identity.Principal{ID: uuid.New(), Role: identity.RoleClient}

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-Ip", "10.0.0."+string(rune('1'+i)))
		req = req.WithContext(identity.WithPrincipal(req.Context(), p))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

func TestRateLimiterEvict(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Allow("a")
	rl.Evict(time.Now().Add(time.Minute))
	if len(rl.limiters) != 0 {
		t.Fatalf("expected eviction, %d left", len(rl.limiters))
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info", logging.FormatJSON)
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointments", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":409`) || !strings.Contains(out, `"path":"/api/appointments"`) {
		t.Fatalf("unexpected log output %q", out)
	}
}
