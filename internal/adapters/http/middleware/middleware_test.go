package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiter_Window(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := range 2 {
		if ok, _ := rl.Allow("10.0.0.1"); !ok {
			t.Fatalf("attempt %d limited", i+1)
		}
	}
	now = now.Add(20 * time.Second)
	ok, wait := rl.Allow("10.0.0.1")
	if ok || wait != 40*time.Second {
		t.Errorf("third attempt = %v, wait %v; want limited for 40s", ok, wait)
	}
	if ok, _ := rl.Allow("10.0.0.2"); !ok {
		t.Error("other clients have their own window")
	}

	now = now.Add(41 * time.Second)
	if ok, _ := rl.Allow("10.0.0.1"); !ok {
		t.Error("window did not reopen")
	}
}

func TestRateLimiter_EvictsStaleClients(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }
	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")

	now = now.Add(2 * time.Minute)
	rl.Allow("10.0.0.3")
	if len(rl.clients) != 1 {
		t.Errorf("clients = %d, want only the fresh one", len(rl.clients))
	}
}

// TestRateLimit_KeysOnHost tests that the port does not split one client into many.
func TestRateLimit_KeysOnHost(t *testing.T) {
	handler := RateLimit(NewRateLimiter(1, time.Hour))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, port := range []string{"5000", "5001"} {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = "192.0.2.7:" + port
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		want := http.StatusOK
		if i == 1 {
			want = http.StatusTooManyRequests
		}
		if rr.Code != want {
			t.Errorf("request %d: status %d, want %d", i, rr.Code, want)
		}
		if i == 1 && rr.Header().Get("Retry-After") == "" {
			t.Error("limited response has no Retry-After")
		}
	}
}

// TestSecurityHeaders tests the headers on every response.
func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if csp := rr.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "img-src 'self'") {
		t.Errorf("CSP = %q", csp)
	}
}

// TestCSRF_RejectsFormWithoutToken tests that console forms need a token.
func TestCSRF_RejectsFormWithoutToken(t *testing.T) {
	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		CSRF([]byte(strings.Repeat("k", 32)), false, nil),
		PlaintextHTTP,
	)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GET status = %d", rr.Code)
	}

	req := httptest.NewRequest("POST", "/members/form", strings.NewReader("nombre=Ana"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("POST without token = %d, want 403", rr.Code)
	}
}

// TestChain_Order tests that the last middleware runs first.
func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), mark("inner"), mark("outer")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v", order)
	}
}
