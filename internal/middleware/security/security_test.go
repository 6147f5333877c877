package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"direct connection", "203.0.113.7:1234", nil, "203.0.113.7"},
		{"untrusted proxy headers ignored", "203.0.113.7:1234", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "203.0.113.7"},
		{"trusted proxy forwards", "10.0.0.2:80", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.2"}, "1.2.3.4"},
		{"trusted proxy real ip", "127.0.0.1:80", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"invalid forwarded value", "192.168.1.1:80", map[string]string{"X-Forwarded-For": "not-an-ip"}, "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}

	if d.GetMetrics().InvalidIPAttempts != 1 {
		t.Errorf("InvalidIPAttempts = %d, want 1", d.GetMetrics().InvalidIPAttempts)
	}
}

func TestInspect(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name      string
		method    string
		target    string
		userAgent string
		want      string
	}{
		{"normal listing", http.MethodGet, "/api/transactions?month=3&search=usb", "Mozilla/5.0", ""},
		{"price search", http.MethodGet, "/api/transactions?search=100%25", "Mozilla/5.0", ""},
		{"dollar inside term", http.MethodGet, "/api/transactions?search=us%24", "", ""},
		{"seed", http.MethodPost, "/api/init/seed", "curl/8.0", ""},
		{"path traversal", http.MethodGet, "/api/../../etc/passwd", "", ReasonPathScan},
		{"dotenv", http.MethodGet, "/.env", "", ReasonPathScan},
		{"operator key", http.MethodGet, "/api/transactions?month%5B%24gt%5D=0", "", ReasonQueryOperator},
		{"operator value", http.MethodGet, "/api/transactions?search=%24where", "", ReasonQueryOperator},
		{"json operator value", http.MethodGet, "/api/transactions?search=%7B%22%24ne%22%3A1%7D", "", ReasonQueryOperator},
		{"script in search", http.MethodGet, "/api/transactions?search=%3CScript%3E", "", ReasonScriptInQuery},
		{"scanner agent", http.MethodGet, "/api/transactions", "sqlmap/1.7", ReasonScanner},
		{"trace method", http.MethodTrace, "/api/transactions", "", ReasonMethod},
		{"long url", http.MethodGet, "/api/transactions?search=" + strings.Repeat("a", maxURLLength), "", ReasonLongURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.userAgent)
			if got := d.Inspect(r); got != tt.want {
				t.Errorf("Inspect(%s %s) = %q, want %q", tt.method, tt.target, got, tt.want)
			}
		})
	}

	if got := d.GetMetrics().SuspiciousRequests; got != 9 {
		t.Errorf("SuspiciousRequests = %d, want 9", got)
	}
}

func TestDetectorMiddlewarePassesThrough(t *testing.T) {
	d := NewDetector()
	called := false
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	r := httptest.NewRequest(http.MethodGet, "/.env", nil)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if !called {
		t.Error("suspicious request should still reach the handler")
	}
	if d.GetMetrics().SuspiciousRequests != 1 {
		t.Errorf("SuspiciousRequests = %d", d.GetMetrics().SuspiciousRequests)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))

	for name, want := range map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
		"Cross-Origin-Resource-Policy": "cross-origin",
		"Cache-Control":                "no-store",
	} {
		if got := rr.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	rr = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	r.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, r)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}
