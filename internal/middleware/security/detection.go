package security

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"transactions/internal/log"
)

// Reasons reported by Inspect.
const (
	ReasonPathScan      = "path_scan"
	ReasonQueryOperator = "query_operator"
	ReasonScriptInQuery = "script_in_query"
	ReasonScanner       = "scanner_agent"
	ReasonMethod        = "unusual_method"
	ReasonLongURL       = "long_url"
)

const maxURLLength = 2048

// Paths no route of this API serves; hits are almost always scanners.
var scannedPaths = []string{"../", "..\\", ".env", ".git", "wp-admin", "phpmyadmin", "etc/passwd"}

var scannerAgents = []string{"sqlmap", "nikto", "nmap", "gobuster", "masscan", "zgrab"}

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Detector flags requests that look like probing of the transactions API.
// It never blocks; the API is read-only apart from the rate limited seed.
type Detector struct {
	metrics        DetectionMetrics
	trustedProxies []*net.IPNet
}

func NewDetector() *Detector {
	d := &Detector{}
	for _, cidr := range []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		_, network, _ := net.ParseCIDR(cidr)
		d.trustedProxies = append(d.trustedProxies, network)
	}
	return d
}

// Inspect returns why r looks hostile, or "" for an ordinary request.
func (d *Detector) Inspect(r *http.Request) string {
	reason := inspect(r)
	if reason != "" {
		atomic.AddInt64(&d.metrics.SuspiciousRequests, 1)
	}
	return reason
}

func inspect(r *http.Request) string {
	switch r.Method {
	case http.MethodTrace, "TRACK", "DEBUG", http.MethodConnect:
		return ReasonMethod
	}
	if len(r.URL.RequestURI()) > maxURLLength {
		return ReasonLongURL
	}

	path := strings.ToLower(r.URL.Path)
	for _, p := range scannedPaths {
		if strings.Contains(path, p) {
			return ReasonPathScan
		}
	}

	// month[$gt]=0 or search=$where: operator injection aimed at a
	// document store. Keys and values are checked after decoding.
	values, _ := url.ParseQuery(r.URL.RawQuery)
	for key, vals := range values {
		if strings.ContainsAny(key, "[$") {
			return ReasonQueryOperator
		}
		for _, v := range vals {
			lv := strings.ToLower(v)
			if strings.HasPrefix(lv, "$") || strings.Contains(lv, "{\"$") {
				return ReasonQueryOperator
			}
			if strings.Contains(lv, "<script") || strings.Contains(lv, "javascript:") {
				return ReasonScriptInQuery
			}
		}
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, s := range scannerAgents {
		if strings.Contains(ua, s) {
			return ReasonScanner
		}
	}
	return ""
}

// Middleware logs suspicious requests and lets them through.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := d.Inspect(r); reason != "" {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(),
				"Suspicious request detected",
				log.FieldReason, reason,
				log.FieldClientIP, d.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the peer address, or the forwarded client address
// when the peer is a trusted proxy. Used as the rate limit key.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil || !d.trusted(ip) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
		atomic.AddInt64(&d.metrics.InvalidIPAttempts, 1)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

func (d *Detector) trusted(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.metrics.SuspiciousRequests),
		InvalidIPAttempts:  atomic.LoadInt64(&d.metrics.InvalidIPAttempts),
	}
}
