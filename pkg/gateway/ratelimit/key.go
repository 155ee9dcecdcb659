package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/anay-go/anay/pkg/gateway/auth"
)

// AnonymousKey is the bucket for callers with neither a key nor an address.
const AnonymousKey = "anonymous"

// RequestKey names the bucket a request is charged to: the caller's bearer
// key when it authenticated, otherwise its client IP. Both are hashed.
// X-Real-IP and X-Forwarded-For are read only when trustForwarded is set,
// for a gateway running behind a reverse proxy on the same host.
func RequestKey(r *http.Request, trustForwarded bool) string {
	if r == nil {
		return AnonymousKey
	}
	if p, ok := auth.PrincipalFrom(r.Context()); ok && p != nil && strings.TrimSpace(p.APIKey) != "" {
		return PrincipalKeyFromAPIKey(p.APIKey)
	}
	if ip := clientIP(r, trustForwarded); ip != nil {
		return PrincipalKeyFromIP(ip.String())
	}
	return AnonymousKey
}

func clientIP(r *http.Request, trustForwarded bool) net.IP {
	if trustForwarded {
		if ip := parseHostIP(r.Header.Get("X-Real-IP")); ip != nil {
			return ip
		}
		// Left-most entry is the original client.
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if ip := parseHostIP(first); ip != nil {
			return ip
		}
	}
	return parseHostIP(r.RemoteAddr)
}

// parseHostIP accepts "ip" or "ip:port".
func parseHostIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	return net.ParseIP(s)
}
