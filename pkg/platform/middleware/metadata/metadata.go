// Package metadata captures client network metadata for audit records of
// unauthenticated share-link access.
package metadata

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyClient struct{}

// Client describes who is calling. Device is a short human-readable summary
// of the User-Agent such as "Firefox 121.0 on Linux".
type Client struct {
	IP        string
	UserAgent string
	Device    string
}

// ClientMetadata extracts the client IP and User-Agent from the request and
// stores them in the context. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := WithClient(r.Context(), Client{
			IP:        ClientIPFromRequest(r),
			UserAgent: ua,
			Device:    DescribeUserAgent(ua),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithClient injects client metadata into a context. Useful for service
// tests that do not run the HTTP middleware chain.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, contextKeyClient{}, c)
}

// FromContext returns the client metadata, or the zero value.
func FromContext(ctx context.Context) Client {
	c, _ := ctx.Value(contextKeyClient{}).(Client)
	return c
}

// DescribeUserAgent summarises a User-Agent header. Bots are reported as
// "bot: <name>"; an empty header yields "".
func DescribeUserAgent(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	ua := useragent.New(header)
	name, version := ua.Browser()
	if ua.Bot() {
		return "bot: " + name
	}
	desc := name
	if version != "" {
		desc += " " + version
	}
	if osName := ua.OS(); osName != "" {
		desc += " on " + osName
	}
	if ua.Mobile() {
		desc += " (mobile)"
	}
	return strings.TrimSpace(desc)
}

// ClientIPFromRequest returns the originating client IP, preferring proxy
// headers over the socket address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
