package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/csvnome/internal/core"
)

// clientIP returns the request's client address without the port.
// RemoteAddr has already been rewritten by TrustedRealIP when the request
// came through a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// withRequestMetadata adds the client IP and User-Agent recorded in history.
func withRequestMetadata(r *http.Request) context.Context {
	ctx := core.ContextWithIPAddress(r.Context(), clientIP(r))
	return core.ContextWithUserAgent(ctx, r.UserAgent())
}
