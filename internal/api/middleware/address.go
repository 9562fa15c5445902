package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const addressContextKey contextKey = "address"

// ClientAddress records the requester's network address in the request
// context. Tokens are bound to this address. With trustProxy the first
// X-Forwarded-For entry wins over the socket peer.
func ClientAddress(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := remoteHost(r.RemoteAddr)
			if trustProxy {
				if forwarded := forwardedFor(r); forwarded != "" {
					addr = forwarded
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), addressContextKey, addr)))
		})
	}
}

// GetAddress returns the address ClientAddress recorded
func GetAddress(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(addressContextKey).(string)
	return addr, ok
}

// MustGetAddress returns the recorded address and panics without one.
// Only use on routes behind ClientAddress.
func MustGetAddress(ctx context.Context) string {
	addr, ok := GetAddress(ctx)
	if !ok {
		panic("client address not in context - ClientAddress middleware not applied")
	}
	return addr
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func forwardedFor(r *http.Request) string {
	header := r.Header.Get("X-Forwarded-For")
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}
