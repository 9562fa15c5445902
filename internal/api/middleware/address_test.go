package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func addressOf(trustProxy bool, req *http.Request) string {
	var got string
	ClientAddress(trustProxy)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = MustGetAddress(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestClientAddressUsesPeerHost(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	assert.Equal(t, "203.0.113.9", addressOf(false, req))
}

func TestClientAddressTrustsProxyWhenConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:443"
	req.Header.Set("X-Forwarded-For", " 198.51.100.1 , 10.0.0.1")

	assert.Equal(t, "198.51.100.1", addressOf(true, req))
}

func TestClientAddressFallsBackWithoutHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:443"

	assert.Equal(t, "10.0.0.2", addressOf(true, req))
}

func TestMustGetAddressPanicsWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Panics(t, func() { MustGetAddress(req.Context()) })
}
