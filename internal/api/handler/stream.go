package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Merdeus/dndinventory/internal/api/apierr"
	"github.com/Merdeus/dndinventory/internal/api/middleware"
	"github.com/Merdeus/dndinventory/internal/services/session"
	"github.com/Merdeus/dndinventory/internal/stream"
)

// StreamHandler redeems registration tokens and hands the connection to a
// streaming transport
type StreamHandler struct {
	registry *session.Registry
	streams  *stream.Server
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(registry *session.Registry, streams *stream.Server) *StreamHandler {
	return &StreamHandler{registry: registry, streams: streams}
}

// SSE handles GET /api/v1/register/{token}
func (h *StreamHandler) SSE(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.redeem(w, r)
	if !ok {
		return
	}
	h.streams.ServeSSE(w, r, handle)
}

// WebSocket handles GET /api/v1/ws/{token}
func (h *StreamHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.redeem(w, r)
	if !ok {
		return
	}
	h.streams.ServeWebSocket(w, r, handle)
}

func (h *StreamHandler) redeem(w http.ResponseWriter, r *http.Request) (*session.Handle, bool) {
	token := mux.Vars(r)["token"]
	handle, err := h.registry.RedeemGrant(token, middleware.MustGetAddress(r.Context()))
	if err != nil {
		apierr.WriteError(w, err)
		return nil, false
	}
	return handle, true
}
