package handler

import (
	"net/http"

	"github.com/Merdeus/dndinventory/internal/api/response"
	"github.com/Merdeus/dndinventory/internal/services/session"
)

// HealthHandler reports liveness and session counts
type HealthHandler struct {
	registry *session.Registry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry *session.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// Get handles GET /api/v1/health
func (h *HealthHandler) Get(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{
		Status:        "ok",
		Connections:   h.registry.ConnectionCount(),
		PendingGrants: h.registry.PendingGrants(),
	})
}
