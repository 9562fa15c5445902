package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Merdeus/dndinventory/internal/api/handler"
	apimiddleware "github.com/Merdeus/dndinventory/internal/api/middleware"
	"github.com/Merdeus/dndinventory/internal/dispatch"
	"github.com/Merdeus/dndinventory/internal/metrics"
	"github.com/Merdeus/dndinventory/internal/middleware"
	"github.com/Merdeus/dndinventory/internal/services/session"
	"github.com/Merdeus/dndinventory/internal/stream"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger     *slog.Logger
	Registry   *session.Registry
	Dispatcher *dispatch.Dispatcher
	Streams    *stream.Server
	Metrics    *metrics.Metrics
	// TrustProxy takes the client address from X-Forwarded-For
	TrustProxy bool
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	actionHandler := handler.NewActionHandler(cfg.Dispatcher)
	streamHandler := handler.NewStreamHandler(cfg.Registry, cfg.Streams)
	healthHandler := handler.NewHealthHandler(cfg.Registry)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Logging(cfg.Logger))
	api.Use(apimiddleware.Recovery(cfg.Logger))
	api.Use(apimiddleware.ClientAddress(cfg.TrustProxy))

	// Commands
	api.HandleFunc("/action", actionHandler.Submit).Methods(http.MethodPost)

	// Streams, opened with a registration token from selectPlayer or resync
	api.HandleFunc("/register/{token}", streamHandler.SSE).Methods(http.MethodGet)
	api.HandleFunc("/ws/{token}", streamHandler.WebSocket).Methods(http.MethodGet)

	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)

	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	return r
}
