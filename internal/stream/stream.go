package stream

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/session"
)

// Config holds configuration for streaming transports
type Config struct {
	// KeepaliveInterval is the time between keepalives on an idle stream
	KeepaliveInterval time.Duration
	// WriteWait bounds a single WebSocket write
	WriteWait time.Duration
}

// DefaultConfig returns default streaming configuration
func DefaultConfig() Config {
	return Config{
		KeepaliveInterval: 15 * time.Second,
		WriteWait:         10 * time.Second,
	}
}

// Server delivers connection outboxes to clients. A stream owns its
// connection: when the stream ends the connection is evicted.
type Server struct {
	registry *session.Registry
	logger   *slog.Logger
	cfg      Config
}

// New creates a Server
func New(registry *session.Registry, logger *slog.Logger, cfg Config) *Server {
	defaults := DefaultConfig()
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = defaults.KeepaliveInterval
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	return &Server{
		registry: registry,
		logger:   logger.With(slog.String("component", "stream")),
		cfg:      cfg,
	}
}

// registerMessage is the first event of every stream. It hands the client
// the tokens it needs for commands and for resuming later.
func registerMessage(handle *session.Handle) (session.Message, error) {
	data, err := json.Marshal(model.RegisterPayload{
		ClientID:         handle.Conn.ClientID,
		PlayerID:         handle.Conn.Player(),
		Token:            handle.CommandToken,
		ResyncCredential: handle.ResumeCredential,
	})
	if err != nil {
		return session.Message{}, err
	}
	return session.Message{Event: model.EventRegister, Data: data}, nil
}

func (s *Server) closed(handle *session.Handle, transport string, reason string) {
	s.registry.Evict(handle.Conn.ClientID)
	s.logger.Info("stream closed",
		slog.Int64("client_id", handle.Conn.ClientID),
		slog.String("transport", transport),
		slog.String("reason", reason))
}
