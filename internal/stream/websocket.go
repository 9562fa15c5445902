package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Frame is one WebSocket text frame
type Frame struct {
	Event model.EventType `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServeWebSocket upgrades the request and streams the connection's outbox
// as JSON frames. Anything the client sends is discarded; commands go
// through the action endpoint.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request, handle *session.Handle) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.registry.Evict(handle.Conn.ClientID)
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	reason := "client disconnected"
	defer func() {
		_ = conn.Close()
		s.closed(handle, "websocket", reason)
	}()

	gone := make(chan struct{})
	go s.readPump(conn, gone)

	register, err := registerMessage(handle)
	if err != nil {
		reason = "encode register"
		return
	}
	if err := s.writeFrame(conn, register); err != nil {
		reason = "write failed"
		return
	}

	s.logger.Info("websocket stream opened",
		slog.Int64("client_id", handle.Conn.ClientID),
		slog.Int64("game_id", int64(handle.Conn.GameID)))

	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()

	outbox := handle.Conn.Outbox
	for {
		select {
		case <-outbox.Ready():
			for _, msg := range outbox.Drain() {
				if err := s.writeFrame(conn, msg); err != nil {
					reason = "write failed"
					return
				}
			}
			if outbox.Closed() {
				reason = "evicted"
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "evicted"),
					time.Now().Add(s.cfg.WriteWait))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				reason = "ping failed"
				return
			}

		case <-gone:
			return
		}
	}
}

// readPump discards client frames and closes gone once the peer hangs up
func (s *Server) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, msg session.Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	return conn.WriteJSON(Frame{Event: msg.Event, Data: msg.Data})
}
