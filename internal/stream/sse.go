package stream

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Merdeus/dndinventory/internal/services/session"
)

// ServeSSE streams the connection's outbox as server-sent events until the
// client goes away or the connection is evicted
func (s *Server) ServeSSE(w http.ResponseWriter, r *http.Request, handle *session.Handle) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.registry.Evict(handle.Conn.ClientID)
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	reason := "client disconnected"
	defer func() { s.closed(handle, "sse", reason) }()

	register, err := registerMessage(handle)
	if err != nil {
		reason = "encode register"
		return
	}
	if err := writeEvent(w, register); err != nil {
		reason = "write failed"
		return
	}
	flusher.Flush()

	s.logger.Info("sse stream opened",
		slog.Int64("client_id", handle.Conn.ClientID),
		slog.Int64("game_id", int64(handle.Conn.GameID)))

	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()

	outbox := handle.Conn.Outbox
	for {
		select {
		case <-outbox.Ready():
			for _, msg := range outbox.Drain() {
				if err := writeEvent(w, msg); err != nil {
					reason = "write failed"
					return
				}
			}
			flusher.Flush()
			if outbox.Closed() {
				reason = "evicted"
				return
			}

		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				reason = "write failed"
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w io.Writer, msg session.Message) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
	return err
}
