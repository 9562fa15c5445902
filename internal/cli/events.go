package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/Merdeus/dndinventory/internal/model"
)

func newEventsCmd() *cobra.Command {
	var (
		jsonOutput   bool
		useWebSocket bool
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "events <registration-token>",
		Short: "Open the event stream for a registration token",
		Long: `Redeem a registration token and stream events in real-time.

The first event is "register"; its command token and resume credential are
saved to the token file so other commands can act for this connection.

Events include:
  - game_info: full game state for this role
  - item_list: the prefab catalogue (DM only)
  - inventory_update / item_removal: an item changed or left an inventory
  - gold_update: a player's gold changed
  - selling_toggled: selling was enabled or disabled
  - notification: a human-readable message
  - loot_list_update: the whole loot pool
  - loot_resolved: a loot round was distributed

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Set up cancellation
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := &eventStream{jsonOutput: jsonOutput, limit: limit}
			if useWebSocket {
				return s.readWebSocket(ctx, args[0])
			}
			return s.readSSE(ctx, args[0])
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().BoolVar(&useWebSocket, "ws", false, "Use the WebSocket transport instead of SSE")
	cmd.Flags().IntVar(&limit, "limit", 0, "Disconnect after this many events (0 streams until interrupted)")

	return cmd
}

// StreamEvent represents a received event
type StreamEvent struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// errStreamDone ends a stream once the event limit is reached
var errStreamDone = errors.New("event limit reached")

type eventStream struct {
	jsonOutput bool
	limit      int
	seen       int
}

func (s *eventStream) readSSE(ctx context.Context, token string) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/register/" + token

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	httpClient := &http.Client{
		Timeout: 0, // No timeout for SSE
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Code != "" {
			return fmt.Errorf("%s", errResp.Error.String())
		}
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	// Parse SSE stream
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			// End of event
			if currentEvent != "" {
				err := s.handle(currentEvent, []byte(strings.Join(dataLines, "\n")))
				if errors.Is(err, errStreamDone) {
					return nil
				}
				if err != nil {
					return err
				}
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil {
		// Context cancellation is expected
		if ctx.Err() != nil {
			s.disconnected()
			return nil
		}
		return fmt.Errorf("stream error: %w", err)
	}

	s.disconnected()
	return nil
}

func (s *eventStream) readWebSocket(ctx context.Context, token string) error {
	url := "ws" + strings.TrimPrefix(strings.TrimSuffix(cfg.ServerURL, "/"), "http") + "/api/v1/ws/" + token

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed: unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.disconnected()
				return nil
			}
			return fmt.Errorf("stream error: %w", err)
		}

		err := s.handle(frame.Event, frame.Data)
		if errors.Is(err, errStreamDone) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// handle prints an event and stores the tokens carried by register
func (s *eventStream) handle(event string, data []byte) error {
	if event == string(model.EventRegister) {
		var reg model.RegisterPayload
		if err := json.Unmarshal(data, &reg); err != nil {
			return fmt.Errorf("invalid register event: %w", err)
		}
		if err := cfg.SaveToken(reg.Token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		if err := cfg.SaveCredential(reg.ResyncCredential); err != nil {
			return fmt.Errorf("failed to save credential: %w", err)
		}
		if !s.jsonOutput {
			fmt.Printf("Connected as client %d\n", reg.ClientID)
		}
	}

	printEvent(event, data, s.jsonOutput)

	s.seen++
	if s.limit > 0 && s.seen >= s.limit {
		return errStreamDone
	}
	return nil
}

func (s *eventStream) disconnected() {
	if !s.jsonOutput {
		fmt.Println("Disconnected")
	}
}

func printEvent(event string, data []byte, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		evt := StreamEvent{
			Time:  now,
			Event: event,
			Data:  json.RawMessage(data),
		}
		if !json.Valid(data) {
			evt.Data, _ = json.Marshal(string(data))
		}
		jsonData, _ := json.Marshal(evt)
		fmt.Println(string(jsonData))
	} else {
		timestamp := now.Format("2006-01-02 15:04:05")
		// Truncate data if it's too long for display
		displayData := string(data)
		if len(displayData) > 100 {
			displayData = displayData[:100] + "..."
		}
		// Remove newlines for cleaner display
		displayData = strings.ReplaceAll(displayData, "\n", " ")
		fmt.Printf("[%s] %s: %s\n", timestamp, event, displayData)
	}
}
