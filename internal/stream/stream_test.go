package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/Merdeus/dndinventory/internal/dependencies/mocks"
	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/broadcast"
	"github.com/Merdeus/dndinventory/internal/services/session"
	"github.com/Merdeus/dndinventory/internal/services/tokens"
	"github.com/Merdeus/dndinventory/internal/storage/memory"
	"github.com/Merdeus/dndinventory/internal/testutil"
)

const addr = "192.0.2.10"

type StreamSuite struct {
	suite.Suite
	ctx      context.Context
	registry *session.Registry
	router   *broadcast.Router
	server   *httptest.Server
	game     *model.Game
	player   *model.Player
}

func TestStreamSuite(t *testing.T) {
	suite.Run(t, new(StreamSuite))
}

func (s *StreamSuite) SetupTest() {
	s.ctx = context.Background()
	store := memory.New()
	codec, err := tokens.New([]byte("stream-test-secret"), 0)
	s.Require().NoError(err)
	clk := mocks.NewMockClock(time.Date(2024, 5, 4, 20, 0, 0, 0, time.UTC))
	logger := testutil.NopLogger()
	s.registry = session.New(store, codec, clk, nil, logger, session.DefaultConfig())
	s.router = broadcast.New(s.registry, nil, logger)

	s.game = &model.Game{Name: "Descent into Avernus", JoinCode: "AVERNU"}
	s.Require().NoError(store.CreateGame(s.ctx, s.game))
	s.player = &model.Player{GameID: s.game.ID, Name: "Karlach"}
	s.Require().NoError(store.CreatePlayer(s.ctx, s.player))

	streams := New(s.registry, logger, Config{KeepaliveInterval: 50 * time.Millisecond, WriteWait: time.Second})
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		handle, err := s.registry.RedeemGrant(r.URL.Query().Get("token"), addr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		streams.ServeSSE(w, r, handle)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handle, err := s.registry.RedeemGrant(r.URL.Query().Get("token"), addr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		streams.ServeWebSocket(w, r, handle)
	})
	s.server = httptest.NewServer(mux)
}

func (s *StreamSuite) TearDownTest() {
	s.server.Close()
}

func (s *StreamSuite) grant() string {
	grant, err := s.registry.IssueGrant(s.ctx, s.game.ID, s.player.ID, addr)
	s.Require().NoError(err)
	return grant.Token
}

type sseEvent struct {
	event string
	data  string
}

// readEvent returns the next event, skipping keepalive comments
func readEvent(r *bufio.Reader) (sseEvent, error) {
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return ev, err
		}
		line = strings.TrimSuffix(line, "\n")
		switch {
		case line == "":
			if ev.event != "" {
				return ev, nil
			}
		case strings.HasPrefix(line, "event: "):
			ev.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func (s *StreamSuite) openSSE() (*http.Response, *bufio.Reader, model.RegisterPayload) {
	resp, err := http.Get(s.server.URL + "/sse?token=" + s.grant())
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	ev, err := readEvent(reader)
	s.Require().NoError(err)
	s.Require().Equal(string(model.EventRegister), ev.event)

	var reg model.RegisterPayload
	s.Require().NoError(json.Unmarshal([]byte(ev.data), &reg))
	return resp, reader, reg
}

// SSE tests

func (s *StreamSuite) TestSSEStartsWithRegister() {
	resp, _, reg := s.openSSE()
	defer resp.Body.Close()

	s.NotZero(reg.ClientID)
	s.NotEmpty(reg.Token)
	s.NotEmpty(reg.ResyncCredential)
	s.Require().NotNil(reg.PlayerID)
	s.Equal(s.player.ID, *reg.PlayerID)
}

func (s *StreamSuite) TestSSEGrantIsSingleUse() {
	token := s.grant()
	resp, err := http.Get(s.server.URL + "/sse?token=" + token)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	again, err := http.Get(s.server.URL + "/sse?token=" + token)
	s.Require().NoError(err)
	defer again.Body.Close()
	s.Equal(http.StatusUnauthorized, again.StatusCode)
}

func (s *StreamSuite) TestSSEDeliversInOrder() {
	resp, reader, _ := s.openSSE()
	defer resp.Body.Close()

	s.router.Notify(s.game.ID, broadcast.AllInGame(), "first")
	s.router.Notify(s.game.ID, broadcast.AllInGame(), "second")

	for _, want := range []string{"first", "second"} {
		ev, err := readEvent(reader)
		s.Require().NoError(err)
		s.Equal(string(model.EventNotification), ev.event)
		s.JSONEq(`{"msg":"`+want+`"}`, ev.data)
	}
}

func (s *StreamSuite) TestSSESendsKeepalive() {
	resp, reader, _ := s.openSSE()
	defer resp.Body.Close()

	line, err := reader.ReadString('\n')
	s.Require().NoError(err)
	s.Equal(": keepalive\n", line)
}

func (s *StreamSuite) TestSSEEvictionEndsStream() {
	resp, reader, reg := s.openSSE()
	defer resp.Body.Close()

	s.registry.Evict(reg.ClientID)

	_, err := readEvent(reader)
	s.ErrorIs(err, io.EOF)
}

func (s *StreamSuite) TestSSEDisconnectEvicts() {
	resp, _, _ := s.openSSE()
	s.Equal(1, s.registry.ConnectionCount())

	s.Require().NoError(resp.Body.Close())
	s.Eventually(func() bool {
		return s.registry.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// WebSocket tests

func (s *StreamSuite) dialWS() (*websocket.Conn, model.RegisterPayload) {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + s.grant()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)

	var frame Frame
	s.Require().NoError(conn.ReadJSON(&frame))
	s.Require().Equal(model.EventRegister, frame.Event)
	var reg model.RegisterPayload
	s.Require().NoError(json.Unmarshal(frame.Data, &reg))
	return conn, reg
}

func (s *StreamSuite) TestWebSocketDeliversFrames() {
	conn, reg := s.dialWS()
	defer conn.Close()
	s.NotEmpty(reg.Token)

	s.router.GoldUpdated(s.game.ID, s.player.ID, 42)

	var frame Frame
	s.Require().NoError(conn.ReadJSON(&frame))
	s.Equal(model.EventGoldUpdate, frame.Event)
	s.JSONEq(`{"playerid":1,"gold":42}`, string(frame.Data))
}

func (s *StreamSuite) TestWebSocketEvictionCloses() {
	conn, reg := s.dialWS()
	defer conn.Close()

	s.registry.Evict(reg.ClientID)

	_, _, err := conn.ReadMessage()
	s.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func (s *StreamSuite) TestWebSocketDisconnectEvicts() {
	conn, _ := s.dialWS()
	s.Equal(1, s.registry.ConnectionCount())

	s.Require().NoError(conn.Close())
	s.Eventually(func() bool {
		return s.registry.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
