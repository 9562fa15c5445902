package api_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Merdeus/dndinventory/internal/api/apierr"
	"github.com/Merdeus/dndinventory/internal/api/response"
	"github.com/Merdeus/dndinventory/internal/dispatch"
	"github.com/Merdeus/dndinventory/internal/factory"
	"github.com/Merdeus/dndinventory/internal/middleware"
	"github.com/Merdeus/dndinventory/internal/model"
)

// testServer serves a TestApp over a real listener so streams and the
// client address behave as in production
type testServer struct {
	app *factory.TestApp
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return &testServer{app: app, srv: srv}
}

func (ts *testServer) action(t *testing.T, body map[string]any) (*http.Response, []byte) {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.srv.URL+"/api/v1/action", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (ts *testServer) mustAction(t *testing.T, body map[string]any, data any) {
	t.Helper()

	resp, raw := ts.action(t, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var result response.ActionResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.True(t, result.OK)
	if data != nil {
		require.NoError(t, json.Unmarshal(result.Data, data))
	}
}

func decodeError(t *testing.T, raw []byte) apierr.APIError {
	t.Helper()

	var errResp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &errResp))
	return errResp.Error
}

// newSession creates a game and returns a registration token for its DM
func (ts *testServer) newSession(t *testing.T) (dispatch.SessionPayload, string) {
	t.Helper()

	ts.app.MockRandom.QueueString("GOBLIN")
	var session dispatch.SessionPayload
	ts.mustAction(t, map[string]any{"action": "createSession", "name": "Phandelver", "dm_pass": "cragmaw"}, &session)

	var grant dispatch.GrantPayload
	ts.mustAction(t, map[string]any{
		"action": "selectPlayer", "gameid": session.Game.ID, "playerid": model.DMPlayerID, "dm_pass": "cragmaw",
	}, &grant)
	return session, grant.RegistrationToken
}

// readEvent reads one SSE event, skipping keepalive comments
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()

	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var health response.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Zero(t, health.Connections)
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.RequestIDHeader, "table-7")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "table-7", resp.Header.Get(middleware.RequestIDHeader))
}

func TestCreateAndJoinSession(t *testing.T) {
	ts := newTestServer(t)

	session, token := ts.newSession(t)
	assert.Equal(t, model.JoinCode("GOBLIN"), session.Game.JoinCode)
	assert.NotEmpty(t, token)

	_, err := ts.app.Inventory.CreatePlayer(t.Context(), session.Game.ID, "Sildar", 10)
	require.NoError(t, err)

	var joined dispatch.SessionPayload
	ts.mustAction(t, map[string]any{"action": "joinSession", "code": "goblin"}, &joined)
	assert.Equal(t, session.Game.ID, joined.Game.ID)
	require.Len(t, joined.Players, 1)
	assert.Equal(t, "Sildar", joined.Players[0].Name)
	assert.Equal(t, 10, joined.Players[0].Gold)
}

func TestActionErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"unknown action", map[string]any{"action": "CastFireball"}, http.StatusBadRequest, apierr.CodeUnknownAction},
		{"missing action", map[string]any{"token": "x"}, http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"bad token", map[string]any{"action": "GetGameInfo", "token": "1.forged"}, http.StatusUnauthorized, apierr.CodeInvalidOrExpiredToken},
		{"unknown join code", map[string]any{"action": "joinSession", "code": "NOPE00"}, http.StatusNotFound, apierr.CodeGameNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := ts.action(t, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, raw).Code)
		})
	}
}

func TestWrongDMPassword(t *testing.T) {
	ts := newTestServer(t)
	session, _ := ts.newSession(t)

	resp, raw := ts.action(t, map[string]any{
		"action": "selectPlayer", "gameid": session.Game.ID, "playerid": model.DMPlayerID, "dm_pass": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apierr.CodeInvalidDMPassword, decodeError(t, raw).Code)
}

func TestSSERegisterAndCommand(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.newSession(t)

	resp, err := http.Get(ts.srv.URL + "/api/v1/register/" + token)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := bufio.NewReader(resp.Body)
	event, data := readEvent(t, events)
	require.Equal(t, string(model.EventRegister), event)

	var reg model.RegisterPayload
	require.NoError(t, json.Unmarshal([]byte(data), &reg))
	assert.Nil(t, reg.PlayerID)
	assert.NotEmpty(t, reg.ResyncCredential)

	ts.mustAction(t, map[string]any{"action": "CreatePlayer", "token": reg.Token, "player_name": "Gundren"}, nil)

	event, data = readEvent(t, events)
	assert.Equal(t, string(model.EventGameInfo), event)
	assert.Contains(t, data, "Gundren")

	// the grant is single use
	again, err := http.Get(ts.srv.URL + "/api/v1/register/" + token)
	require.NoError(t, err)
	defer again.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, again.StatusCode)
}

func TestWebSocketRegister(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.newSession(t)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/ws/" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, string(model.EventRegister), frame.Event)

	assert.Eventually(t, func() bool {
		return ts.app.Registry.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.action(t, map[string]any{"action": "CastFireball"})

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `dndinv_actions_total{action="unknown",outcome="malformed"} 1`)
}
