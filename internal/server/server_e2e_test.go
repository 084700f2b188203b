package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/broadcast"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLiveServer(t *testing.T) (*httptest.Server, *broadcast.Registry) {
	t.Helper()

	registry := broadcast.NewRegistry(broadcast.Config{
		HeartbeatInterval:     30 * time.Second,
		HeartbeatIntervalDiff: 5 * time.Second,
		SendBufferSize:        16,
		MaxMessageBytes:       1024,
	}, clockwork.NewFakeClock(), nil)
	t.Cleanup(registry.Stop)

	env := newTestServer(t, withRegistry(registry, registry))
	ts := httptest.NewServer(env.srv)
	t.Cleanup(ts.Close)

	return ts, registry
}

func getBody(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func dialWebSocket(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestEndToEnd_SetCheckboxBroadcasts(t *testing.T) {
	ts, registry := startLiveServer(t)

	assert.JSONEq(t, `{"length":5,"checkboxes":[0,0,0,0,0]}`, getBody(t, ts.URL+"/checkboxes"))

	conn := dialWebSocket(t, ts)
	assert.JSONEq(t, `{"type":"hello","data":{"heartbeatInterval":30000}}`, readFrame(t, conn))
	require.Eventually(t, func() bool { return registry.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Post(ts.URL+"/set-checkbox", "application/json", strings.NewReader(`{"checkbox":2,"state":true}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(body))

	assert.JSONEq(t, `{"type":"checkbox-update","data":{"checkbox":2,"state":1}}`, readFrame(t, conn))
	assert.JSONEq(t, `{"length":5,"checkboxes":[0,0,1,0,0]}`, getBody(t, ts.URL+"/checkboxes"))
}

func TestEndToEnd_WebSocketConsumesAdmission(t *testing.T) {
	ts, registry := startLiveServer(t)

	for range 3 {
		dialWebSocket(t, ts)
	}
	require.Eventually(t, func() bool { return registry.Count() == 3 }, 2*time.Second, 5*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, false, payload["success"])
}

func TestEndToEnd_UnknownRouteRedirects(t *testing.T) {
	ts, _ := startLiveServer(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := client.Get(ts.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}
