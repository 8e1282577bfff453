package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanshub16/upnext-jukebox/jukebox"
)

type wsFrame struct {
	Event   string          `json:"event"`
	Ack     string          `json:"ack"`
	Payload json.RawMessage `json:"payload"`
}

func dialJukebox(t *testing.T, svc jukebox.Service, token string) (*websocket.Conn, error) {
	t.Helper()
	r, _ := newTestRouter(t, svc)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Cleanup(func() { ws.Close() })
	}
	return ws, err
}

func next(t *testing.T, ws *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wsFrame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestWebsocketRequiresToken(t *testing.T) {
	_, err := dialJukebox(t, &fakeService{}, "")
	assert.Error(t, err)
}

func TestWebsocketStateOnConnect(t *testing.T) {
	ws, err := dialJukebox(t, &fakeService{volume: 0.7}, tokenFor(t, User{UserID: "u1", Username: "Ann"}))
	require.NoError(t, err)

	f := next(t, ws)
	assert.Equal(t, jukebox.EventState, f.Event)
	var state jukebox.State
	require.NoError(t, json.Unmarshal(f.Payload, &state))
	assert.Nil(t, state.NowPlaying)
	assert.Equal(t, 0.7, state.Volume)
}

func TestWebsocketGetStateUnicastsEachPart(t *testing.T) {
	ws, err := dialJukebox(t, &fakeService{volume: 0.3}, tokenFor(t, User{UserID: "u1"}))
	require.NoError(t, err)
	next(t, ws) // state on connect

	require.NoError(t, ws.WriteJSON(map[string]string{"event": jukebox.EventGetState, "ack": "1"}))

	var events []string
	for i := 0; i < 5; i++ {
		events = append(events, next(t, ws).Event)
	}
	assert.Equal(t, []string{
		jukebox.EventNowPlaying,
		jukebox.EventQueueUpdate,
		jukebox.EventProcessing,
		jukebox.EventVolumeChange,
		"ack",
	}, events)
}

func TestWebsocketFailuresAreAcked(t *testing.T) {
	svc := &fakeService{skipErr: jukebox.ErrNothingPlaying}
	ws, err := dialJukebox(t, svc, tokenFor(t, User{UserID: "u1", Username: "Ann"}))
	require.NoError(t, err)
	next(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"event": jukebox.EventSkip, "ack": "7"}))
	f := next(t, ws)
	assert.Equal(t, "ack", f.Event)
	assert.Equal(t, "7", f.Ack)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Payload, &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, jukebox.Reason(jukebox.ErrNothingPlaying), body["error"])

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, jukebox.Requester{ID: "u1", Name: "Ann"}, svc.lastWho)
}

func TestWebsocketAddSong(t *testing.T) {
	svc := &fakeService{}
	ws, err := dialJukebox(t, svc, tokenFor(t, User{UserID: "u1"}))
	require.NoError(t, err)
	next(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"event":   jukebox.EventAddSong,
		"ack":     "2",
		"payload": map[string]string{"id": "dQw4w9WgXcQ"},
	}))
	f := next(t, ws)
	require.Equal(t, "ack", f.Event)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Payload, &body))
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "dQw4w9WgXcQ")
}
