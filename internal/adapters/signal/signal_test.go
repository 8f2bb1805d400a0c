package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/internal/app"
	"github.com/voxhall/voxhall/internal/collab"
	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/domain"
)

type fakeVerifier struct {
	users map[string]domain.User
}

func (v *fakeVerifier) Verify(_ context.Context, token string) (domain.User, error) {
	u, ok := v.users[token]
	if !ok {
		return domain.User{}, errors.New("invalid token")
	}
	return u, nil
}

type fakeStore struct{}

func (fakeStore) GetChannel(_ context.Context, id domain.ChannelID) (domain.Channel, error) {
	if id == 7 {
		return domain.Channel{ID: 7, Type: domain.ChannelVoice, ServerID: 1}, nil
	}
	return domain.Channel{}, collab.ErrNotFound
}

func (fakeStore) IsMember(_ context.Context, _ domain.ServerID, _ domain.UserID) (bool, error) {
	return true, nil
}

func (fakeStore) SetOnline(_ context.Context, _ domain.UserID, _ bool) error {
	return nil
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ReadLimit:    32768,
		PingPeriod:   50 * time.Second,
		WriteTimeout: 2 * time.Second,
		SendBuffer:   64,
	}
	reg := app.NewRegistry()
	coord := app.NewCoordinator(reg, app.NewGate(fakeStore{}, 0), app.NewPresence(fakeStore{}, reg))
	verifier := &fakeVerifier{users: map[string]domain.User{
		"tok-a": {ID: 10, Username: "ada"},
		"tok-b": {ID: 11, Username: "bob"},
	}}
	ctl := NewController(coord, verifier, cfg)

	r := gin.New()
	r.GET("/api/ws", func(c *gin.Context) {
		ctl.HandleWS(context.Background(), c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	header := http.Header{}
	header.Set("Cookie", fmt.Sprintf("%s=%s", CookieName, token))
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

type wireEvent struct {
	Type         string          `json:"type"`
	ChannelID    int64           `json:"channelId"`
	ConnectionID string          `json:"connectionId"`
	From         string          `json:"from"`
	UserID       int64           `json:"userId"`
	Online       bool            `json:"online"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data"`
	Peers        []struct {
		ConnectionID string `json:"connectionId"`
	} `json:"peers"`
}

// awaitEvent reads frames until one of the wanted type arrives.
func awaitEvent(t *testing.T, ws *websocket.Conn, typ string) wireEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, ws.SetReadDeadline(deadline))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var e wireEvent
		require.NoError(t, json.Unmarshal(data, &e))
		if e.Type == typ {
			return e
		}
	}
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

func TestHandshakeRejectedWithoutValidToken(t *testing.T) {
	srv := testServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectAnnouncesPresence(t *testing.T) {
	srv := testServer(t)
	a := dial(t, srv, "tok-a")

	// The connecting client itself hears its own online transition.
	e := awaitEvent(t, a, app.EvtPresenceUpdate)
	assert.EqualValues(t, 10, e.UserID)
	assert.True(t, e.Online)

	dial(t, srv, "tok-b")
	e = awaitEvent(t, a, app.EvtPresenceUpdate)
	assert.EqualValues(t, 11, e.UserID)
	assert.True(t, e.Online)
}

func TestVoiceJoinAndSignalRoundTrip(t *testing.T) {
	srv := testServer(t)
	a := dial(t, srv, "tok-a")
	b := dial(t, srv, "tok-b")

	send(t, a, map[string]any{"type": "join-voice", "channelId": 7})
	peersA := awaitEvent(t, a, app.EvtVoicePeers)
	assert.Empty(t, peersA.Peers)

	send(t, b, map[string]any{"type": "join-voice", "channelId": 7})
	peersB := awaitEvent(t, b, app.EvtVoicePeers)
	require.Len(t, peersB.Peers, 1)
	peerA := peersB.Peers[0].ConnectionID

	joined := awaitEvent(t, a, app.EvtVoicePeerJoined)
	peerB := joined.ConnectionID
	require.NotEmpty(t, peerB)

	// B answers A's (hypothetical) offer through the relay.
	send(t, b, map[string]any{
		"type": "signal",
		"to":   peerA,
		"data": map[string]any{"type": "answer", "sdp": "v=0..."},
	})
	sig := awaitEvent(t, a, app.EvtSignal)
	assert.Equal(t, peerB, sig.From)
	assert.JSONEq(t, `{"type":"answer","sdp":"v=0..."}`, string(sig.Data))
}

func TestJoinDeniedSurfacesVoiceError(t *testing.T) {
	srv := testServer(t)
	a := dial(t, srv, "tok-a")

	send(t, a, map[string]any{"type": "join-voice", "channelId": 99})
	e := awaitEvent(t, a, app.EvtVoiceError)
	assert.Equal(t, "Channel not found", e.Message)

	send(t, a, map[string]any{"type": "join-voice", "channelId": "garbage"})
	e = awaitEvent(t, a, app.EvtVoiceError)
	assert.Equal(t, "Invalid channel", e.Message)
}

func TestDisconnectEmitsPeerLeft(t *testing.T) {
	srv := testServer(t)
	a := dial(t, srv, "tok-a")
	b := dial(t, srv, "tok-b")

	send(t, a, map[string]any{"type": "join-voice", "channelId": 7})
	awaitEvent(t, a, app.EvtVoicePeers)
	send(t, b, map[string]any{"type": "join-voice", "channelId": 7})
	joined := awaitEvent(t, a, app.EvtVoicePeerJoined)

	require.NoError(t, b.Close())

	left := awaitEvent(t, a, app.EvtVoicePeerLeft)
	assert.Equal(t, joined.ConnectionID, left.ConnectionID)

	offline := awaitEvent(t, a, app.EvtPresenceUpdate)
	assert.EqualValues(t, 11, offline.UserID)
	assert.False(t, offline.Online)
}

func TestUnknownAndMalformedEventsIgnored(t *testing.T) {
	srv := testServer(t)
	a := dial(t, srv, "tok-a")
	awaitEvent(t, a, app.EvtPresenceUpdate)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, a, map[string]any{"type": "no-such-event"})

	// The connection is still healthy afterwards.
	send(t, a, map[string]any{"type": "join-voice", "channelId": 7})
	e := awaitEvent(t, a, app.EvtVoicePeers)
	assert.EqualValues(t, 7, e.ChannelID)
}
