package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Consult/internal/adapters/store"
	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/config"
)

type stack struct {
	srv   *httptest.Server
	orch  *orch.Orchestrator
	store *store.Store
	cfg   *config.Config
}

func newStack(t *testing.T) *stack {
	t.Helper()
	return newLimitedStack(t, 50)
}

// newLimitedStack allows joinAttempts join-requests per source per minute.
func newLimitedStack(t *testing.T, joinAttempts int) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{
		Mode:          "test",
		StaticPath:    t.TempDir(),
		ReadLimit:     32768,
		PingPeriod:    30 * time.Second,
		Secret:        "test-secret",
		AdminUsername: "admin",
		AdminPassword: "s3cret",
		ICEServers:    []config.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}},
	}

	rooms := app.NewRoomManager()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    rooms,
		Gate: &app.Gate{
			Rooms:   rooms,
			Limiter: app.NewSourceRateLimiter(joinAttempts, time.Minute),
			Tokens:  st,
		},
		Policy:     app.SimplePolicy{},
		Store:      st,
		Tasks:      &app.Detached{},
		ICEServers: cfg.WebRTCICEServers(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o, st))
	t.Cleanup(func() {
		cancel()
		srv.Close()
		o.Shutdown()
		o.Tasks.Close()
	})
	return &stack{srv: srv, orch: o, store: st, cfg: cfg}
}

func (s *stack) postJSON(t *testing.T, path string, body any, auth bool) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.SetBasicAuth(s.cfg.AdminUsername, s.cfg.AdminPassword)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func (s *stack) dial(t *testing.T) *wsClient {
	t.Helper()
	return s.dialWithHeader(t, nil)
}

func (s *stack) dialWithHeader(t *testing.T, h http.Header) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/ws/signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	c := &wsClient{t: t, conn: conn}
	hello := c.expect("hello")
	c.id = hello["id"].(string)
	return c
}

func (c *wsClient) send(v map[string]any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

// expect reads frames until one of type typ arrives.
func (c *wsClient) expect(typ string) map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var m map[string]any
		require.NoError(c.t, c.conn.ReadJSON(&m), "waiting for %s", typ)
		if m["type"] == typ {
			return m
		}
	}
}

func TestRouter_Introspection(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.srv.URL + "/api/ice-servers")
	require.NoError(t, err)
	defer resp.Body.Close()
	var ice struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ice))
	require.Len(t, ice.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, ice.ICEServers[0].URLs)
}

func (s *stack) get(t *testing.T, path string, auth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+path, nil)
	require.NoError(t, err)
	if auth {
		req.SetBasicAuth(s.cfg.AdminUsername, s.cfg.AdminPassword)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRouter_OperatorAPIRequiresAuth(t *testing.T) {
	s := newStack(t)
	body := map[string]any{"roomName": "R1", "password": "abc123"}

	host := s.dial(t)
	host.send(map[string]any{"type": "create-room", "room": "private-R1"})
	host.expect("created")
	for _, path := range []string{"/api/rooms", "/api/stats", "/api/meetings", "/api/consents"} {
		assert.Equal(t, http.StatusUnauthorized, s.get(t, path, false).StatusCode, path)
	}
	resp := s.get(t, "/api/rooms", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rooms []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "private-R1", rooms[0]["name"])
	assert.Equal(t, http.StatusOK, s.get(t, "/api/stats", true).StatusCode)

	assert.Equal(t, http.StatusUnauthorized, s.postJSON(t, "/api/meetings", body, false).StatusCode)
	assert.Equal(t, http.StatusCreated, s.postJSON(t, "/api/meetings", body, true).StatusCode)
	assert.Equal(t, http.StatusBadRequest, s.postJSON(t, "/api/meetings", map[string]any{"roomName": "R2"}, true).StatusCode)

	list, err := s.store.ListMeetings(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEqual(t, "abc123", list[0].Password)
}

func TestRouter_ConsentIssuesToken(t *testing.T) {
	s := newStack(t)
	resp := s.postJSON(t, "/api/consents", map[string]any{
		"firstName": "Ann", "lastName": "Lee", "signature": "sig", "date": "2026-03-01",
		"email": "ann@example.com", "roomName": "R1",
	}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		JoinToken string `json:"joinToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.JoinToken)
	ok, err := s.store.ValidateToken(context.Background(), out.JoinToken, "R1")
	require.NoError(t, err)
	assert.True(t, ok)

	bad := s.postJSON(t, "/api/consents", map[string]any{"firstName": "Ann"}, false)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestSignaling_EndToEnd(t *testing.T) {
	s := newStack(t)
	require.Equal(t, http.StatusCreated, s.postJSON(t, "/api/meetings", map[string]any{"roomName": "R1", "password": "abc123"}, true).StatusCode)
	consent := s.postJSON(t, "/api/consents", map[string]any{
		"firstName": "Ann", "lastName": "Lee", "signature": "sig", "date": "2026-03-01", "roomName": "R1",
	}, false)
	var issued struct {
		JoinToken string `json:"joinToken"`
	}
	require.NoError(t, json.NewDecoder(consent.Body).Decode(&issued))

	host := s.dial(t)
	host.send(map[string]any{"type": "create-room", "room": "R1", "name": "Dr. Grey"})
	created := host.expect("created")
	assert.Len(t, created["iceServers"], 1)

	guest := s.dial(t)
	guest.send(map[string]any{"type": "join-request", "room": "R1", "password": "nope", "token": issued.JoinToken, "name": "Ann"})
	assert.Equal(t, "wrong_password", guest.expect("join-error")["code"])

	guest.send(map[string]any{"type": "join-request", "room": "R1", "password": "abc123", "token": issued.JoinToken, "name": "Ann"})
	assert.EqualValues(t, 1, guest.expect("waiting-room")["position"])
	waiting := host.expect("guest-waiting")
	assert.Equal(t, guest.id, waiting["id"])

	host.send(map[string]any{"type": "admit-guest", "room": "R1", "target": guest.id})
	admitted := guest.expect("admitted")
	assert.Len(t, admitted["participants"], 2)

	guest.send(map[string]any{"type": "ready", "room": "R1"})
	assert.Equal(t, guest.id, host.expect("ready")["from"])

	host.send(map[string]any{"type": "offer", "room": "R1", "target": guest.id, "payload": map[string]any{"sdp": "v=0"}})
	offer := guest.expect("offer")
	assert.Equal(t, host.id, offer["from"])
	assert.Equal(t, map[string]any{"sdp": "v=0"}, offer["payload"])

	guest.send(map[string]any{"type": "chat-message", "room": "R1", "message": "hello"})
	assert.Equal(t, "Ann", host.expect("chat-message")["senderName"])

	host.send(map[string]any{"type": "end-meeting", "room": "R1"})
	assert.Equal(t, "ended-by-host", guest.expect("meeting-ended")["reason"])

	require.Eventually(t, func() bool { return s.orch.Rooms.Count() == 0 }, 3*time.Second, 20*time.Millisecond)
	ok, err := s.store.ValidateToken(context.Background(), issued.JoinToken, "R1")
	require.NoError(t, err)
	assert.False(t, ok, "admission consumed the token")
}

func TestSignaling_HostDropEndsMeeting(t *testing.T) {
	s := newStack(t)
	host := s.dial(t)
	host.send(map[string]any{"type": "create-room", "room": "adhoc"})
	host.expect("created")

	guest := s.dial(t)
	guest.send(map[string]any{"type": "join-request", "room": "adhoc"})
	guest.expect("waiting-room")

	require.NoError(t, host.conn.Close())
	assert.Equal(t, "host-disconnected", guest.expect("meeting-ended")["reason"])

	guest.send(map[string]any{"type": "join-request", "room": "adhoc"})
	assert.Equal(t, "room_not_found", guest.expect("join-error")["code"])
}

func TestSignaling_PingAndWhoAmI(t *testing.T) {
	s := newStack(t)
	c := s.dial(t)
	c.send(map[string]any{"type": "ping"})
	c.expect("pong")

	c.send(map[string]any{"type": "user-name", "name": "Ann"})
	who := c.expect("whoami")
	assert.Equal(t, "Ann", who["name"])
	assert.Equal(t, c.id, who["id"])
}

func TestSignaling_ForwardedForDoesNotResetRateLimit(t *testing.T) {
	s := newLimitedStack(t, 5)

	var codes []string
	for i := 0; i < 6; i++ {
		c := s.dialWithHeader(t, http.Header{
			"X-Forwarded-For": []string{fmt.Sprintf("203.0.113.%d", i+1)},
			"X-Real-Ip":       []string{fmt.Sprintf("198.51.100.%d", i+1)},
		})
		c.send(map[string]any{"type": "join-request", "room": "guess-me", "password": "x"})
		codes = append(codes, c.expect("join-error")["code"].(string))
	}
	assert.Equal(t, []string{
		"room_not_found", "room_not_found", "room_not_found", "room_not_found", "room_not_found",
		"rate_limited",
	}, codes)
}
