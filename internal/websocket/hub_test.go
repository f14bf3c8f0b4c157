package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func startHub(t *testing.T, config *HubConfig) (*Hub, *httptest.Server, func()) {
	t.Helper()

	hub := NewHub(config, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))

	stop := func() {
		cancel()
		<-done
		srv.Close()
	}
	return hub, srv, stop
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHubBroadcast(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv, stop := startHub(t, &HubConfig{BroadcastCorrections: true})
	defer stop()

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastEvent(Event{
		Type: EventTypeCorrection,
		Data: CorrectionEvent{Tone: "formal", Mode: "none", Changed: true},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type EventType       `json:"type"`
		Data CorrectionEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypeCorrection, got.Type)
	assert.Equal(t, "formal", got.Data.Tone)
	assert.True(t, got.Data.Changed)

	stats := hub.GetStats()
	assert.Equal(t, int64(1), stats.TotalConnections)
	assert.Equal(t, int64(1), stats.TotalBroadcasts)
}

func TestHubDisabledEventType(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, _, stop := startHub(t, &HubConfig{BroadcastCorrections: false})
	defer stop()

	hub.BroadcastEvent(Event{Type: EventTypeCorrection})
	hub.BroadcastEvent(Event{Type: EventType("unknown")})

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, hub.GetStats().TotalBroadcasts)
}

func TestHubSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv, stop := startHub(t, &HubConfig{BroadcastCorrections: true, BroadcastDataset: true})
	defer stop()

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type: "subscribe",
		Data: &SubscriptionRequest{Events: []EventType{EventTypeDatasetReload}},
	}))
	// a ping round trip guarantees the subscription was processed
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong Event
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, EventTypePong, pong.Type)

	hub.BroadcastEvent(Event{Type: EventTypeCorrection})
	hub.BroadcastEvent(Event{Type: EventTypeDatasetReload, Data: DatasetReloadEvent{Version: "abc"}})

	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypeDatasetReload, got.Type)
}

func TestHubBasicAuth(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv, stop := startHub(t, &HubConfig{Username: "admin", Password: "secret"})
	defer stop()

	_, resp, err := dial(t, srv, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.SetBasicAuth("admin", "secret")
	conn, _, err := dial(t, srv, req.Header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubMaxConnections(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv, stop := startHub(t, &HubConfig{MaxConnections: 1})
	defer stop()

	first, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	_, resp, err := dial(t, srv, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(r))
}
