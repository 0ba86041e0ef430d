package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/model"
	"github.com/corvidlabs/axengine/internal/observer"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	go hub.Run()
	t.Cleanup(func() { close(hub.broadcast) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r)
	}))
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubPublishReachesConnectedClient(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish("log", "hello")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "log", msg.Type)
	assert.Equal(t, "hello", msg.Data)
}

func TestRelayObserveNotificationsRepublishesFirings(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	port := axport.NewFakeAXPort()
	app := axport.NewFakeElement(101, map[string]any{"AXRole": "AXApplication"})
	port.AddApp(axport.AppInfo{PID: 101}, app)
	center := observer.New(port, zerolog.Nop())
	go center.Run()
	t.Cleanup(center.Stop)

	relay := NewRelay(hub, zerolog.Nop())
	pid := 101
	tokens := relay.ObserveNotifications(center, &pid, []string{"AXValueChanged"})
	require.Len(t, tokens, 1)

	port.Fire(101, app, "AXValueChanged", map[string]any{"value": 42.0})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "notification", msg.Type)

	raw, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var evt NotificationEvent
	require.NoError(t, json.Unmarshal(raw, &evt))
	assert.Equal(t, 101, evt.PID)
	assert.Equal(t, "AXValueChanged", evt.Notification)
}

func TestSanitizeInfoReplacesNaNAndInf(t *testing.T) {
	info := map[string]model.AttributeValue{
		"nan": model.Double(mustNaN()),
		"inf": model.Double(mustInf()),
		"ok":  model.Double(1.5),
		"nested": model.Map(map[string]model.AttributeValue{
			"inner": model.Double(mustNaN()),
		}),
	}

	out := sanitizeInfo(info)

	v, _ := out["nan"].AsDouble()
	assert.Equal(t, 0.0, v)
	v, _ = out["inf"].AsDouble()
	assert.Equal(t, 0.0, v)
	v, _ = out["ok"].AsDouble()
	assert.Equal(t, 1.5, v)

	nested, _ := out["nested"].AsMap()
	v, _ = nested["inner"].AsDouble()
	assert.Equal(t, 0.0, v)
}

func mustNaN() float64 {
	var zero float64
	return zero / zero
}

func mustInf() float64 {
	var one, zero float64 = 1, 0
	return one / zero
}
