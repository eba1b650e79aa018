package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/pose"
	"github.com/smilesmith9879/new-car/telemetry"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := newHub(testLogger(), nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.handleWebSocket)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	t.Cleanup(hub.Close)

	return hub, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubBroadcastsPose(t *testing.T) {
	hub, url := newTestHub(t)

	conn := dial(t, url)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, hub.PublishPose(context.Background(), pose.Pose{X: 10, Y: 20, Orientation: 90}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "pose", env.Type)

	var event telemetry.PoseEvent
	require.NoError(t, json.Unmarshal(env.Payload, &event))
	assert.Equal(t, 10.0, event.Pose.X)
	assert.Equal(t, 90.0, event.Pose.Orientation)
}

func TestHubBroadcastsBatteryAndFrames(t *testing.T) {
	hub, url := newTestHub(t)

	conn := dial(t, url)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, hub.PublishBattery(context.Background(),
		hardware.BatteryTelemetry{Level: 80}))
	require.NoError(t, hub.PublishFrame(context.Background(),
		camera.Frame{Bytes: []byte{0xff, 0xd8, 0xff}}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "battery", env.Type)

	msgType, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
}

func TestHubTracksMultipleClients(t *testing.T) {
	hub, url := newTestHub(t)

	c1 := dial(t, url)
	c2 := dial(t, url)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 2 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, hub.PublishPose(context.Background(), pose.Pose{X: 1}))

	for _, conn := range []*websocket.Conn{c1, c2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, _, err := conn.ReadMessage()
		require.NoError(t, err)
	}

	require.NoError(t, c1.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub, url := newTestHub(t)

	conn := dial(t, url)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Publishing after close is a no-op, not a panic.
	assert.NoError(t, hub.PublishPose(context.Background(), pose.Pose{}))
}
