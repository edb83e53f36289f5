package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/realtime"
)

func startHub(t *testing.T) (*realtime.Hub, *httptest.Server) {
	t.Helper()

	hub := realtime.NewHub(zap.NewNop(), time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID, err := uuid.Parse(r.URL.Query().Get("company"))
		if err != nil {
			http.Error(w, "bad company", http.StatusBadRequest)
			return
		}
		_ = hub.Serve(w, r, companyID)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, companyID uuid.UUID) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?company=" + companyID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *realtime.Hub, companyID uuid.UUID, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Count(companyID) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestHub_PublishIsTenantScoped(t *testing.T) {
	hub, srv := startHub(t)

	companyA := uuid.New()
	companyB := uuid.New()

	connA1 := dial(t, srv, companyA)
	connA2 := dial(t, srv, companyA)
	connB := dial(t, srv, companyB)

	waitForClients(t, hub, companyA, 2)
	waitForClients(t, hub, companyB, 1)

	event := realtime.NewEvent(realtime.EventMessageCreated, map[string]string{"content": "oi"})
	require.NoError(t, hub.Publish(context.Background(), companyA, event))

	for _, conn := range []*websocket.Conn{connA1, connA2} {
		frame := readEvent(t, conn)
		assert.Equal(t, "message.created", frame["type"])
		assert.Equal(t, map[string]any{"content": "oi"}, frame["payload"])
		assert.NotEmpty(t, frame["timestamp"])
	}

	require.NoError(t, connB.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := connB.ReadMessage()
	assert.Error(t, err, "company B must not receive company A events")
}

func TestHub_DropsDisconnectedClients(t *testing.T) {
	hub, srv := startHub(t)
	companyID := uuid.New()

	conn := dial(t, srv, companyID)
	waitForClients(t, hub, companyID, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, companyID, 0)

	assert.NoError(t, hub.Publish(context.Background(), companyID, realtime.NewEvent(realtime.EventConversationUpdated, nil)))
}

func TestHub_Close(t *testing.T) {
	hub, srv := startHub(t)
	companyID := uuid.New()

	conn := dial(t, srv, companyID)
	waitForClients(t, hub, companyID, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Count(companyID))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}
