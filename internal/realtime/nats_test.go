package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/realtime"
)

func setupTestNATS(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping nats integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	return endpoint
}

func TestNATSRelay_DeliversAcrossInstances(t *testing.T) {
	url := setupTestNATS(t)

	// Two relays sharing one broker stand in for two service instances.
	hubA, srvA := startHub(t)

	connA, err := nats.Connect(url)
	require.NoError(t, err)
	relayA := realtime.NewNATSRelay(connA, hubA, "inbox.events", zap.NewNop())
	require.NoError(t, relayA.Start())
	t.Cleanup(func() { _ = relayA.Close() })

	connB, err := nats.Connect(url)
	require.NoError(t, err)
	relayB := realtime.NewNATSRelay(connB, realtime.NewHub(zap.NewNop(), time.Second), "inbox.events", zap.NewNop())
	require.NoError(t, relayB.Start())
	t.Cleanup(func() { _ = relayB.Close() })
	require.NoError(t, connA.Flush())
	require.NoError(t, connB.Flush())

	companyID := uuid.New()
	ws := dial(t, srvA, companyID)
	waitForClients(t, hubA, companyID, 1)

	require.NoError(t, relayB.Publish(context.Background(), companyID, realtime.NewEvent(realtime.EventMessageStatus, map[string]string{"status": "read"})))

	frame := readEvent(t, ws)
	assert.Equal(t, "message.status", frame["type"])
}
