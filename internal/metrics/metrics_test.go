package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/popeskul/wa-inbox/internal/metrics"
)

func TestRecordWebhookEvent(t *testing.T) {
	before := testutil.ToFloat64(metrics.WebhookEventsTotal.WithLabelValues("evolution", "message", "stored"))

	metrics.RecordWebhookEvent("evolution", "message", "stored")
	metrics.RecordWebhookEvent("evolution", "message", "stored")

	after := testutil.ToFloat64(metrics.WebhookEventsTotal.WithLabelValues("evolution", "message", "stored"))
	assert.Equal(t, before+2, after)
}

func TestRecordGatewayRequest(t *testing.T) {
	before := testutil.ToFloat64(metrics.GatewayRequestsTotal.WithLabelValues("send_text", "error"))

	metrics.RecordGatewayRequest("send_text", metrics.StatusLabel(errors.New("boom")), 0.2)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.GatewayRequestsTotal.WithLabelValues("send_text", "error")))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "ok", metrics.StatusLabel(nil))
	assert.Equal(t, "error", metrics.StatusLabel(errors.New("x")))
}
