package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/metrics"
)

// NATSRelay fans events out across service instances. Publish sends to
// <prefix>.<companyID>; every instance subscribes to <prefix>.* and delivers to its local hub.
type NATSRelay struct {
	conn   *nats.Conn
	hub    *Hub
	prefix string
	logger *zap.Logger
	sub    *nats.Subscription
}

func NewNATSRelay(conn *nats.Conn, hub *Hub, prefix string, logger *zap.Logger) *NATSRelay {
	return &NATSRelay{
		conn:   conn,
		hub:    hub,
		prefix: prefix,
		logger: logger,
	}
}

// Start subscribes to the relay subjects.
func (r *NATSRelay) Start() error {
	sub, err := r.conn.Subscribe(r.prefix+".*", r.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s.*: %w", r.prefix, err)
	}
	r.sub = sub

	r.logger.Info("Realtime relay subscribed", zap.String("subject", r.prefix+".*"))
	return nil
}

func (r *NATSRelay) Publish(_ context.Context, companyID uuid.UUID, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := r.conn.Publish(r.subject(companyID), data); err != nil {
		metrics.RealtimeEventsTotal.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.RealtimeEventsTotal.WithLabelValues(string(event.Type), "relayed").Inc()
	return nil
}

func (r *NATSRelay) subject(companyID uuid.UUID) string {
	return r.prefix + "." + companyID.String()
}

func (r *NATSRelay) handle(msg *nats.Msg) {
	raw := strings.TrimPrefix(msg.Subject, r.prefix+".")
	companyID, err := uuid.Parse(raw)
	if err != nil {
		r.logger.Warn("Ignoring relay message with invalid subject", zap.String("subject", msg.Subject))
		return
	}
	r.hub.Deliver(companyID, msg.Data)
}

// Close drains the subscription and the connection.
func (r *NATSRelay) Close() error {
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			r.logger.Warn("Failed to unsubscribe relay", zap.Error(err))
		}
	}
	return r.conn.Drain()
}
