package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/metrics"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("publish was not confirmed by the broker")

const maxDialDelay = 30 * time.Second

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

type amqpPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   *zap.Logger
}

// DialOptions configures NewAMQPPublisher.
type DialOptions struct {
	URL           string
	Exchange      string
	RetryAttempts int
	Delay         time.Duration
}

// NewAMQPPublisher connects with exponential backoff and declares a durable topic exchange.
func NewAMQPPublisher(ctx context.Context, opts DialOptions, logger *zap.Logger) (Publisher, error) {
	conn, err := dialWithRetry(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", opts.Exchange, err)
	}

	return &amqpPublisher{
		conn:     conn,
		exchange: opts.Exchange,
		logger:   logger,
	}, nil
}

func dialWithRetry(ctx context.Context, opts DialOptions, logger *zap.Logger) (*amqp.Connection, error) {
	attempts := opts.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(opts.URL)
		if err == nil {
			if i > 1 {
				logger.Info("Connected to RabbitMQ", zap.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err

		if i == attempts {
			break
		}

		sleep := opts.Delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}

		logger.Warn("RabbitMQ dial failed",
			zap.Int("attempt", i),
			zap.Duration("sleep", sleep),
			zap.Error(err))

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}

// Publish sends env with routing key env.Meta.Type and waits for the broker confirm.
func (p *amqpPublisher) Publish(ctx context.Context, env Envelope) error {
	err := p.publish(ctx, env)
	metrics.IntegrationEventsTotal.WithLabelValues(env.Meta.Type, metrics.StatusLabel(err)).Inc()
	return err
}

func (p *amqpPublisher) publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable confirms: %w", err)
	}

	correlationID := env.Meta.ID
	if env.Meta.CorrelationID != nil {
		correlationID = *env.Meta.CorrelationID
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, env.Meta.Type, false, false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     env.Meta.ID,
			CorrelationId: correlationID,
			Type:          env.Meta.Type,
			Timestamp:     env.Meta.Time,
			Body:          body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", env.Meta.Type, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}

	p.logger.Debug("Integration event published",
		zap.String("type", env.Meta.Type),
		zap.String("exchange", p.exchange),
		zap.String("id", env.Meta.ID))
	return nil
}

func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}

type fallbackPublisher struct {
	logger *zap.Logger
}

// NewFallback returns a Publisher that only logs. It is used when no broker is configured.
func NewFallback(logger *zap.Logger) Publisher {
	return &fallbackPublisher{logger: logger}
}

func (p *fallbackPublisher) Publish(_ context.Context, env Envelope) error {
	p.logger.Debug("Integration events disabled, skipped publish", zap.String("type", env.Meta.Type))
	return nil
}

func (p *fallbackPublisher) Close() error {
	return nil
}
