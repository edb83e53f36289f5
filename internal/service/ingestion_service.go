package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/events"
	"github.com/popeskul/wa-inbox/internal/metrics"
	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/phone"
	"github.com/popeskul/wa-inbox/internal/repository"
	"github.com/popeskul/wa-inbox/internal/tenant"
	"github.com/popeskul/wa-inbox/internal/webhook"
)

var (
	errUnroutable       = errors.New("no connection matches the webhook")
	errInactiveConn     = errors.New("connection is inactive")
	errInvalidSender    = errors.New("sender has no phone digits")
	errMissingEventBody = errors.New("event has no body")
)

// Outcomes recorded per event.
const (
	outcomeStored     = "stored"
	outcomeDuplicate  = "duplicate"
	outcomeFromMe     = "ignored_from_me"
	outcomeGroup      = "ignored_group"
	outcomeUpdated    = "updated"
	outcomeUnchanged  = "unchanged"
	outcomeUnknownMsg = "unknown_message"
	outcomeUnroutable = "unroutable"
	outcomeError      = "error"
)

const previewMaxRunes = 255

type ingestionService struct {
	repo        repository.Repository
	idempotency IdempotencyStore
	protocol    ProtocolService
	notify      *Notifier
	timeout     time.Duration
	logger      *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	// base is cancelled when Shutdown gives up waiting.
	base   context.Context
	cancel context.CancelFunc
}

func NewIngestionService(
	repo repository.Repository,
	idempotency IdempotencyStore,
	protocol ProtocolService,
	notify *Notifier,
	timeout time.Duration,
	logger *zap.Logger,
) IngestionService {
	base, cancel := context.WithCancel(context.Background())
	return &ingestionService{
		repo:        repo,
		idempotency: idempotency,
		protocol:    protocol,
		notify:      notify,
		timeout:     timeout,
		logger:      logger,
		base:        base,
		cancel:      cancel,
	}
}

func (s *ingestionService) Enqueue(body []byte, connectionID *uuid.UUID) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("Dropping webhook received during shutdown")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic while processing webhook", zap.Any("panic", rec), zap.Stack("stack"))
			}
		}()

		ctx, cancel := context.WithTimeout(s.base, s.timeout)
		defer cancel()

		if err := s.Process(ctx, body, connectionID); err != nil {
			if errors.Is(err, webhook.ErrUnrecognized) {
				s.logger.Warn("Dropping unrecognized webhook payload",
					zap.Int("size", len(body)),
					zap.Error(err))
				return
			}
			s.logger.Error("Failed to process webhook", zap.Error(err))
		}
	}()
}

func (s *ingestionService) Process(ctx context.Context, body []byte, connectionID *uuid.UUID) error {
	start := time.Now()
	metrics.IngestionInFlight.Inc()
	defer func() {
		metrics.IngestionInFlight.Dec()
		metrics.IngestionDuration.Observe(time.Since(start).Seconds())
	}()

	result, err := webhook.Classify(body)
	if err != nil {
		metrics.WebhookPayloadsTotal.WithLabelValues("unrecognized").Inc()
		return err
	}
	metrics.WebhookPayloadsTotal.WithLabelValues(result.Shape).Inc()

	var errs []error
	for i := range result.Events {
		ev := &result.Events[i]

		outcome, err := s.handle(ctx, ev, connectionID)
		metrics.RecordWebhookEvent(string(ev.Provider), string(ev.Kind), outcome)

		if err != nil {
			s.logger.Error("Failed to apply webhook event",
				zap.String("shape", result.Shape),
				zap.String("kind", string(ev.Kind)),
				zap.String("channel", ev.Channel),
				zap.String("outcome", outcome),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}

		s.logger.Debug("Webhook event applied",
			zap.String("shape", result.Shape),
			zap.String("kind", string(ev.Kind)),
			zap.String("outcome", outcome))
	}

	return errors.Join(errs...)
}

func (s *ingestionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("webhook processing did not drain: %w", ctx.Err())
	}
}

func (s *ingestionService) handle(ctx context.Context, ev *webhook.Event, connectionID *uuid.UUID) (string, error) {
	// Own and group messages never touch storage, not even the connection lookup.
	if ev.Kind == webhook.KindMessage {
		if ev.Message == nil {
			return outcomeError, errMissingEventBody
		}
		if ev.Message.FromMe {
			return outcomeFromMe, nil
		}
		if ev.Message.IsGroup() {
			return outcomeGroup, nil
		}
	}

	conn, err := s.resolveConnection(ctx, ev, connectionID)
	if err != nil {
		if errors.Is(err, errUnroutable) || errors.Is(err, errInactiveConn) {
			s.logger.Warn("Dropping webhook event without a usable connection",
				zap.String("channel", ev.Channel),
				zap.Error(err))
			return outcomeUnroutable, nil
		}
		return outcomeError, err
	}

	ctx = tenant.WithCompany(ctx, conn.CompanyID)

	switch ev.Kind {
	case webhook.KindMessage:
		return s.handleMessage(ctx, conn, ev.Message)
	case webhook.KindStatus:
		if ev.Status == nil {
			return outcomeError, errMissingEventBody
		}
		return s.handleStatus(ctx, ev.Status)
	case webhook.KindConnection:
		if ev.Connection == nil {
			return outcomeError, errMissingEventBody
		}
		return s.handleConnection(ctx, conn, ev.Connection)
	default:
		return outcomeError, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// resolveConnection picks the receiving connection: the one named in the URL, else the one
// matching the provider's channel identifier, else the deployment's only active connection.
// A supplied identifier that matches nothing is never replaced by the fallback.
func (s *ingestionService) resolveConnection(ctx context.Context, ev *webhook.Event, connectionID *uuid.UUID) (*models.Connection, error) {
	var (
		conn *models.Connection
		err  error
	)

	switch {
	case connectionID != nil:
		conn, err = s.repo.Connection().GetByID(ctx, *connectionID)
	case ev.Channel != "":
		conn, err = s.repo.Connection().GetByInstance(ctx, ev.Channel)
	default:
		conn, err = s.repo.Connection().FindSoleActive(ctx)
	}

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", errUnroutable, err)
		}
		return nil, fmt.Errorf("failed to resolve connection: %w", err)
	}
	if !conn.IsActive {
		return nil, fmt.Errorf("%w: %s", errInactiveConn, conn.ID)
	}
	return conn, nil
}

func (s *ingestionService) handleMessage(ctx context.Context, conn *models.Connection, m *webhook.Message) (string, error) {
	number := phone.Normalize(m.ChatID)
	if number.Key == "" {
		return outcomeError, fmt.Errorf("%w: %q", errInvalidSender, m.ChatID)
	}

	duplicate, err := s.isDuplicate(ctx, conn.CompanyID, m.ExternalID)
	if err != nil {
		return outcomeError, err
	}
	if duplicate {
		return outcomeDuplicate, nil
	}

	name := m.SenderName
	if name == "" {
		name = number.Key
	}
	client := &models.Client{
		Name:         name,
		Phone:        number.Key,
		PhoneDisplay: number.Display,
	}
	if _, err := s.repo.Client().Upsert(ctx, client); err != nil {
		return outcomeError, err
	}

	content := m.Content()

	conv, created, err := s.openConversation(ctx, conn, client, content)
	if err != nil {
		return outcomeError, err
	}
	if created {
		s.logger.Info("Conversation created",
			zap.String("conversation_id", conv.ID.String()),
			zap.String("protocol", conv.ProtocolNumber),
			zap.String("company_id", conv.CompanyID.String()))
		s.notify.conversationCreated(ctx, conv, m.ExternalID)
	}

	msg := newIncomingMessage(conv, m, content)
	inserted, err := s.repo.Message().Create(ctx, msg)
	if err != nil {
		return outcomeError, err
	}
	if !inserted {
		return outcomeDuplicate, nil
	}

	if m.ExternalID != "" {
		if err := s.idempotency.Mark(ctx, conn.CompanyID, m.ExternalID); err != nil {
			s.logger.Warn("Failed to mark message as processed", zap.String("external_id", m.ExternalID), zap.Error(err))
		}
	}

	if updated, err := s.repo.Conversation().TouchLastMessage(ctx, conv.ID, preview(content), msg.SentAt, true); err != nil {
		s.logger.Warn("Failed to update conversation preview",
			zap.String("conversation_id", conv.ID.String()),
			zap.Error(err))
	} else {
		conv = updated
	}

	s.notify.messageCreated(ctx, msg)
	s.notify.conversationUpdated(ctx, conv)
	s.notify.emit(ctx, events.TypeMessageReceived, m.ExternalID, events.MessageReceivedV1{
		CompanyID:      conv.CompanyID,
		ConnectionID:   conn.ID,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		ClientID:       client.ID,
		ClientPhone:    client.Phone,
		ExternalID:     m.ExternalID,
		Kind:           string(msg.Type),
		Content:        msg.Content,
		ReceivedAt:     msg.SentAt,
	})

	return outcomeStored, nil
}

// isDuplicate checks the Redis marker first and the database second. A Redis failure falls
// through to the database.
func (s *ingestionService) isDuplicate(ctx context.Context, companyID uuid.UUID, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}

	seen, err := s.idempotency.Seen(ctx, companyID, externalID)
	if err != nil {
		s.logger.Warn("Idempotency cache unavailable", zap.Error(err))
	}
	if seen {
		return true, nil
	}

	exists, err := s.repo.Message().ExistsByExternalID(ctx, externalID)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// openConversation returns the client's open conversation, creating one with a fresh protocol
// number when there is none. created is false when another delivery won the race.
func (s *ingestionService) openConversation(ctx context.Context, conn *models.Connection, client *models.Client, text string) (*models.Conversation, bool, error) {
	existing, err := s.repo.Conversation().FindOpenByClient(ctx, client.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	conv := &models.Conversation{
		ClientID:     client.ID,
		ConnectionID: &conn.ID,
		Status:       models.ConversationStatusWaiting,
		Priority:     models.PriorityNormal,
	}
	// Rules are read outside the transaction; a failed read there would abort it.
	s.applyRules(ctx, conv, conn.ID, text)

	var created bool
	err = s.repo.WithTx(ctx, func(tx repository.Repository) error {
		number, err := s.protocol.Next(ctx, tx)
		if err != nil {
			return err
		}
		conv.ProtocolNumber = number

		created, err = tx.Conversation().CreateOpen(ctx, conv)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to open conversation: %w", err)
	}
	return conv, created, nil
}

// applyRules routes the conversation with the first matching auto-assign rule.
func (s *ingestionService) applyRules(ctx context.Context, conv *models.Conversation, connectionID uuid.UUID, text string) {
	rules, err := s.repo.Rule().ListActive(ctx)
	if err != nil {
		s.logger.Warn("Failed to load auto-assign rules", zap.Error(err))
		return
	}

	for _, rule := range rules {
		if !rule.Matches(connectionID, text) {
			continue
		}
		conv.QueueID = rule.QueueID
		if rule.AgentID != nil {
			conv.AssignedAgentID = rule.AgentID
			conv.Status = models.ConversationStatusInProgress
		}
		return
	}
}

func (s *ingestionService) handleStatus(ctx context.Context, st *webhook.StatusUpdate) (string, error) {
	msg, err := s.repo.Message().UpdateStatusByExternalID(ctx, st.ExternalID, st.Status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return outcomeUnknownMsg, nil
		}
		return outcomeError, err
	}

	s.notify.messageStatus(ctx, msg)
	return outcomeUpdated, nil
}

func (s *ingestionService) handleConnection(ctx context.Context, conn *models.Connection, upd *webhook.ConnectionUpdate) (string, error) {
	if conn.Status == upd.State {
		return outcomeUnchanged, nil
	}

	if err := s.repo.Connection().UpdateStatus(ctx, conn.ID, upd.State); err != nil {
		return outcomeError, err
	}
	s.logger.Info("Connection status changed",
		zap.String("connection_id", conn.ID.String()),
		zap.String("from", string(conn.Status)),
		zap.String("to", string(upd.State)))

	conn.Status = upd.State
	s.notify.connectionUpdated(ctx, conn)
	return outcomeUpdated, nil
}

func newIncomingMessage(conv *models.Conversation, m *webhook.Message, content string) *models.Message {
	msg := &models.Message{
		CompanyID:      conv.CompanyID,
		ConversationID: conv.ID,
		Content:        content,
		Type:           m.Type,
		Direction:      models.DirectionIncoming,
		Status:         models.DeliveryStatusReceived,
		ExternalID:     optional(m.ExternalID),
		SentAt:         m.Timestamp,
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	if media := m.Media; media != nil {
		msg.MediaURL = optional(media.URL)
		msg.MediaMimeType = optional(media.MimeType)
		msg.MediaCaption = optional(media.Caption)
		msg.FileName = optional(media.FileName)
		if media.Duration > 0 {
			d := media.Duration
			msg.MediaDuration = &d
		}
	}
	return msg
}

// preview truncates content to the stored last-message width.
func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewMaxRunes])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
