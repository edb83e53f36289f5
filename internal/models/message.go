// Package models defines data structures used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeVoice    MessageType = "voice"
	MessageTypeSticker  MessageType = "sticker"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusReceived  DeliveryStatus = "received"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// Rank orders delivery statuses; a message status only ever moves to a higher rank.
func (s DeliveryStatus) Rank() int {
	switch s {
	case DeliveryStatusPending:
		return 0
	case DeliveryStatusSent, DeliveryStatusReceived, DeliveryStatusFailed:
		return 1
	case DeliveryStatusDelivered:
		return 2
	case DeliveryStatusRead:
		return 3
	default:
		return -1
	}
}

// Message represents a single WhatsApp message inside a conversation.
type Message struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	CompanyID      uuid.UUID      `db:"company_id" json:"companyId"`
	ConversationID uuid.UUID      `db:"conversation_id" json:"conversationId"`
	Content        string         `db:"content" json:"content"`
	Type           MessageType    `db:"type" json:"type"`
	Direction      Direction      `db:"direction" json:"direction"`
	Status         DeliveryStatus `db:"status" json:"status"`
	MediaURL       *string        `db:"media_url" json:"mediaUrl,omitempty"`
	MediaMimeType  *string        `db:"media_mime_type" json:"mediaMimeType,omitempty"`
	MediaCaption   *string        `db:"media_caption" json:"mediaCaption,omitempty"`
	MediaDuration  *int           `db:"media_duration" json:"mediaDuration,omitempty"`
	FileName       *string        `db:"file_name" json:"fileName,omitempty"`
	ExternalID     *string        `db:"external_id" json:"externalId,omitempty"`
	SentAt         time.Time      `db:"sent_at" json:"sentAt"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}
