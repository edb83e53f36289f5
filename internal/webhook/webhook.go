// Package webhook classifies raw gateway webhook payloads into normalized inbox events.
//
// Providers post several envelope shapes to the same endpoint. Classify tries an ordered list
// of shape matchers; the first matcher that recognizes the envelope parses it.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/phone"
)

// ErrUnrecognized is returned when no matcher recognizes the payload.
var ErrUnrecognized = errors.New("unrecognized webhook payload")

type Kind string

const (
	KindMessage    Kind = "message"
	KindStatus     Kind = "status"
	KindConnection Kind = "connection"
)

// Event is a normalized webhook event. Exactly one of Message, Status or Connection is set,
// matching Kind.
type Event struct {
	Kind     Kind
	Provider models.Provider
	// Channel is the provider's identifier of the receiving number (Evolution instance name,
	// Whapi channel id). Empty when the payload carries none.
	Channel string

	Message    *Message
	Status     *StatusUpdate
	Connection *ConnectionUpdate
}

// Message is an inbound chat message.
type Message struct {
	ExternalID string
	ChatID     string
	SenderName string
	FromMe     bool
	Type       models.MessageType
	Text       string
	Media      *Media
	Timestamp  time.Time
}

// IsGroup reports whether the message was posted in a group, broadcast list or newsletter.
func (m *Message) IsGroup() bool {
	return phone.IsGroup(m.ChatID)
}

// Content is the text stored for the message: the body, else the media caption, else a
// bracketed type tag such as "[image]".
func (m *Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	if m.Media != nil && m.Media.Caption != "" {
		return m.Media.Caption
	}
	return "[" + string(m.Type) + "]"
}

type Media struct {
	URL      string
	MimeType string
	Caption  string
	FileName string
	Duration int
}

type StatusUpdate struct {
	ExternalID string
	Status     models.DeliveryStatus
}

type ConnectionUpdate struct {
	State models.ConnectionStatus
}

// envelope holds the top-level fields every matcher inspects.
type envelope struct {
	Event     json.RawMessage `json:"event"`
	Instance  json.RawMessage `json:"instance"`
	Data      json.RawMessage `json:"data"`
	Messages  json.RawMessage `json:"messages"`
	Statuses  json.RawMessage `json:"statuses"`
	ChannelID string          `json:"channel_id"`
	From      json.RawMessage `json:"from"`
	Text      json.RawMessage `json:"text"`

	raw []byte
}

type matcher struct {
	name  string
	match func(env *envelope) bool
	parse func(env *envelope) ([]Event, error)
}

var matchers = []matcher{
	{name: "evolution.messages", match: matchEvolutionMessages, parse: parseEvolutionMessages},
	{name: "evolution.status", match: matchEvolutionStatus, parse: parseEvolutionStatus},
	{name: "evolution.connection", match: matchEvolutionConnection, parse: parseEvolutionConnection},
	{name: "evolution.other", match: matchEvolutionOther, parse: ignore},
	{name: "whapi.messages", match: matchWhapiMessages, parse: parseWhapiMessages},
	{name: "whapi.statuses", match: matchWhapiStatuses, parse: parseWhapiStatuses},
	{name: "legacy", match: matchLegacy, parse: parseLegacy},
}

// Result is the outcome of classifying one payload.
type Result struct {
	// Shape names the matcher that recognized the payload.
	Shape  string
	Events []Event
}

// Classify parses body into normalized events. A recognized payload may yield no events, for
// example an Evolution event type the inbox does not handle.
func Classify(body []byte) (*Result, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}
	env.raw = body

	for _, m := range matchers {
		if !m.match(&env) {
			continue
		}
		events, err := m.parse(&env)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", m.name, err)
		}
		return &Result{Shape: m.name, Events: events}, nil
	}

	return nil, ErrUnrecognized
}

func ignore(*envelope) ([]Event, error) {
	return nil, nil
}
