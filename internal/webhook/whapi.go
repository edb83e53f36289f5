package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/popeskul/wa-inbox/internal/models"
)

type whapiEvent struct {
	Type  string `json:"type"`
	Event string `json:"event"`
}

type whapiMessage struct {
	ID        string          `json:"id"`
	FromMe    bool            `json:"from_me"`
	Type      string          `json:"type"`
	ChatID    string          `json:"chat_id"`
	Timestamp json.RawMessage `json:"timestamp"`
	From      string          `json:"from"`
	FromName  string          `json:"from_name"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	LinkPreview *struct {
		Body string `json:"body"`
	} `json:"link_preview"`
	Image    *whapiMedia `json:"image"`
	Video    *whapiMedia `json:"video"`
	Gif      *whapiMedia `json:"gif"`
	Audio    *whapiMedia `json:"audio"`
	Voice    *whapiMedia `json:"voice"`
	Document *whapiMedia `json:"document"`
	Sticker  *whapiMedia `json:"sticker"`
}

type whapiMedia struct {
	Link     string `json:"link"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	FileName string `json:"filename"`
	Seconds  int    `json:"seconds"`
}

type whapiStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (e *envelope) whapiEvent() (whapiEvent, bool) {
	var ev whapiEvent
	if !present(e.Event) || e.Event[0] != '{' {
		return ev, false
	}
	if err := json.Unmarshal(e.Event, &ev); err != nil {
		return ev, false
	}
	return ev, true
}

func matchWhapiMessages(env *envelope) bool {
	ev, ok := env.whapiEvent()
	return ok && ev.Type == "messages" && isArray(env.Messages)
}

func matchWhapiStatuses(env *envelope) bool {
	ev, ok := env.whapiEvent()
	return ok && ev.Type == "statuses" && isArray(env.Statuses)
}

func parseWhapiMessages(env *envelope) ([]Event, error) {
	ev, _ := env.whapiEvent()
	// Edits and deletions arrive as "patch"/"delete" on the same type.
	if ev.Event != "" && ev.Event != "post" {
		return nil, nil
	}

	var batch []whapiMessage
	if err := json.Unmarshal(env.Messages, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	events := make([]Event, 0, len(batch))
	for i := range batch {
		msg, ok := batch[i].normalize()
		if !ok {
			continue
		}
		events = append(events, Event{
			Kind:     KindMessage,
			Provider: models.ProviderWhapi,
			Channel:  env.ChannelID,
			Message:  msg,
		})
	}
	return events, nil
}

func (m *whapiMessage) normalize() (*Message, bool) {
	chat := m.ChatID
	if chat == "" {
		chat = m.From
	}
	if chat == "" {
		return nil, false
	}

	msg := &Message{
		ExternalID: m.ID,
		ChatID:     chat,
		SenderName: m.FromName,
		FromMe:     m.FromMe,
		Timestamp:  parseUnix(m.Timestamp),
	}

	media := func(t models.MessageType, wm *whapiMedia) {
		msg.Type = t
		msg.Media = &Media{
			URL:      wm.Link,
			MimeType: wm.MimeType,
			Caption:  wm.Caption,
			FileName: wm.FileName,
			Duration: wm.Seconds,
		}
	}

	switch strings.ToLower(m.Type) {
	case "text":
		if m.Text == nil {
			return nil, false
		}
		msg.Type = models.MessageTypeText
		msg.Text = m.Text.Body
	case "link_preview":
		if m.LinkPreview == nil {
			return nil, false
		}
		msg.Type = models.MessageTypeText
		msg.Text = m.LinkPreview.Body
	case "image":
		if m.Image == nil {
			return nil, false
		}
		media(models.MessageTypeImage, m.Image)
	case "video", "gif":
		wm := m.Video
		if wm == nil {
			wm = m.Gif
		}
		if wm == nil {
			return nil, false
		}
		media(models.MessageTypeVideo, wm)
	case "audio":
		if m.Audio == nil {
			return nil, false
		}
		media(models.MessageTypeAudio, m.Audio)
	case "voice":
		if m.Voice == nil {
			return nil, false
		}
		media(models.MessageTypeVoice, m.Voice)
	case "document":
		if m.Document == nil {
			return nil, false
		}
		media(models.MessageTypeDocument, m.Document)
	case "sticker":
		if m.Sticker == nil {
			return nil, false
		}
		media(models.MessageTypeSticker, m.Sticker)
	default:
		return nil, false
	}

	return msg, true
}

func parseWhapiStatuses(env *envelope) ([]Event, error) {
	var statuses []whapiStatus
	if err := json.Unmarshal(env.Statuses, &statuses); err != nil {
		return nil, fmt.Errorf("failed to decode statuses: %w", err)
	}

	events := make([]Event, 0, len(statuses))
	for _, s := range statuses {
		status, ok := whapiDeliveryStatus(s.Status)
		if s.ID == "" || !ok {
			continue
		}
		events = append(events, Event{
			Kind:     KindStatus,
			Provider: models.ProviderWhapi,
			Channel:  env.ChannelID,
			Status:   &StatusUpdate{ExternalID: s.ID, Status: status},
		})
	}
	return events, nil
}

func whapiDeliveryStatus(s string) (models.DeliveryStatus, bool) {
	switch strings.ToLower(s) {
	case "pending":
		return models.DeliveryStatusPending, true
	case "sent":
		return models.DeliveryStatusSent, true
	case "delivered":
		return models.DeliveryStatusDelivered, true
	case "read", "played":
		return models.DeliveryStatusRead, true
	case "failed":
		return models.DeliveryStatusFailed, true
	default:
		return "", false
	}
}
