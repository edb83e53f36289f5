package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/popeskul/wa-inbox/internal/models"
)

const (
	evolutionMessagesUpsert  = "messages.upsert"
	evolutionMessagesSet     = "messages.set"
	evolutionMessagesUpdate  = "messages.update"
	evolutionConnectionState = "connection.update"
)

type evolutionKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type evolutionMessage struct {
	Key              evolutionKey      `json:"key"`
	PushName         string            `json:"pushName"`
	Message          *evolutionContent `json:"message"`
	MessageTimestamp json.RawMessage   `json:"messageTimestamp"`
	MediaURL         string            `json:"mediaUrl"`
}

type evolutionContent struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage               *evolutionMedia `json:"imageMessage"`
	VideoMessage               *evolutionMedia `json:"videoMessage"`
	AudioMessage               *evolutionMedia `json:"audioMessage"`
	DocumentMessage            *evolutionMedia `json:"documentMessage"`
	StickerMessage             *evolutionMedia `json:"stickerMessage"`
	DocumentWithCaptionMessage *struct {
		Message struct {
			DocumentMessage *evolutionMedia `json:"documentMessage"`
		} `json:"message"`
	} `json:"documentWithCaptionMessage"`
}

type evolutionMedia struct {
	URL      string `json:"url"`
	Mimetype string `json:"mimetype"`
	Caption  string `json:"caption"`
	FileName string `json:"fileName"`
	Title    string `json:"title"`
	Seconds  int    `json:"seconds"`
	PTT      bool   `json:"ptt"`
}

func (e *envelope) evolutionEvent() string {
	return normalizeEventName(rawString(e.Event))
}

func matchEvolutionMessages(env *envelope) bool {
	name := env.evolutionEvent()
	return (name == evolutionMessagesUpsert || name == evolutionMessagesSet) && present(env.Data)
}

func matchEvolutionStatus(env *envelope) bool {
	return env.evolutionEvent() == evolutionMessagesUpdate && present(env.Data)
}

func matchEvolutionConnection(env *envelope) bool {
	return env.evolutionEvent() == evolutionConnectionState && present(env.Data)
}

func matchEvolutionOther(env *envelope) bool {
	return env.evolutionEvent() != "" && present(env.Data)
}

func parseEvolutionMessages(env *envelope) ([]Event, error) {
	var batch []evolutionMessage

	switch {
	case isArray(env.Data):
		if err := json.Unmarshal(env.Data, &batch); err != nil {
			return nil, fmt.Errorf("failed to decode message list: %w", err)
		}
	default:
		var wrapper struct {
			Messages []evolutionMessage `json:"messages"`
		}
		if err := json.Unmarshal(env.Data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode message batch: %w", err)
		}
		if len(wrapper.Messages) > 0 {
			batch = wrapper.Messages
			break
		}

		var single evolutionMessage
		if err := json.Unmarshal(env.Data, &single); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		batch = []evolutionMessage{single}
	}

	channel := rawString(env.Instance)
	events := make([]Event, 0, len(batch))
	for i := range batch {
		msg, ok := batch[i].normalize()
		if !ok {
			continue
		}
		events = append(events, Event{
			Kind:     KindMessage,
			Provider: models.ProviderEvolution,
			Channel:  channel,
			Message:  msg,
		})
	}
	return events, nil
}

// normalize returns false for payloads without user-visible content (reactions, protocol
// messages, key distribution).
func (m *evolutionMessage) normalize() (*Message, bool) {
	if m.Message == nil || m.Key.RemoteJid == "" {
		return nil, false
	}

	msg := &Message{
		ExternalID: m.Key.ID,
		ChatID:     m.Key.RemoteJid,
		SenderName: m.PushName,
		FromMe:     m.Key.FromMe,
		Timestamp:  parseUnix(m.MessageTimestamp),
	}

	c := m.Message
	media := func(t models.MessageType, em *evolutionMedia) {
		msg.Type = t
		msg.Media = &Media{
			URL:      em.URL,
			MimeType: em.Mimetype,
			Caption:  em.Caption,
			FileName: em.FileName,
			Duration: em.Seconds,
		}
		if msg.Media.FileName == "" {
			msg.Media.FileName = em.Title
		}
		if m.MediaURL != "" {
			msg.Media.URL = m.MediaURL
		}
	}

	switch {
	case c.Conversation != "":
		msg.Type = models.MessageTypeText
		msg.Text = c.Conversation
	case c.ExtendedTextMessage != nil:
		msg.Type = models.MessageTypeText
		msg.Text = c.ExtendedTextMessage.Text
	case c.ImageMessage != nil:
		media(models.MessageTypeImage, c.ImageMessage)
	case c.VideoMessage != nil:
		media(models.MessageTypeVideo, c.VideoMessage)
	case c.AudioMessage != nil:
		if c.AudioMessage.PTT {
			media(models.MessageTypeVoice, c.AudioMessage)
		} else {
			media(models.MessageTypeAudio, c.AudioMessage)
		}
	case c.DocumentMessage != nil:
		media(models.MessageTypeDocument, c.DocumentMessage)
	case c.DocumentWithCaptionMessage != nil && c.DocumentWithCaptionMessage.Message.DocumentMessage != nil:
		media(models.MessageTypeDocument, c.DocumentWithCaptionMessage.Message.DocumentMessage)
	case c.StickerMessage != nil:
		media(models.MessageTypeSticker, c.StickerMessage)
	default:
		return nil, false
	}

	return msg, true
}

type evolutionStatus struct {
	KeyID  string          `json:"keyId"`
	Key    *evolutionKey   `json:"key"`
	Status json.RawMessage `json:"status"`
	Update *struct {
		Status json.RawMessage `json:"status"`
	} `json:"update"`
}

func parseEvolutionStatus(env *envelope) ([]Event, error) {
	var updates []evolutionStatus
	if isArray(env.Data) {
		if err := json.Unmarshal(env.Data, &updates); err != nil {
			return nil, fmt.Errorf("failed to decode status list: %w", err)
		}
	} else {
		var single evolutionStatus
		if err := json.Unmarshal(env.Data, &single); err != nil {
			return nil, fmt.Errorf("failed to decode status: %w", err)
		}
		updates = []evolutionStatus{single}
	}

	channel := rawString(env.Instance)
	events := make([]Event, 0, len(updates))
	for _, u := range updates {
		id := u.KeyID
		if id == "" && u.Key != nil {
			id = u.Key.ID
		}
		raw := u.Status
		if !present(raw) && u.Update != nil {
			raw = u.Update.Status
		}
		status, ok := evolutionDeliveryStatus(raw)
		if id == "" || !ok {
			continue
		}
		events = append(events, Event{
			Kind:     KindStatus,
			Provider: models.ProviderEvolution,
			Channel:  channel,
			Status:   &StatusUpdate{ExternalID: id, Status: status},
		})
	}
	return events, nil
}

// evolutionDeliveryStatus maps both the textual and the numeric ack codes.
func evolutionDeliveryStatus(raw json.RawMessage) (models.DeliveryStatus, bool) {
	switch strings.ToUpper(rawString(raw)) {
	case "0", "ERROR":
		return models.DeliveryStatusFailed, true
	case "1", "PENDING":
		return models.DeliveryStatusPending, true
	case "2", "SERVER_ACK":
		return models.DeliveryStatusSent, true
	case "3", "DELIVERY_ACK":
		return models.DeliveryStatusDelivered, true
	case "4", "5", "READ", "PLAYED":
		return models.DeliveryStatusRead, true
	default:
		return "", false
	}
}

func parseEvolutionConnection(env *envelope) ([]Event, error) {
	var data struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode connection state: %w", err)
	}

	var state models.ConnectionStatus
	switch strings.ToLower(data.State) {
	case "open":
		state = models.ConnectionStatusConnected
	case "connecting":
		state = models.ConnectionStatusConnecting
	case "":
		return nil, nil
	default:
		state = models.ConnectionStatusDisconnected
	}

	return []Event{{
		Kind:       KindConnection,
		Provider:   models.ProviderEvolution,
		Channel:    rawString(env.Instance),
		Connection: &ConnectionUpdate{State: state},
	}}, nil
}
