package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/popeskul/wa-inbox/internal/models"
)

// legacyMessage is the flat form posted by older integrations: {from, text} where text is a
// string or {body}, optionally with a media attachment.
type legacyMessage struct {
	ID        string          `json:"id"`
	MessageID string          `json:"messageId"`
	Name      string          `json:"name"`
	PushName  string          `json:"pushName"`
	FromMe    bool            `json:"fromMe"`
	Instance  string          `json:"instance"`
	Timestamp json.RawMessage `json:"timestamp"`
	MediaURL  string          `json:"mediaUrl"`
	Mimetype  string          `json:"mimetype"`
	FileName  string          `json:"fileName"`
}

func matchLegacy(env *envelope) bool {
	return rawString(env.From) != "" && present(env.Text)
}

func parseLegacy(env *envelope) ([]Event, error) {
	var lm legacyMessage
	if err := json.Unmarshal(env.raw, &lm); err != nil {
		return nil, fmt.Errorf("failed to decode legacy message: %w", err)
	}

	text := rawString(env.Text)
	if text == "" && env.Text[0] == '{' {
		var body struct {
			Body string `json:"body"`
		}
		if err := json.Unmarshal(env.Text, &body); err != nil {
			return nil, fmt.Errorf("failed to decode text body: %w", err)
		}
		text = body.Body
	}

	msg := &Message{
		ExternalID: lm.ID,
		ChatID:     rawString(env.From),
		SenderName: lm.Name,
		FromMe:     lm.FromMe,
		Type:       models.MessageTypeText,
		Text:       text,
		Timestamp:  parseUnix(lm.Timestamp),
	}
	if msg.ExternalID == "" {
		msg.ExternalID = lm.MessageID
	}
	if msg.SenderName == "" {
		msg.SenderName = lm.PushName
	}
	if lm.MediaURL != "" {
		msg.Type = typeFromMime(lm.Mimetype)
		msg.Media = &Media{
			URL:      lm.MediaURL,
			MimeType: lm.Mimetype,
			Caption:  text,
			FileName: lm.FileName,
		}
		msg.Text = ""
	}

	return []Event{{
		Kind:     KindMessage,
		Provider: models.ProviderLegacy,
		Channel:  lm.Instance,
		Message:  msg,
	}}, nil
}
