package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/popeskul/wa-inbox/internal/models"
)

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// rawString decodes a JSON string or number as text. Anything else yields "".
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch {
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		return string(raw)
	}
	return ""
}

// parseUnix accepts epoch seconds as a number, a numeric string or a protobuf Long
// ({"low": n, "high": n}).
func parseUnix(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if !present(raw) {
		return time.Time{}
	}

	if raw[0] == '{' {
		var long struct {
			Low  int64 `json:"low"`
			High int64 `json:"high"`
		}
		if err := json.Unmarshal(raw, &long); err != nil {
			return time.Time{}
		}
		return time.Unix(long.High<<32|long.Low, 0)
	}

	s := rawString(raw)
	if s == "" {
		return time.Time{}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		if sec > 1e12 {
			return time.UnixMilli(sec)
		}
		return time.Unix(sec, 0)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// typeFromMime derives the message type of a media attachment from its mime type.
func typeFromMime(mime string) models.MessageType {
	switch {
	case strings.HasPrefix(mime, "image/webp"):
		return models.MessageTypeSticker
	case strings.HasPrefix(mime, "image/"):
		return models.MessageTypeImage
	case strings.HasPrefix(mime, "video/"):
		return models.MessageTypeVideo
	case strings.HasPrefix(mime, "audio/ogg"):
		return models.MessageTypeVoice
	case strings.HasPrefix(mime, "audio/"):
		return models.MessageTypeAudio
	default:
		return models.MessageTypeDocument
	}
}

func normalizeEventName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", ".")
}
