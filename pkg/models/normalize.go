package models

import (
	"maps"
	"strings"
	"time"

	"streamview/internal/broker"
	"streamview/pkg/jsoncodec"
)

// Normalize converts a received broker message. It never fails: invalid UTF-8
// is replaced with U+FFFD and payloads that do not parse as JSON simply have
// no structured form.
func Normalize(m broker.Message) NormalizedMessage {
	props := make(map[string]string, len(m.Properties()))
	maps.Copy(props, m.Properties())

	text := strings.ToValidUTF8(string(m.Payload()), "\uFFFD")

	msg := NormalizedMessage{
		ID:          m.ID(),
		PublishTime: epochMillis(m.PublishTime()),
		Properties:  props,
		Key:         m.Key(),
		Data:        text,
		Structured:  parseStructured(text),
	}

	if et := m.EventTime(); !et.IsZero() {
		ms := et.UnixMilli()
		msg.EventTime = &ms
	}

	return msg
}

func parseStructured(text string) any {
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return nil
	}

	var v any
	if err := jsoncodec.Unmarshal([]byte(text), &v); err != nil {
		return nil
	}
	return v
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
