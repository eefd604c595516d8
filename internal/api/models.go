package api

import (
	"bytes"

	"streamview/pkg/jsoncodec"
)

// StreamQuery is the query string of GET /api/stream.
type StreamQuery struct {
	ServiceURL       string `form:"serviceUrl"`
	Token            string `form:"token"`
	Topic            string `form:"topic"`
	Subscription     string `form:"subscription"`
	SubscriptionType string `form:"subscriptionType"`
	InitialPosition  string `form:"initialPosition"`
	Verbose          string `form:"verbose"`
	Filter           string `form:"filter"`
	Where            string `form:"where"`
}

// SendRequest is the body of POST /api/send.
type SendRequest struct {
	ServiceURL string         `json:"serviceUrl"`
	Token      string         `json:"token,omitempty"`
	Topic      string         `json:"topic"`
	Payload    Payload        `json:"payload" swaggertype:"object"`
	Key        string         `json:"key,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Verbose    bool           `json:"verbose,omitempty"`
}

type SendResponse struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"messageId"`
}

// Payload holds the bytes to publish. A JSON string is sent as its UTF-8
// text; any other JSON value is sent as its raw encoding. null decodes to
// an empty payload.
type Payload []byte

func (p *Payload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = nil
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := jsoncodec.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Payload(s)
		return nil
	}

	*p = append((*p)[:0], b...)
	return nil
}

// stringProperties flattens property values to strings; non-string values
// keep their JSON encoding.
func stringProperties(in map[string]any) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		encoded, err := jsoncodec.MarshalString(v)
		if err != nil {
			return nil, err
		}
		out[k] = encoded
	}
	return out, nil
}
