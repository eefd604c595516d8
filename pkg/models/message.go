package models

// NormalizedMessage is the broker-neutral view of one received message. It is
// built once by Normalize and never mutated afterwards.
type NormalizedMessage struct {
	ID          string            `json:"id"`
	PublishTime int64             `json:"publishTime"`
	EventTime   *int64            `json:"eventTime,omitempty"`
	Properties  map[string]string `json:"properties"`
	Key         string            `json:"key,omitempty"`
	Data        string            `json:"data"`
	// Structured holds the parsed payload when Data is a JSON object or array.
	Structured any `json:"json,omitempty"`
}

func (m NormalizedMessage) HasStructured() bool {
	return m.Structured != nil
}
