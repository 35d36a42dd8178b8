package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMalformedRecord marks a record that could not be decoded into a LogEvent.
var ErrMalformedRecord = errors.New("malformed record")

// LogEvent represents a structured log line emitted by an upstream service
type LogEvent struct {
	Timestamp string `json:"timestamp,omitempty"`
	Level     string `json:"level,omitempty"`
	Source    string `json:"source,omitempty"`
	Message   string `json:"message,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// raw holds the payload the event was parsed from, kept verbatim for audit.
	raw json.RawMessage
}

// ParseLogEvent decodes a UTF-8 JSON object into a LogEvent.
// Missing or non-string fields are left empty.
func ParseLogEvent(payload []byte) (*LogEvent, error) {
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformedRecord)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedRecord)
	}

	return &LogEvent{
		Timestamp: stringField(fields, "timestamp"),
		Level:     stringField(fields, "level"),
		Source:    stringField(fields, "source"),
		Message:   stringField(fields, "message"),
		UserID:    stringField(fields, "user_id"),
		RequestID: stringField(fields, "request_id"),
		raw:       append(json.RawMessage(nil), payload...),
	}, nil
}

// Details returns the originating payload. Events built in code are marshalled on demand.
func (e *LogEvent) Details() json.RawMessage {
	if len(e.raw) > 0 {
		return e.raw
	}
	data, err := json.Marshal(e)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
