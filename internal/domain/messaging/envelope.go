package messaging

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Envelope is the unit published to and consumed from the channel. It is
// immutable once constructed; consumers never mutate it.
type Envelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Message is a delivered queue item plus the opaque token required to
// acknowledge it. The token is valid only while the message is in flight.
type Message struct {
	Body          []byte
	ReceiptHandle string
}

// NewEnvelope wraps payload in an Envelope with a fresh ULID and a UTC
// publish timestamp.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("messaging: marshal payload: %w", err)
	}
	now := time.Now().UTC()
	return Envelope{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		EventType: eventType,
		Timestamp: now,
		Payload:   raw,
	}, nil
}

// notification is the outer layer some transports add around the envelope,
// carrying the actual message as a JSON string.
type notification struct {
	Message string `json:"Message"`
}

// DecodeEnvelope decodes a message body into an Envelope. Double-wrapped
// bodies (an outer notification whose Message field holds the envelope as a
// string) are unwrapped first; bare envelope bodies decode directly.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var outer notification
	if err := json.Unmarshal(body, &outer); err == nil && outer.Message != "" {
		body = []byte(outer.Message)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("messaging: decode envelope: %w", err)
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("messaging: decode envelope: missing eventType")
	}
	return env, nil
}
