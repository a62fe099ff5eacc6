package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minimart-labs/orderflow/internal/domain/messaging"
)

// DefaultVisibility is how long a delivered message stays hidden before it
// becomes eligible for redelivery.
const DefaultVisibility = 30 * time.Second

// Broker is an in-memory topic with queue fanout and SQS-like delivery
// semantics: received messages go in flight with a visibility deadline and
// a fresh receipt handle; unacknowledged messages are redelivered once the
// deadline passes, invalidating the old handle.
type Broker struct {
	mu         sync.Mutex
	topic      string
	queues     map[string]*queue
	visibility time.Duration
	now        func() time.Time
}

type queue struct {
	filter   map[string]bool // empty means every event type
	messages []*queuedMessage
}

type queuedMessage struct {
	body     []byte
	receipt  string
	deadline time.Time // zero until first delivery
}

func NewBroker(topic string, visibility time.Duration) *Broker {
	if visibility <= 0 {
		visibility = DefaultVisibility
	}
	return &Broker{
		topic:      topic,
		queues:     make(map[string]*queue),
		visibility: visibility,
		now:        time.Now,
	}
}

// BindQueue subscribes a queue to the topic, optionally filtered to the
// given event types.
func (b *Broker) BindQueue(name string, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	filter := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		filter[t] = true
	}
	b.queues[name] = &queue{filter: filter}
}

func (b *Broker) Publish(ctx context.Context, eventType string, payload any) error {
	_ = ctx
	if b.topic == "" {
		return messaging.ErrTopicNotConfigured
	}
	env, err := messaging.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("memory broker: marshal envelope: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range b.queues {
		if len(q.filter) > 0 && !q.filter[eventType] {
			continue
		}
		q.messages = append(q.messages, &queuedMessage{body: append([]byte(nil), body...)})
	}
	return nil
}

func (b *Broker) Receive(ctx context.Context, name string, max int) ([]messaging.Message, error) {
	_ = ctx
	if name == "" {
		return nil, messaging.ErrQueueNotConfigured
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return nil, fmt.Errorf("memory broker: unknown queue %q", name)
	}

	now := b.now()
	var out []messaging.Message
	for _, m := range q.messages {
		if len(out) >= max {
			break
		}
		if !m.deadline.IsZero() && now.Before(m.deadline) {
			continue // still in flight
		}
		m.receipt = uuid.NewString()
		m.deadline = now.Add(b.visibility)
		out = append(out, messaging.Message{
			Body:          append([]byte(nil), m.body...),
			ReceiptHandle: m.receipt,
		})
	}
	return out, nil
}

func (b *Broker) Acknowledge(ctx context.Context, name, receiptHandle string) error {
	_ = ctx

	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return fmt.Errorf("memory broker: unknown queue %q", name)
	}

	now := b.now()
	for i, m := range q.messages {
		if m.receipt != receiptHandle {
			continue
		}
		if now.After(m.deadline) {
			break // handle expired with the visibility window
		}
		q.messages = append(q.messages[:i], q.messages[i+1:]...)
		return nil
	}
	return messaging.ErrUnknownReceipt
}
