// Package messaging defines the event channel port and the envelope
// formats shared by publishers and consumers.
package messaging

import (
	"context"
	"errors"
)

// Event type discriminators carried in the envelope.
const (
	EventOrderCreated = "order.created"
	EventOrderShipped = "order.shipped"
)

var (
	// ErrQueueNotConfigured is returned when an operation needs a queue
	// name and none was supplied.
	ErrQueueNotConfigured = errors.New("messaging: queue not configured")
	// ErrTopicNotConfigured is returned by publish when the channel has no
	// outbound topic.
	ErrTopicNotConfigured = errors.New("messaging: topic not configured")
	// ErrUnknownReceipt is returned when an acknowledgment token no longer
	// identifies an in-flight message.
	ErrUnknownReceipt = errors.New("messaging: unknown receipt handle")
)

// Channel is an abstract publish/consume/acknowledge queue. Publish wraps
// the payload in an Envelope and fans it out to queues bound to the
// channel's topic. Received messages stay invisible until acknowledged or
// until their visibility window lapses, after which they are redelivered.
type Channel interface {
	Publish(ctx context.Context, eventType string, payload any) error
	Receive(ctx context.Context, queue string, max int) ([]Message, error)
	Acknowledge(ctx context.Context, queue, receiptHandle string) error
}
