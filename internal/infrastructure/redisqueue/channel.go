// Package redisqueue implements the event channel on Redis lists, with a
// pending set providing receipt handles and a visibility window.
package redisqueue

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/minimart-labs/orderflow/internal/domain/messaging"
)

const keyPrefix = "orderflow:queue:"

// Channel stores each queue as a ready list plus a pending hash keyed by
// receipt handle, with delivery deadlines in a sorted set. A receive first
// requeues pending entries whose visibility window lapsed, then pops up to
// max ready messages into the pending set.
type Channel struct {
	client     redis.UniversalClient
	topic      string
	visibility time.Duration

	mu       sync.RWMutex
	bindings map[string]map[string]bool // queue -> event type filter
}

func New(client redis.UniversalClient, topic string, visibility time.Duration) *Channel {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &Channel{
		client:     client,
		topic:      topic,
		visibility: visibility,
		bindings:   make(map[string]map[string]bool),
	}
}

// BindQueue subscribes a queue to published events, optionally filtered to
// the given event types.
func (c *Channel) BindQueue(name string, eventTypes ...string) {
	filter := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		filter[t] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[name] = filter
}

func (c *Channel) Publish(ctx context.Context, eventType string, payload any) error {
	if c.topic == "" {
		return messaging.ErrTopicNotConfigured
	}
	env, err := messaging.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redisqueue: marshal envelope: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, filter := range c.bindings {
		if len(filter) > 0 && !filter[eventType] {
			continue
		}
		if err := c.client.LPush(ctx, readyKey(name), body).Err(); err != nil {
			return fmt.Errorf("redisqueue: push to %s: %w", name, err)
		}
	}
	return nil
}

func (c *Channel) Receive(ctx context.Context, name string, max int) ([]messaging.Message, error) {
	if name == "" {
		return nil, messaging.ErrQueueNotConfigured
	}
	if err := c.reclaimExpired(ctx, name); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.visibility)
	var out []messaging.Message
	for len(out) < max {
		body, err := c.client.RPop(ctx, readyKey(name)).Bytes()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("redisqueue: pop from %s: %w", name, err)
		}

		receipt := ulid.MustNew(ulid.Now(), rand.Reader).String()
		if err := c.client.HSet(ctx, pendingKey(name), receipt, body).Err(); err != nil {
			return nil, fmt.Errorf("redisqueue: track pending: %w", err)
		}
		if err := c.client.ZAdd(ctx, deadlineKey(name), redis.Z{
			Score:  float64(deadline.UnixMilli()),
			Member: receipt,
		}).Err(); err != nil {
			return nil, fmt.Errorf("redisqueue: track deadline: %w", err)
		}

		out = append(out, messaging.Message{Body: body, ReceiptHandle: receipt})
	}
	return out, nil
}

func (c *Channel) Acknowledge(ctx context.Context, name, receiptHandle string) error {
	deadline, err := c.client.ZScore(ctx, deadlineKey(name), receiptHandle).Result()
	if errors.Is(err, redis.Nil) {
		return messaging.ErrUnknownReceipt
	}
	if err != nil {
		return fmt.Errorf("redisqueue: acknowledge: %w", err)
	}
	// An expired handle no longer owns the message; the entry stays
	// pending so the next receive requeues it.
	if int64(deadline) <= time.Now().UnixMilli() {
		return messaging.ErrUnknownReceipt
	}

	removed, err := c.client.HDel(ctx, pendingKey(name), receiptHandle).Result()
	if err != nil {
		return fmt.Errorf("redisqueue: acknowledge: %w", err)
	}
	if removed == 0 {
		return messaging.ErrUnknownReceipt
	}
	return c.client.ZRem(ctx, deadlineKey(name), receiptHandle).Err()
}

// reclaimExpired moves pending entries whose visibility window lapsed back
// onto the ready list; their receipt handles become invalid.
func (c *Channel) reclaimExpired(ctx context.Context, name string) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	expired, err := c.client.ZRangeByScore(ctx, deadlineKey(name), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("redisqueue: scan deadlines: %w", err)
	}

	for _, receipt := range expired {
		body, err := c.client.HGet(ctx, pendingKey(name), receipt).Bytes()
		if errors.Is(err, redis.Nil) {
			_ = c.client.ZRem(ctx, deadlineKey(name), receipt).Err()
			continue
		}
		if err != nil {
			return fmt.Errorf("redisqueue: load pending: %w", err)
		}
		if err := c.client.RPush(ctx, readyKey(name), body).Err(); err != nil {
			return fmt.Errorf("redisqueue: requeue: %w", err)
		}
		if err := c.client.HDel(ctx, pendingKey(name), receipt).Err(); err != nil {
			return err
		}
		if err := c.client.ZRem(ctx, deadlineKey(name), receipt).Err(); err != nil {
			return err
		}
	}
	return nil
}

func readyKey(name string) string    { return keyPrefix + name }
func pendingKey(name string) string  { return keyPrefix + name + ":pending" }
func deadlineKey(name string) string { return keyPrefix + name + ":deadlines" }
