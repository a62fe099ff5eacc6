package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimart-labs/orderflow/internal/domain/messaging"
	domain "github.com/minimart-labs/orderflow/internal/domain/order"
)

type fakeChannel struct {
	messages     []messaging.Message
	receiveErr   error
	receiveCalls int
	acked        []string
	ackErr       error
}

func (f *fakeChannel) Publish(context.Context, string, any) error { return nil }

func (f *fakeChannel) Receive(_ context.Context, _ string, max int) ([]messaging.Message, error) {
	f.receiveCalls++
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if len(f.messages) > max {
		return f.messages[:max], nil
	}
	return f.messages, nil
}

func (f *fakeChannel) Acknowledge(_ context.Context, _, receiptHandle string) error {
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, receiptHandle)
	return nil
}

type fakeShipmentHandler struct {
	handled []string
	errs    map[string]error
}

func (f *fakeShipmentHandler) HandleOrderShipped(_ context.Context, id string) (*domain.Order, error) {
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	f.handled = append(f.handled, id)
	return &domain.Order{ID: id, Status: domain.StatusShipped}, nil
}

func shippedMessage(t *testing.T, orderID, receipt string) messaging.Message {
	t.Helper()
	env, err := messaging.NewEnvelope(messaging.EventOrderShipped,
		domain.ShippedPayload{Order: domain.ShippedOrder{ID: orderID}})
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return messaging.Message{Body: body, ReceiptHandle: receipt}
}

func newTestConsumer(channel *fakeChannel, handler *fakeShipmentHandler, queue string) *Consumer {
	return NewConsumer(channel, handler, queue, 0, 10, nil, nil)
}

func TestPollHandlesAndAcknowledges(t *testing.T) {
	channel := &fakeChannel{messages: []messaging.Message{
		shippedMessage(t, "o1", "r1"),
		shippedMessage(t, "o2", "r2"),
	}}
	handler := &fakeShipmentHandler{}

	newTestConsumer(channel, handler, "shipped-q").Poll(context.Background())

	assert.Equal(t, []string{"o1", "o2"}, handler.handled, "delivery order preserved")
	assert.Equal(t, []string{"r1", "r2"}, channel.acked)
}

func TestPollSkipsMalformedMessage(t *testing.T) {
	channel := &fakeChannel{messages: []messaging.Message{
		shippedMessage(t, "o1", "r1"),
		{Body: []byte("not-json"), ReceiptHandle: "r2"},
		shippedMessage(t, "o3", "r3"),
	}}
	handler := &fakeShipmentHandler{}

	newTestConsumer(channel, handler, "shipped-q").Poll(context.Background())

	assert.Equal(t, []string{"o1", "o3"}, handler.handled)
	assert.Equal(t, []string{"r1", "r3"}, channel.acked, "malformed message stays unacknowledged")
}

func TestPollIsolatesHandlingFailure(t *testing.T) {
	channel := &fakeChannel{messages: []messaging.Message{
		shippedMessage(t, "o1", "r1"),
		shippedMessage(t, "unknown", "r2"),
		shippedMessage(t, "o3", "r3"),
	}}
	handler := &fakeShipmentHandler{
		errs: map[string]error{"unknown": domain.ErrNotFound},
	}

	newTestConsumer(channel, handler, "shipped-q").Poll(context.Background())

	assert.Equal(t, []string{"o1", "o3"}, handler.handled,
		"a failing message does not abort the rest of the batch")
	assert.Equal(t, []string{"r1", "r3"}, channel.acked)
}

func TestPollLeavesUnrecognizedTypes(t *testing.T) {
	env, err := messaging.NewEnvelope("order.refunded", map[string]string{"id": "o1"})
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	channel := &fakeChannel{messages: []messaging.Message{
		{Body: body, ReceiptHandle: "r1"},
	}}
	handler := &fakeShipmentHandler{}

	newTestConsumer(channel, handler, "shipped-q").Poll(context.Background())

	assert.Empty(t, handler.handled)
	assert.Empty(t, channel.acked, "unrecognized types are left on the queue")
}

func TestPollUnwrapsDoubleWrappedBody(t *testing.T) {
	env, err := messaging.NewEnvelope(messaging.EventOrderShipped,
		domain.ShippedPayload{Order: domain.ShippedOrder{ID: "o1"}})
	require.NoError(t, err)
	inner, err := json.Marshal(env)
	require.NoError(t, err)
	outer := []byte(fmt.Sprintf(`{"Message": %q}`, inner))

	channel := &fakeChannel{messages: []messaging.Message{
		{Body: outer, ReceiptHandle: "r1"},
	}}
	handler := &fakeShipmentHandler{}

	newTestConsumer(channel, handler, "shipped-q").Poll(context.Background())

	assert.Equal(t, []string{"o1"}, handler.handled)
	assert.Equal(t, []string{"r1"}, channel.acked)
}

func TestPollWithoutQueueAbortsCycle(t *testing.T) {
	channel := &fakeChannel{messages: []messaging.Message{
		shippedMessage(t, "o1", "r1"),
	}}
	handler := &fakeShipmentHandler{}

	newTestConsumer(channel, handler, "").Poll(context.Background())

	assert.Zero(t, channel.receiveCalls, "cycle aborts before polling")
	assert.Empty(t, handler.handled)
}

func TestPollReceiveFailureAbortsCycle(t *testing.T) {
	channel := &fakeChannel{receiveErr: errors.New("channel unavailable")}
	handler := &fakeShipmentHandler{}

	newTestConsumer(channel, handler, "shipped-q").Poll(context.Background())

	assert.Empty(t, handler.handled)
	assert.Empty(t, channel.acked)
}

func TestPollAckFailureLeavesMessagePending(t *testing.T) {
	channel := &fakeChannel{
		messages: []messaging.Message{shippedMessage(t, "o1", "r1")},
		ackErr:   errors.New("ack failed"),
	}
	handler := &fakeShipmentHandler{}

	newTestConsumer(channel, handler, "shipped-q").Poll(context.Background())

	assert.Equal(t, []string{"o1"}, handler.handled)
	assert.Empty(t, channel.acked)
}
