package queue_test

import (
	"context"
	"testing"
	"time"

	"rail-reservation/internal/model"
	"rail-reservation/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan queue.Delivery) queue.Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "delivery channel closed")
		return d
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	return queue.Delivery{}
}

func TestMemoryEventQueue_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemoryEventQueue(4)
	msgs, err := q.Subscribe(ctx)
	require.NoError(t, err)

	event := &model.BookingEvent{ID: "e1", Type: model.BookingEventCreated, BookingID: 7}
	require.NoError(t, q.Publish(ctx, event))

	d := receive(t, msgs)
	assert.Equal(t, event, d.Data)
	d.Ack()
}

func TestMemoryEventQueue_NackRequeue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemoryEventQueue(4)
	msgs, err := q.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, &model.BookingEvent{ID: "e2", BookingID: 8}))

	first := receive(t, msgs)
	first.Nack(true)

	again := receive(t, msgs)
	assert.Equal(t, "e2", again.Data.ID)
}

func TestMemoryEventQueue_PublishHonoursContext(t *testing.T) {
	q := queue.NewMemoryEventQueue(1)
	require.NoError(t, q.Publish(context.Background(), &model.BookingEvent{ID: "fill"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, &model.BookingEvent{ID: "blocked"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryEventQueue_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewMemoryEventQueue(1)
	msgs, err := q.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
