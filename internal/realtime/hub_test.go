package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkinq/queue-service/internal/events"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func message(t *testing.T, queueID, event string) events.Message {
	t.Helper()
	msg, err := events.NewMessage(queueID, event, map[string]string{"queueId": queueID})
	require.NoError(t, err)
	return msg
}

func receive(t *testing.T, sub *Subscriber) (events.Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		return msg, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return events.Message{}, false
	}
}

func TestHubDeliversOnlyToRoomMembers(t *testing.T) {
	hub, _ := startHub(t)
	ctx := context.Background()

	a := NewSubscriber(4)
	b := NewSubscriber(4)
	require.NoError(t, hub.Join(ctx, a, "q1"))
	require.NoError(t, hub.Join(ctx, b, "q2"))

	require.NoError(t, hub.Emit(ctx, message(t, "q1", events.EventQueueSnapshot)))
	require.NoError(t, hub.Emit(ctx, message(t, "q2", events.EventTicketCalled)))

	msg, ok := receive(t, a)
	require.True(t, ok)
	assert.Equal(t, "queue:q1", msg.Room)
	assert.Equal(t, events.EventQueueSnapshot, msg.Event)

	msg, ok = receive(t, b)
	require.True(t, ok)
	assert.Equal(t, events.EventTicketCalled, msg.Event)

	select {
	case extra := <-a.Messages():
		t.Fatalf("unexpected message %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubLeaveAllClosesSubscriber(t *testing.T) {
	hub, _ := startHub(t)
	ctx := context.Background()

	sub := NewSubscriber(4)
	require.NoError(t, hub.Join(ctx, sub, "q1"))
	require.NoError(t, hub.Join(ctx, sub, "q2"))
	hub.LeaveAll(sub)

	_, ok := receive(t, sub)
	assert.False(t, ok)

	// Emitting to a room without members is harmless.
	require.NoError(t, hub.Emit(ctx, message(t, "q1", events.EventQueueSnapshot)))
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub, _ := startHub(t)
	ctx := context.Background()

	slow := NewSubscriber(1)
	fast := NewSubscriber(8)
	require.NoError(t, hub.Join(ctx, slow, "q1"))
	require.NoError(t, hub.Join(ctx, fast, "q1"))

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Emit(ctx, message(t, "q1", events.EventQueueSnapshot)))
	}
	for i := 0; i < 5; i++ {
		_, ok := receive(t, fast)
		require.True(t, ok)
	}
	assert.Len(t, slow.Messages(), 1)
}

func TestHubStopClosesSubscribers(t *testing.T) {
	hub, cancel := startHub(t)
	sub := NewSubscriber(1)
	require.NoError(t, hub.Join(context.Background(), sub, "q1"))

	cancel()

	_, ok := receive(t, sub)
	assert.False(t, ok)
	assert.ErrorIs(t, hub.Join(context.Background(), NewSubscriber(1), "q1"), ErrHubClosed)
	assert.NotPanics(t, func() { hub.LeaveAll(sub) })
}
