package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEHub_SubscribeAndUnsubscribe(t *testing.T) {
	hub := NewSSEHub()

	a := hub.Subscribe(1)
	b := hub.Subscribe(2)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unsubscribe(a)
	assert.Equal(t, 1, hub.ClientCount())
	_, open := <-a.Events
	assert.False(t, open, "channel closes on unsubscribe")

	hub.Unsubscribe(a)
}

func TestSSEHub_PublishStaysWithinTenant(t *testing.T) {
	hub := NewSSEHub()
	harbor := hub.Subscribe(1)
	dunes := hub.Subscribe(2)

	require.NoError(t, hub.Notify(context.Background(), &NotificationEvent{TenantID: 1, Kind: EventAlert, Title: "Guest complaint"}))
	seq := hub.Publish(NotificationEvent{TenantID: 1, Kind: EventSLABreach, Title: "Room 204 overdue"})

	first := <-harbor.Events
	second := <-harbor.Events
	assert.Equal(t, "Guest complaint", first.Title)
	assert.Equal(t, seq, second.Seq)
	assert.Greater(t, second.Seq, first.Seq)

	select {
	case ev := <-dunes.Events:
		t.Errorf("dunes received another tenant's event: %+v", ev)
	default:
	}
}

func TestSSEHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewSSEHub()
	slow := hub.Subscribe(1)

	for i := 0; i < subscriptionBuffer+10; i++ {
		hub.Publish(NotificationEvent{TenantID: 1, Kind: EventFeedbackStatus})
	}
	assert.Equal(t, int64(10), slow.Dropped())
}

func TestSSEHub_Close(t *testing.T) {
	hub := NewSSEHub()
	sub := hub.Subscribe(3)
	hub.Close()

	_, open := <-sub.Events
	assert.False(t, open)
	assert.Zero(t, hub.ClientCount())

	late := hub.Subscribe(3)
	_, open = <-late.Events
	assert.False(t, open, "subscribing after close yields a closed stream")
	hub.Unsubscribe(sub)
}

func TestMultiNotifier(t *testing.T) {
	hub := NewSSEHub()
	sub := hub.Subscribe(1)
	failing := &fakeNotifier{err: errors.New("webhook down")}

	err := MultiNotifier{failing, hub}.Notify(context.Background(), &NotificationEvent{TenantID: 1, Kind: EventDigest})
	require.Error(t, err)
	assert.Len(t, failing.sent(), 1)

	select {
	case <-sub.Events:
	default:
		t.Error("hub should still receive the event after another notifier failed")
	}
}
