package events_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/study-assistant/events"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func receive(t *testing.T, sub *events.Subscription) events.Event {
	t.Helper()
	select {
	case e, ok := <-sub.C():
		require.True(t, ok, "subscription channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return events.Event{}
}

func TestPublishDeliversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := events.NewBroker()
	sub := b.Subscribe("tab-1")
	defer sub.Unsubscribe()

	order := []events.Type{events.SignedIn, events.TokenRefreshed, events.SignedOut, events.SignedIn}
	for _, typ := range order {
		b.Publish(events.Event{Type: typ, ClientID: "tab-1"})
	}

	for _, want := range order {
		e := receive(t, sub)
		require.Equal(t, want, e.Type)
		require.False(t, e.At.IsZero())
	}
}

func TestPublishIsScopedByClient(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := events.NewBroker()
	tab1 := b.Subscribe("tab-1")
	defer tab1.Unsubscribe()
	tab2 := b.Subscribe("tab-2")
	defer tab2.Unsubscribe()

	b.Publish(events.Event{Type: events.SignedIn, ClientID: "tab-2"})

	require.Equal(t, events.SignedIn, receive(t, tab2).Type)
	select {
	case e := <-tab1.C():
		t.Fatalf("tab-1 received an event for tab-2: %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := events.NewBroker()
	sub := b.Subscribe("tab-1")
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(events.Event{Type: events.TokenRefreshed, ClientID: "tab-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on an unread subscription")
	}
	require.Equal(t, events.TokenRefreshed, receive(t, sub).Type)
}

func TestUnsubscribeClosesChannelAndReleases(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := events.NewBroker()
	sub := b.Subscribe("tab-1")
	require.Equal(t, 1, b.SubscriberCount("tab-1"))

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.Equal(t, 0, b.SubscriberCount("tab-1"))

	b.Publish(events.Event{Type: events.SignedIn, ClientID: "tab-1"})

	select {
	case _, ok := <-sub.C():
		require.False(t, ok, "no events after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
	select {
	case <-sub.Done():
	default:
		t.Fatal("done not closed")
	}
}
