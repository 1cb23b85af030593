package events_test

import (
	"testing"
	"time"

	"dtesync/internal/events"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := events.NewHub()
	defer hub.Close()

	first, cancelFirst := hub.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe(4)
	defer cancelSecond()

	hub.Publish(events.Event{Type: events.TypeStatusUpdate, DocumentID: "doc-1"})

	for name, ch := range map[string]<-chan events.Event{"first": first, "second": second} {
		select {
		case evt := <-ch:
			if evt.Type != events.TypeStatusUpdate || evt.DocumentID != "doc-1" {
				t.Errorf("%s subscriber got unexpected event %+v", name, evt)
			}
			if evt.Timestamp.IsZero() {
				t.Errorf("%s subscriber got zero timestamp", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber did not receive event", name)
		}
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := events.NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Publish(events.Event{Type: events.TypeStatusUpdate, DocumentID: "kept"})
	hub.Publish(events.Event{Type: events.TypeStatusUpdate, DocumentID: "dropped"})

	evt := <-ch
	if evt.DocumentID != "kept" {
		t.Errorf("expected first event kept, got %q", evt.DocumentID)
	}
	select {
	case extra := <-ch:
		t.Errorf("expected overflow event dropped, got %+v", extra)
	default:
	}
}

func TestCancelClosesChannelAndStopsDelivery(t *testing.T) {
	hub := events.NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe(0)
	if hub.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", hub.SubscriberCount())
	}

	cancel()
	cancel() // second cancel is a no-op

	if hub.SubscriberCount() != 0 {
		t.Fatalf("subscriber count after cancel = %d, want 0", hub.SubscriberCount())
	}
	if _, open := <-ch; open {
		t.Error("expected channel closed after cancel")
	}
	hub.Publish(events.Event{Type: events.TypeStatusUpdate})
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	hub := events.NewHub()
	first, _ := hub.Subscribe(1)
	second, _ := hub.Subscribe(1)

	hub.Close()
	hub.Close() // idempotent

	if _, open := <-first; open {
		t.Error("first channel should be closed")
	}
	if _, open := <-second; open {
		t.Error("second channel should be closed")
	}

	// Subscribing after close yields an already closed channel.
	late, cancel := hub.Subscribe(1)
	defer cancel()
	if _, open := <-late; open {
		t.Error("late subscription should be closed immediately")
	}
}

func TestEventsOrderedPerSubscriber(t *testing.T) {
	hub := events.NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe(8)
	defer cancel()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		hub.Publish(events.Event{Type: events.TypeStatusUpdate, DocumentID: id})
	}
	for _, want := range ids {
		evt := <-ch
		if evt.DocumentID != want {
			t.Fatalf("out of order: got %q, want %q", evt.DocumentID, want)
		}
	}
}
