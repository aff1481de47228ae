package event

import (
	"context"
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []any
	bus.Subscribe(TopicBufferChanged, func(_ context.Context, ev any) {
		got = append(got, ev)
	})

	ev := BufferChanged{BufferID: "buf-1", At: time.Now()}
	bus.Publish(context.Background(), TopicBufferChanged, ev)

	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].(BufferChanged).BufferID != "buf-1" {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestPublishSkipsOtherTopics(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	delivered := 0
	bus.Subscribe(TopicArtifactChanged, func(context.Context, any) {
		delivered++
	})

	bus.Publish(context.Background(), TopicBufferChanged, BufferChanged{BufferID: "x"})

	if delivered != 0 {
		t.Errorf("expected no deliveries, got %d", delivered)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	delivered := 0
	sub := bus.Subscribe(TopicBufferChanged, func(context.Context, any) {
		delivered++
	})

	bus.Publish(context.Background(), TopicBufferChanged, BufferChanged{})
	bus.Unsubscribe(sub)
	bus.Publish(context.Background(), TopicBufferChanged, BufferChanged{})

	if delivered != 1 {
		t.Errorf("expected 1 delivery, got %d", delivered)
	}
}

func TestCloseRejectsFurtherPublishes(t *testing.T) {
	bus := NewBus()

	delivered := 0
	bus.Subscribe(TopicBufferChanged, func(context.Context, any) {
		delivered++
	})

	bus.Close()
	bus.Publish(context.Background(), TopicBufferChanged, BufferChanged{})

	if delivered != 0 {
		t.Errorf("expected no deliveries after close, got %d", delivered)
	}
}

func TestStats(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	bus.Subscribe(TopicBufferChanged, func(context.Context, any) {})
	bus.Subscribe(TopicBufferChanged, func(context.Context, any) {})
	bus.Publish(context.Background(), TopicBufferChanged, BufferChanged{})

	stats := bus.Stats()
	if stats.Published != 1 {
		t.Errorf("expected 1 published, got %d", stats.Published)
	}
	if stats.Delivered != 2 {
		t.Errorf("expected 2 delivered, got %d", stats.Delivered)
	}
}
