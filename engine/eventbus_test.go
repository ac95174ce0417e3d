package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"highscore/core"
)

func acceptedEvent() core.Event {
	return core.NewScoreAccepted(core.Result{Record: core.Record{Name: "u", Difficulty: 1, Score: 1}, Accepted: true})
}

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(func(ctx context.Context, e core.Event) { count++ }, core.EventScoreAccepted)
	bus.Publish(context.Background(), acceptedEvent())
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(func(ctx context.Context, e core.Event) { close(ch) }, core.EventScoreAccepted)
	bus.Publish(context.Background(), acceptedEvent())
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusUnsubscribeAndMultipleTypes(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	var count int
	unsub := bus.Subscribe(func(ctx context.Context, e core.Event) { count++ },
		core.EventScoreAccepted, core.EventScoreRejected)

	bus.Publish(context.Background(), acceptedEvent())
	bus.Publish(context.Background(), core.NewScoreRejected(core.Record{Name: "u"}, core.Record{Name: "u"}))
	if count != 2 {
		t.Fatalf("want 2 got %d", count)
	}
	unsub()
	bus.Publish(context.Background(), acceptedEvent())
	if count != 2 {
		t.Fatalf("handler called after unsubscribe")
	}
}

func TestEventBusCloseDrainsQueue(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var delivered atomic.Int64
	bus.Subscribe(func(ctx context.Context, e core.Event) { delivered.Add(1) }, core.EventScoreAccepted)
	for i := 0; i < 50; i++ {
		bus.Publish(context.Background(), acceptedEvent())
	}
	bus.Close()
	if got := delivered.Load() + bus.Dropped(); got != 50 {
		t.Fatalf("want 50 delivered or dropped, got %d", got)
	}
	bus.Publish(context.Background(), acceptedEvent())
	bus.Close()
}
