package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"highscore/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

type subscription struct {
	id  int64
	typ core.EventType
	fn  func(context.Context, core.Event)
}

// EventBus provides thread-safe pub/sub of score events with sync and async dispatch.
type EventBus struct {
	mode    DispatchMode
	mu      sync.RWMutex
	subs    map[core.EventType]map[int64]subscription
	nextID  int64
	queue   chan core.Event
	workers int
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64
	once    sync.Once
}

func NewEventBus(mode DispatchMode) *EventBus {
	eb := &EventBus{
		mode:    mode,
		subs:    make(map[core.EventType]map[int64]subscription),
		queue:   make(chan core.Event, 1024),
		workers: 2,
	}
	if mode == DispatchAsync {
		eb.startWorkers()
	}
	return eb
}

func (e *EventBus) startWorkers() {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for ev := range e.queue {
				e.dispatch(context.Background(), ev)
			}
		}()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (e *EventBus) Close() {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed.Store(true)
		close(e.queue)
		e.mu.Unlock()
		e.wg.Wait()
	})
}

// Dropped returns how many async events were discarded because the queue was full.
func (e *EventBus) Dropped() int64 { return e.dropped.Load() }

// Subscribe registers a handler for the given event types. Returns unsubscribe func.
func (e *EventBus) Subscribe(handler func(context.Context, core.Event), types ...core.EventType) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	for _, typ := range types {
		if e.subs[typ] == nil {
			e.subs[typ] = make(map[int64]subscription)
		}
		e.subs[typ][id] = subscription{id: id, typ: typ, fn: handler}
	}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for _, typ := range types {
			delete(e.subs[typ], id)
		}
	}
}

// Publish sends an event to subscribers. Events published after Close are discarded.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		e.mu.RLock()
		defer e.mu.RUnlock()
		if e.closed.Load() {
			return
		}
		select {
		case e.queue <- ev:
		default:
			e.dropped.Add(1)
		}
		return
	}
	if e.closed.Load() {
		return
	}
	e.dispatch(ctx, ev)
}

func (e *EventBus) dispatch(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	handlers := make([]func(context.Context, core.Event), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
