package mapper

import (
	"sort"
	"sync"
)

// EventHandler receives an emitted event value. It is a type alias
// (not a distinct named type) so that sibling packages can declare
// their own CdpExecutor-style interfaces with an `On` method of this
// exact shape and have *CdpTarget satisfy them structurally, without
// importing this package and creating a cycle.
type EventHandler = func(event string, data interface{})

type eventSubscriber struct {
	id      int64
	events  map[string]bool // nil means "all events" (wildcard)
	handler EventHandler
}

// EventEmitter is a minimal pub/sub used throughout the mediator to
// funnel CDP events to interested listeners. A wildcard listener
// (registered via OnAny) receives every event regardless of name. A
// CdpTarget funnels its entire incoming CDP stream into the BiDi
// `cdp.<eventName>` event through the synthetic "cdp.*" event its
// dispatchEvent emits for every CDP event (§4.3, §9 "EventEmitter
// wildcards").
type EventEmitter struct {
	mu    sync.RWMutex
	next  int64
	subs  map[int64]*eventSubscriber
}

// NewEventEmitter returns a ready-to-use EventEmitter.
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{subs: make(map[int64]*eventSubscriber)}
}

// On registers handler for the named events only.
func (e *EventEmitter) On(handler EventHandler, events ...string) (cancel func()) {
	set := make(map[string]bool, len(events))
	for _, ev := range events {
		set[ev] = true
	}
	return e.register(set, handler)
}

// OnAny registers a wildcard listener that receives every event.
func (e *EventEmitter) OnAny(handler EventHandler) (cancel func()) {
	return e.register(nil, handler)
}

func (e *EventEmitter) register(set map[string]bool, handler EventHandler) func() {
	e.mu.Lock()
	id := e.next
	e.next++
	e.subs[id] = &eventSubscriber{id: id, events: set, handler: handler}
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Emit delivers event/data to every matching listener, synchronously,
// in registration order. Event handlers must never propagate a panic
// into the caller's goroutine (§7, "event handlers never propagate
// exceptions to the event loop; they log and drop"); Emit recovers and
// drops any handler panic rather than taking down the event loop.
func (e *EventEmitter) Emit(event string, data interface{}) {
	e.mu.RLock()
	matched := make([]*eventSubscriber, 0, len(e.subs))
	for _, s := range e.subs {
		if s.events == nil || s.events[event] {
			matched = append(matched, s)
		}
	}
	e.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })

	for _, s := range matched {
		callHandlerSafely(s.handler, event, data)
	}
}

func callHandlerSafely(h EventHandler, event string, data interface{}) {
	defer func() { recover() }()
	h(event, data)
}
