package eventbus

import "sync"

// hooks holds observer callbacks for bus failure modes. Dispatch of
// ordinary events goes through subscribers; hooks exist so tests and
// diagnostics can observe drops and subscriber panics.
type hooks struct {
	mu      sync.RWMutex
	onDrop  []func(Event, any)
	onPanic []func(Event, any, any)
}

// OnDrop registers a hook that fires when an event is dropped due to a
// full buffer.
func (bus *EventBus) OnDrop(fn func(Event, any)) {
	bus.hooks.mu.Lock()
	bus.hooks.onDrop = append(bus.hooks.onDrop, fn)
	bus.hooks.mu.Unlock()
}

// OnPanic registers a hook that fires when a subscriber panics.
func (bus *EventBus) OnPanic(fn func(Event, any, any)) {
	bus.hooks.mu.Lock()
	bus.hooks.onPanic = append(bus.hooks.onPanic, fn)
	bus.hooks.mu.Unlock()
}

func (h *hooks) runOnDrop(event Event, payload any) {
	h.mu.RLock()
	fns := make([]func(Event, any), len(h.onDrop))
	copy(fns, h.onDrop)
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(event, payload)
	}
}

func (h *hooks) runOnPanic(event Event, payload, recovered any) {
	h.mu.RLock()
	fns := make([]func(Event, any, any), len(h.onPanic))
	copy(fns, h.onPanic)
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(event, payload, recovered)
	}
}
