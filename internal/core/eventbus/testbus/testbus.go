// Package testbus provides test utilities for the event bus.
// It wraps a real EventBus with event recording and assertion helpers.
package testbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/narrator/internal/core/eventbus"
)

// RecordedEvent holds a captured event name and payload.
type RecordedEvent struct {
	Event   eventbus.Event
	Payload any
}

// Bus wraps a real EventBus with event recording for tests.
type Bus struct {
	*eventbus.EventBus
	cancel context.CancelFunc

	mu     sync.Mutex
	events []RecordedEvent
}

// New creates a test bus, starts it in a background goroutine, and
// subscribes to all event types for recording. The bus is stopped
// when the test completes.
func New(t *testing.T) *Bus {
	t.Helper()

	bus := eventbus.New(64)
	ctx, cancel := context.WithCancel(context.Background())

	tb := &Bus{
		EventBus: bus,
		cancel:   cancel,
	}

	bus.SubscribeWakeDetected(func(p eventbus.WakeDetectedPayload) {
		tb.record(eventbus.EventWakeDetected, p)
	})
	bus.SubscribeSpeechDetected(func(p eventbus.SpeechDetectedPayload) {
		tb.record(eventbus.EventSpeechDetected, p)
	})
	bus.SubscribeQuestionSpoken(func(p eventbus.QuestionSpokenPayload) {
		tb.record(eventbus.EventQuestionSpoken, p)
	})
	bus.SubscribeNarrationDropped(func(p eventbus.NarrationDroppedPayload) {
		tb.record(eventbus.EventNarrationDropped, p)
	})
	bus.SubscribeVoiceTranscribed(func(p eventbus.VoiceTranscribedPayload) {
		tb.record(eventbus.EventVoiceTranscribed, p)
	})

	go bus.Start(ctx)

	t.Cleanup(func() {
		cancel()
	})

	return tb
}

func (b *Bus) record(event eventbus.Event, payload any) {
	b.mu.Lock()
	b.events = append(b.events, RecordedEvent{Event: event, Payload: payload})
	b.mu.Unlock()
}

// Events returns a snapshot of recorded events.
func (b *Bus) Events() []RecordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedEvent, len(b.events))
	copy(out, b.events)
	return out
}

// WaitFor blocks until an event of the given type is recorded, or fails
// the test after the timeout.
func (b *Bus) WaitFor(t *testing.T, event eventbus.Event, timeout time.Duration) RecordedEvent {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, rec := range b.Events() {
			if rec.Event == event {
				return rec
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event %q not recorded within %v", event, timeout)
	return RecordedEvent{}
}

// Count returns how many events of the given type were recorded.
func (b *Bus) Count(event eventbus.Event) int {
	n := 0
	for _, rec := range b.Events() {
		if rec.Event == event {
			n++
		}
	}
	return n
}
