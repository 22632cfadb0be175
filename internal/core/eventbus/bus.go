// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within narrator.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Event identifies an event type on the bus.
type Event string

// All event types. Keep list sorted A-Z.
const (
	EventNarrationDropped Event = "narration.dropped"
	EventQuestionSpoken   Event = "question.spoken"
	EventSpeechDetected   Event = "speech.detected"
	EventVoiceTranscribed Event = "voice.transcribed"
	EventWakeDetected     Event = "wake.detected"
)

// envelope pairs an event with its payload for the dispatch channel.
type envelope struct {
	event   Event
	payload any
}

// EventBus dispatches typed events to subscribers from a single goroutine.
// Publishing never blocks: events are dropped when the buffer is full.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu          sync.RWMutex
	subscribers map[Event][]func(any)
}

// New creates an EventBus with the given buffer size.
func New(buffer int) *EventBus {
	return &EventBus{
		ch:          make(chan envelope, buffer),
		subscribers: make(map[Event][]func(any)),
	}
}

// Start runs the dispatch loop until the context is canceled.
// Subscribers are invoked sequentially; a panicking subscriber is
// recovered and logged so it cannot take down the dispatcher.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]func(any), len(bus.subscribers[env.event]))
	copy(subs, bus.subscribers[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		bus.safeCall(env, fn)
	}
}

func (bus *EventBus) safeCall(env envelope, fn func(any)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(env.event)).
				Any("panic", r).
				Msg("event subscriber panicked")
			bus.hooks.runOnPanic(env.event, env.payload, r)
		}
	}()
	fn(env.payload)
}

// send enqueues an event, dropping it when the buffer is full.
func (bus *EventBus) send(event Event, payload any) {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
	default:
		log.Warn().Str("event", string(event)).Msg("event bus full, dropping event")
		bus.hooks.runOnDrop(event, payload)
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subscribers[event] = append(bus.subscribers[event], fn)
	bus.mu.Unlock()
}

// PublishWakeDetected publishes a wake.detected event.
func (bus *EventBus) PublishWakeDetected(p WakeDetectedPayload) {
	bus.send(EventWakeDetected, p)
}

// SubscribeWakeDetected registers a handler for wake.detected events.
func (bus *EventBus) SubscribeWakeDetected(fn func(WakeDetectedPayload)) {
	bus.subscribe(EventWakeDetected, func(payload any) {
		fn(payload.(WakeDetectedPayload))
	})
}

// PublishSpeechDetected publishes a speech.detected event.
func (bus *EventBus) PublishSpeechDetected(p SpeechDetectedPayload) {
	bus.send(EventSpeechDetected, p)
}

// SubscribeSpeechDetected registers a handler for speech.detected events.
func (bus *EventBus) SubscribeSpeechDetected(fn func(SpeechDetectedPayload)) {
	bus.subscribe(EventSpeechDetected, func(payload any) {
		fn(payload.(SpeechDetectedPayload))
	})
}

// PublishQuestionSpoken publishes a question.spoken event.
func (bus *EventBus) PublishQuestionSpoken(p QuestionSpokenPayload) {
	bus.send(EventQuestionSpoken, p)
}

// SubscribeQuestionSpoken registers a handler for question.spoken events.
func (bus *EventBus) SubscribeQuestionSpoken(fn func(QuestionSpokenPayload)) {
	bus.subscribe(EventQuestionSpoken, func(payload any) {
		fn(payload.(QuestionSpokenPayload))
	})
}

// PublishNarrationDropped publishes a narration.dropped event.
func (bus *EventBus) PublishNarrationDropped(p NarrationDroppedPayload) {
	bus.send(EventNarrationDropped, p)
}

// SubscribeNarrationDropped registers a handler for narration.dropped events.
func (bus *EventBus) SubscribeNarrationDropped(fn func(NarrationDroppedPayload)) {
	bus.subscribe(EventNarrationDropped, func(payload any) {
		fn(payload.(NarrationDroppedPayload))
	})
}

// PublishVoiceTranscribed publishes a voice.transcribed event.
func (bus *EventBus) PublishVoiceTranscribed(p VoiceTranscribedPayload) {
	bus.send(EventVoiceTranscribed, p)
}

// SubscribeVoiceTranscribed registers a handler for voice.transcribed events.
func (bus *EventBus) SubscribeVoiceTranscribed(fn func(VoiceTranscribedPayload)) {
	bus.subscribe(EventVoiceTranscribed, func(payload any) {
		fn(payload.(VoiceTranscribedPayload))
	})
}
