// Package narrate owns the narration queue: a bounded, droppable,
// pausable channel from decision-to-speak to actual audio output.
package narrate

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/colonyops/narrator/internal/core/eventbus"
	"github.com/colonyops/narrator/internal/core/logging"
	"github.com/rs/zerolog"
)

// Urgency classifies a narration as a status update or a question that
// needs the user's reply.
type Urgency int

// Urgency levels.
const (
	UrgencyStatus Urgency = iota
	UrgencyQuestion
)

// String returns the urgency tag used in status output.
func (u Urgency) String() string {
	if u == UrgencyQuestion {
		return "Q"
	}
	return "S"
}

// Item is one pending narration.
type Item struct {
	Text    string
	Urgency Urgency
}

// Speaker synthesizes and plays one narration, blocking until playback
// completes or is interrupted.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	// Interrupt terminates in-flight playback. Must be callable from a
	// different goroutine than the one inside Speak.
	Interrupt()
}

// Consumer idle intervals. Polling keeps the loop free of wakeup
// plumbing at the cost of up to one interval of latency.
const (
	pausedIdle = 200 * time.Millisecond
	emptyIdle  = 100 * time.Millisecond
)

// Queue is a bounded FIFO of narrations with a single consumer.
// When full, the oldest pending item is evicted first: narration favors
// recency over completeness.
type Queue struct {
	speaker Speaker
	bus     *eventbus.EventBus
	max     int
	log     zerolog.Logger

	mu       sync.Mutex
	pending  []Item
	paused   bool
	speaking bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewQueue creates a Queue bounded at max pending items.
func NewQueue(speaker Speaker, bus *eventbus.EventBus, max int) *Queue {
	return &Queue{
		speaker: speaker,
		bus:     bus,
		max:     max,
		log:     logging.Component("queue"),
		stop:    make(chan struct{}),
	}
}

// Enqueue appends an item, evicting the oldest pending item on overflow.
// Items enqueued while paused are silently discarded.
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.paused {
		q.log.Debug().Str("text", item.Text).Msg("paused, discarding narration")
		return
	}

	if len(q.pending) >= q.max {
		dropped := q.pending[0]
		q.pending = q.pending[1:]
		q.log.Warn().Str("text", truncate(dropped.Text, 60)).Msg("queue full, skipping stale narration")
		if q.bus != nil {
			q.bus.PublishNarrationDropped(eventbus.NarrationDroppedPayload{Text: dropped.Text})
		}
	}
	q.pending = append(q.pending, item)
}

// Pause stops acceptance of new items. In-flight speech is unaffected.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume re-enables acceptance of new items.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
}

// Paused reports whether the queue is paused.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Speaking reports whether a narration is currently being spoken.
func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Pending returns the number of queued narrations.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Interrupt clears all pending narrations and terminates any in-flight
// speech. Total: either both happen, or (with no active playback) just
// the queue is cleared.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	n := len(q.pending)
	q.pending = nil
	q.mu.Unlock()

	q.speaker.Interrupt()
	q.log.Info().Int("cleared", n).Msg("narration interrupted")
}

// Stop terminates the consumer loop permanently. Pending and in-flight
// items are abandoned.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
}

// Run is the consumer loop: dequeue oldest, speak, repeat. Call from a
// dedicated goroutine; returns when Stop is called or ctx is canceled.
// The queue lock is never held across the Speak call.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-q.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		q.mu.Lock()
		if q.paused {
			q.mu.Unlock()
			time.Sleep(pausedIdle)
			continue
		}
		var (
			item Item
			ok   bool
		)
		if len(q.pending) > 0 {
			item, ok = q.pending[0], true
			q.pending = q.pending[1:]
			q.speaking = true
		}
		q.mu.Unlock()

		if !ok {
			time.Sleep(emptyIdle)
			continue
		}

		if err := q.speaker.Speak(ctx, item.Text); err != nil {
			q.log.Warn().Err(err).Msg("speech failed, dropping narration")
		}

		q.mu.Lock()
		q.speaking = false
		q.mu.Unlock()

		// Question narrations hand off to voice input once speech ends,
		// whether it completed naturally or was interrupted.
		if item.Urgency == UrgencyQuestion && q.bus != nil {
			q.bus.PublishQuestionSpoken(eventbus.QuestionSpokenPayload{Text: item.Text})
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so the cut never splits a multi-byte
	// character.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
