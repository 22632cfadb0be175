package narrate

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/narrator/internal/core/eventbus"
	"github.com/colonyops/narrator/internal/core/eventbus/testbus"
)

// fakeSpeaker records spoken texts. When blocking, Speak waits until
// Interrupt is called.
type fakeSpeaker struct {
	mu       sync.Mutex
	spoken   []string
	blocking bool
	release  chan struct{}
	speaking chan string
}

func newFakeSpeaker(blocking bool) *fakeSpeaker {
	return &fakeSpeaker{
		blocking: blocking,
		release:  make(chan struct{}, 8),
		speaking: make(chan string, 8),
	}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()

	select {
	case f.speaking <- text:
	default:
	}

	if f.blocking {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	return nil
}

func (f *fakeSpeaker) Interrupt() {
	select {
	case f.release <- struct{}{}:
	default:
	}
}

func (f *fakeSpeaker) Spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func drainQueue(t *testing.T, q *Queue) []Item {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.pending))
	copy(out, q.pending)
	return out
}

func TestEnqueue_OverflowDropsOldest(t *testing.T) {
	bus := testbus.New(t)
	q := NewQueue(newFakeSpeaker(false), bus.EventBus, 3)

	for _, text := range []string{"one", "two", "three", "four"} {
		q.Enqueue(Item{Text: text})
	}

	pending := drainQueue(t, q)
	require.Len(t, pending, 3)
	assert.Equal(t, "two", pending[0].Text)
	assert.Equal(t, "three", pending[1].Text)
	assert.Equal(t, "four", pending[2].Text)

	rec := bus.WaitFor(t, eventbus.EventNarrationDropped, time.Second)
	assert.Equal(t, "one", rec.Payload.(eventbus.NarrationDroppedPayload).Text)
}

func TestEnqueue_PausedDiscards(t *testing.T) {
	q := NewQueue(newFakeSpeaker(false), nil, 3)

	q.Pause()
	q.Enqueue(Item{Text: "ignored"})
	q.Resume()

	assert.Zero(t, q.Pending(), "items enqueued while paused must not appear after resume")
}

func TestRun_SpeaksInFIFOOrder(t *testing.T) {
	speaker := newFakeSpeaker(false)
	q := NewQueue(speaker, nil, 10)

	q.Enqueue(Item{Text: "first"})
	q.Enqueue(Item{Text: "second"})
	q.Enqueue(Item{Text: "third"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Stop()

	require.Eventually(t, func() bool {
		return len(speaker.Spoken()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"first", "second", "third"}, speaker.Spoken())
}

func TestInterrupt_ClearsPendingAndKillsPlayback(t *testing.T) {
	speaker := newFakeSpeaker(true)
	q := NewQueue(speaker, nil, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Stop()

	q.Enqueue(Item{Text: "speaking now"})

	// Wait until the consumer is inside Speak, then back up the queue.
	select {
	case <-speaker.speaking:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never started speaking")
	}
	q.Enqueue(Item{Text: "queued one"})
	q.Enqueue(Item{Text: "queued two"})

	q.Interrupt()

	assert.Zero(t, q.Pending(), "pending queue must be empty immediately after interrupt")

	// The blocked Speak call was released; nothing else is spoken.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, []string{"speaking now"}, speaker.Spoken())
}

func TestRun_QuestionPublishesQuestionSpoken(t *testing.T) {
	bus := testbus.New(t)
	speaker := newFakeSpeaker(false)
	q := NewQueue(speaker, bus.EventBus, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Stop()

	q.Enqueue(Item{Text: "approve the edit?", Urgency: UrgencyQuestion})

	rec := bus.WaitFor(t, eventbus.EventQuestionSpoken, 2*time.Second)
	assert.Equal(t, "approve the edit?", rec.Payload.(eventbus.QuestionSpokenPayload).Text)
}

func TestRun_StatusDoesNotPublishQuestionSpoken(t *testing.T) {
	bus := testbus.New(t)
	speaker := newFakeSpeaker(false)
	q := NewQueue(speaker, bus.EventBus, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Stop()

	q.Enqueue(Item{Text: "tests passed", Urgency: UrgencyStatus})

	require.Eventually(t, func() bool {
		return len(speaker.Spoken()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, bus.Count(eventbus.EventQuestionSpoken))
}

func TestStop_TerminatesConsumer(t *testing.T) {
	speaker := newFakeSpeaker(false)
	q := NewQueue(speaker, nil, 10)

	done := make(chan struct{})
	go func() {
		q.Run(context.Background())
		close(done)
	}()

	q.Stop()
	q.Stop() // idempotent

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer loop did not terminate after Stop")
	}

	// Items enqueued after stop are never spoken.
	q.Enqueue(Item{Text: "too late"})
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, speaker.Spoken())
}

func TestPauseDoesNotAffectInFlightSpeech(t *testing.T) {
	speaker := newFakeSpeaker(true)
	q := NewQueue(speaker, nil, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Stop()

	q.Enqueue(Item{Text: "long narration"})
	select {
	case <-speaker.speaking:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never started speaking")
	}

	q.Pause()
	assert.True(t, q.Paused())

	// Speech finishes naturally even while paused.
	speaker.Interrupt()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return !q.speaking
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTruncate_RuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 40) // 2 bytes per rune

	got := truncate(s, 61) // 61 lands mid-rune, must back off to 60
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 30)+"...", got)

	assert.Equal(t, "short", truncate("short", 60))
}
