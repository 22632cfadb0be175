package wakeword

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/narrator/internal/core/audio"
	"github.com/colonyops/narrator/internal/core/eventbus"
	"github.com/colonyops/narrator/internal/core/eventbus/testbus"
	"github.com/colonyops/narrator/internal/core/scorer"
)

type frameSource struct {
	remaining int
}

func (s *frameSource) Read(samples int) (audio.Frame, error) {
	if s.remaining == 0 {
		return nil, io.EOF
	}
	s.remaining--
	return make(audio.Frame, samples), nil
}

func (s *frameSource) Close() error { return nil }

// clockedScorer returns scripted scores and advances a fake clock by
// step on every call, so cooldown windows are deterministic.
type clockedScorer struct {
	scores []scorer.Scores
	step   time.Duration
	call   int
	t      time.Time
}

func (s *clockedScorer) Score(audio.Frame) (scorer.Scores, error) {
	i := s.call
	if i >= len(s.scores) {
		i = len(s.scores) - 1
	}
	s.call++
	s.t = s.t.Add(s.step)
	return s.scores[i], nil
}

func (s *clockedScorer) now() time.Time { return s.t }

func wakeScore(v float64) scorer.Scores {
	return scorer.Scores{Wake: map[string]float64{"hey jarvis": v}}
}

func newListener(t *testing.T, src *frameSource, sc *clockedScorer, opts Options) (*Listener, *testbus.Bus) {
	t.Helper()
	bus := testbus.New(t)
	factory := func(context.Context) (audio.Source, error) { return src, nil }
	l := New(factory, sc, bus.EventBus, nil, opts)
	l.now = sc.now
	return l, bus
}

func TestRun_WakeFiresOncePerCooldown(t *testing.T) {
	sc := &clockedScorer{
		scores: []scorer.Scores{wakeScore(0.9)},
		step:   100 * time.Millisecond,
		t:      time.Unix(1000, 0),
	}
	l, bus := newListener(t, &frameSource{remaining: 5}, sc, Options{
		Phrase:    "hey jarvis",
		Threshold: 0.5,
		Cooldown:  3 * time.Second,
	})

	l.Run(context.Background())

	bus.WaitFor(t, eventbus.EventWakeDetected, time.Second)
	assert.Equal(t, 1, bus.Count(eventbus.EventWakeDetected))
}

func TestRun_WakeFiresAgainAfterCooldown(t *testing.T) {
	sc := &clockedScorer{
		scores: []scorer.Scores{wakeScore(0.9)},
		step:   2 * time.Second,
		t:      time.Unix(1000, 0),
	}
	l, bus := newListener(t, &frameSource{remaining: 3}, sc, Options{
		Phrase:    "hey jarvis",
		Threshold: 0.5,
		Cooldown:  3 * time.Second,
	})

	l.Run(context.Background())

	// Fires at t=2s, suppressed at t=4s (inside the 3s window opened at
	// 2s), fires again at t=6s.
	bus.WaitFor(t, eventbus.EventWakeDetected, time.Second)
	assert.Equal(t, 2, bus.Count(eventbus.EventWakeDetected))
}

func TestRun_BelowThresholdNeverFires(t *testing.T) {
	sc := &clockedScorer{
		scores: []scorer.Scores{wakeScore(0.3)},
		step:   time.Second,
		t:      time.Unix(1000, 0),
	}
	l, bus := newListener(t, &frameSource{remaining: 10}, sc, Options{
		Phrase:    "hey jarvis",
		Threshold: 0.5,
		Cooldown:  3 * time.Second,
	})

	l.Run(context.Background())
	assert.Zero(t, bus.Count(eventbus.EventWakeDetected))
}

func TestRun_SuspendBlocksDetection(t *testing.T) {
	sc := &clockedScorer{
		scores: []scorer.Scores{wakeScore(0.9)},
		step:   time.Second,
		t:      time.Unix(1000, 0),
	}
	l, bus := newListener(t, &frameSource{remaining: 5}, sc, Options{
		Phrase:    "hey jarvis",
		Threshold: 0.5,
		Cooldown:  3 * time.Second,
	})
	l.Suspend()

	l.Run(context.Background())
	assert.Zero(t, bus.Count(eventbus.EventWakeDetected))
}

func TestRun_ResumeRestartsCooldown(t *testing.T) {
	sc := &clockedScorer{
		scores: []scorer.Scores{wakeScore(0.9)},
		step:   time.Second,
		t:      time.Unix(1000, 0),
	}
	l, bus := newListener(t, &frameSource{remaining: 2}, sc, Options{
		Phrase:    "hey jarvis",
		Threshold: 0.5,
		Cooldown:  time.Minute,
	})
	l.Suspend()
	l.Resume()

	// The whole run falls inside the post-resume cooldown window.
	l.Run(context.Background())
	assert.Zero(t, bus.Count(eventbus.EventWakeDetected))
}

func TestRun_BargeInNeedsSustainedSpeech(t *testing.T) {
	speech := scorer.Scores{VAD: 0.9, Wake: map[string]float64{}}
	sc := &clockedScorer{
		scores: []scorer.Scores{speech, speech, speech},
		step:   time.Millisecond,
		t:      time.Unix(1000, 0),
	}
	bus := testbus.New(t)
	factory := func(context.Context) (audio.Source, error) {
		return &frameSource{remaining: 3}, nil
	}
	l := New(factory, sc, bus.EventBus, func() bool { return true }, Options{
		Phrase:             "hey jarvis",
		Threshold:          0.5,
		Cooldown:           3 * time.Second,
		Interrupt:          true,
		InterruptThreshold: 0.7,
	})
	l.now = sc.now

	l.Run(context.Background())

	// Fires after two consecutive frames; the third starts a new run.
	bus.WaitFor(t, eventbus.EventSpeechDetected, time.Second)
	assert.Equal(t, 1, bus.Count(eventbus.EventSpeechDetected))
}

func TestRun_BargeInOnlyDuringNarration(t *testing.T) {
	speech := scorer.Scores{VAD: 0.9, Wake: map[string]float64{}}
	sc := &clockedScorer{
		scores: []scorer.Scores{speech},
		step:   time.Millisecond,
		t:      time.Unix(1000, 0),
	}
	bus := testbus.New(t)
	factory := func(context.Context) (audio.Source, error) {
		return &frameSource{remaining: 5}, nil
	}
	l := New(factory, sc, bus.EventBus, func() bool { return false }, Options{
		Phrase:             "hey jarvis",
		Threshold:          0.5,
		Interrupt:          true,
		InterruptThreshold: 0.7,
	})
	l.now = sc.now

	l.Run(context.Background())
	assert.Zero(t, bus.Count(eventbus.EventSpeechDetected))
}

type disabledScorer struct{}

func (disabledScorer) Score(audio.Frame) (scorer.Scores, error) {
	return scorer.Scores{}, scorer.ErrDisabled
}

func TestRun_StopsWhenScorerDisabled(t *testing.T) {
	bus := testbus.New(t)
	factory := func(context.Context) (audio.Source, error) {
		return &frameSource{remaining: 1 << 30}, nil
	}
	l := New(factory, disabledScorer{}, bus.EventBus, nil, Options{Phrase: "hey jarvis"})

	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after scorer disabled")
	}
	<-l.Done()
}
