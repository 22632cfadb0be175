// Package wakeword runs the always-on listener: it streams microphone
// frames through the acoustic scorer and publishes wake and barge-in
// events on the bus.
package wakeword

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/narrator/internal/core/audio"
	"github.com/colonyops/narrator/internal/core/eventbus"
	"github.com/colonyops/narrator/internal/core/logging"
	"github.com/colonyops/narrator/internal/core/scorer"
	"github.com/colonyops/narrator/internal/core/voice"
)

// bargeInFrames is how many consecutive frames must score above the
// interrupt threshold before sustained speech is reported. One frame is
// 80 ms; a door slam clears in one, a sentence does not.
const bargeInFrames = 2

// Options configure a Listener.
type Options struct {
	Phrase    string
	Threshold float64
	Cooldown  time.Duration

	// Interrupt enables barge-in: sustained speech during narration
	// publishes a speech.detected event.
	Interrupt          bool
	InterruptThreshold float64
}

// Listener is the always-on wake-phrase detector.
type Listener struct {
	openSource voice.SourceFactory
	scorer     voice.FrameScorer
	bus        *eventbus.EventBus
	speaking   func() bool
	opts       Options

	log  zerolog.Logger
	now  func() time.Time
	done chan struct{}

	mu            sync.Mutex
	suspended     bool
	cooldownUntil time.Time
}

// New creates a Listener. speaking reports whether narration playback is
// active; barge-in events are only published while it returns true.
func New(openSource voice.SourceFactory, sc voice.FrameScorer, bus *eventbus.EventBus, speaking func() bool, opts Options) *Listener {
	if speaking == nil {
		speaking = func() bool { return false }
	}
	return &Listener{
		openSource: openSource,
		scorer:     sc,
		bus:        bus,
		speaking:   speaking,
		opts:       opts,
		log:        logging.Component("wakeword"),
		now:        time.Now,
		done:       make(chan struct{}),
	}
}

// Suspend stops wake detections without tearing down the stream, for
// the window where voice capture owns the microphone.
func (l *Listener) Suspend() {
	l.mu.Lock()
	l.suspended = true
	l.mu.Unlock()
}

// Resume re-enables detections and restarts the cooldown window so the
// tail of the user's own utterance cannot re-trigger the wake phrase.
func (l *Listener) Resume() {
	l.mu.Lock()
	l.cooldownUntil = l.now().Add(l.opts.Cooldown)
	l.suspended = false
	l.mu.Unlock()
}

// Done is closed when the listener loop has exited.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Run streams frames until the context ends or the scorer disables
// itself. Call from a dedicated goroutine.
func (l *Listener) Run(ctx context.Context) {
	defer close(l.done)

	src, err := l.openSource(ctx)
	if err != nil {
		l.log.Error().Err(err).Msg("wake listener could not open microphone")
		return
	}
	defer src.Close()

	l.log.Info().Str("phrase", l.opts.Phrase).Msg("wake listener started")

	speechRun := 0
	for ctx.Err() == nil {
		frame, err := src.Read(audio.WakeFrameSamples)
		if err != nil {
			if err != io.EOF {
				l.log.Error().Err(err).Msg("microphone stream failed, wake listener stopping")
			}
			return
		}

		s, err := l.scorer.Score(frame)
		if err != nil {
			if errors.Is(err, scorer.ErrDisabled) {
				return
			}
			l.log.Debug().Err(err).Msg("frame scoring failed")
			continue
		}

		if l.paused() {
			speechRun = 0
			continue
		}

		if l.checkWake(s) {
			speechRun = 0
			continue
		}

		speechRun = l.checkBargeIn(s, speechRun)
	}
}

func (l *Listener) paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.suspended
}

// checkWake publishes a wake event when the phrase score crosses the
// threshold outside the cooldown window, and reports whether it fired.
func (l *Listener) checkWake(s scorer.Scores) bool {
	score := s.Wake[l.opts.Phrase]
	if score < l.opts.Threshold {
		return false
	}

	l.mu.Lock()
	now := l.now()
	if now.Before(l.cooldownUntil) {
		l.mu.Unlock()
		return false
	}
	l.cooldownUntil = now.Add(l.opts.Cooldown)
	l.mu.Unlock()

	l.log.Info().Float64("score", score).Msg("wake phrase detected")
	l.bus.PublishWakeDetected(eventbus.WakeDetectedPayload{Phrase: l.opts.Phrase, Score: score})
	return true
}

// checkBargeIn tracks consecutive high-VAD frames during narration and
// publishes a speech event on a sustained run. Returns the updated run
// length.
func (l *Listener) checkBargeIn(s scorer.Scores, run int) int {
	if !l.opts.Interrupt || !l.speaking() || s.VAD < l.opts.InterruptThreshold {
		return 0
	}
	run++
	if run < bargeInFrames {
		return run
	}
	l.log.Info().Float64("vad", s.VAD).Msg("speech during narration, interrupting")
	l.bus.PublishSpeechDetected(eventbus.SpeechDetectedPayload{Confidence: s.VAD})
	return 0
}
