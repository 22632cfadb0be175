package narrator

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/colonyops/narrator/internal/core/eventbus"
	"github.com/colonyops/narrator/internal/core/inject"
	"github.com/colonyops/narrator/internal/core/logging"
	"github.com/colonyops/narrator/internal/core/narrate"
)

// VoiceSession records one utterance and returns its transcription.
type VoiceSession interface {
	ListenAndTranscribe(ctx context.Context) (string, error)
}

// AudioCues plays the mic-activation sounds.
type AudioCues interface {
	Activation()
	Deactivation()
}

// WakeControl gates the wake listener while voice capture owns the mic.
type WakeControl interface {
	Suspend()
	Resume()
}

// Coordinator connects bus events to voice capture and narration
// control. At most one voice capture runs at a time; triggers that
// arrive while one is active are dropped.
type Coordinator struct {
	queue    *narrate.Queue
	voice    VoiceSession
	injector inject.Injector
	cues     AudioCues
	bus      *eventbus.EventBus
	wake     WakeControl // nil when the wake listener is off

	log  zerolog.Logger
	busy atomic.Bool
}

// NewCoordinator creates a Coordinator. wake may be nil.
func NewCoordinator(q *narrate.Queue, v VoiceSession, inj inject.Injector, cues AudioCues, bus *eventbus.EventBus, wake WakeControl) *Coordinator {
	return &Coordinator{
		queue:    q,
		voice:    v,
		injector: inj,
		cues:     cues,
		bus:      bus,
		wake:     wake,
		log:      logging.Component("coordinator"),
	}
}

// Start registers the bus subscriptions. ctx bounds every voice capture
// the coordinator launches.
func (c *Coordinator) Start(ctx context.Context) {
	c.bus.SubscribeWakeDetected(func(eventbus.WakeDetectedPayload) {
		c.TriggerVoice(ctx, "wake")
	})
	c.bus.SubscribeQuestionSpoken(func(eventbus.QuestionSpokenPayload) {
		c.TriggerVoice(ctx, "question")
	})
	c.bus.SubscribeSpeechDetected(func(eventbus.SpeechDetectedPayload) {
		c.queue.Interrupt()
	})
}

// TriggerVoice starts a voice capture in the background unless one is
// already running.
func (c *Coordinator) TriggerVoice(ctx context.Context, origin string) {
	if !c.busy.CompareAndSwap(false, true) {
		c.log.Debug().Str("origin", origin).Msg("voice capture already active, ignoring trigger")
		return
	}
	go c.captureVoice(ctx, origin)
}

// Busy reports whether a voice capture is in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

func (c *Coordinator) captureVoice(ctx context.Context, origin string) {
	defer c.busy.Store(false)

	if c.wake != nil {
		c.wake.Suspend()
		defer c.wake.Resume()
	}

	c.log.Info().Str("origin", origin).Msg("listening for voice command")
	c.cues.Activation()
	text, err := c.voice.ListenAndTranscribe(ctx)
	c.cues.Deactivation()

	if err != nil {
		c.log.Warn().Err(err).Msg("voice capture failed")
		return
	}
	if text == "" {
		c.log.Debug().Msg("no speech captured")
		return
	}

	if err := c.injector.Inject(ctx, text); err != nil {
		c.log.Error().Err(err).Str("text", text).Msg("command injection failed")
		return
	}
	c.bus.PublishVoiceTranscribed(eventbus.VoiceTranscribedPayload{Text: text})
}
