// Package voice implements VAD-gated microphone capture and hands the
// recorded utterance to a transcription collaborator.
package voice

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/narrator/internal/core/audio"
	"github.com/colonyops/narrator/internal/core/logging"
	"github.com/colonyops/narrator/internal/core/scorer"
)

// minViableSamples is 0.1 s at 16 kHz; anything shorter is a click or a
// cough, not speech worth transcribing.
const minViableSamples = 1600

// FrameScorer scores a frame for voice activity.
type FrameScorer interface {
	Score(frame audio.Frame) (scorer.Scores, error)
}

// Transcriber converts a full utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16) (string, error)
}

// SourceFactory opens a fresh microphone stream for one capture session.
type SourceFactory func(ctx context.Context) (audio.Source, error)

// VoiceInput records one utterance per call, gated by voice activity.
//
// The capture runs a two-phase state machine: wait for a frame above the
// speech threshold (bounded by the listen deadline), then record until
// sustained silence. This avoids both clipping the start of an utterance
// and cutting it off on brief pauses.
type VoiceInput struct {
	openSource  SourceFactory
	scorer      FrameScorer
	transcriber Transcriber

	silenceTimeout time.Duration
	listenTimeout  time.Duration
	threshold      float64

	log zerolog.Logger
	now func() time.Time
}

// New creates a VoiceInput.
func New(openSource SourceFactory, sc FrameScorer, tr Transcriber, silenceTimeout, listenTimeout time.Duration, threshold float64) *VoiceInput {
	return &VoiceInput{
		openSource:     openSource,
		scorer:         sc,
		transcriber:    tr,
		silenceTimeout: silenceTimeout,
		listenTimeout:  listenTimeout,
		threshold:      threshold,
		log:            logging.Component("voice"),
		now:            time.Now,
	}
}

// ListenAndTranscribe records from the microphone and returns the
// transcription, or "" when no usable speech was captured.
func (v *VoiceInput) ListenAndTranscribe(ctx context.Context) (string, error) {
	samples, err := v.record(ctx)
	if err != nil {
		return "", err
	}
	if len(samples) < minViableSamples {
		if len(samples) > 0 {
			v.log.Debug().Int("samples", len(samples)).Msg("capture too short, discarding")
		}
		return "", nil
	}

	text, err := v.transcriber.Transcribe(ctx, samples)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}

// record runs the AwaitingSpeech/Recording state machine and returns
// the captured samples. A listen timeout yields no samples and no error.
func (v *VoiceInput) record(ctx context.Context) ([]int16, error) {
	src, err := v.openSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("open mic: %w", err)
	}
	defer src.Close()

	var (
		samples       []int16
		speechStarted bool
		silenceStart  time.Time
		deadline      = v.now().Add(v.listenTimeout)
	)

	for v.now().Before(deadline) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		frame, err := src.Read(audio.VADFrameSamples)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read mic: %w", err)
		}

		s, err := v.scorer.Score(frame)
		if err != nil {
			return nil, err
		}

		if !speechStarted {
			if s.VAD >= v.threshold {
				speechStarted = true
				samples = append(samples, frame...)
			}
			continue
		}

		samples = append(samples, frame...)
		if s.VAD < v.threshold {
			if silenceStart.IsZero() {
				silenceStart = v.now()
			} else if v.now().Sub(silenceStart) >= v.silenceTimeout {
				break
			}
		} else {
			silenceStart = time.Time{}
		}
	}

	if !speechStarted {
		return nil, nil
	}
	return samples, nil
}
