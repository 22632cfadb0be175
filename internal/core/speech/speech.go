// Package speech invokes TTS engines and audio players, exposing a
// killable playback handle so narration can be interrupted mid-word.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/narrator/internal/core/config"
	"github.com/colonyops/narrator/internal/core/logging"
	"github.com/colonyops/narrator/internal/core/narrate"
	"github.com/colonyops/narrator/pkg/executil"
)

const (
	// speakTimeout bounds a single playback; a narration is at most a
	// few sentences.
	speakTimeout = 60 * time.Second
	// synthTimeout bounds piper synthesis.
	synthTimeout = 30 * time.Second
)

// playback guards the currently playing audio process. Interrupt must be
// able to kill it from a different goroutine than the one waiting on it.
type playback struct {
	mu          sync.Mutex
	handle      *executil.Handle
	interrupted bool
}

func (p *playback) set(h *executil.Handle) {
	p.mu.Lock()
	p.handle = h
	p.interrupted = false
	p.mu.Unlock()
}

// clear releases the handle and reports whether playback was interrupted.
func (p *playback) clear() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = nil
	return p.interrupted
}

func (p *playback) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle != nil {
		p.interrupted = true
		p.handle.Kill()
	}
}

// SaySpeaker speaks through the macOS say command.
type SaySpeaker struct {
	exec     executil.Executor
	voice    string
	playback playback
	log      zerolog.Logger
}

// NewSaySpeaker creates a SaySpeaker with the given voice.
func NewSaySpeaker(exec executil.Executor, voice string) *SaySpeaker {
	return &SaySpeaker{exec: exec, voice: voice, log: logging.Component("speech")}
}

// Speak blocks until say finishes or is interrupted.
func (s *SaySpeaker) Speak(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, speakTimeout)
	defer cancel()

	h, err := s.exec.Start(ctx, "say", "-v", s.voice, text)
	if err != nil {
		return fmt.Errorf("say: %w", err)
	}
	s.playback.set(h)

	err = h.Wait()
	if s.playback.clear() {
		return nil // killed on purpose, not a failure
	}
	if err != nil {
		return fmt.Errorf("say: %w", err)
	}
	return nil
}

// Interrupt kills in-flight playback.
func (s *SaySpeaker) Interrupt() {
	s.playback.kill()
}

// PiperSpeaker synthesizes with piper and plays the resulting wav with
// the platform's native player, falling back to say when piper is
// missing.
type PiperSpeaker struct {
	exec     executil.Executor
	model    string
	fallback *SaySpeaker
	wavPath  string
	playback playback
	log      zerolog.Logger
}

// NewPiperSpeaker creates a PiperSpeaker. An empty model uses piper's
// default voice resolution.
func NewPiperSpeaker(exec executil.Executor, model, fallbackVoice string) *PiperSpeaker {
	return &PiperSpeaker{
		exec:     exec,
		model:    model,
		fallback: NewSaySpeaker(exec, fallbackVoice),
		wavPath:  filepath.Join(os.TempDir(), fmt.Sprintf("narrator_piper_%d.wav", os.Getpid())),
		log:      logging.Component("speech"),
	}
}

// Speak synthesizes text to a wav and plays it.
func (s *PiperSpeaker) Speak(ctx context.Context, text string) error {
	synthCtx, cancel := context.WithTimeout(ctx, synthTimeout)
	defer cancel()

	args := []string{"--output_file", s.wavPath}
	if s.model != "" {
		args = append([]string{"--model", s.model}, args...)
	}

	if _, err := s.exec.RunInput(synthCtx, []byte(text), "piper", args...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			s.log.Warn().Msg("piper not found, falling back to say")
			return s.fallback.Speak(ctx, text)
		}
		return fmt.Errorf("piper synth: %w", err)
	}

	return s.playWav(ctx)
}

// playWav tries the platform players in order until one exists.
func (s *PiperSpeaker) playWav(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, speakTimeout)
	defer cancel()

	for _, player := range wavPlayers() {
		h, err := s.exec.Start(ctx, player, s.wavPath)
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				continue
			}
			return fmt.Errorf("%s: %w", player, err)
		}
		s.playback.set(h)

		err = h.Wait()
		if s.playback.clear() {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", player, err)
		}
		return nil
	}
	return errors.New("no audio player found")
}

// Interrupt kills in-flight playback. Synthesis in progress is not
// killed; its output simply never plays once pending is cleared.
func (s *PiperSpeaker) Interrupt() {
	s.playback.kill()
	s.fallback.Interrupt()
}

// wavPlayers returns candidate players for the current platform.
var wavPlayers = func() []string {
	if runtime.GOOS == "darwin" {
		return []string{"afplay"}
	}
	return []string{"aplay", "paplay"}
}

// NewSpeaker builds the configured engine.
func NewSpeaker(exec executil.Executor, cfg config.SpeechConfig) narrate.Speaker {
	if cfg.Engine == config.EngineSay {
		return NewSaySpeaker(exec, cfg.Voice)
	}
	return NewPiperSpeaker(exec, cfg.PiperModel, cfg.Voice)
}
