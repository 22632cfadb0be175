// Package config handles configuration loading and validation for narrator.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported TTS engines.
const (
	EngineSay   = "say"
	EnginePiper = "piper"
)

// Supported injection backends.
const (
	InjectTmux  = "tmux"
	InjectIterm = "iterm"
)

// Config holds the application configuration.
// Durations are expressed in seconds so the YAML reads the same as the
// CLI flags (interval: 3.0, silence_timeout: 1.5).
type Config struct {
	Pane            string  `yaml:"pane"`          // tmux pane to watch
	Logfile         string  `yaml:"logfile"`       // watch a log file instead of a pane
	IntervalSeconds float64 `yaml:"interval"`      // seconds between captures
	MaxQueue        int     `yaml:"max_queue"`     // pending narrations before dropping stale ones
	HistoryLines    int     `yaml:"history_lines"` // scroll-back lines captured per poll

	Classifier ClassifierConfig `yaml:"classifier"`
	Speech     SpeechConfig     `yaml:"speech"`
	Voice      VoiceConfig      `yaml:"voice"`
	Wake       WakeConfig       `yaml:"wake"`
	Inject     InjectConfig     `yaml:"inject"`
}

// ClassifierConfig holds settings for the Ollama filter.
type ClassifierConfig struct {
	URL            string  `yaml:"url"`
	Model          string  `yaml:"model"`
	TimeoutSeconds float64 `yaml:"timeout"`
}

// SpeechConfig holds TTS settings.
type SpeechConfig struct {
	Engine     string `yaml:"engine"` // say or piper
	Voice      string `yaml:"voice"`  // voice name for say
	PiperModel string `yaml:"piper_model"`
}

// VoiceConfig holds voice input settings.
type VoiceConfig struct {
	Enabled               bool    `yaml:"enabled"`
	ScorerURL             string  `yaml:"scorer_url"`      // acoustic scoring sidecar websocket
	WhisperURL            string  `yaml:"whisper_url"`     // transcription server
	SilenceTimeoutSeconds float64 `yaml:"silence_timeout"` // silence before ending recording
	ListenTimeoutSeconds  float64 `yaml:"listen_timeout"`  // max wait for speech to start
	SpeechThreshold       float64 `yaml:"speech_threshold"`
	RecorderCommand       string  `yaml:"recorder_command"` // external mic recorder (default sox)
}

// WakeConfig holds wake word settings.
type WakeConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Phrase             string  `yaml:"phrase"`
	Threshold          float64 `yaml:"threshold"`
	CooldownSeconds    float64 `yaml:"cooldown"`
	Interrupt          bool    `yaml:"interrupt"` // barge in over narration on user speech
	InterruptThreshold float64 `yaml:"interrupt_threshold"`
}

// InjectConfig holds settings for delivering transcriptions into a session.
type InjectConfig struct {
	Backend string `yaml:"backend"` // tmux or iterm
	Target  string `yaml:"target"`  // pane id / iTerm session id (empty = frontmost)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Pane:            "0",
		IntervalSeconds: 3.0,
		MaxQueue:        3,
		HistoryLines:    200,
		Classifier: ClassifierConfig{
			URL:            "http://localhost:11434",
			Model:          "qwen2.5:14b",
			TimeoutSeconds: 30,
		},
		Speech: SpeechConfig{
			Engine: EnginePiper,
			Voice:  "Samantha",
		},
		Voice: VoiceConfig{
			ScorerURL:             "ws://localhost:8787/score",
			WhisperURL:            "http://localhost:8788/inference",
			SilenceTimeoutSeconds: 1.5,
			ListenTimeoutSeconds:  10,
			SpeechThreshold:       0.5,
			RecorderCommand:       "sox",
		},
		Wake: WakeConfig{
			Phrase:             "hey jarvis",
			Threshold:          0.5,
			CooldownSeconds:    3,
			Interrupt:          true,
			InterruptThreshold: 0.7,
		},
		Inject: InjectConfig{
			Backend: InjectTmux,
		},
	}
}

// Load reads configuration from the given path.
// If configPath is empty or doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Pane == "" && c.Logfile == "" {
		c.Pane = defaults.Pane
	}
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = defaults.IntervalSeconds
	}
	if c.MaxQueue == 0 {
		c.MaxQueue = defaults.MaxQueue
	}
	if c.HistoryLines == 0 {
		c.HistoryLines = defaults.HistoryLines
	}
	if c.Classifier.URL == "" {
		c.Classifier.URL = defaults.Classifier.URL
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = defaults.Classifier.Model
	}
	if c.Classifier.TimeoutSeconds == 0 {
		c.Classifier.TimeoutSeconds = defaults.Classifier.TimeoutSeconds
	}
	if c.Speech.Engine == "" {
		c.Speech.Engine = defaults.Speech.Engine
	}
	if c.Speech.Voice == "" {
		c.Speech.Voice = defaults.Speech.Voice
	}
	if c.Voice.ScorerURL == "" {
		c.Voice.ScorerURL = defaults.Voice.ScorerURL
	}
	if c.Voice.WhisperURL == "" {
		c.Voice.WhisperURL = defaults.Voice.WhisperURL
	}
	if c.Voice.SilenceTimeoutSeconds == 0 {
		c.Voice.SilenceTimeoutSeconds = defaults.Voice.SilenceTimeoutSeconds
	}
	if c.Voice.ListenTimeoutSeconds == 0 {
		c.Voice.ListenTimeoutSeconds = defaults.Voice.ListenTimeoutSeconds
	}
	if c.Voice.SpeechThreshold == 0 {
		c.Voice.SpeechThreshold = defaults.Voice.SpeechThreshold
	}
	if c.Voice.RecorderCommand == "" {
		c.Voice.RecorderCommand = defaults.Voice.RecorderCommand
	}
	if c.Wake.Phrase == "" {
		c.Wake.Phrase = defaults.Wake.Phrase
	}
	if c.Wake.Threshold == 0 {
		c.Wake.Threshold = defaults.Wake.Threshold
	}
	if c.Wake.CooldownSeconds == 0 {
		c.Wake.CooldownSeconds = defaults.Wake.CooldownSeconds
	}
	if c.Wake.InterruptThreshold == 0 {
		c.Wake.InterruptThreshold = defaults.Wake.InterruptThreshold
	}
	if c.Inject.Backend == "" {
		c.Inject.Backend = defaults.Inject.Backend
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Pane == "" && c.Logfile == "" {
		return fmt.Errorf("either pane or logfile must be set")
	}

	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	if c.MaxQueue < 1 {
		return fmt.Errorf("max_queue must be at least 1")
	}

	if c.Speech.Engine != EngineSay && c.Speech.Engine != EnginePiper {
		return fmt.Errorf("speech.engine must be %q or %q", EngineSay, EnginePiper)
	}

	if c.Inject.Backend != InjectTmux && c.Inject.Backend != InjectIterm {
		return fmt.Errorf("inject.backend must be %q or %q", InjectTmux, InjectIterm)
	}

	if c.Wake.Enabled && !c.Voice.Enabled {
		return fmt.Errorf("wake word requires voice input to be enabled")
	}

	for name, v := range map[string]float64{
		"voice.speech_threshold":   c.Voice.SpeechThreshold,
		"wake.threshold":           c.Wake.Threshold,
		"wake.interrupt_threshold": c.Wake.InterruptThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}

	return nil
}

// Interval returns the poll interval as a duration.
func (c *Config) Interval() time.Duration {
	return secs(c.IntervalSeconds)
}

// Timeout returns the classifier timeout as a duration.
func (c *ClassifierConfig) Timeout() time.Duration {
	return secs(c.TimeoutSeconds)
}

// SilenceTimeout returns the silence window as a duration.
func (c *VoiceConfig) SilenceTimeout() time.Duration {
	return secs(c.SilenceTimeoutSeconds)
}

// ListenTimeout returns the overall listen deadline as a duration.
func (c *VoiceConfig) ListenTimeout() time.Duration {
	return secs(c.ListenTimeoutSeconds)
}

// Cooldown returns the wake trigger cooldown as a duration.
func (c *WakeConfig) Cooldown() time.Duration {
	return secs(c.CooldownSeconds)
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
