package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/narrator/internal/core/audio"
	"github.com/colonyops/narrator/internal/core/capture"
	"github.com/colonyops/narrator/internal/core/classify"
	"github.com/colonyops/narrator/internal/core/config"
	"github.com/colonyops/narrator/internal/core/eventbus"
	"github.com/colonyops/narrator/internal/core/inject"
	"github.com/colonyops/narrator/internal/core/narrate"
	"github.com/colonyops/narrator/internal/core/scorer"
	"github.com/colonyops/narrator/internal/core/speech"
	"github.com/colonyops/narrator/internal/core/voice"
	"github.com/colonyops/narrator/internal/core/wakeword"
	"github.com/colonyops/narrator/internal/narrator"
	"github.com/colonyops/narrator/pkg/executil"
	"github.com/colonyops/narrator/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser  func()
		logLevel   string
		logFile    string
		configPath string
		dryRun     bool
	)

	app := &cli.Command{
		Name:      "narrator",
		Usage:     "Narrate terminal activity out loud",
		UsageText: "narrator [options]",
		Description: `Narrator watches a tmux pane or a log file, extracts what changed,
asks a local Ollama model whether the change is worth hearing, and
speaks it. With voice input enabled, a wake phrase or a spoken question
opens the microphone and the transcribed reply is typed back into the
watched session.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pane",
				Aliases: []string{"p"},
				Usage:   "tmux pane to watch (e.g. 0, mysession:1.0)",
				Sources: cli.EnvVars("NARRATOR_PANE"),
			},
			&cli.StringFlag{
				Name:    "logfile",
				Usage:   "watch a log file instead of a tmux pane",
				Sources: cli.EnvVars("NARRATOR_LOGFILE"),
			},
			&cli.FloatFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "seconds between captures",
				Sources: cli.EnvVars("NARRATOR_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "ollama model used to filter output",
				Sources: cli.EnvVars("NARRATOR_MODEL"),
			},
			&cli.StringFlag{
				Name:    "ollama-url",
				Usage:   "ollama server base URL",
				Sources: cli.EnvVars("NARRATOR_OLLAMA_URL"),
			},
			&cli.StringFlag{
				Name:    "tts",
				Usage:   "speech engine (say, piper)",
				Sources: cli.EnvVars("NARRATOR_TTS"),
			},
			&cli.StringFlag{
				Name:    "voice",
				Usage:   "voice name for the say engine",
				Sources: cli.EnvVars("NARRATOR_VOICE"),
			},
			&cli.IntFlag{
				Name:    "max-queue",
				Usage:   "pending narrations kept before dropping the oldest",
				Sources: cli.EnvVars("NARRATOR_MAX_QUEUE"),
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "print narrations without speaking them",
				Sources:     cli.EnvVars("NARRATOR_DRY_RUN"),
				Destination: &dryRun,
			},
			&cli.BoolFlag{
				Name:    "voice-input",
				Usage:   "enable microphone capture after questions",
				Sources: cli.EnvVars("NARRATOR_VOICE_INPUT"),
			},
			&cli.FloatFlag{
				Name:    "silence-timeout",
				Usage:   "seconds of silence that end a recording",
				Sources: cli.EnvVars("NARRATOR_SILENCE_TIMEOUT"),
			},
			&cli.FloatFlag{
				Name:    "listen-timeout",
				Usage:   "seconds to wait for speech to start",
				Sources: cli.EnvVars("NARRATOR_LISTEN_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:    "wake-word",
				Usage:   "enable the always-on wake phrase listener",
				Sources: cli.EnvVars("NARRATOR_WAKE_WORD"),
			},
			&cli.StringFlag{
				Name:    "wake-phrase",
				Usage:   "wake phrase the acoustic model listens for",
				Sources: cli.EnvVars("NARRATOR_WAKE_PHRASE"),
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("NARRATOR_CONFIG"),
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("NARRATOR_LOG_LEVEL"),
				Value:       "info",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("NARRATOR_LOG_FILE"),
				Destination: &logFile,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(logLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() > 0 {
				return fmt.Errorf("unknown argument %q. Run 'narrator --help' for usage", c.Args().First())
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlagOverrides(cfg, c)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			return run(ctx, cfg, dryRun)
		},
	}

	exitCode := 0
	if runErr := app.Run(ctx, os.Args); runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}

// applyFlagOverrides layers explicitly-set CLI flags over the loaded
// config, so flags always win over the file.
func applyFlagOverrides(cfg *config.Config, c *cli.Command) {
	if c.IsSet("pane") {
		cfg.Pane = c.String("pane")
	}
	if c.IsSet("logfile") {
		cfg.Logfile = c.String("logfile")
	}
	if c.IsSet("interval") {
		cfg.IntervalSeconds = c.Float("interval")
	}
	if c.IsSet("model") {
		cfg.Classifier.Model = c.String("model")
	}
	if c.IsSet("ollama-url") {
		cfg.Classifier.URL = c.String("ollama-url")
	}
	if c.IsSet("tts") {
		cfg.Speech.Engine = c.String("tts")
	}
	if c.IsSet("voice") {
		cfg.Speech.Voice = c.String("voice")
	}
	if c.IsSet("max-queue") {
		cfg.MaxQueue = int(c.Int("max-queue"))
	}
	if c.IsSet("voice-input") {
		cfg.Voice.Enabled = c.Bool("voice-input")
	}
	if c.IsSet("silence-timeout") {
		cfg.Voice.SilenceTimeoutSeconds = c.Float("silence-timeout")
	}
	if c.IsSet("listen-timeout") {
		cfg.Voice.ListenTimeoutSeconds = c.Float("listen-timeout")
	}
	if c.IsSet("wake-word") {
		cfg.Wake.Enabled = c.Bool("wake-word")
	}
	if c.IsSet("wake-phrase") {
		cfg.Wake.Phrase = c.String("wake-phrase")
	}
}

// run wires the subsystems together and blocks until shutdown.
func run(ctx context.Context, cfg *config.Config, dryRun bool) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	exec := &executil.RealExecutor{}

	classifier := classify.New(cfg.Classifier.URL, cfg.Classifier.Model, nil)
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := classifier.Ping(pingCtx); err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", cfg.Classifier.URL, err)
	}
	if ok, err := classifier.HasModel(pingCtx); err == nil && !ok {
		log.Warn().Str("model", cfg.Classifier.Model).
			Msg("model not found on ollama server, run `ollama pull` first")
	}

	bus := eventbus.New(64)
	go bus.Start(ctx)

	speaker := speech.NewSpeaker(exec, cfg.Speech)
	queue := narrate.NewQueue(speaker, bus, cfg.MaxQueue)
	go queue.Run(ctx)
	defer queue.Stop()

	var src capture.Source
	if cfg.Logfile != "" {
		src = capture.NewFileSource(cfg.Logfile)
		fmt.Printf("👀 watching %s every %.1fs (model %s)\n", cfg.Logfile, cfg.IntervalSeconds, cfg.Classifier.Model)
	} else {
		src = capture.NewPaneSource(exec, cfg.Pane, cfg.HistoryLines)
		fmt.Printf("👀 watching pane %s every %.1fs (model %s)\n", cfg.Pane, cfg.IntervalSeconds, cfg.Classifier.Model)
	}

	watcher := narrator.NewWatcher(src, classifier, queue, cfg.Interval(), cfg.Classifier.Timeout(), dryRun, os.Stdout)
	go watcher.Run(ctx)

	var coordinator *narrator.Coordinator
	if cfg.Voice.Enabled {
		sc := scorer.New(cfg.Voice.ScorerURL)
		defer sc.Close()

		micFactory := func(ctx context.Context) (audio.Source, error) {
			return audio.NewPipeSource(ctx, exec, cfg.Voice.RecorderCommand)
		}
		vi := voice.New(
			micFactory, sc,
			voice.NewWhisperTranscriber(cfg.Voice.WhisperURL, nil),
			cfg.Voice.SilenceTimeout(), cfg.Voice.ListenTimeout(), cfg.Voice.SpeechThreshold,
		)

		var injector inject.Injector
		if cfg.Inject.Backend == config.InjectIterm {
			injector = inject.NewItermInjector(exec, cfg.Inject.Target)
		} else {
			target := cfg.Inject.Target
			if target == "" {
				target = cfg.Pane
			}
			injector = inject.NewTmuxInjector(exec, target)
		}

		var wakeCtl narrator.WakeControl
		if cfg.Wake.Enabled {
			listener := wakeword.New(micFactory, sc, bus, queue.Speaking, wakeword.Options{
				Phrase:             cfg.Wake.Phrase,
				Threshold:          cfg.Wake.Threshold,
				Cooldown:           cfg.Wake.Cooldown(),
				Interrupt:          cfg.Wake.Interrupt,
				InterruptThreshold: cfg.Wake.InterruptThreshold,
			})
			go listener.Run(ctx)
			wakeCtl = listener
			fmt.Printf("🎙 wake phrase %q armed\n", cfg.Wake.Phrase)
		}

		coordinator = narrator.NewCoordinator(queue, vi, injector, speech.NewCues(exec), bus, wakeCtl)
		coordinator.Start(ctx)
	}

	commands := narrator.NewCommands(queue, coordinator, cancel, os.Stdout)
	go commands.Run(ctx, os.Stdin)

	<-ctx.Done()
	fmt.Println("narrator stopped")
	return nil
}
