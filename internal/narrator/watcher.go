// Package narrator wires the capture, classification, narration, and
// voice subsystems into the running application.
package narrator

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/narrator/internal/core/capture"
	"github.com/colonyops/narrator/internal/core/classify"
	"github.com/colonyops/narrator/internal/core/clean"
	"github.com/colonyops/narrator/internal/core/logging"
	"github.com/colonyops/narrator/internal/core/narrate"
)

// minDeltaChars filters out deltas too small to mean anything: cursor
// jitter, a spinner tick, a stray newline.
const minDeltaChars = 10

// Watcher polls a capture source, extracts what changed, and feeds
// classified narrations into the queue.
type Watcher struct {
	src        capture.Source
	classifier *classify.Classifier
	queue      *narrate.Queue

	interval        time.Duration
	classifyTimeout time.Duration
	dryRun          bool
	out             io.Writer
	log             zerolog.Logger

	lastHash uint64
	prev     string
}

// NewWatcher creates a Watcher. Status lines for every narration are
// written to out; with dryRun set, narrations are printed but never
// enqueued for speech.
func NewWatcher(src capture.Source, cl *classify.Classifier, q *narrate.Queue, interval, classifyTimeout time.Duration, dryRun bool, out io.Writer) *Watcher {
	return &Watcher{
		src:             src,
		classifier:      cl,
		queue:           q,
		interval:        interval,
		classifyTimeout: classifyTimeout,
		dryRun:          dryRun,
		out:             out,
		log:             logging.Component("watcher"),
	}
}

// Run polls at a fixed interval until the context is canceled. Every
// failure inside a poll is logged and absorbed; the loop never dies.
func (w *Watcher) Run(ctx context.Context) {
	for {
		w.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.interval):
		}
	}
}

// poll captures once and narrates the change, if any.
func (w *Watcher) poll(ctx context.Context) {
	raw, err := w.src.Capture(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("capture failed")
		return
	}

	var delta string
	if w.src.Incremental() {
		delta = raw
	} else {
		h := hashSnapshot(raw)
		if h == w.lastHash {
			return
		}
		w.lastHash = h

		cleaned := clean.Clean(raw)
		delta = capture.Delta(w.prev, cleaned)
		w.prev = cleaned
	}

	delta = strings.TrimSpace(delta)
	if len(delta) < minDeltaChars {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, w.classifyTimeout)
	verdict, err := w.classifier.Classify(cctx, delta)
	cancel()
	if err != nil {
		w.log.Warn().Err(err).Msg("classification failed, skipping delta")
		return
	}
	if verdict == nil {
		w.log.Debug().Int("chars", len(delta)).Msg("delta classified as noise")
		return
	}

	fmt.Fprintf(w.out, "🔊 [%s] %s\n", verdict.Urgency, verdict.Text)
	if w.dryRun {
		return
	}
	w.queue.Enqueue(narrate.Item{Text: verdict.Text, Urgency: verdict.Urgency})
}

// hashSnapshot fingerprints a raw capture so unchanged panes are
// skipped before any cleaning or diffing work.
func hashSnapshot(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
