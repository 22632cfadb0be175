package narrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/colonyops/narrator/internal/core/logging"
	"github.com/colonyops/narrator/internal/core/narrate"
)

// Commands reads control commands from an input stream, one per line.
type Commands struct {
	queue       *narrate.Queue
	coordinator *Coordinator // nil when voice input is off
	shutdown    func()
	out         io.Writer
	log         zerolog.Logger
}

// NewCommands creates the command reader. shutdown is invoked on the
// stop command; coordinator may be nil.
func NewCommands(q *narrate.Queue, coord *Coordinator, shutdown func(), out io.Writer) *Commands {
	return &Commands{
		queue:       q,
		coordinator: coord,
		shutdown:    shutdown,
		out:         out,
		log:         logging.Component("commands"),
	}
}

// Run reads commands until the stream or context ends. Call from a
// dedicated goroutine.
func (c *Commands) Run(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}
		if !c.handle(ctx, line) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.Warn().Err(err).Msg("command input failed")
	}
}

// handle executes one command and reports whether the loop continues.
func (c *Commands) handle(ctx context.Context, cmd string) bool {
	switch cmd {
	case "pause", "p":
		c.queue.Pause()
		fmt.Fprintln(c.out, "⏸ narration paused")
	case "resume", "r":
		c.queue.Resume()
		fmt.Fprintln(c.out, "▶ narration resumed")
	case "interrupt", "i":
		c.queue.Interrupt()
		fmt.Fprintln(c.out, "⏹ narration interrupted")
	case "voice", "v":
		if c.coordinator == nil {
			fmt.Fprintln(c.out, "voice input is not enabled")
			break
		}
		c.coordinator.TriggerVoice(ctx, "command")
	case "stop", "quit", "q":
		fmt.Fprintln(c.out, "stopping")
		c.shutdown()
		return false
	case "help", "h", "?":
		fmt.Fprintln(c.out, "commands: pause (p), resume (r), interrupt (i), voice (v), stop (q), help")
	default:
		fmt.Fprintf(c.out, "unknown command %q (try help)\n", cmd)
	}
	return true
}
