package speech

import (
	"context"
	"runtime"
	"time"

	"github.com/colonyops/narrator/pkg/executil"
)

const cueTimeout = 2 * time.Second

// Cues plays short system sounds around mic activation so the user
// knows when the narrator is listening. No-ops off macOS.
type Cues struct {
	exec executil.Executor
	goos string
}

// NewCues creates a Cues player.
func NewCues(exec executil.Executor) *Cues {
	return &Cues{exec: exec, goos: runtime.GOOS}
}

// Activation plays the listening-started cue without blocking.
func (c *Cues) Activation() {
	c.play("/System/Library/Sounds/Glass.aiff")
}

// Deactivation plays the listening-stopped cue without blocking.
func (c *Cues) Deactivation() {
	c.play("/System/Library/Sounds/Pop.aiff")
}

func (c *Cues) play(path string) {
	if c.goos != "darwin" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cueTimeout)
		defer cancel()
		_, _ = c.exec.Run(ctx, "afplay", path)
	}()
}
