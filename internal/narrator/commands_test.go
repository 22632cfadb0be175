package narrator

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/narrator/internal/core/narrate"
)

func newTestCommands(coord *Coordinator, shutdown func()) (*Commands, *narrate.Queue, *bytes.Buffer) {
	q := narrate.NewQueue(noopSpeaker{}, nil, 3)
	out := &bytes.Buffer{}
	return NewCommands(q, coord, shutdown, out), q, out
}

func TestCommands_PauseAndResume(t *testing.T) {
	c, q, out := newTestCommands(nil, func() {})

	c.Run(context.Background(), strings.NewReader("pause\n"))
	assert.True(t, q.Paused())
	assert.Contains(t, out.String(), "paused")

	c.Run(context.Background(), strings.NewReader("r\n"))
	assert.False(t, q.Paused())
	assert.Contains(t, out.String(), "resumed")
}

func TestCommands_InterruptClearsPending(t *testing.T) {
	c, q, out := newTestCommands(nil, func() {})
	q.Enqueue(narrate.Item{Text: "one"})
	q.Enqueue(narrate.Item{Text: "two"})

	c.Run(context.Background(), strings.NewReader("i\n"))
	assert.Zero(t, q.Pending())
	assert.Contains(t, out.String(), "interrupted")
}

func TestCommands_StopEndsLoop(t *testing.T) {
	stopped := false
	c, q, _ := newTestCommands(nil, func() { stopped = true })

	// Commands after stop must not be processed.
	c.Run(context.Background(), strings.NewReader("q\npause\n"))
	assert.True(t, stopped)
	assert.False(t, q.Paused())
}

func TestCommands_VoiceWithoutVoiceInput(t *testing.T) {
	c, _, out := newTestCommands(nil, func() {})

	c.Run(context.Background(), strings.NewReader("voice\n"))
	assert.Contains(t, out.String(), "not enabled")
}

func TestCommands_UnknownReported(t *testing.T) {
	c, _, out := newTestCommands(nil, func() {})

	c.Run(context.Background(), strings.NewReader("frobnicate\n"))
	assert.Contains(t, out.String(), `unknown command "frobnicate"`)
}

func TestCommands_BlankAndCaseInsensitive(t *testing.T) {
	c, q, _ := newTestCommands(nil, func() {})

	c.Run(context.Background(), strings.NewReader("\n   \nPAUSE\n"))
	assert.True(t, q.Paused())
}

func TestCommands_Help(t *testing.T) {
	c, _, out := newTestCommands(nil, func() {})

	c.Run(context.Background(), strings.NewReader("help\n"))
	assert.Contains(t, out.String(), "pause (p)")
}
