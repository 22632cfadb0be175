// Package executil provides shell execution utilities.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

const maxStderrLen = 500

// limitedWriter caps writes to a bytes.Buffer at a maximum byte count.
// Bytes beyond the limit are silently discarded.
type limitedWriter struct {
	buf *bytes.Buffer
	n   int64
	max int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.n >= w.max {
		return len(p), nil
	}
	remaining := w.max - w.n
	origLen := len(p)
	if int64(origLen) > remaining {
		p = p[:remaining]
	}
	n, err := w.buf.Write(p)
	w.n += int64(n)
	if err != nil {
		return n, err
	}
	return origLen, nil
}

// Executor runs external commands.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// RunInput executes a command with the given bytes fed to stdin and
	// returns stdout. On failure, stderr is included in the error, capped
	// at 500 bytes so large or ANSI-polluted output can't corrupt logs.
	RunInput(ctx context.Context, input []byte, cmd string, args ...string) ([]byte, error)
	// Start launches a command without waiting for it and returns a
	// Handle that can wait for completion or kill the process from
	// another goroutine.
	Start(ctx context.Context, cmd string, args ...string) (*Handle, error)
	// StartPipe launches a command and returns its stdout stream along
	// with a killable handle. The caller owns both.
	StartPipe(ctx context.Context, cmd string, args ...string) (io.ReadCloser, *Handle, error)
}

// Handle wraps a started process so one goroutine can wait on it while
// another terminates it.
type Handle struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

// Wait blocks until the process exits and returns its exit error, if any.
func (h *Handle) Wait() error {
	return h.cmd.Wait()
}

// Kill terminates the process if it is still running. Safe to call
// multiple times and after the process has exited.
func (h *Handle) Kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}

// RealExecutor calls actual shell commands.
type RealExecutor struct{}

// Run executes a command and returns its combined output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("exec %s: %w", cmd, err)
	}
	return out, nil
}

// RunInput executes a command with input on stdin and returns stdout.
func (e *RealExecutor) RunInput(ctx context.Context, input []byte, cmd string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &limitedWriter{buf: &stderr, max: maxStderrLen}

	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("exec %s: %s: %w", cmd, msg, err)
		}
		return stdout.Bytes(), fmt.Errorf("exec %s: %w", cmd, err)
	}
	return stdout.Bytes(), nil
}

// Start launches a command and returns a killable handle.
func (e *RealExecutor) Start(ctx context.Context, cmd string, args ...string) (*Handle, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd, err)
	}
	return &Handle{cmd: c}, nil
}

// StartPipe launches a command and returns its stdout plus a handle.
func (e *RealExecutor) StartPipe(ctx context.Context, cmd string, args ...string) (io.ReadCloser, *Handle, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	out, err := c.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("pipe %s: %w", cmd, err)
	}
	if err := c.Start(); err != nil {
		return nil, nil, fmt.Errorf("start %s: %w", cmd, err)
	}
	return out, &Handle{cmd: c}, nil
}
