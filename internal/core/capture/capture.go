// Package capture reads raw text from a watched terminal source and
// isolates genuinely new content between successive snapshots.
package capture

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/colonyops/narrator/internal/core/clean"
	"github.com/colonyops/narrator/pkg/executil"
)

// Source produces the raw text that has appeared at the watched target.
// A transient failure yields an empty string; the watcher retries on the
// next poll cycle.
type Source interface {
	// Capture returns the current snapshot text for pane-style sources,
	// or the text appended since the previous call for cursor-style ones.
	Capture(ctx context.Context) (string, error)
	// Incremental reports whether Capture already returns only new text,
	// in which case the caller skips delta extraction.
	Incremental() bool
}

// PaneSource captures the visible content (plus scroll-back) of a tmux pane.
type PaneSource struct {
	exec         executil.Executor
	pane         string
	historyLines int
}

// NewPaneSource creates a PaneSource for the given tmux pane identifier.
func NewPaneSource(exec executil.Executor, pane string, historyLines int) *PaneSource {
	return &PaneSource{exec: exec, pane: pane, historyLines: historyLines}
}

// Capture runs tmux capture-pane and strips escape sequences from the result.
func (s *PaneSource) Capture(ctx context.Context) (string, error) {
	out, err := s.exec.Run(ctx, "tmux",
		"capture-pane", "-t", s.pane, "-p", "-S", fmt.Sprintf("-%d", s.historyLines))
	if err != nil {
		return "", fmt.Errorf("tmux capture-pane: %w", err)
	}
	return clean.StripANSI(string(out)), nil
}

// Incremental returns false; pane captures are full-screen re-reads.
func (s *PaneSource) Incremental() bool { return false }

// FileSource captures new content appended to a growing log file,
// tracking a byte-offset cursor between calls.
type FileSource struct {
	path   string
	offset int64
	primed bool
}

// NewFileSource creates a FileSource for the given path. The first
// Capture call seeks to the current end of file so that content written
// before the narrator started is never narrated.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Capture reads from the cursor to EOF, cleans the text, and advances
// the cursor. A missing file is treated as an empty capture.
func (s *FileSource) Capture(_ context.Context) (string, error) {
	fh, err := os.Open(s.path)
	if err != nil {
		return "", nil
	}
	defer fh.Close()

	if !s.primed {
		end, err := fh.Seek(0, io.SeekEnd)
		if err != nil {
			return "", fmt.Errorf("seek %s: %w", s.path, err)
		}
		s.offset = end
		s.primed = true
		return "", nil
	}

	if _, err := fh.Seek(s.offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek %s: %w", s.path, err)
	}

	data, err := io.ReadAll(fh)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.path, err)
	}
	s.offset += int64(len(data))

	return clean.Clean(string(data)), nil
}

// Incremental returns true; the byte cursor already isolates new content.
func (s *FileSource) Incremental() bool { return true }
