// Package inject delivers transcribed voice commands to the terminal
// session being narrated.
package inject

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/colonyops/narrator/internal/core/logging"
	"github.com/colonyops/narrator/pkg/executil"
)

// Injector types text into a terminal session and submits it.
type Injector interface {
	Inject(ctx context.Context, text string) error
}

// TmuxInjector injects via tmux send-keys.
type TmuxInjector struct {
	exec   executil.Executor
	target string
	log    zerolog.Logger
}

// NewTmuxInjector creates an injector for the given tmux pane target.
func NewTmuxInjector(exec executil.Executor, target string) *TmuxInjector {
	return &TmuxInjector{exec: exec, target: target, log: logging.Component("inject")}
}

// Inject sends the text to the pane followed by Enter.
func (t *TmuxInjector) Inject(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	// "--" stops tmux from reading a leading dash in the text as a flag.
	if _, err := t.exec.Run(ctx, "tmux", "send-keys", "-t", t.target, "--", text); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	if _, err := t.exec.Run(ctx, "tmux", "send-keys", "-t", t.target, "Enter"); err != nil {
		return fmt.Errorf("send enter: %w", err)
	}
	t.log.Info().Str("target", t.target).Str("text", text).Msg("injected command")
	return nil
}

// sessionIDRE is the only shape of iTerm session ID we will splice into
// an osascript program.
var sessionIDRE = regexp.MustCompile(`^[\w-]+$`)

// ItermInjector injects into an iTerm2 session via AppleScript.
type ItermInjector struct {
	exec      executil.Executor
	sessionID string
	log       zerolog.Logger
}

// NewItermInjector creates an injector for the given iTerm session ID.
func NewItermInjector(exec executil.Executor, sessionID string) *ItermInjector {
	return &ItermInjector{exec: exec, sessionID: sessionID, log: logging.Component("inject")}
}

// Inject writes the text to the session via osascript. An empty session
// ID targets the frontmost window's current session.
func (i *ItermInjector) Inject(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if i.sessionID != "" && !sessionIDRE.MatchString(i.sessionID) {
		i.log.Warn().Str("session", i.sessionID).Msg("refusing to inject into malformed session id")
		return fmt.Errorf("invalid iterm session id %q", i.sessionID)
	}

	script := i.script(escapeAppleScript(text))
	if _, err := i.exec.Run(ctx, "osascript", "-e", script); err != nil {
		return fmt.Errorf("osascript: %w", err)
	}
	i.log.Info().Str("session", i.sessionID).Str("text", text).Msg("injected command")
	return nil
}

// script builds the AppleScript program for an already-escaped text.
func (i *ItermInjector) script(escaped string) string {
	if i.sessionID == "" {
		return fmt.Sprintf(`tell application "iTerm2"
	tell current window
		tell current session of current tab
			write text "%s"
		end tell
	end tell
end tell`, escaped)
	}
	return fmt.Sprintf(`tell application "iTerm2"
	repeat with w in windows
		repeat with t in tabs of w
			repeat with s in sessions of t
				if id of s is "%s" then
					tell s to write text "%s"
					return
				end if
			end repeat
		end repeat
	end repeat
end tell`, i.sessionID, escaped)
}

// escapeAppleScript makes text safe inside a double-quoted AppleScript
// string literal: backslashes and quotes are escaped, control
// characters are dropped.
func escapeAppleScript(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r < 0x20 || r == 0x7f:
			// skip control characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
