// Package clean strips terminal escape sequences and UI decoration from
// captured text, leaving only lines that are candidates for narration.
package clean

import (
	"regexp"
	"strings"
)

// ansiRE matches CSI sequences (colors, cursor movement), OSC sequences,
// charset switching, and keypad/cursor mode toggles.
var ansiRE = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[A-Za-z]|\][^\x07\x1b]*(?:\x07|\x1b\\)|[()][AB012]|[=><])`)

// controlRE matches control characters other than \t and \n.
var controlRE = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// unicodeNoiseRE matches box-drawing, block, geometric, braille, and
// private-use characters used by terminal UIs for decoration.
var unicodeNoiseRE = regexp.MustCompile(`[\x{2500}-\x{257f}\x{2580}-\x{259f}\x{25a0}-\x{25ff}\x{2800}-\x{28ff}\x{e000}-\x{f8ff}\x{f0000}-\x{ffffd}]+`)

var multiSpaceRE = regexp.MustCompile(`  +`)

// noisePatterns match whole lines that are UI chrome rather than content.
// A line matching any pattern is dropped whole; no partial redaction.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*[─━┄┈╌═╍]+\s*$`),              // horizontal rules
	regexp.MustCompile(`^\s*[│┃┆┊╎║╏]+\s*$`),              // vertical bars only
	regexp.MustCompile(`^\s*[╭╮╰╯┌┐└┘]+`),                 // box corners
	regexp.MustCompile(`^\s*\?\s*(for\s+shortcuts)?\s*$`), // "? for shortcuts"
	regexp.MustCompile(`^\s*Try\s+".*"\s*$`),              // autocomplete suggestions
	regexp.MustCompile(`^\s*/\w+\s+for\s+`),               // slash-command hints
	regexp.MustCompile(`^\s*(Welcome\s+back|Recent\s+activity|Tips\s+for)`),
	regexp.MustCompile(`^\s*\d+[smh]\s+ago\s+`), // "9m ago explain..."
	regexp.MustCompile(`^\s*/resume\s+for\s+more`),
	regexp.MustCompile(`^\s*/release-notes`),
	regexp.MustCompile(`^\s*(Claude\s+Code|Opus|Sonnet|Haiku)\s+[\d.]+`), // version lines
	regexp.MustCompile(`^\s*Claude\s+Max\b`),                             // plan info
	regexp.MustCompile(`^\s*~/`),                                         // path display
	regexp.MustCompile(`^\s*What's\s+new`),
	regexp.MustCompile(`^\s*Fixed\s+a\s+(crash|bug)`), // changelog entries
}

// StripANSI removes ANSI escape sequences, control characters, and
// decorative Unicode, collapsing runs of spaces. Idempotent.
func StripANSI(text string) string {
	text = ansiRE.ReplaceAllString(text, "")
	text = controlRE.ReplaceAllString(text, "")
	text = unicodeNoiseRE.ReplaceAllString(text, " ")
	return multiSpaceRE.ReplaceAllString(text, " ")
}

// Clean strips escape sequences and drops whole lines of UI noise.
// Blank lines are removed; surviving lines are trimmed. Idempotent.
func Clean(text string) string {
	text = StripANSI(text)

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isNoise(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isNoise(line string) bool {
	for _, p := range noisePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
