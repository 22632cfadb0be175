package capture

import "strings"

// anchorSizes are tried largest-first; a larger anchor gives a more
// precise match before falling back to looser heuristics.
var anchorSizes = []int{5, 3, 2, 1}

// fallbackTailLines bounds the best-effort excerpt returned when content
// scrolled past recognition.
const fallbackTailLines = 20

// Delta returns the text in current that is judged new since previous.
//
// The last k lines of the previous snapshot are used as an anchor and
// searched for in the current snapshot from the end backward; everything
// after the most recent match is new. When no anchor size matches, the
// excess trailing lines (or, failing that, the last 20 lines) are
// returned as a best effort. An empty previous snapshot yields "" so
// stale initial screen content is never narrated.
func Delta(previous, current string) string {
	if previous == "" {
		return ""
	}

	prevLines := strings.Split(previous, "\n")
	curLines := strings.Split(current, "\n")

	if equalLines(prevLines, curLines) {
		return ""
	}

	for _, size := range anchorSizes {
		if len(prevLines) < size {
			continue
		}
		anchor := prevLines[len(prevLines)-size:]

		// Prefer the latest occurrence of the anchor.
		for i := len(curLines) - size; i >= 0; i-- {
			if equalLines(curLines[i:i+size], anchor) {
				return strings.TrimSpace(strings.Join(curLines[i+size:], "\n"))
			}
		}
	}

	// No anchor matched. If the snapshot simply grew, the excess trailing
	// lines are the new content.
	if len(curLines) > len(prevLines) {
		return strings.TrimSpace(strings.Join(curLines[len(prevLines):], "\n"))
	}

	// Content scrolled past recognition; return the tail as a best effort.
	tail := min(fallbackTailLines, len(curLines))
	return strings.TrimSpace(strings.Join(curLines[len(curLines)-tail:], "\n"))
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
