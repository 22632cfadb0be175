package capture

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelta_NoPrevious(t *testing.T) {
	assert.Empty(t, Delta("", "anything\nat all"))
}

func TestDelta_Identical(t *testing.T) {
	text := "a\nb\nc"
	assert.Empty(t, Delta(text, text))
}

func TestDelta_AnchorAppend(t *testing.T) {
	prev := "a\nb\nc"
	cur := "a\nb\nc\nd\ne"
	assert.Equal(t, "d\ne", Delta(prev, cur))
}

func TestDelta_ScrollTolerance(t *testing.T) {
	// "x" scrolled off the top; anchor ["a","b","c"] still locates the
	// boundary of new content.
	prev := "x\na\nb\nc"
	cur := "a\nb\nc\nd"
	assert.Equal(t, "d", Delta(prev, cur))
}

func TestDelta_PrefersLatestAnchorMatch(t *testing.T) {
	// The anchor line appears twice; new content is everything after the
	// most recent occurrence.
	prev := "prompt>"
	cur := "prompt>\nold output\nprompt>\nnew output"
	assert.Equal(t, "new output", Delta(prev, cur))
}

func TestDelta_SmallerAnchorWhenTailRewritten(t *testing.T) {
	// The last lines of prev were redrawn, so the 5- and 3-line anchors
	// fail, but a smaller suffix still matches.
	prev := "a\nb\nc\nspinner |"
	cur := "a\nb\nc\ndone\nnext"
	// Anchor of size 1 ("spinner |") fails; sizes 3 and 2 fail too since
	// they include it. Growth fallback applies: one excess trailing line.
	assert.Equal(t, "next", Delta(prev, cur))
}

func TestDelta_GrowthFallback(t *testing.T) {
	// Every previous line was rewritten, but the snapshot grew.
	prev := "one\ntwo"
	cur := "uno\ndos\ntres"
	assert.Equal(t, "tres", Delta(prev, cur))
}

func TestDelta_TailFallbackOnFullScroll(t *testing.T) {
	// Nothing aligns and the snapshot didn't grow: last 20 lines returned.
	var prevLines, curLines []string
	for i := 0; i < 30; i++ {
		prevLines = append(prevLines, "p"+string(rune('a'+i%26)))
		curLines = append(curLines, "c"+string(rune('a'+i%26)))
	}
	got := Delta(strings.Join(prevLines, "\n"), strings.Join(curLines, "\n"))
	assert.Equal(t, strings.Join(curLines[10:], "\n"), got)
}

func TestDelta_EmptyCurrent(t *testing.T) {
	assert.Empty(t, Delta("a\nb", ""))
}
