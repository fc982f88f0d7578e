package fulltext

import (
	"regexp"
	"strings"
)

const (
	// MaxTextChars is the character budget for full text handed to
	// downstream synthesis.
	MaxTextChars = 15000

	// introBudget is how much of the document head is kept as the
	// introduction when truncating.
	introBudget = 3000

	elisionMarker = "\n\n[...]\n\n"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonASCIIRe   = regexp.MustCompile(`[^\x00-\x7F]+`)

	// citationRunRe matches bracketed citation-number runs like
	// [12], [3,4] or [5-9] that PDF extraction scatters through prose.
	citationRunRe = regexp.MustCompile(`\[\s*\d+(?:\s*[,–-]\s*\d+)*\s*\]`)
)

// Clean normalizes extracted document text: whitespace is collapsed,
// non-ASCII characters and bracketed citation-number runs are stripped.
func Clean(text string) string {
	text = nonASCIIRe.ReplaceAllString(text, " ")
	text = citationRunRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Truncate cuts text down to maxChars without dropping the document's
// most informative regions. The introduction (up to a Methods heading
// within the first ~3,000 characters) and the tail from the last
// Results/Discussion/Conclusion heading are always kept; the middle is
// filled with whatever budget remains, joined with elision markers.
// For evidence extraction, methods and results matter far more than the
// surrounding prose, so a plain prefix cut would discard the wrong end.
func Truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	introEnd := findIntroEnd(text)
	tailStart := findTailStart(text)

	if tailStart <= introEnd {
		// No usable section headings; fall back to a prefix cut.
		return text[:maxChars] + "\n\n[truncated]"
	}

	intro := text[:introEnd]
	tail := text[tailStart:]

	remaining := maxChars - len(intro) - len(tail)
	if remaining <= 0 {
		return intro + elisionMarker + tail
	}

	midEnd := introEnd + remaining
	if midEnd > tailStart {
		midEnd = tailStart
	}
	return intro + elisionMarker + text[introEnd:midEnd] + elisionMarker + tail
}

func findIntroEnd(text string) int {
	window := text
	if len(window) > introBudget {
		window = window[:introBudget]
	}
	if i := strings.Index(window, "Methods"); i != -1 {
		return i
	}
	if len(text)/4 < introBudget {
		return len(text) / 4
	}
	return introBudget
}

func findTailStart(text string) int {
	start := strings.LastIndex(text, "Discussion")
	if i := strings.LastIndex(text, "Conclusion"); i > start {
		start = i
	}
	if i := strings.LastIndex(text, "Results"); i > start {
		start = i
	}
	return start
}
