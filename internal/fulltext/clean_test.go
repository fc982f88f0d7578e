package fulltext

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "collapses whitespace",
			input: "results   were\n\n\tsignificant",
			want:  "results were significant",
		},
		{
			name:  "strips non-ascii",
			input: "effect size β = 0.4 (p < 0.05)",
			want:  "effect size = 0.4 (p < 0.05)",
		},
		{
			name:  "removes citation runs",
			input: "as shown previously [1] and confirmed [2,3] later [4-7].",
			want:  "as shown previously and confirmed later .",
		},
		{
			name:  "keeps non-citation brackets",
			input: "group [placebo] received saline",
			want:  "group [placebo] received saline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate_ShortTextUnchanged(t *testing.T) {
	text := "A short article body."
	if got := Truncate(text, MaxTextChars); got != text {
		t.Errorf("expected short text unchanged, got %q", got)
	}
}

func TestTruncate_PreservesBookends(t *testing.T) {
	intro := "Background prose about the trial design. "
	body := strings.Repeat("middle filler sentence. ", 2000)
	text := intro + "Methods " + body + "Conclusion the intervention reduced events."

	got := Truncate(text, 4000)

	if len(got) > 4000+len(elisionMarker)*2+len("[truncated]") {
		t.Errorf("truncated text too long: %d chars", len(got))
	}
	if !strings.HasPrefix(got, intro) {
		t.Error("expected introduction preserved at the head")
	}
	if !strings.HasSuffix(got, "Conclusion the intervention reduced events.") {
		t.Error("expected conclusion preserved at the tail")
	}
	if !strings.Contains(got, "[...]") {
		t.Error("expected elision markers between bookends")
	}
}

func TestTruncate_FallsBackToPrefixCut(t *testing.T) {
	text := strings.Repeat("unstructured prose with no headings whatsoever. ", 500)

	got := Truncate(text, 1000)

	if !strings.HasSuffix(got, "[truncated]") {
		t.Errorf("expected truncation marker, got tail %q", got[len(got)-30:])
	}
	if !strings.HasPrefix(got, text[:1000]) {
		t.Error("expected prefix of original text kept")
	}
}

func TestTruncate_LastSectionHeadingWins(t *testing.T) {
	text := "Intro. Methods " +
		strings.Repeat("x ", 3000) +
		"Results early findings " +
		strings.Repeat("y ", 3000) +
		"Discussion the final word."

	got := Truncate(text, 2000)

	if !strings.HasSuffix(got, "Discussion the final word.") {
		t.Error("expected tail anchored at the last section heading")
	}
}
