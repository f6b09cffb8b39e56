package caption

import (
	"errors"
	"math"
	"strings"
	"testing"

	"storyreel-server/modules/common/model"
)

func makeSegments(texts ...string) []model.Segment {
	segments := make([]model.Segment, len(texts))
	for i, text := range texts {
		segments[i] = model.Segment{Index: i, Text: text}
	}
	return segments
}

// TestBuildRejectsEmptyInput verifies the invalid-state guards.
func TestBuildRejectsEmptyInput(t *testing.T) {
	if _, _, err := Build(nil, 10, true); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("empty segments error = %v, want ErrInvalidState", err)
	}
	if _, _, err := Build(makeSegments("hello"), 0, true); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("zero duration error = %v, want ErrInvalidState", err)
	}
}

// TestBuildSpansContiguousAndClamped checks spans tile the narration
// exactly with no gaps and the final span ending on the total.
func TestBuildSpansContiguousAndClamped(t *testing.T) {
	segments := makeSegments(
		"one two three four",
		"five six",
		"seven eight nine ten eleven twelve",
	)
	timed, _, err := Build(segments, 30, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(timed) != 3 {
		t.Fatalf("got %d timed segments, want 3", len(timed))
	}

	if timed[0].Span.Start != 0 {
		t.Fatalf("first span starts at %f, want 0", timed[0].Span.Start)
	}
	for i := 1; i < len(timed); i++ {
		if timed[i].Span.Start != timed[i-1].Span.End {
			t.Fatalf("gap between span %d and %d", i-1, i)
		}
	}
	if timed[len(timed)-1].Span.End != 30 {
		t.Fatalf("final span ends at %f, want 30", timed[len(timed)-1].Span.End)
	}
}

// TestBuildSpansProportionalToWords verifies longer segments hold the
// screen longer.
func TestBuildSpansProportionalToWords(t *testing.T) {
	segments := makeSegments(
		"one two three four five six",
		"seven eight",
	)
	timed, _, err := Build(segments, 8, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// 6 of 8 words → 6 seconds, 2 of 8 words → 2 seconds.
	if math.Abs(timed[0].Span.Seconds()-6) > 1e-9 {
		t.Fatalf("span 0 = %fs, want 6s", timed[0].Span.Seconds())
	}
	if math.Abs(timed[1].Span.Seconds()-2) > 1e-9 {
		t.Fatalf("span 1 = %fs, want 2s", timed[1].Span.Seconds())
	}
}

// TestBuildSubtitlesToggle verifies captions appear only when requested.
func TestBuildSubtitlesToggle(t *testing.T) {
	segments := makeSegments("hello world", "second part")

	_, captions, err := Build(segments, 10, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if captions != nil {
		t.Fatalf("got %d captions with subtitles disabled", len(captions))
	}

	timed, captions, err := Build(segments, 10, true)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(captions) != len(timed) {
		t.Fatalf("got %d captions for %d segments", len(captions), len(timed))
	}
	for i, c := range captions {
		if c.Span != timed[i].Span {
			t.Fatalf("caption %d span does not match segment span", i)
		}
		if c.Text != timed[i].Text {
			t.Fatalf("caption %d text does not match segment text", i)
		}
	}
}

// TestBuildSRTFormat checks the SubRip rendering of known spans.
func TestBuildSRTFormat(t *testing.T) {
	captions := []model.Caption{
		{Index: 0, Span: model.TimeSpan{Start: 0, End: 2.5}, Text: "First line"},
		{Index: 1, Span: model.TimeSpan{Start: 2.5, End: 61.25}, Text: "Second line"},
	}
	srt := BuildSRT(captions)

	want := "1\n00:00:00,000 --> 00:00:02,500\nFirst line\n\n" +
		"2\n00:00:02,500 --> 00:01:01,250\nSecond line\n\n"
	if srt != want {
		t.Fatalf("SRT output mismatch:\n got: %q\nwant: %q", srt, want)
	}
}

// TestBuildSRTEmpty verifies no captions render to an empty document.
func TestBuildSRTEmpty(t *testing.T) {
	if out := BuildSRT(nil); strings.TrimSpace(out) != "" {
		t.Fatalf("empty captions produced %q", out)
	}
}
