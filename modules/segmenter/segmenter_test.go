package segmenter

import (
	"errors"
	"strings"
	"testing"

	"storyreel-server/modules/common/model"
)

// TestSegmentRejectsEmptyText verifies blank input maps to invalid input.
func TestSegmentRejectsEmptyText(t *testing.T) {
	s := New(12)
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := s.Segment(text); !errors.Is(err, model.ErrInvalidInput) {
			t.Fatalf("Segment(%q) error = %v, want ErrInvalidInput", text, err)
		}
	}
}

// TestSegmentShortTextSingleSegment checks a short sentence stays whole.
func TestSegmentShortTextSingleSegment(t *testing.T) {
	s := New(12)
	segments, err := s.Segment("Solar power is renewable energy.")
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	if segments[0].Index != 0 {
		t.Fatalf("index = %d, want 0", segments[0].Index)
	}
	if segments[0].Concept == "" {
		t.Fatal("expected a derived concept")
	}
}

// TestSegmentSplitsLongText verifies multi-sentence input splits at
// sentence boundaries into bounded chunks.
func TestSegmentSplitsLongText(t *testing.T) {
	s := New(12)
	text := "The ocean covers most of the planet surface. " +
		"Coral reefs support an enormous diversity of marine life. " +
		"Rising temperatures put these fragile ecosystems at risk. " +
		"Conservation efforts around the world aim to protect them."

	segments, err := s.Segment(text)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(segments) < 2 {
		t.Fatalf("got %d segments, want at least 2", len(segments))
	}
	for i, seg := range segments {
		if seg.Index != i {
			t.Fatalf("segment %d has index %d", i, seg.Index)
		}
		if strings.TrimSpace(seg.Text) == "" {
			t.Fatalf("segment %d is empty", i)
		}
	}
}

// TestSegmentCapMergesTail checks that text beyond the segment cap merges
// into the final segment instead of being dropped.
func TestSegmentCapMergesTail(t *testing.T) {
	s := New(3)
	sentences := []string{
		"Volcanoes shape the surface of our planet over millions of years.",
		"Earthquakes reveal the restless motion of tectonic plates below.",
		"Geysers erupt where groundwater meets subterranean heat sources.",
		"Glaciers carve valleys as they advance and retreat across continents.",
		"Rivers deposit sediment that builds fertile plains and deltas.",
	}
	segments, err := s.Segment(strings.Join(sentences, " "))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}

	joined := ""
	for _, seg := range segments {
		joined += seg.Text + " "
	}
	if !strings.Contains(joined, "deltas") {
		t.Fatal("tail sentence was dropped instead of merged")
	}
}

// TestDeriveConceptFiltersStopwords verifies concepts skip filler words
// and keep first-appearance order.
func TestDeriveConceptFiltersStopwords(t *testing.T) {
	concept := DeriveConcept("These solar panels convert sunlight into electricity")
	if strings.Contains(concept, "these") {
		t.Fatalf("concept %q contains stopword", concept)
	}
	if !strings.HasPrefix(concept, "solar") {
		t.Fatalf("concept %q should start with first keyword", concept)
	}
	if got := len(strings.Split(concept, ", ")); got > 4 {
		t.Fatalf("concept has %d keywords, want at most 4", got)
	}
}

// TestDeriveConceptFallsBackToLeadingWords covers text with no usable
// keywords.
func TestDeriveConceptFallsBackToLeadingWords(t *testing.T) {
	concept := DeriveConcept("it is so big")
	if concept != "it is so" {
		t.Fatalf("concept = %q, want leading words fallback", concept)
	}
}

// TestSegmentDeterministic verifies repeated runs produce identical output.
func TestSegmentDeterministic(t *testing.T) {
	s := New(12)
	text := "Bees pollinate flowering plants. Without them many crops would fail. Protecting pollinators protects our food supply."

	first, err := s.Segment(text)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	second, err := s.Segment(text)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("segment counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text || first[i].Concept != second[i].Concept {
			t.Fatalf("segment %d differs between runs", i)
		}
	}
}
