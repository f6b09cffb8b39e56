package segmenter

import (
	"fmt"
	"regexp"
	"strings"

	"storyreel-server/modules/common/model"
)

// maxSegmentLength bounds how much narration one scene carries before the
// splitter starts a new segment.
const maxSegmentLength = 100

var sentenceBoundary = regexp.MustCompile(`(?:[.!?]+["')\]]?)\s+`)

var keywordPattern = regexp.MustCompile(`\b[A-Za-z]{4,}\b`)

// stopwords excluded from derived visual concepts. Short function words are
// already filtered by the 4-letter minimum.
var stopwords = map[string]bool{
	"this": true, "that": true, "these": true, "those": true,
	"with": true, "from": true, "into": true, "over": true, "under": true,
	"have": true, "will": true, "would": true, "their": true, "there": true,
	"been": true, "being": true, "were": true, "when": true, "where": true,
	"which": true, "while": true, "about": true, "after": true, "before": true,
	"also": true, "more": true, "most": true, "such": true, "than": true,
	"them": true, "they": true, "your": true, "ours": true, "each": true,
}

// Segmenter splits raw input text into ordered narration segments and
// derives a visual concept for each one.
type Segmenter struct {
	maxSegments int
}

// New creates a segmenter bounded to maxSegments output segments.
func New(maxSegments int) *Segmenter {
	if maxSegments <= 0 {
		maxSegments = 12
	}
	return &Segmenter{maxSegments: maxSegments}
}

// Segment - split text into at most maxSegments ordered segments. Spans are
// left empty; the caption builder assigns them once the narration duration
// is known.
func (s *Segmenter) Segment(text string) ([]model.Segment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", model.ErrInvalidInput)
	}

	chunks := splitIntoChunks(text)

	// Everything past the cap merges into the final segment so downstream
	// cost stays bounded.
	if len(chunks) > s.maxSegments {
		tail := strings.Join(chunks[s.maxSegments-1:], " ")
		chunks = append(chunks[:s.maxSegments-1], tail)
	}

	segments := make([]model.Segment, 0, len(chunks))
	for i, chunk := range chunks {
		segments = append(segments, model.Segment{
			Index:   i,
			Text:    chunk,
			Concept: DeriveConcept(chunk),
		})
	}
	return segments, nil
}

// splitIntoChunks breaks text at sentence boundaries and packs sentences
// into chunks of at most maxSegmentLength characters.
func splitIntoChunks(text string) []string {
	sentences := sentenceBoundary.Split(text, -1)

	chunks := []string{}
	current := ""
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current != "" && len(current)+len(sentence) >= maxSegmentLength {
			chunks = append(chunks, current)
			current = sentence
			continue
		}
		if current == "" {
			current = sentence
		} else {
			current = current + ". " + sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// DeriveConcept extracts up to four salient keywords, in order of first
// appearance, as the segment's visual concept.
func DeriveConcept(text string) string {
	seen := map[string]bool{}
	keywords := []string{}
	for _, word := range keywordPattern.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		if stopwords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		keywords = append(keywords, lower)
		if len(keywords) == 4 {
			break
		}
	}
	if len(keywords) == 0 {
		return strings.ToLower(strings.Join(strings.Fields(text)[:min(3, len(strings.Fields(text)))], " "))
	}
	return strings.Join(keywords, ", ")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
