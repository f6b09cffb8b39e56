package caption

import (
	"fmt"
	"strings"

	"storyreel-server/modules/common/model"
)

// Build assigns per-segment time spans proportional to word count and, when
// subtitles are enabled, emits one caption entry per segment. Deterministic
// for identical inputs.
//
// Spans are contiguous and sum exactly to totalDuration: the final span is
// clamped to the total so float rounding never leaks past the narration end.
func Build(segments []model.Segment, totalDuration float64, subtitles bool) ([]model.Segment, []model.Caption, error) {
	if len(segments) == 0 {
		return nil, nil, fmt.Errorf("%w: no segments to caption", model.ErrInvalidState)
	}
	if totalDuration <= 0 {
		return nil, nil, fmt.Errorf("%w: narration duration must be positive", model.ErrInvalidState)
	}

	weights := make([]float64, len(segments))
	totalWeight := 0.0
	for i, seg := range segments {
		w := float64(seg.WordCount())
		if w == 0 {
			// An all-punctuation segment still occupies screen time.
			w = 1
		}
		weights[i] = w
		totalWeight += w
	}

	timed := make([]model.Segment, len(segments))
	cursor := 0.0
	for i, seg := range segments {
		end := cursor + totalDuration*weights[i]/totalWeight
		if i == len(segments)-1 {
			end = totalDuration
		}
		seg.Span = model.TimeSpan{Start: cursor, End: end}
		timed[i] = seg
		cursor = end
	}

	if !subtitles {
		return timed, nil, nil
	}

	captions := make([]model.Caption, len(timed))
	for i, seg := range timed {
		captions[i] = model.Caption{
			Index: seg.Index,
			Span:  seg.Span,
			Text:  seg.Text,
		}
	}
	return timed, captions, nil
}

// BuildSRT renders captions in SubRip format.
func BuildSRT(captions []model.Caption) string {
	var b strings.Builder
	for i, c := range captions {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", srtTimestamp(c.Span.Start), srtTimestamp(c.Span.End))
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// srtTimestamp - seconds to HH:MM:SS,mmm
func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int(seconds*1000 + 0.5)
	hours := totalMillis / 3600000
	minutes := totalMillis % 3600000 / 60000
	secs := totalMillis % 60000 / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
