package narration

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"storyreel-server/modules/common/fallback"
	"storyreel-server/modules/common/model"
)

// wordsPerMinute drives the duration estimate used for the silent fallback
// track when no real synthesis happened.
const wordsPerMinute = 150

// VoiceParams tunes the speech backend per tone.
type VoiceParams struct {
	Voice   string  `json:"voice,omitempty"`
	Speed   float64 `json:"speed"`
	Emotion string  `json:"emotion"`
}

// VoiceFor maps the request tone to backend voice parameters.
func VoiceFor(tone model.Tone) VoiceParams {
	switch tone {
	case model.ToneFormal:
		return VoiceParams{Speed: 0.9, Emotion: "neutral"}
	case model.ToneCasual:
		return VoiceParams{Speed: 1.1, Emotion: "friendly"}
	case model.ToneEmotional:
		return VoiceParams{Speed: 0.8, Emotion: "empathetic"}
	case model.ToneDocumentary:
		return VoiceParams{Speed: 0.95, Emotion: "authoritative"}
	default:
		return VoiceParams{Speed: 1.0, Emotion: "neutral"}
	}
}

// SpeechBackend is the narrow contract to a speech-synthesis collaborator.
type SpeechBackend interface {
	SynthesizeSpeech(ctx context.Context, text, language string, voice VoiceParams) (model.AudioArtifact, error)
}

// Synthesizer converts the full narration text into an audio track. On any
// backend failure it degrades to a silent track of estimated length rather
// than failing the job.
type Synthesizer struct {
	backend SpeechBackend
	timeout time.Duration
}

// New creates a synthesizer. backend may be nil; every job then degrades.
func New(backend SpeechBackend, timeout time.Duration) *Synthesizer {
	return &Synthesizer{backend: backend, timeout: timeout}
}

// EstimateDuration - heuristic narration length from word count
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	seconds := float64(words) / wordsPerMinute * 60
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// Synthesize runs the narration stage. Never returns Fatal: every failure
// path substitutes a silent track so the job still reaches composition.
func (s *Synthesizer) Synthesize(ctx context.Context, req model.GenerationRequest) model.StageResult[model.AudioArtifact] {
	estimate := EstimateDuration(req.Text)

	if s.backend == nil {
		return model.Degraded(fallback.SilentNarration(estimate), "no speech backend configured")
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	audio, err := s.backend.SynthesizeSpeech(callCtx, req.Text, req.Language, VoiceFor(req.Tone))
	if err != nil {
		log.Printf("⚠️  Narration synthesis failed, substituting silent track: %v", err)
		return model.Degraded(fallback.SilentNarration(estimate), fmt.Sprintf("speech synthesis failed: %v", err))
	}
	if len(audio.Data) == 0 {
		return model.Degraded(fallback.SilentNarration(estimate), "speech backend returned empty audio")
	}
	if audio.Duration <= 0 {
		audio.Duration = estimate
	}
	if audio.MimeType == "" {
		audio.MimeType = "audio/wav"
	}
	return model.Success(audio)
}
