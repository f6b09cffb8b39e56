package narration

import (
	"context"
	"errors"
	"testing"
	"time"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/common/utils"
)

type fakeSpeechBackend struct {
	audio model.AudioArtifact
	err   error

	gotText     string
	gotLanguage string
	gotVoice    VoiceParams
}

func (f *fakeSpeechBackend) SynthesizeSpeech(ctx context.Context, text, language string, voice VoiceParams) (model.AudioArtifact, error) {
	f.gotText = text
	f.gotLanguage = language
	f.gotVoice = voice
	return f.audio, f.err
}

func request(text string) model.GenerationRequest {
	req := model.GenerationRequest{Text: text}
	req.Normalize()
	return req
}

// TestSynthesizeSuccess verifies backend audio passes through untouched.
func TestSynthesizeSuccess(t *testing.T) {
	backend := &fakeSpeechBackend{
		audio: model.AudioArtifact{Data: utils.BuildSilentWAV(4), MimeType: "audio/wav", Duration: 4},
	}
	s := New(backend, time.Minute)

	result := s.Synthesize(context.Background(), request("Hello narration world."))
	if result.Outcome != model.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", result.Outcome)
	}
	if result.Value.Silent {
		t.Fatal("successful narration flagged as silent")
	}
	if result.Value.Duration != 4 {
		t.Fatalf("duration = %f, want 4", result.Value.Duration)
	}
	if backend.gotLanguage != "en" {
		t.Fatalf("language = %q, want en", backend.gotLanguage)
	}
}

// TestSynthesizeDegradesWithoutBackend verifies the nil-backend path
// yields a silent track rather than an error.
func TestSynthesizeDegradesWithoutBackend(t *testing.T) {
	s := New(nil, time.Minute)

	result := s.Synthesize(context.Background(), request("one two three"))
	if result.Outcome != model.OutcomeDegraded {
		t.Fatalf("outcome = %v, want degraded", result.Outcome)
	}
	if !result.Value.Silent {
		t.Fatal("fallback track not flagged silent")
	}
	if len(result.Value.Data) == 0 {
		t.Fatal("fallback track has no audio data")
	}
	if result.Reason == "" {
		t.Fatal("degraded result carries no reason")
	}
}

// TestSynthesizeDegradesOnBackendError verifies a failing backend never
// fails the stage.
func TestSynthesizeDegradesOnBackendError(t *testing.T) {
	backend := &fakeSpeechBackend{err: errors.New("tts service unreachable")}
	s := New(backend, time.Minute)

	result := s.Synthesize(context.Background(), request("some narration text"))
	if result.Outcome != model.OutcomeDegraded {
		t.Fatalf("outcome = %v, want degraded", result.Outcome)
	}
	if !result.Value.Silent {
		t.Fatal("fallback track not flagged silent")
	}
}

// TestSynthesizeDegradesOnEmptyAudio covers a backend answering 200 with
// no bytes.
func TestSynthesizeDegradesOnEmptyAudio(t *testing.T) {
	backend := &fakeSpeechBackend{audio: model.AudioArtifact{}}
	s := New(backend, time.Minute)

	result := s.Synthesize(context.Background(), request("text"))
	if result.Outcome != model.OutcomeDegraded {
		t.Fatalf("outcome = %v, want degraded", result.Outcome)
	}
}

// TestSynthesizeFillsMissingDuration verifies the estimate substitutes
// when the backend reports none.
func TestSynthesizeFillsMissingDuration(t *testing.T) {
	backend := &fakeSpeechBackend{
		audio: model.AudioArtifact{Data: []byte{1, 2, 3}},
	}
	s := New(backend, time.Minute)

	result := s.Synthesize(context.Background(), request("one two three four five"))
	if result.Outcome != model.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", result.Outcome)
	}
	if result.Value.Duration <= 0 {
		t.Fatal("missing duration was not estimated")
	}
	if result.Value.MimeType != "audio/wav" {
		t.Fatalf("mime type = %q, want audio/wav default", result.Value.MimeType)
	}
}

// TestEstimateDuration checks the words-per-minute heuristic and its floor.
func TestEstimateDuration(t *testing.T) {
	// 150 words at 150 wpm is one minute.
	words := make([]byte, 0)
	for i := 0; i < 150; i++ {
		words = append(words, []byte("word ")...)
	}
	if got := EstimateDuration(string(words)); got != 60 {
		t.Fatalf("150 words = %fs, want 60", got)
	}
	if got := EstimateDuration("hi"); got != 1 {
		t.Fatalf("short text = %fs, want 1s floor", got)
	}
}

// TestVoiceForTones verifies each tone maps to distinct pacing.
func TestVoiceForTones(t *testing.T) {
	cases := []struct {
		tone  model.Tone
		speed float64
	}{
		{model.ToneFormal, 0.9},
		{model.ToneCasual, 1.1},
		{model.ToneEmotional, 0.8},
		{model.ToneDocumentary, 0.95},
		{model.ToneInformative, 1.0},
	}
	for _, tc := range cases {
		if got := VoiceFor(tc.tone); got.Speed != tc.speed {
			t.Fatalf("VoiceFor(%s).Speed = %f, want %f", tc.tone, got.Speed, tc.speed)
		}
	}
}
