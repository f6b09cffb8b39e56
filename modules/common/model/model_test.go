package model

import (
	"errors"
	"testing"
	"time"
)

// TestNormalizeDefaults verifies an empty request fills the documented
// defaults.
func TestNormalizeDefaults(t *testing.T) {
	req := GenerationRequest{Text: "hello"}
	req.Normalize()

	if req.Tone != ToneFormal {
		t.Fatalf("tone = %s, want formal", req.Tone)
	}
	if req.Domain != DomainEducation {
		t.Fatalf("domain = %s, want education", req.Domain)
	}
	if req.Environment != EnvironmentStudio {
		t.Fatalf("environment = %s, want studio", req.Environment)
	}
	if req.Duration != 30 || req.FPS != 24 {
		t.Fatalf("duration/fps = %d/%d, want 30/24", req.Duration, req.FPS)
	}
	if req.Width != 1280 || req.Height != 720 {
		t.Fatalf("frame = %dx%d, want 1280x720", req.Width, req.Height)
	}
	if req.Language != "en" {
		t.Fatalf("language = %q, want en", req.Language)
	}
}

// TestNormalizeKeepsExplicitValues verifies set fields survive.
func TestNormalizeKeepsExplicitValues(t *testing.T) {
	req := GenerationRequest{
		Text:        "hello",
		Tone:        ToneCasual,
		Domain:      DomainNews,
		Environment: EnvironmentUrban,
		Duration:    45,
		FPS:         30,
	}
	req.Normalize()

	if req.Tone != ToneCasual || req.Domain != DomainNews || req.Environment != EnvironmentUrban {
		t.Fatal("explicit enum values overwritten")
	}
	if req.Duration != 45 || req.FPS != 30 {
		t.Fatal("explicit numeric values overwritten")
	}
}

// TestValidateRejections verifies every rejection wraps ErrInvalidInput.
func TestValidateRejections(t *testing.T) {
	base := GenerationRequest{Text: "hello"}
	base.Normalize()

	cases := []struct {
		name   string
		mutate func(*GenerationRequest)
	}{
		{"empty text", func(r *GenerationRequest) { r.Text = " " }},
		{"unknown tone", func(r *GenerationRequest) { r.Tone = "angry" }},
		{"unknown domain", func(r *GenerationRequest) { r.Domain = "sports" }},
		{"unknown environment", func(r *GenerationRequest) { r.Environment = "space" }},
		{"zero duration", func(r *GenerationRequest) { r.Duration = 0 }},
		{"zero fps", func(r *GenerationRequest) { r.FPS = 0 }},
	}
	for _, tc := range cases {
		req := base
		tc.mutate(&req)
		if err := req.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: error = %v, want ErrInvalidInput", tc.name, err)
		}
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

// TestProgressByState checks the coarse progress fractions.
func TestProgressByState(t *testing.T) {
	j := &Job{State: StateQueued}
	if j.Progress() != 0 {
		t.Fatalf("queued progress = %f", j.Progress())
	}

	j.State = StateRunning
	j.CurrentStage = StageRenderingScenes
	if j.Progress() != 0.5 {
		t.Fatalf("rendering progress = %f, want 0.5", j.Progress())
	}

	j.State = StateCompleted
	if j.Progress() != 1 {
		t.Fatalf("completed progress = %f, want 1", j.Progress())
	}
	j.State = StateFailed
	if j.Progress() != 1 {
		t.Fatalf("failed progress = %f, want 1", j.Progress())
	}
}

// TestSnapshotDetached verifies snapshots do not share mutable state with
// the job record.
func TestSnapshotDetached(t *testing.T) {
	j := &Job{
		ID:    "job-1",
		State: StateRunning,
		Request: GenerationRequest{
			Text: "some text", Tone: ToneFormal, Domain: DomainEducation,
		},
		CurrentStage: StageNarrating,
		Degraded:     []StageNote{{Stage: StageNarrating, Reason: "fallback"}},
		SubmittedAt:  time.Now(),
	}
	j.Metrics.RecordStage(StageSegmenting, 0.5)

	snap := j.Snapshot()

	j.Degraded[0].Reason = "mutated"
	j.Metrics.StageSeconds[StageSegmenting] = 99

	if snap.Degraded[0].Reason != "fallback" {
		t.Fatal("snapshot shares degraded notes with the job")
	}
	if snap.Metrics.StageSeconds[StageSegmenting] != 0.5 {
		t.Fatal("snapshot shares stage timings with the job")
	}
}

// TestSnapshotHidesArtifactBytes verifies only artifact presence leaks
// into a snapshot.
func TestSnapshotHidesArtifactBytes(t *testing.T) {
	j := &Job{
		ID:    "job-1",
		State: StateCompleted,
		Video: &VideoArtifact{Data: []byte("mp4"), MimeType: "video/mp4"},
	}
	snap := j.Snapshot()
	if !snap.HasVideo {
		t.Fatal("snapshot does not report its video")
	}
	if snap.CurrentStage != "" {
		t.Fatal("terminal snapshot still reports a current stage")
	}
}

// TestSnapshotTruncatesPreview verifies long input text is trimmed.
func TestSnapshotTruncatesPreview(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	j := &Job{Request: GenerationRequest{Text: string(long)}}
	snap := j.Snapshot()
	if len(snap.TextPreview) != 103 { // 100 chars + ellipsis
		t.Fatalf("preview length = %d", len(snap.TextPreview))
	}
}

// TestTerminalStates checks the two absorbing states.
func TestTerminalStates(t *testing.T) {
	if StateQueued.Terminal() || StateRunning.Terminal() {
		t.Fatal("non-terminal state reported terminal")
	}
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Fatal("terminal state reported non-terminal")
	}
}
