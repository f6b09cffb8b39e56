package model

import (
	"fmt"
	"strings"
	"time"
)

// JobState - lifecycle state of one generation job
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Terminal reports whether no further transition may leave this state.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Stage - progress marker carried while a job is running
type Stage string

const (
	StageSegmenting      Stage = "segmenting"
	StageNarrating       Stage = "narrating"
	StageRenderingScenes Stage = "rendering_scenes"
	StageCaptioning      Stage = "captioning"
	StageComposing       Stage = "composing"
)

// stageProgress maps the current stage to the coarse completion fraction
// reported to polling callers.
var stageProgress = map[Stage]float64{
	StageSegmenting:      0.05,
	StageNarrating:       0.25,
	StageRenderingScenes: 0.50,
	StageCaptioning:      0.80,
	StageComposing:       0.90,
}

type Tone string

const (
	ToneFormal      Tone = "formal"
	ToneCasual      Tone = "casual"
	ToneEmotional   Tone = "emotional"
	ToneDocumentary Tone = "documentary"
	ToneInformative Tone = "informative"
	TonePersuasive  Tone = "persuasive"
)

type Domain string

const (
	DomainEducation     Domain = "education"
	DomainHealth        Domain = "health"
	DomainGovernance    Domain = "governance"
	DomainEntertainment Domain = "entertainment"
	DomainNews          Domain = "news"
	DomainCorporate     Domain = "corporate"
)

type Environment string

const (
	EnvironmentRural      Environment = "rural"
	EnvironmentUrban      Environment = "urban"
	EnvironmentFuturistic Environment = "futuristic"
	EnvironmentNature     Environment = "nature"
	EnvironmentIndoors    Environment = "indoors"
	EnvironmentStudio     Environment = "studio"
	EnvironmentClassroom  Environment = "classroom"
)

// Tones lists every accepted tone value.
func Tones() []Tone {
	return []Tone{ToneFormal, ToneCasual, ToneEmotional, ToneDocumentary, ToneInformative, TonePersuasive}
}

// Domains lists every accepted domain value.
func Domains() []Domain {
	return []Domain{DomainEducation, DomainHealth, DomainGovernance, DomainEntertainment, DomainNews, DomainCorporate}
}

// Environments lists every accepted environment value.
func Environments() []Environment {
	return []Environment{EnvironmentRural, EnvironmentUrban, EnvironmentFuturistic, EnvironmentNature, EnvironmentIndoors, EnvironmentStudio, EnvironmentClassroom}
}

// GenerationRequest - immutable parameters of one submission
type GenerationRequest struct {
	Text                   string      `json:"text"`
	Tone                   Tone        `json:"tone,omitempty"`
	Domain                 Domain      `json:"domain,omitempty"`
	Environment            Environment `json:"environment,omitempty"`
	Duration               int         `json:"duration,omitempty"`
	FPS                    int         `json:"fps,omitempty"`
	Width                  int         `json:"width,omitempty"`
	Height                 int         `json:"height,omitempty"`
	Language               string      `json:"language,omitempty"`
	IncludeSubtitles       bool        `json:"include_subtitles"`
	IncludeBackgroundMusic bool        `json:"include_background_music"`
}

// Normalize fills unset fields with defaults (formal education video,
// studio shot, 30s at 24fps, 1280x720, English).
func (r *GenerationRequest) Normalize() {
	if r.Tone == "" {
		r.Tone = ToneFormal
	}
	if r.Domain == "" {
		r.Domain = DomainEducation
	}
	if r.Environment == "" {
		r.Environment = EnvironmentStudio
	}
	if r.Duration <= 0 {
		r.Duration = 30
	}
	if r.FPS <= 0 {
		r.FPS = 24
	}
	if r.Width <= 0 || r.Height <= 0 {
		r.Width = 1280
		r.Height = 720
	}
	if strings.TrimSpace(r.Language) == "" {
		r.Language = "en"
	}
}

// Validate rejects requests that cannot start a job. Every failure wraps
// ErrInvalidInput so the transport layer can map it to a 400.
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidInput)
	}
	if !containsTone(r.Tone) {
		return fmt.Errorf("%w: unknown tone %q", ErrInvalidInput, r.Tone)
	}
	if !containsDomain(r.Domain) {
		return fmt.Errorf("%w: unknown domain %q", ErrInvalidInput, r.Domain)
	}
	if !containsEnvironment(r.Environment) {
		return fmt.Errorf("%w: unknown environment %q", ErrInvalidInput, r.Environment)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if r.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive", ErrInvalidInput)
	}
	return nil
}

func containsTone(t Tone) bool {
	for _, v := range Tones() {
		if v == t {
			return true
		}
	}
	return false
}

func containsDomain(d Domain) bool {
	for _, v := range Domains() {
		if v == d {
			return true
		}
	}
	return false
}

func containsEnvironment(e Environment) bool {
	for _, v := range Environments() {
		if v == e {
			return true
		}
	}
	return false
}

// TimeSpan - slice of the narration timeline, in seconds
type TimeSpan struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Seconds returns the span length.
func (s TimeSpan) Seconds() float64 {
	return s.End - s.Start
}

// Segment - one narration/visual unit derived from the input text.
// Created once by the segmenter; the span is assigned by the caption
// builder and never mutated afterwards.
type Segment struct {
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Concept string   `json:"concept"`
	Span    TimeSpan `json:"span"`
}

// WordCount counts whitespace-separated narration words.
func (s Segment) WordCount() int {
	return len(strings.Fields(s.Text))
}

// AudioArtifact - narration track held in memory until fetched or removed
type AudioArtifact struct {
	Data     []byte
	MimeType string
	Duration float64
	Silent   bool
}

// ImageArtifact - one scene still (real or placeholder)
type ImageArtifact struct {
	Data        []byte
	MimeType    string
	Placeholder bool
}

// VideoArtifact - the final composed video
type VideoArtifact struct {
	Data     []byte
	MimeType string
}

// Caption - one timed subtitle entry
type Caption struct {
	Index int      `json:"index"`
	Span  TimeSpan `json:"span"`
	Text  string   `json:"text"`
}

// StageNote - record of a non-fatal fallback produced by a stage
type StageNote struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// StageFailure - record of the stage that aborted a failed job
type StageFailure struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Metrics - per-job measurements surfaced through status queries
type Metrics struct {
	StageSeconds   map[Stage]float64 `json:"stage_seconds,omitempty"`
	PeakMemoryMB   float64           `json:"peak_memory_mb,omitempty"`
	DegradedScenes int               `json:"degraded_scenes"`
	FrameRate      int               `json:"frame_rate,omitempty"`
	GenerationCost float64           `json:"generation_cost,omitempty"`
}

// RecordStage stores the wall clock of one finished stage.
func (m *Metrics) RecordStage(stage Stage, seconds float64) {
	if m.StageSeconds == nil {
		m.StageSeconds = map[Stage]float64{}
	}
	m.StageSeconds[stage] = seconds
}

// Job - full record of one generation request. Exclusively owned by its
// worker while running; readers only ever see Snapshot copies.
type Job struct {
	ID           string
	State        JobState
	CurrentStage Stage
	Request      GenerationRequest
	Segments     []Segment
	Narration    *AudioArtifact
	Scenes       []ImageArtifact
	Captions     []Caption
	SubtitleSRT  string
	Video        *VideoArtifact
	Degraded     []StageNote
	Failure      *StageFailure
	Metrics      Metrics
	SubmittedAt  time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Progress returns the coarse completion fraction for polling callers.
func (j *Job) Progress() float64 {
	switch j.State {
	case StateQueued:
		return 0
	case StateCompleted, StateFailed:
		return 1
	}
	if p, ok := stageProgress[j.CurrentStage]; ok {
		return p
	}
	return 0
}

// JobSnapshot - read-only copy served to status readers. Artifact bytes
// stay behind; only their presence is reported.
type JobSnapshot struct {
	ID             string        `json:"job_id"`
	State          JobState      `json:"status"`
	CurrentStage   Stage         `json:"current_stage,omitempty"`
	Progress       float64       `json:"progress"`
	TextPreview    string        `json:"text_preview"`
	Tone           Tone          `json:"tone"`
	Domain         Domain        `json:"domain"`
	Environment    Environment   `json:"environment"`
	Duration       int           `json:"duration"`
	SegmentCount   int           `json:"segment_count"`
	HasVideo       bool          `json:"has_video"`
	Degraded       []StageNote   `json:"degraded_stages,omitempty"`
	Error          *StageFailure `json:"error,omitempty"`
	Metrics        Metrics       `json:"metrics"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	ProcessingSecs float64       `json:"processing_seconds,omitempty"`
}

// Snapshot builds a detached copy safe to share with concurrent readers.
func (j *Job) Snapshot() JobSnapshot {
	snap := JobSnapshot{
		ID:           j.ID,
		State:        j.State,
		Progress:     j.Progress(),
		TextPreview:  preview(j.Request.Text, 100),
		Tone:         j.Request.Tone,
		Domain:       j.Request.Domain,
		Environment:  j.Request.Environment,
		Duration:     j.Request.Duration,
		SegmentCount: len(j.Segments),
		HasVideo:     j.Video != nil,
		SubmittedAt:  j.SubmittedAt,
	}
	if j.State == StateRunning {
		snap.CurrentStage = j.CurrentStage
	}
	if len(j.Degraded) > 0 {
		snap.Degraded = append([]StageNote(nil), j.Degraded...)
	}
	if j.Failure != nil {
		f := *j.Failure
		snap.Error = &f
	}
	snap.Metrics = j.Metrics
	if j.Metrics.StageSeconds != nil {
		snap.Metrics.StageSeconds = make(map[Stage]float64, len(j.Metrics.StageSeconds))
		for k, v := range j.Metrics.StageSeconds {
			snap.Metrics.StageSeconds[k] = v
		}
	}
	if !j.StartedAt.IsZero() {
		t := j.StartedAt
		snap.StartedAt = &t
	}
	if !j.CompletedAt.IsZero() {
		t := j.CompletedAt
		snap.CompletedAt = &t
		snap.ProcessingSecs = j.CompletedAt.Sub(j.SubmittedAt).Seconds()
	}
	return snap
}

func preview(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
