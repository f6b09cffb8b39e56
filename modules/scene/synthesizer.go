package scene

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"storyreel-server/modules/common/fallback"
	"storyreel-server/modules/common/model"
	"storyreel-server/modules/common/utils"
)

// environmentModifiers append setting context to generation prompts.
var environmentModifiers = map[model.Environment]string{
	model.EnvironmentRural:      "rural setting, countryside, natural landscape",
	model.EnvironmentUrban:      "urban environment, city, modern buildings",
	model.EnvironmentFuturistic: "futuristic, sci-fi, high-tech environment",
	model.EnvironmentNature:     "natural environment, outdoor, scenic",
	model.EnvironmentIndoors:    "indoor setting, interior space",
	model.EnvironmentStudio:     "professional studio, clean background",
	model.EnvironmentClassroom:  "classroom, educational environment",
}

// domainStyles append subject-matter styling.
var domainStyles = map[model.Domain]string{
	model.DomainEducation:     "educational, informative, clean design",
	model.DomainHealth:        "medical, healthcare, professional",
	model.DomainGovernance:    "official, governmental, formal",
	model.DomainEntertainment: "colorful, engaging, dynamic",
	model.DomainNews:          "news broadcast, professional, serious",
	model.DomainCorporate:     "business, professional, corporate",
}

// toneStyles append compositional mood.
var toneStyles = map[model.Tone]string{
	model.ToneFormal:      "professional, formal composition",
	model.ToneCasual:      "relaxed, friendly atmosphere",
	model.ToneEmotional:   "emotional, expressive",
	model.ToneDocumentary: "documentary style, realistic",
	model.ToneInformative: "clear, explanatory visuals",
	model.TonePersuasive:  "bold, impactful imagery",
}

// BuildPrompt assembles the generation prompt for one segment's concept.
func BuildPrompt(concept string, req model.GenerationRequest) string {
	parts := []string{concept}
	if m, ok := environmentModifiers[req.Environment]; ok {
		parts = append(parts, m)
	}
	if m, ok := domainStyles[req.Domain]; ok {
		parts = append(parts, m)
	}
	if m, ok := toneStyles[req.Tone]; ok {
		parts = append(parts, m)
	}
	parts = append(parts, "high quality, detailed")
	return strings.Join(parts, ", ")
}

// ImageBackend is the narrow contract to an image-synthesis collaborator.
type ImageBackend interface {
	SynthesizeImage(ctx context.Context, prompt string, width, height int) ([]byte, error)
}

// Result carries the ordered stills plus per-segment degrade notes.
type Result struct {
	Images []model.ImageArtifact
	Notes  []model.StageNote
}

// DegradedCount counts placeholder stills in the result.
func (r Result) DegradedCount() int {
	n := 0
	for _, img := range r.Images {
		if img.Placeholder {
			n++
		}
	}
	return n
}

// Synthesizer renders one still per segment. Segments render independently:
// a failure on segment i substitutes a placeholder for i only.
type Synthesizer struct {
	backend  ImageBackend
	timeout  time.Duration
	parallel int
}

// New creates a synthesizer with bounded per-job render concurrency.
// backend may be nil; every segment then degrades to a placeholder.
func New(backend ImageBackend, timeout time.Duration, parallel int) *Synthesizer {
	if parallel <= 0 {
		parallel = 2
	}
	return &Synthesizer{backend: backend, timeout: timeout, parallel: parallel}
}

// Render runs the scene stage across all segments. Renders run in parallel
// bounded by a semaphore so a shared accelerator is not oversubscribed.
// Cancellation is observed between individual segment completions; Fatal is
// returned only when the job context is cancelled mid-stage.
func (s *Synthesizer) Render(ctx context.Context, segments []model.Segment, req model.GenerationRequest) model.StageResult[Result] {
	images := make([]model.ImageArtifact, len(segments))
	notes := make([]model.StageNote, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex

	// Semaphore: at most s.parallel renders in flight per job.
	semaphore := make(chan struct{}, s.parallel)

	for i := range segments {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)

		go func(seg model.Segment) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			img, reason := s.renderOneSafe(ctx, seg, req)
			mu.Lock()
			images[seg.Index] = img
			if reason != "" {
				notes = append(notes, model.StageNote{
					Stage:  model.StageRenderingScenes,
					Reason: reason,
				})
			}
			mu.Unlock()
		}(segments[i])
	}

	wg.Wait()

	if ctx.Err() != nil {
		return model.Fatal[Result](fmt.Sprintf("scene rendering interrupted: %v", ctx.Err()))
	}

	// A slot the goroutine never filled (ctx raced the semaphore) still
	// needs a placeholder so segment count equals image count.
	for i := range images {
		if len(images[i].Data) == 0 {
			ph, reason := s.placeholder(segments[i], req, "render slot never ran")
			images[i] = ph
			if reason != "" {
				notes = append(notes, model.StageNote{Stage: model.StageRenderingScenes, Reason: reason})
			}
		}
	}

	result := Result{Images: images, Notes: notes}
	if len(notes) > 0 {
		return model.Degraded(result, fmt.Sprintf("%d of %d scenes degraded to placeholders", result.DegradedCount(), len(segments)))
	}
	return model.Success(result)
}

// renderOneSafe converts a panicking backend into a degraded segment so a
// misbehaving renderer cannot take the whole job down.
func (s *Synthesizer) renderOneSafe(ctx context.Context, seg model.Segment, req model.GenerationRequest) (img model.ImageArtifact, reason string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Scene %d renderer panicked: %v", seg.Index, r)
			img, reason = s.placeholder(seg, req, fmt.Sprintf("segment %d: renderer panicked: %v", seg.Index, r))
		}
	}()
	return s.renderOne(ctx, seg, req)
}

// renderOne renders a single segment, degrading to a placeholder on any
// backend error. The returned reason is empty on full success.
func (s *Synthesizer) renderOne(ctx context.Context, seg model.Segment, req model.GenerationRequest) (model.ImageArtifact, string) {
	if s.backend == nil {
		return s.placeholder(seg, req, "no image backend configured")
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(seg.Concept, req)
	data, err := s.backend.SynthesizeImage(callCtx, prompt, req.Width, req.Height)
	if err != nil {
		log.Printf("⚠️  Scene %d synthesis failed: %v", seg.Index, err)
		return s.placeholder(seg, req, fmt.Sprintf("segment %d: %v", seg.Index, err))
	}
	if len(data) == 0 {
		return s.placeholder(seg, req, fmt.Sprintf("segment %d: backend returned no image", seg.Index))
	}

	// Fit the still into the requested frame and store it as WebP; keep
	// the raw bytes if transcoding fails.
	if webpData, err := utils.NormalizeStill(data, req.Width, req.Height, 90); err == nil {
		return model.ImageArtifact{Data: webpData, MimeType: "image/webp"}, ""
	}
	return model.ImageArtifact{Data: data, MimeType: "image/png"}, ""
}

// placeholder builds the deterministic fallback still for one segment.
func (s *Synthesizer) placeholder(seg model.Segment, req model.GenerationRequest, reason string) (model.ImageArtifact, string) {
	img, err := fallback.PlaceholderScene(req.Domain, seg.Index, seg.Concept, req.Width, req.Height)
	if err != nil {
		// Encoding a flat frame failing is effectively out-of-memory;
		// return an empty placeholder rather than panic.
		log.Printf("❌ Placeholder generation failed for segment %d: %v", seg.Index, err)
		return model.ImageArtifact{MimeType: "image/webp", Placeholder: true, Data: []byte{0}},
			fmt.Sprintf("%s (placeholder also failed: %v)", reason, err)
	}
	return img, reason
}
