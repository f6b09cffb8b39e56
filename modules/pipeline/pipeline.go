package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"storyreel-server/modules/caption"
	"storyreel-server/modules/compose"
	"storyreel-server/modules/common/model"
	"storyreel-server/modules/narration"
	"storyreel-server/modules/scene"
	"storyreel-server/modules/segmenter"
)

// JobHandle is the pipeline's window onto one job record. Update applies a
// mutation under the scheduler's per-job lock; the pipeline never holds
// that lock across a stage call.
type JobHandle interface {
	Request() model.GenerationRequest
	Update(mutate func(*model.Job))
	Cancelled() bool
}

// Pipeline drives one job through its stages in dependency order, applying
// each stage's fallback policy and accumulating metrics.
type Pipeline struct {
	segmenter      *segmenter.Segmenter
	narrator       *narration.Synthesizer
	scenes         *scene.Synthesizer
	composer       compose.VideoComposer
	composeTimeout time.Duration
}

// New wires the five stages into one orchestrator.
func New(
	seg *segmenter.Segmenter,
	narrator *narration.Synthesizer,
	scenes *scene.Synthesizer,
	composer compose.VideoComposer,
	composeTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		segmenter:      seg,
		narrator:       narrator,
		scenes:         scenes,
		composer:       composer,
		composeTimeout: composeTimeout,
	}
}

// Run executes every stage for one job. The job must already be in running
// state; Run always leaves it in a terminal state. A panic escaping any
// stage is converted to a failure instead of crashing the worker.
func (p *Pipeline) Run(ctx context.Context, handle JobHandle) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Pipeline panic recovered: %v", r)
			p.fail(handle, model.StageSegmenting, fmt.Sprintf("internal stage failure: %v", r))
		}
	}()

	req := handle.Request()

	// Stage 1: segmenting
	if p.cancelledBetweenStages(handle, model.StageSegmenting) {
		return
	}
	p.setStage(handle, model.StageSegmenting)
	stageStart := time.Now()
	segments, err := p.segmenter.Segment(req.Text)
	if err != nil {
		p.fail(handle, model.StageSegmenting, err.Error())
		return
	}
	p.recordStage(handle, model.StageSegmenting, stageStart, func(j *model.Job) {
		j.Segments = segments
	})
	log.Printf("✂️  Text segmented into %d parts", len(segments))

	// Stage 2: narrating
	if p.cancelledBetweenStages(handle, model.StageNarrating) {
		return
	}
	p.setStage(handle, model.StageNarrating)
	stageStart = time.Now()
	audioResult := p.narrator.Synthesize(ctx, req)
	if audioResult.Outcome == model.OutcomeFatal {
		p.fail(handle, model.StageNarrating, audioResult.Reason)
		return
	}
	audio := audioResult.Value
	p.recordStage(handle, model.StageNarrating, stageStart, func(j *model.Job) {
		j.Narration = &audio
		if audioResult.Outcome == model.OutcomeDegraded {
			j.Degraded = append(j.Degraded, model.StageNote{
				Stage:  model.StageNarrating,
				Reason: audioResult.Reason,
			})
		}
	})

	// Stage 3: rendering scenes
	if p.cancelledBetweenStages(handle, model.StageRenderingScenes) {
		return
	}
	p.setStage(handle, model.StageRenderingScenes)
	stageStart = time.Now()
	sceneResult := p.scenes.Render(ctx, segments, req)
	if sceneResult.Outcome == model.OutcomeFatal {
		if handle.Cancelled() {
			p.fail(handle, model.StageRenderingScenes, "cancelled by caller")
		} else {
			p.fail(handle, model.StageRenderingScenes, sceneResult.Reason)
		}
		return
	}
	rendered := sceneResult.Value
	p.recordStage(handle, model.StageRenderingScenes, stageStart, func(j *model.Job) {
		j.Scenes = rendered.Images
		j.Metrics.DegradedScenes = rendered.DegradedCount()
		j.Degraded = append(j.Degraded, rendered.Notes...)
	})

	// Stage 4: captioning
	if p.cancelledBetweenStages(handle, model.StageCaptioning) {
		return
	}
	p.setStage(handle, model.StageCaptioning)
	stageStart = time.Now()
	timedSegments, captions, err := caption.Build(segments, audio.Duration, req.IncludeSubtitles)
	if err != nil {
		p.fail(handle, model.StageCaptioning, err.Error())
		return
	}
	srt := ""
	if len(captions) > 0 {
		srt = caption.BuildSRT(captions)
	}
	p.recordStage(handle, model.StageCaptioning, stageStart, func(j *model.Job) {
		j.Segments = timedSegments
		j.Captions = captions
		j.SubtitleSRT = srt
	})

	// Stage 5: composing. Timeout here is fatal: there is no degraded video.
	if p.cancelledBetweenStages(handle, model.StageComposing) {
		return
	}
	p.setStage(handle, model.StageComposing)
	stageStart = time.Now()

	composeCtx := ctx
	if p.composeTimeout > 0 {
		var cancel context.CancelFunc
		composeCtx, cancel = context.WithTimeout(ctx, p.composeTimeout)
		defer cancel()
	}

	spans := make([]model.TimeSpan, len(timedSegments))
	for i, seg := range timedSegments {
		spans[i] = seg.Span
	}

	video, composeMetrics, err := p.composer.Compose(composeCtx, compose.Request{
		Images:          rendered.Images,
		Spans:           spans,
		Audio:           audio,
		SubtitleSRT:     srt,
		FPS:             req.FPS,
		Width:           req.Width,
		Height:          req.Height,
		BackgroundMusic: req.IncludeBackgroundMusic,
	})
	if err != nil {
		p.fail(handle, model.StageComposing, err.Error())
		return
	}

	handle.Update(func(j *model.Job) {
		j.Metrics.RecordStage(model.StageComposing, time.Since(stageStart).Seconds())
		j.Metrics.PeakMemoryMB = composeMetrics.PeakMemoryMB
		j.Metrics.GenerationCost = composeMetrics.EstimatedCost
		j.Metrics.FrameRate = req.FPS
		j.Video = &video
		j.State = model.StateCompleted
		j.CompletedAt = time.Now()
	})
	log.Printf("✅ Job completed: %d scenes (%d degraded), %.1fs video",
		len(rendered.Images), rendered.DegradedCount(), audio.Duration)
}

// setStage publishes the current-stage marker for progress reporting.
func (p *Pipeline) setStage(handle JobHandle, stage model.Stage) {
	handle.Update(func(j *model.Job) {
		j.CurrentStage = stage
	})
}

// recordStage stores stage wall clock alongside a stage-output mutation.
func (p *Pipeline) recordStage(handle JobHandle, stage model.Stage, start time.Time, mutate func(*model.Job)) {
	handle.Update(func(j *model.Job) {
		j.Metrics.RecordStage(stage, time.Since(start).Seconds())
		mutate(j)
	})
}

// cancelledBetweenStages observes cooperative cancellation at a stage
// boundary and, when requested, moves the job to failed.
func (p *Pipeline) cancelledBetweenStages(handle JobHandle, next model.Stage) bool {
	if !handle.Cancelled() {
		return false
	}
	p.fail(handle, next, "cancelled by caller")
	return true
}

// fail transitions the job to failed with the originating stage recorded.
func (p *Pipeline) fail(handle JobHandle, stage model.Stage, message string) {
	handle.Update(func(j *model.Job) {
		if j.State.Terminal() {
			return // terminal states never transition
		}
		j.State = model.StateFailed
		j.Failure = &model.StageFailure{Stage: stage, Message: message}
		j.CompletedAt = time.Now()
	})
	log.Printf("❌ Job failed at %s: %s", stage, message)
}
