package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/pipeline"
)

// Notifier receives a snapshot after every job mutation (progress hub).
type Notifier func(model.JobSnapshot)

// Archiver receives the final video of a completed job (optional sink).
type Archiver func(jobID string, video model.VideoArtifact)

// Scheduler owns the in-memory job table, runs each job on an isolated
// worker goroutine, and serves status/artifact queries with safe
// concurrent access. Job state lives only for the process lifetime.
type Scheduler struct {
	pipeline *pipeline.Pipeline

	mu   sync.RWMutex // guards the table, never held across stage work
	jobs map[string]*jobEntry

	// slots bounds simultaneously running jobs; excess jobs stay queued.
	slots chan struct{}

	notify  Notifier
	archive Archiver
}

// jobEntry pairs one job with its own lock and cancellation plumbing.
// Different jobs never contend on the same entry lock.
type jobEntry struct {
	mu        sync.Mutex
	job       *model.Job
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// snapshot builds a detached copy under the per-job lock.
func (e *jobEntry) snapshot() model.JobSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Snapshot()
}

// jobHandle adapts a jobEntry to the pipeline's view of the job.
type jobHandle struct {
	entry  *jobEntry
	notify Notifier
}

// Request returns the immutable request parameters.
func (h *jobHandle) Request() model.GenerationRequest {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	return h.entry.job.Request
}

// Update applies one mutation under the per-job lock, then publishes the
// fresh snapshot outside it.
func (h *jobHandle) Update(mutate func(*model.Job)) {
	h.entry.mu.Lock()
	mutate(h.entry.job)
	snap := h.entry.job.Snapshot()
	h.entry.mu.Unlock()

	if h.notify != nil {
		h.notify(snap)
	}
}

// Cancelled reports the cooperative cancellation flag.
func (h *jobHandle) Cancelled() bool {
	return h.entry.cancelled.Load()
}

// New creates a scheduler with the given global running-jobs limit.
func New(pipe *pipeline.Pipeline, maxRunning int) *Scheduler {
	if maxRunning <= 0 {
		maxRunning = 2
	}
	return &Scheduler{
		pipeline: pipe,
		jobs:     map[string]*jobEntry{},
		slots:    make(chan struct{}, maxRunning),
	}
}

// SetNotifier installs the snapshot listener (progress hub). Must be set
// before the first Submit.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.notify = n
}

// SetArchiver installs the completed-video sink. Must be set before the
// first Submit.
func (s *Scheduler) SetArchiver(a Archiver) {
	s.archive = a
}

// Submit validates the request, creates a queued job, and starts a worker
// for it. Returns immediately with the new job identifier.
func (s *Scheduler) Submit(req model.GenerationRequest) (string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	entry := &jobEntry{
		job: &model.Job{
			ID:          id,
			State:       model.StateQueued,
			Request:     req,
			SubmittedAt: time.Now(),
		},
		cancel: cancel,
	}

	s.mu.Lock()
	s.jobs[id] = entry
	s.mu.Unlock()

	log.Printf("📥 Job %s submitted (%s/%s/%s, %ds)", id, req.Tone, req.Domain, req.Environment, req.Duration)

	go s.runJob(ctx, entry)
	return id, nil
}

// runJob is the per-job worker: it waits for a running slot, drives the
// pipeline, and releases the slot. A panic escaping the pipeline is
// recorded as a generic stage failure instead of crashing the scheduler.
func (s *Scheduler) runJob(ctx context.Context, entry *jobEntry) {
	handle := &jobHandle{entry: entry, notify: s.notify}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Worker panic recovered for job %s: %v", entry.job.ID, r)
			handle.Update(func(j *model.Job) {
				if j.State.Terminal() {
					return
				}
				j.State = model.StateFailed
				j.Failure = &model.StageFailure{
					Stage:   j.CurrentStage,
					Message: fmt.Sprintf("worker crashed: %v", r),
				}
				j.CompletedAt = time.Now()
			})
		}
	}()

	// Jobs beyond the global limit stay queued until a slot frees.
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		handle.Update(func(j *model.Job) {
			j.State = model.StateFailed
			j.Failure = &model.StageFailure{Stage: model.StageSegmenting, Message: "cancelled by caller"}
			j.CompletedAt = time.Now()
		})
		return
	}
	defer func() { <-s.slots }()

	handle.Update(func(j *model.Job) {
		j.State = model.StateRunning
		j.StartedAt = time.Now()
	})

	s.pipeline.Run(ctx, handle)

	if s.archive != nil {
		entry.mu.Lock()
		var video *model.VideoArtifact
		if entry.job.State == model.StateCompleted && entry.job.Video != nil {
			v := *entry.job.Video
			video = &v
		}
		id := entry.job.ID
		entry.mu.Unlock()

		if video != nil {
			go s.archive(id, *video)
		}
	}
}

// GetStatus returns a read-only snapshot without blocking on completion.
func (s *Scheduler) GetStatus(jobID string) (model.JobSnapshot, error) {
	entry, ok := s.lookup(jobID)
	if !ok {
		return model.JobSnapshot{}, fmt.Errorf("%w: %s", model.ErrNotFound, jobID)
	}
	return entry.snapshot(), nil
}

// GetArtifact returns the final video of a completed job. Repeated calls
// return the same bytes.
func (s *Scheduler) GetArtifact(jobID string) (model.VideoArtifact, error) {
	entry, ok := s.lookup(jobID)
	if !ok {
		return model.VideoArtifact{}, fmt.Errorf("%w: %s", model.ErrNotFound, jobID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	switch entry.job.State {
	case model.StateFailed:
		return model.VideoArtifact{}, fmt.Errorf("%w: job %s failed", model.ErrGone, jobID)
	case model.StateCompleted:
		if entry.job.Video == nil {
			return model.VideoArtifact{}, fmt.Errorf("%w: job %s has no artifact", model.ErrGone, jobID)
		}
		return *entry.job.Video, nil
	default:
		return model.VideoArtifact{}, fmt.Errorf("%w: job %s is %s", model.ErrNotReady, jobID, entry.job.State)
	}
}

// CancelOrRemove signals cancellation to a running job's worker (observed
// cooperatively between stage boundaries) or removes a terminal job and
// releases its artifact storage.
func (s *Scheduler) CancelOrRemove(jobID string) error {
	entry, ok := s.lookup(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrNotFound, jobID)
	}

	entry.mu.Lock()
	terminal := entry.job.State.Terminal()
	entry.mu.Unlock()

	if terminal {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
		log.Printf("🗑️  Job %s removed", jobID)
		return nil
	}

	entry.cancelled.Store(true)
	entry.cancel()
	log.Printf("🛑 Job %s cancellation requested", jobID)
	return nil
}

// ListJobs returns snapshots of every known job, newest first.
func (s *Scheduler) ListJobs() []model.JobSnapshot {
	s.mu.RLock()
	entries := make([]*jobEntry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	snaps := make([]model.JobSnapshot, 0, len(entries))
	for _, e := range entries {
		snaps = append(snaps, e.snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].SubmittedAt.After(snaps[j].SubmittedAt)
	})
	return snaps
}

// Counts tallies jobs per state for the metrics endpoint.
func (s *Scheduler) Counts() map[model.JobState]int {
	counts := map[model.JobState]int{}
	for _, snap := range s.ListJobs() {
		counts[snap.State]++
	}
	return counts
}

func (s *Scheduler) lookup(jobID string) (*jobEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.jobs[jobID]
	return entry, ok
}
