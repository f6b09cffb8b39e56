package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/scheduler"
)

// Handler exposes the job lifecycle over HTTP.
type Handler struct {
	scheduler *scheduler.Scheduler
	startTime time.Time
}

func NewHandler(sched *scheduler.Scheduler) *Handler {
	return &Handler{
		scheduler: sched,
		startTime: time.Now(),
	}
}

// Register wires all routes onto the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/generate-video", h.GenerateVideo).Methods("POST")
	r.HandleFunc("/api/job-status/{id}", h.JobStatus).Methods("GET")
	r.HandleFunc("/api/download-video/{id}", h.DownloadVideo).Methods("GET")
	r.HandleFunc("/api/jobs", h.ListJobs).Methods("GET")
	r.HandleFunc("/api/job/{id}", h.CancelJob).Methods("DELETE")
	r.HandleFunc("/api/available-options", h.AvailableOptions).Methods("GET")
	r.HandleFunc("/api/metrics", h.Metrics).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// GenerateVideo accepts a generation request and returns the new job ID.
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req model.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	jobID, err := h.scheduler.Submit(req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":  jobID,
		"status": string(model.StateQueued),
	})
}

// JobStatus returns the current snapshot of one job.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	snap, err := h.scheduler.GetStatus(jobID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// DownloadVideo streams the final artifact of a completed job.
func (h *Handler) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	video, err := h.scheduler.GetArtifact(jobID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", video.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="storyreel_%s.mp4"`, jobID))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(video.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(video.Data)
}

// ListJobs returns snapshots of all known jobs, newest first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.scheduler.ListJobs()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// CancelJob cancels a running job or removes a finished one.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	if err := h.scheduler.CancelOrRemove(jobID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobId":   jobID,
		"message": "cancellation requested",
	})
}

// AvailableOptions lists the accepted tone, domain and environment values.
func (h *Handler) AvailableOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tones":        model.Tones(),
		"domains":      model.Domains(),
		"environments": model.Environments(),
	})
}

// Metrics summarizes job counts and server uptime.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	counts := h.scheduler.Counts()
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalJobs":     total,
		"queuedJobs":    counts[model.StateQueued],
		"runningJobs":   counts[model.StateRunning],
		"completedJobs": counts[model.StateCompleted],
		"failedJobs":    counts[model.StateFailed],
		"uptimeSeconds": int(time.Since(h.startTime).Seconds()),
	})
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps domain sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, model.ErrGone):
		return http.StatusGone
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
