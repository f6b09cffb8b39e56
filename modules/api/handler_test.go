package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/compose"
	"storyreel-server/modules/narration"
	"storyreel-server/modules/pipeline"
	"storyreel-server/modules/scene"
	"storyreel-server/modules/scheduler"
	"storyreel-server/modules/segmenter"
)

type stubImages struct{}

func (stubImages) SynthesizeImage(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	return []byte("still"), nil
}

type stubComposer struct{}

func (stubComposer) Compose(ctx context.Context, req compose.Request) (model.VideoArtifact, compose.Metrics, error) {
	return model.VideoArtifact{Data: []byte("mp4-bytes"), MimeType: "video/mp4"}, compose.Metrics{}, nil
}

func testServer(t *testing.T) (*httptest.Server, *scheduler.Scheduler) {
	t.Helper()
	pipe := pipeline.New(
		segmenter.New(12),
		narration.New(nil, time.Second),
		scene.New(stubImages{}, time.Second, 2),
		stubComposer{},
		time.Minute,
	)
	sched := scheduler.New(pipe, 2)

	r := mux.NewRouter()
	NewHandler(sched).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, sched
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func waitCompleted(t *testing.T, sched *scheduler.Scheduler, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := sched.GetStatus(id)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if snap.State == model.StateCompleted {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never completed", id)
}

// TestGenerateStatusDownloadFlow exercises the primary REST round trip.
func TestGenerateStatusDownloadFlow(t *testing.T) {
	srv, sched := testServer(t)

	resp := postJSON(t, srv.URL+"/api/generate-video", map[string]interface{}{
		"text": "A gentle introduction to tidal energy systems.",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate status = %d, want 202", resp.StatusCode)
	}
	var accepted struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
	}
	decode(t, resp, &accepted)
	if accepted.JobID == "" {
		t.Fatal("no job id in response")
	}
	if accepted.Status != "queued" {
		t.Fatalf("status = %q, want queued", accepted.Status)
	}

	waitCompleted(t, sched, accepted.JobID)

	statusResp, err := http.Get(srv.URL + "/api/job-status/" + accepted.JobID)
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	if statusResp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", statusResp.StatusCode)
	}
	var snap model.JobSnapshot
	decode(t, statusResp, &snap)
	if snap.State != model.StateCompleted || !snap.HasVideo {
		t.Fatalf("snapshot = %+v", snap)
	}

	dlResp, err := http.Get(srv.URL + "/api/download-video/" + accepted.JobID)
	if err != nil {
		t.Fatalf("GET download: %v", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		t.Fatalf("download code = %d", dlResp.StatusCode)
	}
	if ct := dlResp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("content type = %q", ct)
	}
}

// TestGenerateRejectsBadRequests covers malformed JSON and invalid fields.
func TestGenerateRejectsBadRequests(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/api/generate-video", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/generate-video", map[string]interface{}{
		"text": "valid text", "tone": "angry",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid tone status = %d, want 400", resp.StatusCode)
	}
}

// TestUnknownJobRoutes verifies 404 mapping for missing jobs.
func TestUnknownJobRoutes(t *testing.T) {
	srv, _ := testServer(t)

	for _, url := range []string{
		srv.URL + "/api/job-status/missing",
		srv.URL + "/api/download-video/missing",
	} {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("GET %s: %v", url, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s status = %d, want 404", url, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/job/missing", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete status = %d, want 404", resp.StatusCode)
	}
}

// TestAvailableOptions verifies the enum listing endpoint.
func TestAvailableOptions(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/api/available-options")
	if err != nil {
		t.Fatalf("GET options: %v", err)
	}
	var options struct {
		Tones        []string `json:"tones"`
		Domains      []string `json:"domains"`
		Environments []string `json:"environments"`
	}
	decode(t, resp, &options)
	if len(options.Tones) != 6 || len(options.Domains) != 6 || len(options.Environments) != 7 {
		t.Fatalf("options = %+v", options)
	}
}

// TestMetricsAndHealth verifies the operational endpoints answer 200.
func TestMetricsAndHealth(t *testing.T) {
	srv, sched := testServer(t)

	id, err := sched.Submit(model.GenerationRequest{Text: "metrics job"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitCompleted(t, sched, id)

	resp, err := http.Get(srv.URL + "/api/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	var metrics struct {
		TotalJobs     int `json:"totalJobs"`
		CompletedJobs int `json:"completedJobs"`
	}
	decode(t, resp, &metrics)
	if metrics.TotalJobs != 1 || metrics.CompletedJobs != 1 {
		t.Fatalf("metrics = %+v", metrics)
	}

	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", health.StatusCode)
	}
}
