package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"storyreel-server/modules/common/model"
)

// ErrComposition - unrecoverable encoding/IO failure; the one stage error
// with no fallback.
var ErrComposition = errors.New("composition error")

// Cost model carried over from the benchmark harness: a flat per-second
// charge plus a per-still charge.
const (
	costPerSecond = 0.05
	costPerImage  = 0.02
)

// Request carries everything the composer needs for one job.
type Request struct {
	Images          []model.ImageArtifact
	Spans           []model.TimeSpan
	Audio           model.AudioArtifact
	SubtitleSRT     string
	FPS             int
	Width           int
	Height          int
	BackgroundMusic bool
}

// Metrics is the composer's per-run measurement snapshot.
type Metrics struct {
	WallClockSeconds float64
	PeakMemoryMB     float64
	EstimatedCost    float64
}

// VideoComposer is the narrow contract to the media-muxing collaborator.
type VideoComposer interface {
	Compose(ctx context.Context, req Request) (model.VideoArtifact, Metrics, error)
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpegComposer assembles stills, narration, and captions into one MP4 by
// shelling out to ffmpeg.
type FFmpegComposer struct {
	ffmpegPath string
	runner     commandRunner
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
	writeFile  func(name string, data []byte, perm os.FileMode) error
	readFile   func(name string) ([]byte, error)
}

// NewFFmpegComposer constructs the production composer.
func NewFFmpegComposer(ffmpegPath string) *FFmpegComposer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegComposer{
		ffmpegPath: ffmpegPath,
		runner:     &execRunner{},
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
		writeFile:  os.WriteFile,
		readFile:   os.ReadFile,
	}
}

// Compose concatenates each still for its span, overlays the narration
// track, and burns in subtitles when provided. Fails only on unrecoverable
// IO/encoding errors; there is no degraded video.
func (c *FFmpegComposer) Compose(ctx context.Context, req Request) (model.VideoArtifact, Metrics, error) {
	start := time.Now()

	if len(req.Images) == 0 {
		return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: no scene images", ErrComposition)
	}
	if len(req.Images) != len(req.Spans) {
		return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: %d images for %d spans", ErrComposition, len(req.Images), len(req.Spans))
	}
	if len(req.Audio.Data) == 0 {
		return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: no narration track", ErrComposition)
	}

	tempDir, err := c.mkdirTemp("", "storyreel-compose-*")
	if err != nil {
		return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: failed to create workspace: %v", ErrComposition, err)
	}
	defer func() {
		_ = c.removeAll(tempDir)
	}()

	sceneFiles := make([]string, len(req.Images))
	for i, img := range req.Images {
		name := fmt.Sprintf("scene_%03d%s", i, imageExt(img.MimeType))
		path := filepath.Join(tempDir, name)
		if err := c.writeFile(path, img.Data, 0o644); err != nil {
			return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: failed to write scene %d: %v", ErrComposition, i, err)
		}
		sceneFiles[i] = name
	}

	audioPath := filepath.Join(tempDir, "narration.wav")
	if err := c.writeFile(audioPath, req.Audio.Data, 0o644); err != nil {
		return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: failed to write narration: %v", ErrComposition, err)
	}

	concatPath := filepath.Join(tempDir, "scenes.txt")
	if err := c.writeFile(concatPath, []byte(buildConcatScript(sceneFiles, req.Spans)), 0o644); err != nil {
		return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: failed to write concat script: %v", ErrComposition, err)
	}

	subtitlePath := ""
	if req.SubtitleSRT != "" {
		subtitlePath = filepath.Join(tempDir, "subtitles.srt")
		if err := c.writeFile(subtitlePath, []byte(req.SubtitleSRT), 0o644); err != nil {
			return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: failed to write subtitles: %v", ErrComposition, err)
		}
	}

	outPath := filepath.Join(tempDir, "out.mp4")
	args := buildFFmpegArgs(concatPath, audioPath, subtitlePath, outPath, req)

	log.Printf("🎬 Composing video: %d scenes, %.1fs narration, subtitles=%v",
		len(req.Images), req.Audio.Duration, subtitlePath != "")

	result, runErr := c.runner.Run(ctx, c.ffmpegPath, args...)
	if runErr != nil {
		return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: ffmpeg failed (exit=%d): %s",
			ErrComposition, result.ExitCode, tail(result.Stderr, 400))
	}

	data, err := c.readFile(outPath)
	if err != nil {
		return model.VideoArtifact{}, Metrics{}, fmt.Errorf("%w: ffmpeg completed but output is missing: %v", ErrComposition, err)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	total := totalDuration(req.Spans)
	metrics := Metrics{
		WallClockSeconds: time.Since(start).Seconds(),
		PeakMemoryMB:     float64(mem.HeapAlloc) / (1024 * 1024),
		EstimatedCost:    total*costPerSecond + float64(len(req.Images))*costPerImage,
	}

	return model.VideoArtifact{Data: data, MimeType: "video/mp4"}, metrics, nil
}

// buildConcatScript renders the ffconcat script holding each still for its
// span. The final still is listed twice per the concat demuxer convention.
func buildConcatScript(files []string, spans []model.TimeSpan) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for i, f := range files {
		fmt.Fprintf(&b, "file '%s'\n", f)
		fmt.Fprintf(&b, "duration %.3f\n", spans[i].Seconds())
	}
	fmt.Fprintf(&b, "file '%s'\n", files[len(files)-1])
	return b.String()
}

// buildFFmpegArgs builds the composition CLI invocation.
func buildFFmpegArgs(concatPath, audioPath, subtitlePath, outPath string, req Request) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", concatPath,
		"-i", audioPath,
	}

	if req.BackgroundMusic {
		// Low sine pad under the narration; the original reserved a music
		// generator slot it never filled, so a synthetic pad stands in.
		args = append(args,
			"-f", "lavfi",
			"-i", "sine=frequency=196:sample_rate=22050",
			"-filter_complex", "[2:a]volume=0.3[bg];[1:a][bg]amix=inputs=2:duration=first[aout]",
			"-map", "0:v",
			"-map", "[aout]",
		)
	} else {
		args = append(args,
			"-map", "0:v",
			"-map", "1:a",
		)
	}

	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", req.Width, req.Height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", req.Width, req.Height),
	}
	if subtitlePath != "" {
		filters = append(filters, fmt.Sprintf("subtitles='%s'", subtitlePath))
	}

	args = append(args,
		"-vf", strings.Join(filters, ","),
		"-r", fmt.Sprintf("%d", req.FPS),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		outPath,
	)
	return args
}

func imageExt(mimeType string) string {
	switch mimeType {
	case "image/webp":
		return ".webp"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".png"
	}
}

func totalDuration(spans []model.TimeSpan) float64 {
	total := 0.0
	for _, s := range spans {
		total += s.Seconds()
	}
	return total
}

// tail returns the last max bytes of s for error messages.
func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}

// NewFFmpegComposerForTests constructs a composer with injectable deps.
func NewFFmpegComposerForTests(
	ffmpegPath string,
	runner commandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	writeFile func(name string, data []byte, perm os.FileMode) error,
	readFile func(name string) ([]byte, error),
) *FFmpegComposer {
	return &FFmpegComposer{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		mkdirTemp:  mkdirTemp,
		removeAll:  removeAll,
		writeFile:  writeFile,
		readFile:   readFile,
	}
}
