package httptts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"storyreel-server/modules/common/config"
	"storyreel-server/modules/common/model"
	"storyreel-server/modules/common/utils"
	"storyreel-server/modules/narration"
)

// Backend calls an external text-to-speech HTTP service. The service
// accepts a JSON request and answers with raw audio bytes.
type Backend struct {
	endpoint string
	client   *http.Client
}

type speechRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Voice    string  `json:"voice,omitempty"`
	Speed    float64 `json:"speed"`
	Emotion  string  `json:"emotion"`
}

// New returns a backend, or nil when no endpoint is configured so every
// narration degrades to a silent track.
func New() *Backend {
	cfg := config.GetConfig()
	if cfg.TTSEndpoint == "" {
		log.Println("⚠️ Speech backend disabled: no TTS endpoint configured")
		return nil
	}

	log.Printf("✅ Speech backend initialized (endpoint: %s)", cfg.TTSEndpoint)
	return &Backend{
		endpoint: cfg.TTSEndpoint,
		client:   &http.Client{Timeout: 180 * time.Second},
	}
}

// SynthesizeSpeech posts the narration text and returns the audio track.
func (b *Backend) SynthesizeSpeech(ctx context.Context, text, language string, voice narration.VoiceParams) (model.AudioArtifact, error) {
	payload, err := json.Marshal(speechRequest{
		Text:     text,
		Language: language,
		Voice:    voice.Voice,
		Speed:    voice.Speed,
		Emotion:  voice.Emotion,
	})
	if err != nil {
		return model.AudioArtifact{}, fmt.Errorf("failed to encode speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.AudioArtifact{}, fmt.Errorf("failed to build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return model.AudioArtifact{}, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.AudioArtifact{}, fmt.Errorf("speech service returned status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.AudioArtifact{}, fmt.Errorf("failed to read speech response: %w", err)
	}
	if len(audio) == 0 {
		return model.AudioArtifact{}, fmt.Errorf("speech service returned empty body")
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream") {
		mimeType = "audio/wav"
	}

	artifact := model.AudioArtifact{
		Data:     audio,
		MimeType: mimeType,
	}
	if strings.Contains(mimeType, "wav") {
		if d, err := utils.WAVDuration(audio); err == nil {
			artifact.Duration = d
		}
	}

	log.Printf("🎙️ Received narration audio: %d bytes (%.1fs)", len(audio), artifact.Duration)
	return artifact, nil
}
