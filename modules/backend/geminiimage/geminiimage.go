package geminiimage

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"storyreel-server/modules/common/config"
)

// Backend renders scene stills through the Gemini image models. Rate
// limits rotate through the configured API keys before giving up.
type Backend struct {
	apiKeys []string
	model   string
}

// New returns a backend, or nil when no API key is configured so the
// caller falls through to placeholder rendering.
func New() *Backend {
	cfg := config.GetConfig()
	if len(cfg.GeminiAPIKeys) == 0 {
		log.Println("⚠️ Gemini image backend disabled: no API keys configured")
		return nil
	}

	log.Printf("✅ Gemini image backend initialized (model: %s, keys: %d)", cfg.GeminiModel, len(cfg.GeminiAPIKeys))
	return &Backend{
		apiKeys: cfg.GeminiAPIKeys,
		model:   cfg.GeminiModel,
	}
}

// SynthesizeImage generates one still for the prompt.
func (b *Backend) SynthesizeImage(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				genai.NewPartFromText(prompt),
			},
		},
	}

	genConfig := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: aspectRatioFor(width, height),
		},
	}

	log.Printf("🎨 Calling Gemini API (model: %s) with prompt length: %d", b.model, len(prompt))

	result, err := b.generateWithRetry(ctx, contents, genConfig)
	if err != nil {
		return nil, err
	}

	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				log.Printf("✅ Received image from Gemini: %d bytes", len(part.InlineData.Data))
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, fmt.Errorf("no image data in response")
}

// generateWithRetry tries each API key up to three times on 429s. Other
// errors fail immediately.
func (b *Backend) generateWithRetry(
	ctx context.Context,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {

	const maxRetriesPerKey = 3
	var lastErr error

	for keyIndex, apiKey := range b.apiKeys {
		for attempt := 1; attempt <= maxRetriesPerKey; attempt++ {
			client, err := genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  apiKey,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				log.Printf("⚠️ Failed to create Gemini client with key #%d: %v", keyIndex+1, err)
				lastErr = err
				continue
			}

			result, err := client.Models.GenerateContent(ctx, b.model, contents, genConfig)
			if err == nil {
				return result, nil
			}
			lastErr = err

			if !isRateLimited(err) {
				return nil, err
			}

			log.Printf("⚠️ Key #%d hit rate limit (attempt %d/%d)", keyIndex+1, attempt, maxRetriesPerKey)
			if attempt < maxRetriesPerKey {
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
		log.Printf("⚠️ Key #%d exhausted, trying next key...", keyIndex+1)
	}

	return nil, fmt.Errorf("all %d API keys exhausted, last error: %w", len(b.apiKeys), lastErr)
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota")
}

// aspectRatioFor snaps the requested frame onto the ratios the API
// accepts.
func aspectRatioFor(width, height int) string {
	if width <= 0 || height <= 0 {
		return "16:9"
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio > 1.5:
		return "16:9"
	case ratio > 1.1:
		return "4:3"
	case ratio > 0.9:
		return "1:1"
	case ratio > 0.65:
		return "3:4"
	default:
		return "9:16"
	}
}
