package fallback

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/common/utils"
)

// domainColors keys the placeholder background to the request domain so a
// degraded segment is visually attributable in the final cut.
var domainColors = map[model.Domain]color.RGBA{
	model.DomainEducation:     {R: 0x2E, G: 0x6F, B: 0xA5, A: 0xFF}, // steel blue
	model.DomainHealth:        {R: 0x2E, G: 0x8B, B: 0x57, A: 0xFF}, // sea green
	model.DomainGovernance:    {R: 0x6B, G: 0x5B, B: 0x95, A: 0xFF}, // muted violet
	model.DomainEntertainment: {R: 0xC7, G: 0x4B, B: 0x50, A: 0xFF}, // warm red
	model.DomainNews:          {R: 0x3C, G: 0x3C, B: 0x3C, A: 0xFF}, // slate
	model.DomainCorporate:     {R: 0x1F, G: 0x4E, B: 0x5F, A: 0xFF}, // deep teal
}

// fallbackColor matches the original system's lightblue default.
var fallbackColor = color.RGBA{R: 0xAD, G: 0xD8, B: 0xE6, A: 0xFF}

// DomainColor returns the flat placeholder color for a domain.
func DomainColor(domain model.Domain) color.RGBA {
	if c, ok := domainColors[domain]; ok {
		return c
	}
	return fallbackColor
}

// PlaceholderScene builds the deterministic stand-in still for one segment:
// a flat domain-colored frame with overlay text naming the segment.
func PlaceholderScene(domain model.Domain, segmentIndex int, concept string, width, height int) (model.ImageArtifact, error) {
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: DomainColor(domain)}, image.Point{}, draw.Src)

	label := fmt.Sprintf("Scene %d", segmentIndex+1)
	if concept != "" {
		label = fmt.Sprintf("Scene %d - %s", segmentIndex+1, concept)
	}
	drawLabel(img, label, width/2, height/2)

	data, err := utils.EncodeWebP(img, 90)
	if err != nil {
		return model.ImageArtifact{}, fmt.Errorf("failed to encode placeholder: %w", err)
	}

	return model.ImageArtifact{
		Data:        data,
		MimeType:    "image/webp",
		Placeholder: true,
	}, nil
}

// SilentNarration builds the degraded audio track: a silent WAV whose
// length matches the estimated speech duration.
func SilentNarration(durationSeconds float64) model.AudioArtifact {
	if durationSeconds < 1 {
		durationSeconds = 1
	}
	return model.AudioArtifact{
		Data:     utils.BuildSilentWAV(durationSeconds),
		MimeType: "audio/wav",
		Duration: durationSeconds,
		Silent:   true,
	}
}

// drawLabel renders centered white text with the fixed 7x13 face.
func drawLabel(img *image.RGBA, label string, cx, cy int) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, label).Ceil()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot: fixed.P(
			cx-width/2,
			cy+face.Metrics().Ascent.Ceil()/2,
		),
	}
	d.DrawString(label)
}
