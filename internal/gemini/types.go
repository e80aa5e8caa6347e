package gemini

import (
	"camera-angle-studio/internal/settings"
	"camera-angle-studio/internal/upload"
)

const (
	DefaultModelFlash = "gemini-2.5-flash-image"
	DefaultModelPro   = "gemini-3-pro-image-preview"
)

// Models names the model used for each quality tier.
type Models struct {
	Flash string
	Pro   string
}

func (m Models) For(q settings.Quality) string {
	if q == settings.QualityPro {
		return m.Pro
	}
	return m.Flash
}

// Request is one generation: the source photo plus the compiled camera
// instruction and the settings it runs under.
type Request struct {
	Source   upload.Image
	Prompt   string
	Settings settings.Settings

	// OnWait is told how many seconds the orchestrator sleeps before the
	// next quota retry.
	OnWait func(seconds int)
}

// Outcome is a successful generation. ImageURL is empty for a text-only
// (degraded) answer.
type Outcome struct {
	ImageURL        string
	ModelResponse   string
	GroundingChunks []GroundingChunk
	Model           string
	Attempts        int
}

func (o *Outcome) Degraded() bool {
	return o.ImageURL == ""
}

// GroundingChunk is one citation from web or maps grounding.
type GroundingChunk struct {
	Web  *GroundingSource `json:"web,omitempty"`
	Maps *GroundingSource `json:"maps,omitempty"`
}

type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

func (c GroundingChunk) URI() string {
	switch {
	case c.Web != nil:
		return c.Web.URI
	case c.Maps != nil:
		return c.Maps.URI
	default:
		return ""
	}
}
