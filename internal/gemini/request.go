package gemini

import (
	"errors"
	"strings"

	"google.golang.org/genai"

	"camera-angle-studio/internal/prompt"
	"camera-angle-studio/internal/settings"
)

const aspectRatio = "1:1"

func validate(req Request) error {
	if req.Source.IsZero() || strings.TrimSpace(req.Source.MIMEType) == "" || req.Source.Payload() == "" {
		return errors.New("source image is missing")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return errors.New("prompt is empty")
	}
	return nil
}

// buildContents puts the source image first and the augmented instruction
// second, in a single user turn.
func buildContents(req Request, s settings.Settings) ([]*genai.Content, error) {
	data, err := req.Source.Bytes()
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, req.Source.MIMEType),
		genai.NewPartFromText(prompt.Augment(req.Prompt, s)),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

// buildConfig returns the generation config and whether a grounding tool
// was attached.
func buildConfig(s settings.Settings) (*genai.GenerateContentConfig, bool) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(prompt.SystemInstruction, genai.RoleUser),
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: aspectRatio},
		Seed:               genai.Ptr(int32(s.Seed)),
	}

	if s.IsPro() {
		cfg.ImageConfig.ImageSize = s.ImageSize
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
		return cfg, true
	}

	if s.Location != nil {
		cfg.Tools = []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}}
		cfg.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{
					Latitude:  genai.Ptr(s.Location.Latitude),
					Longitude: genai.Ptr(s.Location.Longitude),
				},
			},
		}
		return cfg, true
	}

	return cfg, false
}
