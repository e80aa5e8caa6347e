package gemini

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var safetyFinishReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonSPII:              true,
	genai.FinishReasonImageSafety:       true,
}

// parseResponse extracts the first image, the concatenated non-thought text
// and, when a grounding tool was attached, the de-duplicated citations.
func parseResponse(resp *genai.GenerateContentResponse, grounded bool) (*Outcome, error) {
	if resp == nil {
		return nil, &Error{Kind: KindSystem, Message: "the model returned no response"}
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return nil, &Error{
			Kind:    KindSafety,
			Message: "the request was blocked by safety filters",
			Err:     fmt.Errorf("prompt blocked: %s %s", fb.BlockReason, fb.BlockReasonMessage),
		}
	}
	if len(resp.Candidates) == 0 {
		return nil, &Error{Kind: KindSystem, Message: "the model returned no candidates"}
	}

	out := &Outcome{}
	var text strings.Builder
	var finish genai.FinishReason

	if cand := resp.Candidates[0]; cand != nil {
		finish = cand.FinishReason
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				if p == nil || p.Thought {
					continue
				}
				if p.InlineData != nil && len(p.InlineData.Data) > 0 && out.ImageURL == "" {
					mimeType := p.InlineData.MIMEType
					if mimeType == "" {
						mimeType = "image/png"
					}
					out.ImageURL = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(p.InlineData.Data)
				}
				if p.Text != "" {
					text.WriteString(p.Text)
				}
			}
		}
	}
	out.ModelResponse = strings.TrimSpace(text.String())

	if out.ImageURL == "" && safetyFinishReasons[finish] {
		return nil, &Error{
			Kind:    KindSafety,
			Message: "the image was blocked by safety filters",
			Err:     errors.New("finish reason " + string(finish)),
		}
	}
	if out.ImageURL == "" && out.ModelResponse == "" {
		return nil, &Error{Kind: KindSystem, Message: "the model returned neither an image nor text"}
	}

	if grounded {
		out.GroundingChunks = collectGrounding(resp)
	}
	return out, nil
}

func collectGrounding(resp *genai.GenerateContentResponse) []GroundingChunk {
	seen := make(map[string]bool)
	var chunks []GroundingChunk

	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, gc := range cand.GroundingMetadata.GroundingChunks {
			if gc == nil {
				continue
			}
			var chunk GroundingChunk
			switch {
			case gc.Web != nil && gc.Web.URI != "":
				chunk.Web = &GroundingSource{URI: gc.Web.URI, Title: gc.Web.Title}
			case gc.Maps != nil && gc.Maps.URI != "":
				chunk.Maps = &GroundingSource{URI: gc.Maps.URI, Title: gc.Maps.Title}
			default:
				continue
			}
			if seen[chunk.URI()] {
				continue
			}
			seen[chunk.URI()] = true
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
