package gemini

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"camera-angle-studio/internal/prompt"
	"camera-angle-studio/internal/settings"
)

func TestGenerate_QuotaRetriesThenSucceeds(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{
		{err: quotaError()},
		{err: quotaError()},
		{resp: imageResponse("done")},
	}}
	s := &recordingSleep{}
	g := newTestGenerator(f, s)

	var waits []int
	req := flashRequest("ORBIT: test")
	req.OnWait = func(sec int) { waits = append(waits, sec) }

	out, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, f.callCount())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []int{2, 4}, waits)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, s.waited)
	assert.Equal(t, "data:image/png;base64,ZmFrZS1wbmc=", out.ImageURL)
	assert.Equal(t, "done", out.ModelResponse)
}

func TestGenerate_QuotaExhaustionSurfacesLastError(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{err: quotaError()}}}
	s := &recordingSleep{}
	g := newTestGenerator(f, s)

	_, err := g.Generate(context.Background(), flashRequest("ORBIT: test"))
	require.Error(t, err)

	assert.Equal(t, KindQuota, KindOf(err))
	assert.Equal(t, DefaultMaxAttempts, f.callCount())
	assert.Len(t, s.waited, DefaultMaxAttempts-1)

	var apiErr genai.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 429, apiErr.Code)
}

func TestGenerate_NonQuotaDoesNotRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"auth", genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key.", Status: "INVALID_ARGUMENT"}, KindAuth},
		{"missing entity", errors.New("Requested entity was not found."), KindAuth},
		{"system", genai.APIError{Code: 500, Message: "internal", Status: "INTERNAL"}, KindSystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeModels{replies: []fakeReply{{err: tt.err}}}
			s := &recordingSleep{}
			g := newTestGenerator(f, s)

			_, err := g.Generate(context.Background(), flashRequest("ORBIT: test"))
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, 1, f.callCount())
			assert.Empty(t, s.waited)
		})
	}
}

func TestGenerate_Safety(t *testing.T) {
	t.Run("blocked prompt", func(t *testing.T) {
		f := &fakeModels{replies: []fakeReply{{resp: &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}}}}
		_, err := newTestGenerator(f, &recordingSleep{}).Generate(context.Background(), flashRequest("ORBIT: test"))
		assert.Equal(t, KindSafety, KindOf(err))
	})

	t.Run("safety finish reason", func(t *testing.T) {
		f := &fakeModels{replies: []fakeReply{{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonImageSafety}},
		}}}}
		_, err := newTestGenerator(f, &recordingSleep{}).Generate(context.Background(), flashRequest("ORBIT: test"))
		assert.Equal(t, KindSafety, KindOf(err))
	})
}

func TestGenerate_EmptyResponseIsSystem(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}, FinishReason: genai.FinishReasonStop}},
	}}}}
	_, err := newTestGenerator(f, &recordingSleep{}).Generate(context.Background(), flashRequest("ORBIT: test"))
	assert.Equal(t, KindSystem, KindOf(err))
	assert.Equal(t, 1, f.callCount())
}

func TestGenerate_TextOnlyIsDegradedSuccess(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{resp: textResponse("The subject is a red chair.")}}}
	out, err := newTestGenerator(f, &recordingSleep{}).Generate(context.Background(), flashRequest("ORBIT: test"))
	require.NoError(t, err)
	assert.True(t, out.Degraded())
	assert.Equal(t, "The subject is a red chair.", out.ModelResponse)
}

func TestGenerate_ThoughtsAreSkipped(t *testing.T) {
	resp := imageResponse("final")
	resp.Candidates[0].Content.Parts = append([]*genai.Part{{Text: "thinking...", Thought: true}}, resp.Candidates[0].Content.Parts...)
	f := &fakeModels{replies: []fakeReply{{resp: resp}}}

	out, err := newTestGenerator(f, &recordingSleep{}).Generate(context.Background(), flashRequest("ORBIT: test"))
	require.NoError(t, err)
	assert.Equal(t, "final", out.ModelResponse)
}

func TestGenerate_FlashRequestShape(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{resp: imageResponse("")}}}
	g := newTestGenerator(f, &recordingSleep{})

	req := flashRequest(prompt.NoCameraMovement)
	req.Settings.Seed = 42
	out, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	call := f.lastCall()
	assert.Equal(t, "test-key", call.apiKey)
	assert.Equal(t, DefaultModelFlash, call.model)
	assert.Equal(t, DefaultModelFlash, out.Model)

	require.Len(t, call.contents, 1)
	parts := call.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData, "image part comes first")
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Contains(t, parts[1].Text, prompt.NoCameraMovement)
	assert.Contains(t, parts[1].Text, "Seed: 42")

	cfg := call.config
	assert.Empty(t, cfg.Tools)
	assert.Nil(t, cfg.ToolConfig)
	assert.Empty(t, cfg.ImageConfig.ImageSize)
	assert.Equal(t, "1:1", cfg.ImageConfig.AspectRatio)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int32(42), *cfg.Seed)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Contains(t, cfg.SystemInstruction.Parts[0].Text, "IDENTITY LOCK")
	assert.Empty(t, out.GroundingChunks)
}

func TestGenerate_ProRequestShape(t *testing.T) {
	resp := imageResponse("")
	resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
		{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A"}},
		{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A again"}},
		{Web: &genai.GroundingChunkWeb{URI: "https://b.example", Title: "B"}},
	}}
	f := &fakeModels{replies: []fakeReply{{resp: resp}}}
	g := newTestGenerator(f, &recordingSleep{})

	req := flashRequest("ORBIT: test")
	req.Settings = settings.Settings{Quality: settings.QualityPro, ImageSize: settings.ImageSize4K}
	out, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	call := f.lastCall()
	assert.Equal(t, DefaultModelPro, call.model)
	assert.Equal(t, settings.ImageSize4K, call.config.ImageConfig.ImageSize)
	require.Len(t, call.config.Tools, 1)
	assert.NotNil(t, call.config.Tools[0].GoogleSearch)

	require.Len(t, out.GroundingChunks, 2)
	assert.Equal(t, "https://a.example", out.GroundingChunks[0].URI())
	assert.Equal(t, "A", out.GroundingChunks[0].Web.Title)
	assert.Equal(t, "https://b.example", out.GroundingChunks[1].URI())
}

func TestGenerate_FlashWithLocationUsesMaps(t *testing.T) {
	resp := imageResponse("")
	resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
		{Maps: &genai.GroundingChunkMaps{URI: "https://maps.example/p/1", Title: "Old Town"}},
	}}
	f := &fakeModels{replies: []fakeReply{{resp: resp}}}

	req := flashRequest("ORBIT: test")
	req.Settings.Location = &settings.LatLng{Latitude: 41.31, Longitude: 69.28}
	out, err := newTestGenerator(f, &recordingSleep{}).Generate(context.Background(), req)
	require.NoError(t, err)

	cfg := f.lastCall().config
	require.Len(t, cfg.Tools, 1)
	assert.NotNil(t, cfg.Tools[0].GoogleMaps)
	require.NotNil(t, cfg.ToolConfig)
	assert.InDelta(t, 41.31, *cfg.ToolConfig.RetrievalConfig.LatLng.Latitude, 1e-9)

	require.Len(t, out.GroundingChunks, 1)
	assert.NotNil(t, out.GroundingChunks[0].Maps)
}

func TestGenerate_GroundingIgnoredWithoutTool(t *testing.T) {
	resp := imageResponse("")
	resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
		{Web: &genai.GroundingChunkWeb{URI: "https://a.example"}},
	}}
	f := &fakeModels{replies: []fakeReply{{resp: resp}}}

	out, err := newTestGenerator(f, &recordingSleep{}).Generate(context.Background(), flashRequest("ORBIT: test"))
	require.NoError(t, err)
	assert.Empty(t, out.GroundingChunks)
}

func TestGenerate_Preconditions(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{resp: imageResponse("")}}}
	g := newTestGenerator(f, &recordingSleep{})

	_, err := g.Generate(context.Background(), Request{Prompt: "ORBIT: test"})
	assert.Equal(t, KindSystem, KindOf(err))

	_, err = g.Generate(context.Background(), flashRequest("  "))
	assert.Equal(t, KindSystem, KindOf(err))
	assert.Zero(t, f.callCount())
}

func TestGenerate_MissingKeyIsAuth(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{resp: imageResponse("")}}}
	g := New(Options{Factory: f.factory, Sleep: (&recordingSleep{}).sleep})

	_, err := g.Generate(context.Background(), flashRequest("ORBIT: test"))
	assert.Equal(t, KindAuth, KindOf(err))
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Zero(t, f.callCount())
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{err: quotaError()}}}
	s := &recordingSleep{}
	g := newTestGenerator(f, s)

	ctx, cancel := context.WithCancel(context.Background())
	req := flashRequest("ORBIT: test")
	req.OnWait = func(int) { cancel() }

	_, err := g.Generate(ctx, req)
	assert.Equal(t, KindSystem, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.callCount())
}

func TestKeyFile_IsReadPerCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))

	src := KeyFile(path)
	key, err := src.APIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", key)

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o600))
	key, err = src.APIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", key)

	key, err = FirstKey{StaticKey(""), src}.APIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", key)
}
