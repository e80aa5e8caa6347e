package studio

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"camera-angle-studio/internal/gemini"
	"camera-angle-studio/internal/prompt"
)

type fakeModels struct {
	mu     sync.Mutex
	model  string
	config *genai.GenerateContentConfig
	resp   *genai.GenerateContentResponse
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = model
	f.config = config
	return f.resp, nil
}

func TestBusy_DoesNotRejectSequentialGenerate(t *testing.T) {
	s := newTestSession(t, &fakeGenerator{}, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = s.Busy()
				}
			}
		}()
	}

	rejected := 0
	for i := 0; i < 2000; i++ {
		if _, err := s.Generate(context.Background(), nil); err != nil {
			rejected++
		}
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, rejected)
	assert.False(t, s.Busy())
}

func TestGenerate_FlashEndToEnd(t *testing.T) {
	models := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("new-angle")}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
	}}
	gen := gemini.New(gemini.Options{
		Keys: gemini.StaticKey("test-key"),
		Factory: func(context.Context, string) (gemini.ContentGenerator, error) {
			return models, nil
		},
	})
	s := newTestSession(t, gen, nil)

	assert.Equal(t, prompt.NoCameraMovement, s.Prompt())

	res, err := s.Generate(context.Background(), nil)
	require.NoError(t, err)

	assert.Regexp(t, `^data:image/[a-z]+;base64,[A-Za-z0-9+/]+=*$`, res.ImageURL)
	assert.Equal(t, "data:image/png;base64,bmV3LWFuZ2xl", res.ImageURL)
	assert.Nil(t, res.GroundingChunks)
	assert.Equal(t, prompt.NoCameraMovement, res.Prompt)
	assert.Equal(t, gemini.DefaultModelFlash, models.model)
	assert.Empty(t, models.config.Tools)
}
