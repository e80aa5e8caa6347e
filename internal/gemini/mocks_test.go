package gemini

import (
	"context"
	"sync"
	"time"

	"google.golang.org/genai"

	"camera-angle-studio/internal/settings"
	"camera-angle-studio/internal/upload"
)

type generateCall struct {
	apiKey   string
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

// fakeModels replays scripted responses in order; the last one repeats.
type fakeModels struct {
	mu      sync.Mutex
	apiKey  string
	calls   []generateCall
	replies []fakeReply
}

type fakeReply struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) factory(_ context.Context, apiKey string) (ContentGenerator, error) {
	f.mu.Lock()
	f.apiKey = apiKey
	f.mu.Unlock()
	return f, nil
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, generateCall{apiKey: f.apiKey, model: model, contents: contents, config: config})
	idx := len(f.calls) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	r := f.replies[idx]
	return r.resp, r.err
}

func (f *fakeModels) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeModels) lastCall() generateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type recordingSleep struct {
	mu     sync.Mutex
	waited []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waited = append(r.waited, d)
	r.mu.Unlock()
	return ctx.Err()
}

func imageResponse(text string) *genai.GenerateContentResponse {
	parts := []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("fake-png")}}}
	if text != "" {
		parts = append(parts, &genai.Part{Text: text})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: genai.RoleModel, Parts: parts},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func quotaError() error {
	return genai.APIError{Code: 429, Message: "Resource has been exhausted (e.g. check quota).", Status: "RESOURCE_EXHAUSTED"}
}

func testSource() upload.Image {
	img, err := upload.FromBytes("src.png", "image/png", []byte("not-really-a-png"))
	if err != nil {
		panic(err)
	}
	return img
}

func newTestGenerator(f *fakeModels, s *recordingSleep) *Generator {
	return New(Options{
		Keys:    StaticKey("test-key"),
		Factory: f.factory,
		Sleep:   s.sleep,
	})
}

func flashRequest(prompt string) Request {
	return Request{Source: testSource(), Prompt: prompt, Settings: settings.Default()}
}
