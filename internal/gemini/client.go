package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ContentGenerator is the slice of the genai client the orchestrator calls.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ClientFactory builds a model client for one attempt.
type ClientFactory func(ctx context.Context, apiKey string) (ContentGenerator, error)

// NewClientFactory returns a factory creating a fresh Gemini API client per
// call over httpClient.
func NewClientFactory(httpClient *http.Client) ClientFactory {
	return func(ctx context.Context, apiKey string) (ContentGenerator, error) {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		return client.Models, nil
	}
}

type Options struct {
	Keys    KeySource
	Factory ClientFactory
	Models  Models
	Retry   RetryPolicy

	// Limiter paces attempts across all sessions. Nil means unlimited.
	Limiter *rate.Limiter
	Sleep   SleepFunc

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Generator turns a source photo and a compiled instruction into a new image.
type Generator struct {
	keys    KeySource
	factory ClientFactory
	models  Models
	retry   RetryPolicy
	limiter *rate.Limiter
	sleep   SleepFunc
	logger  *slog.Logger
}

func New(opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	factory := opts.Factory
	if factory == nil {
		factory = NewClientFactory(opts.HTTPClient)
	}

	models := opts.Models
	if strings.TrimSpace(models.Flash) == "" {
		models.Flash = DefaultModelFlash
	}
	if strings.TrimSpace(models.Pro) == "" {
		models.Pro = DefaultModelPro
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	keys := opts.Keys
	if keys == nil {
		keys = StaticKey("")
	}

	return &Generator{
		keys:    keys,
		factory: factory,
		models:  models,
		retry:   opts.Retry.withDefaults(),
		limiter: opts.Limiter,
		sleep:   sleep,
		logger:  logger,
	}
}

func (g *Generator) Models() Models {
	return g.models
}

// Generate runs the request, retrying quota failures with exponential
// back-off. Every returned error is a *Error.
func (g *Generator) Generate(ctx context.Context, req Request) (*Outcome, error) {
	if err := validate(req); err != nil {
		return nil, &Error{Kind: KindSystem, Message: err.Error(), Err: err}
	}

	s := req.Settings.Normalize()
	model := g.models.For(s.Quality)

	contents, err := buildContents(req, s)
	if err != nil {
		return nil, &Error{Kind: KindSystem, Message: "source image could not be decoded", Err: err}
	}
	config, grounded := buildConfig(s)

	var lastErr *Error
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		start := time.Now()
		out, err := g.attempt(ctx, model, contents, config, grounded)
		if err == nil {
			out.Model = model
			out.Attempts = attempt
			g.logger.Info("generation succeeded",
				"model", model,
				"attempt", attempt,
				"degraded", out.Degraded(),
				"grounding_chunks", len(out.GroundingChunks),
				"duration", time.Since(start),
			)
			return out, nil
		}

		lastErr = Classify(err)
		g.logger.Warn("generation attempt failed",
			"model", model,
			"attempt", attempt,
			"kind", lastErr.Kind,
			"err", err,
		)

		if lastErr.Kind != KindQuota || attempt == g.retry.MaxAttempts {
			break
		}

		wait := g.retry.Delay(attempt)
		if req.OnWait != nil {
			req.OnWait(wholeSeconds(wait))
		}
		g.logger.Info("backing off", "wait", wait, "next_attempt", attempt+1)
		if err := g.sleep(ctx, wait); err != nil {
			return nil, &Error{Kind: KindSystem, Message: "generation cancelled", Err: err}
		}
	}

	return nil, lastErr
}

func (g *Generator) attempt(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig, grounded bool) (*Outcome, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindSystem, Message: "generation cancelled", Err: err}
		}
	}

	apiKey, err := g.keys.APIKey(ctx)
	if err != nil {
		return nil, &Error{Kind: KindAuth, Message: "no API key is selected", Err: err}
	}

	client, err := g.factory(ctx, apiKey)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindSystem, Message: "generation cancelled", Err: err}
		}
		return nil, err
	}

	resp, err := client.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp, grounded)
}
