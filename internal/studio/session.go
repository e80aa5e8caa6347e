package studio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"camera-angle-studio/internal/camera"
	"camera-angle-studio/internal/gemini"
	"camera-angle-studio/internal/history"
	"camera-angle-studio/internal/metrics"
	"camera-angle-studio/internal/prompt"
	"camera-angle-studio/internal/settings"
	"camera-angle-studio/internal/upload"
)

var (
	ErrGenerationInFlight = errors.New("a generation is already running for this session")
	ErrNoSourceImage      = errors.New("upload a source image first")
)

// Generator is the model boundary a session drives.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (*gemini.Outcome, error)
}

type Options struct {
	Generator   Generator
	Credentials CredentialHost
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	HistoryCapacity int
	UndoLimit       int

	// CredentialGrace polls HasCredential for up to this long after asking
	// the host to select a key. Zero proceeds immediately.
	CredentialGrace time.Duration

	Now func() time.Time
}

// Session is one user's studio: camera rig, settings, source photo and the
// results produced so far.
type Session struct {
	id string

	camera *camera.Store
	ledger *history.Ledger

	mu       sync.Mutex
	settings settings.Settings
	source   upload.Image

	inflight *semaphore.Weighted
	busy     atomic.Bool

	gen     Generator
	creds   CredentialHost
	metrics *metrics.Metrics
	logger  *slog.Logger
	grace   time.Duration
	now     func() time.Time
}

func NewSession(id string, opts Options) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	creds := opts.Credentials
	if creds == nil {
		creds = AlwaysReady{}
	}

	return &Session{
		id:       id,
		camera:   camera.NewStore(camera.Options{HistoryLimit: opts.UndoLimit}),
		ledger:   history.NewLedger(history.Options{Capacity: opts.HistoryCapacity}),
		settings: settings.Default(),
		inflight: semaphore.NewWeighted(1),
		gen:      opts.Generator,
		creds:    creds,
		metrics:  opts.Metrics,
		logger:   logger.With("session", id),
		grace:    opts.CredentialGrace,
		now:      now,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) SetSource(img upload.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = img
}

func (s *Session) Source() (upload.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source, !s.source.IsZero()
}

func (s *Session) Camera() camera.State { return s.camera.Current() }

func (s *Session) UpdateCamera(p camera.Patch) camera.State { return s.camera.Update(p) }

func (s *Session) UpdateCameraFunc(fn func(camera.State) camera.Patch) camera.State {
	return s.camera.UpdateFunc(fn)
}

func (s *Session) ResetCamera() camera.State { return s.camera.Reset() }

func (s *Session) ApplyPreset(key string) (camera.State, bool) { return s.camera.ApplyPreset(key) }

func (s *Session) Undo() (camera.State, bool) { return s.camera.Undo() }

func (s *Session) Redo() (camera.State, bool) { return s.camera.Redo() }

func (s *Session) CanUndo() bool { return s.camera.CanUndo() }

func (s *Session) CanRedo() bool { return s.camera.CanRedo() }

func (s *Session) Settings() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Session) UpdateSettings(p settings.Patch) settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = s.settings.Apply(p)
	return s.settings
}

// Prompt compiles the instruction for the current camera and settings.
func (s *Session) Prompt() string {
	return prompt.Compile(s.Camera(), s.Settings())
}

// Busy reports whether a generation is pending.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Generate compiles the current rig, sends it with the source photo and
// records the result. A call made while another is pending returns
// ErrGenerationInFlight without touching any state.
func (s *Session) Generate(ctx context.Context, onWait func(seconds int)) (history.Result, error) {
	if !s.inflight.TryAcquire(1) {
		return history.Result{}, ErrGenerationInFlight
	}
	s.busy.Store(true)
	defer func() {
		s.busy.Store(false)
		s.inflight.Release(1)
	}()

	s.mu.Lock()
	src := s.source
	cfg := s.settings
	s.mu.Unlock()

	if src.IsZero() {
		return history.Result{}, ErrNoSourceImage
	}
	if s.gen == nil {
		return history.Result{}, &gemini.Error{Kind: gemini.KindSystem, Message: "no generator configured"}
	}

	cam := s.camera.Current()
	compiled := prompt.Compile(cam, cfg)

	s.ensureCredential(ctx)

	started := s.now()
	s.metrics.GenerationStarted()

	out, err := s.gen.Generate(ctx, gemini.Request{
		Source:   src,
		Prompt:   compiled,
		Settings: cfg,
		OnWait: func(seconds int) {
			s.metrics.RecordRetry()
			if onWait != nil {
				onWait(seconds)
			}
		},
	})
	if err != nil {
		kind := gemini.KindOf(err)
		s.metrics.GenerationFinished(string(kind), string(cfg.Quality), s.now().Sub(started))
		s.logger.Warn("generation failed", "kind", kind, "err", err)
		if kind == gemini.KindAuth {
			s.creds.RequestCredentialSelection(ctx)
		}
		return history.Result{}, err
	}

	outcome := "ok"
	if out.Degraded() {
		outcome = "degraded"
	}
	s.metrics.GenerationFinished(outcome, string(cfg.Quality), s.now().Sub(started))

	res := history.Result{
		ID:              uuid.NewString(),
		ImageURL:        out.ImageURL,
		Prompt:          compiled,
		ModelResponse:   out.ModelResponse,
		Timestamp:       s.now(),
		Settings:        cfg,
		Camera:          cam,
		GroundingChunks: out.GroundingChunks,
		Model:           out.Model,
	}
	s.ledger.Record(res)
	s.logger.Info("generation recorded", "result", res.ID, "degraded", res.Degraded(), "attempts", out.Attempts)
	return res, nil
}

func (s *Session) History() []history.Result { return s.ledger.List() }

func (s *Session) Result(id string) (history.Result, error) { return s.ledger.Select(id) }

// SelectResult restores the camera and settings a past result was made with.
// The ledger itself is unchanged.
func (s *Session) SelectResult(id string) (history.Result, error) {
	res, err := s.ledger.Select(id)
	if err != nil {
		return history.Result{}, err
	}
	s.camera.Restore(res.Camera)

	s.mu.Lock()
	s.settings = res.Settings.Normalize()
	s.mu.Unlock()
	return res, nil
}

func (s *Session) ClearHistory() { s.ledger.Clear() }

// ensureCredential asks the host for a key when none is selected and then
// proceeds whether or not one arrived.
func (s *Session) ensureCredential(ctx context.Context) {
	if s.creds.HasCredential(ctx) {
		return
	}
	s.logger.Info("no credential selected, requesting selection")
	s.creds.RequestCredentialSelection(ctx)

	if s.grace <= 0 {
		return
	}
	deadline := time.NewTimer(s.grace)
	defer deadline.Stop()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
			if s.creds.HasCredential(ctx) {
				return
			}
		}
	}
}
