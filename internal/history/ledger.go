package history

import (
	"errors"
	"sync"
	"time"

	"camera-angle-studio/internal/camera"
	"camera-angle-studio/internal/gemini"
	"camera-angle-studio/internal/settings"
)

const DefaultCapacity = 20

var ErrNotFound = errors.New("result not found")

// Result is one successful generation together with the camera and settings
// snapshot that produced it.
type Result struct {
	ID              string                  `json:"id"`
	ImageURL        string                  `json:"imageUrl,omitempty"`
	Prompt          string                  `json:"prompt"`
	ModelResponse   string                  `json:"modelResponse,omitempty"`
	Timestamp       time.Time               `json:"timestamp"`
	Settings        settings.Settings       `json:"settings"`
	Camera          camera.State            `json:"camera"`
	GroundingChunks []gemini.GroundingChunk `json:"groundingChunks,omitempty"`
	Model           string                  `json:"model,omitempty"`
}

// Degraded reports a text-only result.
func (r Result) Degraded() bool {
	return r.ImageURL == ""
}

type Options struct {
	Capacity int
}

// Ledger keeps the most recent results, newest first.
type Ledger struct {
	mu       sync.Mutex
	items    []Result
	capacity int
}

func NewLedger(opts Options) *Ledger {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{capacity: capacity}
}

func (l *Ledger) Record(r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = append([]Result{r}, l.items...)
	if len(l.items) > l.capacity {
		l.items = l.items[:l.capacity]
	}
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

// Select looks a result up without changing the ledger.
func (l *Ledger) Select(id string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.items {
		if r.ID == id {
			return r, nil
		}
	}
	return Result{}, ErrNotFound
}

func (l *Ledger) List() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Result, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) Latest() (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		return Result{}, false
	}
	return l.items[0], true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *Ledger) Capacity() int {
	return l.capacity
}
