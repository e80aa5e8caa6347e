package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNoAPIKey = errors.New("no API key configured")

// KeySource yields the API key at call time, so a key selected or rotated
// mid-session applies to the next request.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// KeyFile re-reads the key from disk on every call.
type KeyFile string

func (f KeyFile) APIKey(context.Context) (string, error) {
	raw, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// FirstKey tries each source in order and returns the first key found.
type FirstKey []KeySource

func (s FirstKey) APIKey(ctx context.Context) (string, error) {
	var errs []error
	for _, src := range s {
		key, err := src.APIKey(ctx)
		if err == nil {
			return key, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNoAPIKey
	}
	return "", errors.Join(errs...)
}
