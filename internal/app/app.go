// Package app wires configuration into the pieces both binaries share.
package app

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"camera-angle-studio/internal/config"
	"camera-angle-studio/internal/gemini"
	"camera-angle-studio/internal/metrics"
	"camera-angle-studio/internal/studio"
)

func NewLogger(cfg config.Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// Keys prefers the inline key and falls back to the key file, which is
// re-read on each request so a rotated key applies without a restart.
func Keys(cfg config.Config) gemini.KeySource {
	var keys gemini.FirstKey
	if cfg.GeminiAPIKey != "" {
		keys = append(keys, gemini.StaticKey(cfg.GeminiAPIKey))
	}
	if cfg.GeminiAPIKeyFile != "" {
		keys = append(keys, gemini.KeyFile(cfg.GeminiAPIKeyFile))
	}
	return keys
}

// Limiter spaces model calls evenly across all sessions. A non-positive
// rate disables pacing.
func Limiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func NewGenerator(cfg config.Config, keys gemini.KeySource, httpClient *http.Client, logger *slog.Logger) *gemini.Generator {
	return gemini.New(gemini.Options{
		Keys: keys,
		Models: gemini.Models{
			Flash: cfg.ModelFlash,
			Pro:   cfg.ModelPro,
		},
		Retry: gemini.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BackoffBase,
		},
		Limiter:    Limiter(cfg.RatePerMinute),
		HTTPClient: httpClient,
		Logger:     logger,
	})
}

func NewRegistry(cfg config.Config, gen studio.Generator, creds studio.CredentialHost, m *metrics.Metrics, logger *slog.Logger) *studio.Registry {
	return studio.NewRegistry(cfg.SessionTTL, studio.Options{
		Generator:       gen,
		Credentials:     creds,
		Metrics:         m,
		Logger:          logger,
		HistoryCapacity: cfg.HistoryCapacity,
		UndoLimit:       cfg.UndoLimit,
		CredentialGrace: cfg.CredentialGrace,
	})
}
