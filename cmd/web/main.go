package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"camera-angle-studio/internal/api"
	"camera-angle-studio/internal/app"
	"camera-angle-studio/internal/config"
	"camera-angle-studio/internal/httpclient"
	"camera-angle-studio/internal/metrics"
	"camera-angle-studio/internal/studio"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := app.NewLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		Logger:     logger,
	})

	keys := app.Keys(cfg)
	gen := app.NewGenerator(cfg, keys, httpClient, logger)
	m := metrics.New("camera_studio", prometheus.DefaultRegisterer)

	creds := &studio.KeyCredentials{
		Keys: keys,
		Notify: func(context.Context) {
			logger.Warn("gemini API key missing or rejected; update GEMINI_API_KEY_FILE")
		},
	}

	handler := api.New(api.Options{
		Studios: app.NewRegistry(cfg, gen, creds, m, logger),
		Metrics: m,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           http.TimeoutHandler(handler, cfg.RequestTimeout, `{"error":"request timed out"}`),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("web started", "addr", cfg.WebAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
