// Command bedwatch runs the bedside monitoring panel: an MQTT subscriber
// that decrypts sensor readings into a shared store, and an HTTP server that
// renders the freshest value of each reading.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/hospitech/bedwatch/internal/aescbc"
	"github.com/hospitech/bedwatch/internal/log"
	"github.com/hospitech/bedwatch/internal/panel"
	"github.com/hospitech/bedwatch/internal/subscriber"
	"github.com/hospitech/bedwatch/internal/web"
)

// Key and IV shared with the deployed sensor firmware.
const (
	defaultKey = "SEGURANCA1234567"
	defaultIV  = "INICIALIV1234567"

	defaultHTTPAddr   = ":5000"
	defaultStaleAfter = 5 * time.Second
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: slog.LevelInfo,
	}))

	if err := run(ctx, logger); err != nil {
		logger.Error("bedwatch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	settings, err := subscriber.SettingsFromEnv()
	if err != nil {
		return err
	}

	cipher, err := aescbc.New(
		[]byte(envOr("BEDWATCH_AES_KEY", defaultKey)),
		[]byte(envOr("BEDWATCH_AES_IV", defaultIV)),
	)
	if err != nil {
		return err
	}

	staleAfter := defaultStaleAfter
	if v := os.Getenv("BEDWATCH_STALE_AFTER"); v != "" {
		staleAfter, err = time.ParseDuration(v)
		if err != nil {
			return err
		}
	}

	registry := panel.DefaultRegistry()
	store := panel.NewStore()

	sub := subscriber.New(
		settings,
		registry,
		cipher,
		store,
		subscriber.WithLogger(logger),
	)
	if err := sub.Start(ctx); err != nil {
		return err
	}

	handler := web.NewHandler(
		panel.NewFacade(store, nil),
		staleAfter,
		log.Wrap(logger),
	)
	server := &http.Server{
		Addr:              envOr("BEDWATCH_HTTP_ADDR", defaultHTTPAddr),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("panel listening", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-sig:
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil &&
		!errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http shutdown", "error", err)
	}

	if err := sub.Stop(); err != nil {
		logger.Warn("mqtt disconnect", "error", err)
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
