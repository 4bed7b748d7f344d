package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rflorenc/search-admin/internal/api"
	"github.com/rflorenc/search-admin/internal/backend"
	"github.com/rflorenc/search-admin/internal/config"
	"github.com/rflorenc/search-admin/internal/console"
	"github.com/rflorenc/search-admin/internal/logging"
	"github.com/rflorenc/search-admin/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Printf("search-admin %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		}
	}

	cfg := config.Parse()

	if err := logging.Setup("search-admin", cfg.Log.Level, cfg.Log.Format, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(ctx, api.Options{
		BackendURL: cfg.Backend.URL,
		Backend: backend.Options{
			Insecure: cfg.Backend.Insecure,
			CACert:   cfg.Backend.CACert,
		},
		Console: console.Options{RefreshDelay: cfg.RefreshDelay},
		Metrics: m,
	})

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("version", version).
			Str("listen", cfg.Listen).
			Str("backend", cfg.Backend.URL).
			Bool("metrics", m != nil).
			Msg("Search admin console starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
