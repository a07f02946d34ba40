package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"assetgen/internal/http/handlers"
	httpapi "assetgen/internal/http/httpapi"
	"assetgen/internal/infra"
	"assetgen/internal/journal"
	"assetgen/internal/manifest"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "manifestd").Logger()

	ctx := context.Background()

	store, err := manifest.OpenStore(cfg.ManifestPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("manifestd: failed to open manifest store")
	}

	// The journal is optional; without a database the runs endpoint reports 501.
	var runs handlers.RunJournal
	pool, err := infra.NewDBPool(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrNoDatabase):
		logger.Info().Msg("manifestd: no database configured, journal endpoints disabled")
	case err != nil:
		logger.Warn().Err(err).Msg("manifestd: database unavailable, journal endpoints disabled")
	default:
		defer pool.Close()
		runs = journal.New(infra.NewSQLRunner(pool, logger))
	}

	app := handlers.NewApp(store, runs, cfg.ManifestCacheTTL, &logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("manifest", store.Path()).Msg("manifestd: listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("manifestd: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range stop {
		if sig == syscall.SIGHUP {
			app.InvalidateManifest()
			logger.Info().Msg("manifestd: manifest cache cleared")
			continue
		}
		break
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("manifestd: failed to shutdown server")
	}
	logger.Info().Msg("manifestd: stopped")
}
