package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"assetgen/internal/generation"
	"assetgen/internal/infra"
	"assetgen/internal/infra/credentials"
	"assetgen/internal/journal"
	"assetgen/internal/kie"
	"assetgen/internal/manifest"
	"assetgen/internal/pipeline"
	"assetgen/internal/poller"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var (
		policyFlag   = flag.String("policy", cfg.Policy, "regenerate every asset or resume from the existing manifest (regenerate|resume)")
		catalogFlag  = flag.String("catalog", cfg.CatalogPath, "JSON asset catalog replacing the built-in one")
		manifestFlag = flag.String("manifest", cfg.ManifestPath, "manifest file to write")
		attemptsFlag = flag.Int("max-attempts", cfg.PollMaxAttempts, "status polls per task before timing out")
		intervalFlag = flag.Duration("interval", cfg.PollInterval, "delay between status polls")
		checkFlag    = flag.Bool("check", false, "only verify connectivity and credentials, submit nothing")
		journalFlag  = flag.Bool("journal", true, "record steps in Postgres when DATABASE_URL is set")
	)
	flag.Parse()

	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "generate").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := openPool(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	var credStore *credentials.Store
	if pool != nil {
		credStore = credentials.NewStore(infra.NewSQLRunner(pool, logger))
	}
	apiKey, err := credentials.ResolveKieAPIKey(ctx, cfg.KieAPIKey, credStore)
	if err != nil {
		logger.Warn().Err(err).Msg("generate: failed to load kie api key from store")
	}

	client, err := kie.NewClient(kie.Options{
		APIKey:        apiKey,
		BaseURL:       cfg.KieBaseURL,
		ImageModel:    cfg.KieImageModel,
		VideoModel:    cfg.KieVideoModel,
		AspectRatio:   cfg.ImageAspectRatio,
		Quality:       cfg.ImageQuality,
		VideoDuration: cfg.VideoDuration,
		RateInterval:  cfg.RateInterval,
		HTTPClient:    &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("generate: failed to configure kie client")
	}
	if !client.HasCredentials() {
		logger.Fatal().Msg("generate: KIE_API_KEY is not set and no stored key was found")
	}

	if *checkFlag {
		if err := client.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("generate: connectivity check failed")
		}
		logger.Info().Str("image_model", client.ImageModel()).Str("video_model", client.VideoModel()).Msg("generate: service reachable, credentials accepted")
		return
	}

	policy, err := pipeline.ParsePolicy(*policyFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("generate: invalid policy")
	}
	defs, err := pipeline.LoadCatalog(*catalogFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("generate: invalid catalog")
	}
	store, err := manifest.OpenStore(*manifestFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("generate: failed to open manifest store")
	}

	gen := generation.NewGenerator(client, poller.New(client, poller.WithLogger(&logger)), generation.Options{
		MaxAttempts:  *attemptsFlag,
		PollInterval: *intervalFlag,
		Logger:       &logger,
	})

	var recorder pipeline.Recorder
	if pool != nil && *journalFlag {
		j := journal.New(infra.NewSQLRunner(pool, logger))
		if err := j.EnsureSchema(ctx); err != nil {
			logger.Warn().Err(err).Msg("generate: journal unavailable, continuing without it")
		} else {
			recorder = j
		}
	}

	orch := pipeline.New(gen, store, defs, pipeline.Options{
		Policy:   policy,
		Recorder: recorder,
		Logger:   &logger,
	})
	logger.Info().
		Str("run_id", orch.RunID()).
		Str("manifest", store.Path()).
		Int("expected_locations", pipeline.ExpectedLocations(defs)).
		Msg("generate: starting run")

	summary, err := orch.Run(ctx)
	if err != nil {
		reportAbort(err)
		os.Exit(1)
	}
	fmt.Printf("run %s complete: %d generated, %d skipped, %d locations in %s (%s)\n",
		summary.RunID, summary.Generated, summary.Skipped, summary.Locations, store.Path(), summary.Elapsed.Round(time.Second))
}

func openPool(ctx context.Context, cfg *infra.Config, logger infra.Logger) *pgxpool.Pool {
	pool, err := infra.NewDBPool(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrNoDatabase):
		return nil
	case err != nil:
		logger.Warn().Err(err).Msg("generate: database unavailable, running without journal")
		return nil
	}
	return pool
}

// reportAbort prints which asset halted the run, why, and the manifest as it
// stood, so the run can be diagnosed and retried.
func reportAbort(err error) {
	abortErr, ok := pipeline.IsAbort(err)
	if !ok {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, "generation aborted")
	fmt.Fprintf(os.Stderr, "  run:      %s\n", abortErr.RunID)
	fmt.Fprintf(os.Stderr, "  asset:    %s\n", abortErr.Asset)
	if abortErr.Stage != "" {
		fmt.Fprintf(os.Stderr, "  stage:    %s\n", abortErr.Stage)
	}
	fmt.Fprintf(os.Stderr, "  category: %s\n", abortErr.Category)
	fmt.Fprintf(os.Stderr, "  error:    %v\n", abortErr.Err)
	if abortErr.Manifest == nil {
		return
	}
	doc, encErr := manifest.Encode(abortErr.Manifest)
	if encErr != nil {
		return
	}
	fmt.Fprintf(os.Stderr, "  manifest (%d locations):\n%s", len(abortErr.Manifest.Locations()), doc)
}
