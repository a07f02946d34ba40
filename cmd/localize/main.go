package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assetgen/internal/infra"
	"assetgen/internal/localize"
	"assetgen/internal/manifest"
	"assetgen/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var (
		manifestFlag = flag.String("manifest", cfg.ManifestPath, "manifest file to localize in place")
		assetsFlag   = flag.String("assets", cfg.AssetsDir, "directory receiving the downloaded files")
		publicFlag   = flag.String("public-base", cfg.AssetsBaseURL, "URL prefix under which the assets directory is served")
		parallelFlag = flag.Int("parallel", 4, "concurrent downloads")
		bundleFlag   = flag.String("bundle", "", "also write a zip of the assets and manifest to this path")
	)
	flag.Parse()

	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "localize").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := manifest.OpenStore(*manifestFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("localize: failed to open manifest store")
	}
	m, err := store.Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("localize: failed to load manifest")
	}
	if len(m.Locations()) == 0 {
		logger.Fatal().Str("manifest", store.Path()).Msg("localize: manifest has no locations; run generate first")
	}

	files, err := storage.NewFileStore(*assetsFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("localize: failed to configure asset storage")
	}
	loc := localize.New(files, localize.Options{
		HTTPClient:  &http.Client{Timeout: 5 * time.Minute},
		Concurrency: *parallelFlag,
		PublicBase:  *publicFlag,
		Logger:      &logger,
	})

	out, report, err := loc.Localize(ctx, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("localize: download failed, manifest left unchanged")
	}
	if err := store.Save(ctx, out); err != nil {
		logger.Fatal().Err(err).Msg("localize: failed to rewrite manifest")
	}

	if *bundleFlag != "" {
		doc, err := manifest.Encode(out)
		if err != nil {
			logger.Fatal().Err(err).Msg("localize: encode manifest")
		}
		archive, err := loc.Bundle(ctx, report, doc)
		if err != nil {
			logger.Fatal().Err(err).Msg("localize: bundle failed")
		}
		if err := os.WriteFile(*bundleFlag, archive, 0o644); err != nil {
			logger.Fatal().Err(err).Msg("localize: write bundle")
		}
	}

	downloaded := 0
	for _, d := range report.Downloads {
		if !d.Skipped {
			downloaded++
		}
	}
	fmt.Printf("localized %d assets (%d already local, %d bytes) into %s in %s\n",
		downloaded, len(report.Downloads)-downloaded, report.Bytes, files.BasePath(), report.Elapsed.Round(time.Millisecond))
}
