package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"assetgen/internal/infra"
	"assetgen/internal/infra/credentials"
)

func main() {
	var (
		keyFlag  string
		noteFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "kie.ai API key (falls back to KIE_API_KEY)")
	flag.StringVar(&noteFlag, "note", "", "free-form note stored alongside the key")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("KIE_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "KIE API key is required via -key or KIE_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "apikey").Str("provider", credentials.ProviderKie).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare credentials table: %v\n", err)
		os.Exit(1)
	}
	props := map[string]any{"stored_at": time.Now().UTC().Format(time.RFC3339)}
	if note := strings.TrimSpace(noteFlag); note != "" {
		props["note"] = note
	}
	if err := store.SetKieAPIKey(ctx, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist kie api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("KIE API key stored successfully")
}
