package credentials

import (
	"context"
	"errors"
	"strings"

	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/infra"
	"assetgen/internal/sqlinline"
)

const (
	ProviderKie = "kie"
)

// Store keeps remote-service API keys in Postgres, used when the key is not
// provided through the environment.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the credentials table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QCreateServiceCredentials)
	return err
}

func (s *Store) KieAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderKie)
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectServiceCredential, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetKieAPIKey(ctx context.Context, key string, props map[string]any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("kie api key is required")
	}
	return s.upsert(ctx, ProviderKie, key, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	if props == nil {
		props = map[string]any{}
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertServiceCredential, provider, token, jsoncfg.MustMarshal(props))
	return err
}

// ResolveKieAPIKey prefers the configured key and falls back to the store.
func ResolveKieAPIKey(ctx context.Context, configured string, store *Store) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	if store == nil {
		return "", nil
	}
	return store.KieAPIKey(ctx)
}
