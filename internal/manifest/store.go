package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"

	"assetgen/internal/domain"
	"assetgen/internal/storage"
)

// Store loads and saves the manifest document as a single file.
type Store struct {
	files *storage.FileStore
	key   string
}

// NewStore persists the manifest at key inside files.
func NewStore(files *storage.FileStore, key string) *Store {
	return &Store{files: files, key: key}
}

// OpenStore roots a Store at the directory containing path.
func OpenStore(path string) (*Store, error) {
	files, err := storage.NewFileStore(filepath.Dir(path))
	if err != nil {
		return nil, &domain.ManifestIOError{Op: "open", Path: path, Err: err}
	}
	return NewStore(files, filepath.Base(path)), nil
}

// Path is the manifest location on disk.
func (s *Store) Path() string {
	return filepath.Join(s.files.BasePath(), s.key)
}

// Files exposes the underlying file store.
func (s *Store) Files() *storage.FileStore {
	return s.files
}

// Load reads the manifest, or returns Default when none has been saved.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	data, err := s.files.Read(ctx, s.key)
	if errors.Is(err, storage.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, &domain.ManifestIOError{Op: "read", Path: s.Path(), Err: err}
	}
	m, err := Decode(data)
	if err != nil {
		return nil, &domain.ManifestIOError{Op: "decode", Path: s.Path(), Err: err}
	}
	return m, nil
}

// Save rewrites the whole document atomically.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return &domain.ManifestIOError{Op: "encode", Path: s.Path(), Err: err}
	}
	if _, err := s.files.WriteAtomic(ctx, s.key, data); err != nil {
		return &domain.ManifestIOError{Op: "write", Path: s.Path(), Err: err}
	}
	return nil
}

// Encode renders m the way it is stored on disk.
func Encode(m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, errors.New("manifest: nil manifest")
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a stored document, filling absent sections.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Heroes == nil {
		m.Heroes = map[string]HeroAsset{}
	}
	if m.Portfolio == nil {
		m.Portfolio = []PortfolioItem{}
	}
	return &m, nil
}
