package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/inkfeed/inkfeed/internal/ports"
)

const imagesDir = "images"

// Store writes image payloads under <root>/images, keyed by content hash.
// Two downloads with identical bytes share one file on disk.
type Store struct {
	root string

	mu    sync.Mutex
	paths map[string]string
}

var _ ports.AssetStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{
		root:  root,
		paths: make(map[string]string),
	}
}

// Write stores data under its content hash and returns the path relative to
// the store root, using forward slashes. Writing the same hash twice reuses
// the existing file.
func (s *Store) Write(hash, ext string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rel, ok := s.paths[hash]; ok {
		return rel, nil
	}

	dir := filepath.Join(s.root, imagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	name := hash + ext
	final := filepath.Join(dir, name)

	// Write to a temp file first so a crash never leaves a truncated image.
	tmp, err := os.CreateTemp(dir, name+".tmp*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename image: %w", err)
	}

	rel := imagesDir + "/" + name
	s.paths[hash] = rel
	return rel, nil
}

// Exists reports whether a payload with the given hash was already written
// this run, and if so returns its relative path.
func (s *Store) Exists(hash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.paths[hash]
	return rel, ok
}
