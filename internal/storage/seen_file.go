// Package storage persists engine state between passes.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/STRATINT/engager/internal/models"
)

// SeenFile keeps the seen set as a JSON array of identifiers.
type SeenFile struct {
	Path string
	mu   sync.Mutex
}

// NewSeenFile returns a store backed by path.
func NewSeenFile(path string) *SeenFile {
	return &SeenFile{Path: path}
}

// Load reads the persisted set. A missing file yields an empty set; an
// unreadable or malformed file yields an empty set and an error.
func (s *SeenFile) Load(_ context.Context) (models.SeenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return models.NewSeenSet(), nil
	}
	if err != nil {
		return models.NewSeenSet(), fmt.Errorf("read seen file: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return models.NewSeenSet(), fmt.Errorf("parse seen file %s: %w", s.Path, err)
	}
	return models.NewSeenSet(ids...), nil
}

// Save replaces the file with the sorted identifiers. The data goes to a
// temporary file in the same directory first and is renamed over the target,
// so a crash mid-write leaves the previous set intact.
func (s *SeenFile) Save(_ context.Context, seen models.SeenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(seen.Sorted())
	if err != nil {
		return fmt.Errorf("marshal seen set: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create seen dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write seen file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync seen file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close seen file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod seen file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace seen file: %w", err)
	}
	return nil
}
