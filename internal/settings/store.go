// Package settings keeps the preview settings in memory and, optionally,
// persists them to a YAML state file so admin changes survive restarts.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// Store holds the current settings. Reads are lock-free.
type Store struct {
	current atomic.Pointer[domain.Settings]

	mu   sync.Mutex // serializes writers
	path string
}

// NewStore creates a store holding initial.
func NewStore(initial domain.Settings) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &Store{}
	s.current.Store(&initial)
	return s, nil
}

// Open creates a store backed by the state file at path. Settings saved in
// the file override initial; a missing file is created on the first write.
func Open(path string, initial domain.Settings) (*Store, error) {
	st := initial
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("settings: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}

	s, err := NewStore(st)
	if err != nil {
		return nil, fmt.Errorf("settings: %s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// Settings returns the current settings.
func (s *Store) Settings(context.Context) (domain.Settings, error) {
	return *s.current.Load(), nil
}

// Update applies patch and returns the new settings.
func (s *Store) Update(_ context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := patch.Apply(*s.current.Load())
	if err != nil {
		return domain.Settings{}, err
	}
	if err := s.saveLocked(next); err != nil {
		return domain.Settings{}, err
	}
	s.current.Store(&next)
	return next, nil
}

// Replace swaps in a complete settings value, e.g. after a config reload.
func (s *Store) Replace(st domain.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveLocked(st); err != nil {
		return err
	}
	s.current.Store(&st)
	return nil
}

// saveLocked writes st to the state file via a temp file and rename.
func (s *Store) saveLocked(st domain.Settings) error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return domain.ErrInternalServer.WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}
