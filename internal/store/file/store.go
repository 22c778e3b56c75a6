// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

// Package file is a store backend that keeps relay state as YAML documents
// in the data directory. Writes go through a temp file and rename so a crash
// never leaves a truncated document behind.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/chanrelay/chanrelay/internal/store"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// Document file names inside the data directory.
const (
	ChannelsFile = "channels.yaml"
	UsersFile    = "users.yaml"
)

func init() {
	store.RegisterBackend("file", func(dataPath string) (store.Store, error) {
		return NewStore(dataPath)
	})
}

// Compile-time interface checks.
var (
	_ store.Store        = (*Store)(nil)
	_ store.ChannelStore = (*channelStore)(nil)
	_ store.UserStore    = (*userStore)(nil)
)

// Store implements store.Store on top of YAML files.
type Store struct {
	channels *channelStore
	users    *userStore
}

// NewStore prepares dir for use, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "creating data dir %s: %w", dir, err)
	}
	return &Store{
		channels: &channelStore{path: filepath.Join(dir, ChannelsFile)},
		users:    &userStore{path: filepath.Join(dir, UsersFile)},
	}, nil
}

func (s *Store) Channels() store.ChannelStore { return s.channels }
func (s *Store) Users() store.UserStore       { return s.users }
func (s *Store) Close() error                 { return nil }

// ---------- channelStore ----------

type channelStore struct {
	mu   sync.Mutex
	path string
}

func (s *channelStore) LoadChannels(_ context.Context) (*store.ChannelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("channel document %s: %w", s.path, store.ErrNotFound)
	}
	if err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "reading %s: %w", s.path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "decoding %s: %w", s.path, err)
	}

	var cfg store.ChannelConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "decoding %s: %w", s.path, err)
	}
	cfg.Normalize()

	if missing := store.MissingChannelFields(raw); len(missing) > 0 {
		if err := writeYAML(s.path, &cfg); err != nil {
			return nil, fmt.Errorf("upgrading channel document: %w", err)
		}
		slog.Info("upgraded channel document", "backend", "file", "added_fields", missing)
	}

	return &cfg, nil
}

func (s *channelStore) SaveChannels(_ context.Context, cfg *store.ChannelConfig) error {
	if cfg == nil {
		return fmt.Errorf("saving nil channel document: %w", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeYAML(s.path, cfg.Clone())
}

// ---------- userStore ----------

type userStore struct {
	mu   sync.Mutex
	path string
}

type usersDocument struct {
	Users []int64 `yaml:"users"`
}

func (s *userStore) read() (*usersDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &usersDocument{}, nil
	}
	if err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "reading %s: %w", s.path, err)
	}
	var doc usersDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "decoding %s: %w", s.path, err)
	}
	return &doc, nil
}

func (s *userStore) AddUser(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return false, err
	}
	if slices.Contains(doc.Users, userID) {
		return false, nil
	}
	doc.Users = append(doc.Users, userID)
	if err := writeYAML(s.path, doc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *userStore) ListUsers(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Users, nil
}

// writeYAML replaces path atomically with the YAML encoding of v.
func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "encoding %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "closing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "replacing %s: %w", path, err)
	}
	return nil
}
