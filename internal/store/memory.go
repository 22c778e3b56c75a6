// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

func init() {
	RegisterBackend("memory", func(string) (Store, error) { return NewMemoryStore(), nil })
}

// Compile-time interface checks.
var (
	_ Store        = (*MemoryStore)(nil)
	_ ChannelStore = (*memoryChannels)(nil)
	_ UserStore    = (*memoryUsers)(nil)
)

// MemoryStore keeps relay state in process memory. Selected with
// storage.backend: memory; nothing survives a restart.
type MemoryStore struct {
	channels *memoryChannels
	users    *memoryUsers
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels: &memoryChannels{},
		users:    &memoryUsers{seen: map[int64]struct{}{}},
	}
}

func (m *MemoryStore) Channels() ChannelStore { return m.channels }
func (m *MemoryStore) Users() UserStore       { return m.users }
func (m *MemoryStore) Close() error           { return nil }

type memoryChannels struct {
	mu  sync.RWMutex
	doc *ChannelConfig
}

func (s *memoryChannels) LoadChannels(_ context.Context) (*ChannelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, fmt.Errorf("channel document: %w", ErrNotFound)
	}
	return s.doc.Clone(), nil
}

func (s *memoryChannels) SaveChannels(_ context.Context, cfg *ChannelConfig) error {
	if cfg == nil {
		return fmt.Errorf("saving nil channel document: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = cfg.Clone()
	return nil
}

type memoryUsers struct {
	mu    sync.Mutex
	order []int64
	seen  map[int64]struct{}
}

func (s *memoryUsers) AddUser(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[userID]; ok {
		return false, nil
	}
	s.seen[userID] = struct{}{}
	s.order = append(s.order, userID)
	return true, nil
}

func (s *memoryUsers) ListUsers(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order), nil
}
