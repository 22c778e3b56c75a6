// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package store

import (
	"slices"
	"sync"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// DefaultBackend is used when StorageConfig.Backend is empty.
const DefaultBackend = "sqlite"

// Factory opens a backend rooted at dataPath.
type Factory func(dataPath string) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return DefaultBackend
	}
	return cfg.Backend
}

// Open creates the store for the configured backend.
func Open(cfg *StorageConfig, dataPath string) (Store, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, relayerr.Errorf(relayerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return factory(dataPath)
}
