// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package sqlite

import (
	"fmt"
	"path/filepath"

	"github.com/chanrelay/chanrelay/internal/store"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "chanrelay.db"

func init() {
	store.RegisterBackend("sqlite", newStore)
}

func newStore(dataPath string) (store.Store, error) {
	s, err := NewStore(filepath.Join(dataPath, DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("creating sqlite store: %w", err)
	}
	return s, nil
}
