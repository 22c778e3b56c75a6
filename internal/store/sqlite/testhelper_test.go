// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/chanrelay/chanrelay/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

// openStore opens a store at a fresh path and closes it on cleanup.
func openStore(t *testing.T, name string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(testDBPath(t, name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
