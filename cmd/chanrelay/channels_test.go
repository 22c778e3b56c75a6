// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"context"
	"testing"

	"github.com/chanrelay/chanrelay/internal/store"
	"github.com/chanrelay/chanrelay/internal/store/file"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChannels(t *testing.T, dir string, cfg *store.ChannelConfig) {
	t.Helper()
	st, err := file.NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, st.Channels().SaveChannels(context.Background(), cfg))
}

func loadSeeded(t *testing.T, dir string) *store.ChannelConfig {
	t.Helper()
	st, err := file.NewStore(dir)
	require.NoError(t, err)
	cfg, err := st.Channels().LoadChannels(context.Background())
	require.NoError(t, err)
	return cfg
}

func TestChannelsShow(t *testing.T) {
	t.Setenv("CHANRELAY_STORAGE_BACKEND", "file")
	dir := t.TempDir()
	target, selected := int64(-1003333), int64(-1001111)
	seedChannels(t, dir, &store.ChannelConfig{
		Sources:        []int64{-1001111, -1002222},
		Target:         &target,
		SelectedSource: &selected,
	})

	root, out := newTestRoot(t, "channels", "show", "--data-dir", dir)
	require.NoError(t, root.Execute())

	assert.YAMLEq(t, `
sources: [-1001111, -1002222]
target: -1003333
selected_source: -1001111
`, out.String())
}

func TestChannelsShow_NothingStored(t *testing.T) {
	t.Setenv("CHANRELAY_STORAGE_BACKEND", "file")
	root, out := newTestRoot(t, "channels", "show", "--data-dir", t.TempDir())

	require.NoError(t, root.Execute())
	assert.YAMLEq(t, "sources: []\ntarget: null\nselected_source: null\n", out.String())
}

func TestChannelsReset(t *testing.T) {
	t.Setenv("CHANRELAY_STORAGE_BACKEND", "file")
	dir := t.TempDir()
	target := int64(-1003333)
	seedChannels(t, dir, &store.ChannelConfig{Sources: []int64{-1001111}, Target: &target})

	t.Run("requires confirmation", func(t *testing.T) {
		root, _ := newTestRoot(t, "channels", "reset", "--data-dir", dir)

		err := root.Execute()
		require.Error(t, err)
		assert.True(t, relayerr.HasCode(err, relayerr.CodeCLIInputInvalid))
		assert.Len(t, loadSeeded(t, dir).Sources, 1)
	})

	t.Run("clears everything", func(t *testing.T) {
		root, out := newTestRoot(t, "channels", "reset", "--yes", "--data-dir", dir)

		require.NoError(t, root.Execute())
		assert.Contains(t, out.String(), "Channel configuration reset.")

		cfg := loadSeeded(t, dir)
		assert.Empty(t, cfg.Sources)
		assert.Nil(t, cfg.Target)
		assert.Nil(t, cfg.SelectedSource)
	})
}
