// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"fmt"

	"github.com/chanrelay/chanrelay/internal/config"
	"github.com/chanrelay/chanrelay/internal/relay"
	"github.com/chanrelay/chanrelay/internal/store"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Inspect the persisted channel configuration",
		Long:  "Read or reset the stored source, target and selected source channels without a running relay.",
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Clear all sources, the target and the selection",
		RunE:  runChannelsReset,
	}
	reset.Flags().Bool("yes", false, "confirm the reset")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the channel configuration as YAML",
			RunE:  runChannelsShow,
		},
		reset,
	)

	return cmd
}

// openStore opens the configured backend without resolving credentials.
func openStore() (store.Store, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	st, err := store.Open(&store.StorageConfig{Backend: cfg.Storage.Backend}, cfg.ResolveDataDir())
	if err != nil {
		return nil, relayerr.Errorf(relayerr.CodeCLISetupFailure, "opening %s store: %v", cfg.Storage.Backend, err)
	}
	return st, nil
}

func runChannelsShow(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	channels, err := st.Channels().LoadChannels(cmd.Context())
	if relayerr.IsNotFound(err) {
		channels = store.DefaultChannelConfig()
	} else if err != nil {
		return err
	}

	out, err := yaml.Marshal(channels)
	if err != nil {
		return relayerr.Errorf(relayerr.CodeCLIRequestFailure, "encoding channels: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runChannelsReset(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return relayerr.New(relayerr.CodeCLIInputInvalid, "refusing to reset without --yes")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	reg, err := relay.LoadRegistry(cmd.Context(), st.Channels(), relay.RegistryOptions{})
	if err != nil {
		return err
	}
	if _, err := reg.Reset(cmd.Context()); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Channel configuration reset. Restart a running relay to pick it up.")
	return nil
}
