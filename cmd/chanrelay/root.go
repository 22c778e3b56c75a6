// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"errors"

	"github.com/chanrelay/chanrelay/internal/config"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the root chanrelay command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chanrelay",
		Short:         "chanrelay copies Telegram channel posts to a target channel",
		Long:          "chanrelay is a Telegram bot that mirrors new posts from source channels into a target channel and copies older posts on request.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			return setupLogging(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newDoctorCmd(),
		newChannelsCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return relayerr.Errorf(relayerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is left unset: with it Viper would also try the bare
		// name and pick up a ./chanrelay binary.
		v.SetConfigName("chanrelay")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/chanrelay")
		v.AddConfigPath("/etc/chanrelay")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return relayerr.Errorf(relayerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return relayerr.Errorf(relayerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return relayerr.Errorf(relayerr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return relayerr.Errorf(relayerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
