// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chanrelay/chanrelay/internal/config"
	"github.com/chanrelay/chanrelay/internal/secrets"
	"github.com/chanrelay/chanrelay/internal/telegram"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the relay",
		Long:  "Load configuration, log in as the bot and relay channel posts until interrupted.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override status API address (host:port)")

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if f := cmd.Flags().Lookup("listen"); f != nil && f.Changed {
		v.Set("networking.listen", f.Value.String())
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	if errs := cfg.ValidateCredentials(); len(errs) > 0 {
		return relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue, "incomplete configuration: %w", errors.Join(errs...))
	}
	config.WarnInsecurePermissions(v.ConfigFileUsed())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rel, err := WireRelay(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rel.Close(); err != nil {
			slog.Warn("closing relay", "error", err)
		}
	}()

	sessionFile := cfg.SessionPath()
	config.WarnInsecureSession(sessionFile)

	listen := cfg.Networking.Listen
	if listen == "" {
		listen = "disabled"
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting chanrelay (storage=%s, data=%s, status=%s)\n",
		cfg.Storage.Backend, cfg.ResolveDataDir(), listen)

	return rel.Run(ctx, telegram.Options{
		AppID:       cfg.Telegram.AppID,
		AppHash:     cfg.Telegram.AppHash,
		BotToken:    cfg.Telegram.BotToken,
		SessionFile: sessionFile,
		Verbose:     v.GetBool("verbose"),
	})
}

// loadConfig resolves keyring references and decodes the global config.
// Unresolved references to credentials are fatal.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	unresolved := secrets.ResolveViperSecrets(v, secretStoreFactory())
	if len(unresolved) > 0 {
		return nil, relayerr.Errorf(relayerr.CodeSecretResolveFailure,
			"could not resolve keyring references for %s", strings.Join(unresolved, ", "))
	}
	return config.FromViper(v)
}
