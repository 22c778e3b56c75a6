// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/chanrelay/chanrelay/internal/config"
	"github.com/chanrelay/chanrelay/internal/secrets"
	"github.com/chanrelay/chanrelay/internal/server"
	"github.com/chanrelay/chanrelay/internal/store"
	"github.com/chanrelay/chanrelay/internal/telegram"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
)

// tokenValidator checks a bot token against the Bot API. Tests replace it.
var tokenValidator = telegram.ValidateToken

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the binary, configuration, Telegram credentials, storage, disk space and the running relay.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "", "status API address (default: networking.listen)")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr := statusAddress(cmd)

	v := viper.GetViper()
	unresolved := secrets.ResolveViperSecrets(v, secretStoreFactory())
	cfg, cfgErr := config.FromViper(v)

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Secrets", func() string { return checkSecrets(unresolved) }},
		{"Credentials", func() string { return checkCredentials(cmd.Context(), cfg) }},
		{"Storage", func() string { return checkStorage(cmd.Context(), cfg) }},
		{"Relay", func() string { return checkRelay(addr) }},
		{"Disk Space", func() string { return checkDiskSpace(resolveDataDir(cfg)) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

// resolveDataDir returns the configured data directory, falling back to the
// raw viper value when the config did not load.
func resolveDataDir(cfg *config.Config) string {
	if cfg != nil {
		return cfg.ResolveDataDir()
	}
	return (&config.Config{DataDir: viper.GetString("data_dir")}).ResolveDataDir()
}

func checkBinary() string {
	return fmt.Sprintf("chanrelay %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(cfgErr error) string {
	if cfgErr != nil {
		return fmt.Sprintf("invalid: %s", cfgErr)
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkSecrets(unresolved []string) string {
	if len(unresolved) == 0 {
		return "ok"
	}
	return fmt.Sprintf("unresolved keyring references: %v", unresolved)
}

func checkCredentials(ctx context.Context, cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	if errs := cfg.ValidateCredentials(); len(errs) > 0 {
		return fmt.Sprintf("incomplete: %s", errs[0])
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	username, err := tokenValidator(ctx, defaultHTTPClient, cfg.Telegram.BotToken)
	if err != nil {
		if relayerr.HasCode(err, relayerr.CodeChannelTokenInvalid) {
			return "bot token rejected by Telegram"
		}
		return fmt.Sprintf("could not verify bot token: %s", err)
	}
	return fmt.Sprintf("bot token valid (@%s), app id %d", username, cfg.Telegram.AppID)
}

func checkStorage(ctx context.Context, cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	dataDir := cfg.ResolveDataDir()
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return fmt.Sprintf("no data directory yet at %s", dataDir)
	}

	st, err := store.Open(&store.StorageConfig{Backend: cfg.Storage.Backend}, dataDir)
	if err != nil {
		return fmt.Sprintf("error opening %s store: %s", cfg.Storage.Backend, err)
	}
	defer func() { _ = st.Close() }()

	channels, err := st.Channels().LoadChannels(ctx)
	if relayerr.IsNotFound(err) {
		return fmt.Sprintf("%s at %s, no channels configured", cfg.Storage.Backend, dataDir)
	}
	if err != nil {
		return fmt.Sprintf("error reading channels: %s", err)
	}
	return fmt.Sprintf("%s at %s, %d source(s), target %s",
		cfg.Storage.Backend, dataDir, len(channels.Sources), formatID(channels.Target))
}

func checkRelay(addr string) string {
	if addr == "" {
		return "status API disabled"
	}
	var body server.StatusBody
	if err := newStatusClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if relayerr.HasCode(err, relayerr.CodeCLIGatewayNotRunning) {
			return fmt.Sprintf("not running at %s (run 'chanrelay start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
