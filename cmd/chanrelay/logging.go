// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"io"
	"log/slog"
	"strings"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/viper"
)

// setupLogging installs the process logger from logging.level,
// logging.format and --verbose.
func setupLogging(w io.Writer) error {
	logger, err := newLogger(w, viper.GetString("logging.level"), viper.GetString("logging.format"), viper.GetBool("verbose"))
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, level, format string, verbose bool) (*slog.Logger, error) {
	var lvl slog.Level
	if verbose {
		lvl = slog.LevelDebug
	} else if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue, "logging.level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue, "logging.format must be text or json, got %q", format)
	}
}
