// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

const groupOrOtherRead fs.FileMode = 0o044

// WarnInsecurePermissions logs a warning when the config file at path is
// readable by group or others. It never fails startup.
func WarnInsecurePermissions(path string) {
	warnReadable("config file", path)
}

// WarnInsecureSession does the same for the MTProto session file, which
// holds the bot's authorization key.
func WarnInsecureSession(path string) {
	warnReadable("session file", path)
}

func warnReadable(what, path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat file for permission check", "what", what, "path", path, "error", err)
		return false
	}

	if info.Mode().Perm()&groupOrOtherRead == 0 {
		return false
	}
	slog.Warn(what+" has insecure permissions, credentials may be exposed to other users",
		"path", path,
		"mode", info.Mode(),
		"recommended", "0600",
	)
	return true
}
