// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"context"
	"log/slog"
)

// DefaultProbeText is the body of the throwaway admin probe message.
const DefaultProbeText = "Testing admin privileges..."

// AdminValidator checks that the relay can post and moderate in a chat by
// sending a probe message and deleting it again.
type AdminValidator struct {
	dir       ChatDirectory
	sender    Sender
	probeText string
}

// NewAdminValidator builds a validator. An empty probeText uses
// DefaultProbeText.
func NewAdminValidator(dir ChatDirectory, sender Sender, probeText string) *AdminValidator {
	if probeText == "" {
		probeText = DefaultProbeText
	}
	return &AdminValidator{dir: dir, sender: sender, probeText: probeText}
}

// HasAdminRights reports whether the chat lookup, the probe send and the
// probe delete all succeed. Errors are logged and reported as false.
func (v *AdminValidator) HasAdminRights(ctx context.Context, chatID int64) bool {
	chat, err := v.dir.GetChat(ctx, chatID)
	if err != nil {
		slog.Warn("admin check: chat lookup failed", "chat_id", chatID, "error", err)
		return false
	}

	msgID, err := v.sender.SendText(ctx, chatID, v.probeText, nil)
	if err != nil {
		slog.Warn("admin check: probe send failed", "chat_id", chatID, "title", chat.Title, "error", err)
		return false
	}

	if err := v.sender.DeleteMessage(ctx, chatID, msgID); err != nil {
		slog.Warn("admin check: probe delete failed", "chat_id", chatID, "message_id", msgID, "error", err)
		return false
	}

	slog.Debug("admin check passed", "chat_id", chatID, "title", chat.Title)
	return true
}
