// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"context"
	"fmt"
	"log/slog"
)

// ChannelName returns the chat title, or a placeholder naming the id when
// the chat cannot be looked up.
func ChannelName(ctx context.Context, dir ChatDirectory, chatID int64) string {
	chat, err := dir.GetChat(ctx, chatID)
	if err != nil {
		slog.Debug("channel name lookup failed", "chat_id", chatID, "error", err)
		return fmt.Sprintf("ID: %d (Inaccessible)", chatID)
	}
	if chat.Title == "" {
		return fmt.Sprintf("ID: %d", chatID)
	}
	return chat.Title
}
