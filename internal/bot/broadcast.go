// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package bot

import (
	"context"
	"log/slog"

	"github.com/chanrelay/chanrelay/internal/store"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// BroadcastResult counts a broadcast's deliveries.
type BroadcastResult struct {
	Total  int
	Sent   int
	Failed int
}

// Broadcaster sends a text to every user who ever started the bot.
type Broadcaster struct {
	users     store.UserStore
	responder Responder
}

func NewBroadcaster(users store.UserStore, responder Responder) *Broadcaster {
	return &Broadcaster{users: users, responder: responder}
}

// Broadcast sends text to all known users, one at a time. Per-user failures
// are counted and logged; only failing to list users is an error.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) (BroadcastResult, error) {
	ids, err := b.users.ListUsers(ctx)
	if err != nil {
		return BroadcastResult{}, relayerr.Wrap(err, relayerr.CodeStoreDatabaseFailure, "listing users")
	}

	res := BroadcastResult{Total: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			res.Failed += res.Total - res.Sent - res.Failed
			break
		}
		if _, err := b.responder.Reply(ctx, id, text, nil); err != nil {
			res.Failed++
			slog.Warn("broadcast delivery failed", "user_id", id, "error", err)
			continue
		}
		res.Sent++
	}
	slog.Info("broadcast finished", "total", res.Total, "sent", res.Sent, "failed", res.Failed)
	return res, nil
}
