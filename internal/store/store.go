// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package store

import "context"

// Store groups the persisted relay state owned by one backend.
type Store interface {
	Channels() ChannelStore
	Users() UserStore
	Close() error
}

// ChannelStore persists the singleton channel configuration document.
//
// LoadChannels returns an error wrapping ErrNotFound when no document has
// been written yet. Backends fill in fields missing from an older document
// and rewrite it before returning.
type ChannelStore interface {
	LoadChannels(ctx context.Context) (*ChannelConfig, error)
	SaveChannels(ctx context.Context, cfg *ChannelConfig) error
}

// UserStore is the append-only record of users who started the bot.
type UserStore interface {
	// AddUser records userID and reports whether it was new.
	AddUser(ctx context.Context, userID int64) (bool, error)
	// ListUsers returns every recorded user id in insertion order.
	ListUsers(ctx context.Context) ([]int64, error)
}
