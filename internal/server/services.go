// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package server

import (
	"github.com/chanrelay/chanrelay/internal/relay"
	"github.com/chanrelay/chanrelay/internal/store"
	"github.com/chanrelay/chanrelay/pkg/health"
)

// ChannelView exposes the current channel configuration.
// *relay.Registry satisfies it.
type ChannelView interface {
	Snapshot() *store.ChannelConfig
}

// StatsView exposes relay counters and platform health. *relay.Stats
// satisfies it.
type StatsView interface {
	Snapshot() relay.StatsSnapshot
	Health() health.Metrics
}

// QueueView reports per-source realtime backlog. *relay.Dispatcher
// satisfies it.
type QueueView interface {
	QueueDepths() map[int64]int
}

// Services are the relay components the API reads from. Nil fields are
// reported as empty.
type Services struct {
	Channels ChannelView
	Stats    StatsView
	Queues   QueueView
}
