// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"context"
	"log/slog"
)

// Dispatcher relays new source messages to the current target as they
// arrive. Each source has its own FIFO lane: messages from one source are
// copied in arrival order, while a flood wait in one source does not hold
// up the others.
type Dispatcher struct {
	registry *Registry
	copier   *Copier
	stats    *Stats
	lanes    *LanePool
}

// NewDispatcher builds a dispatcher whose per-source queues hold queueSize
// pending messages.
func NewDispatcher(registry *Registry, copier *Copier, stats *Stats, queueSize int) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		copier:   copier,
		stats:    stats,
		lanes:    NewLanePool(queueSize),
	}
}

// OnSourceMessage schedules msg for relay if its chat is a registered
// source. It never blocks on platform I/O. Dropped messages are logged and
// counted, never retried.
func (d *Dispatcher) OnSourceMessage(_ context.Context, msg *Message) {
	if msg == nil || !d.registry.IsSource(msg.ChatID) {
		return
	}

	lane := d.lanes.Get(msg.ChatID)
	ok := lane.Enqueue(func(ctx context.Context) error {
		d.relay(ctx, msg)
		return nil
	})
	if !ok {
		d.stats.RecordDropped()
		slog.Warn("relay queue full, message dropped",
			"chat_id", msg.ChatID, "message_id", msg.ID, "queued", lane.Len())
	}
}

func (d *Dispatcher) relay(ctx context.Context, msg *Message) {
	// Read the target at copy time so changes apply without a restart.
	target, ok := d.registry.Target()
	if !ok {
		d.stats.RecordDropped()
		slog.Info("no target channel set, message dropped", "chat_id", msg.ChatID, "message_id", msg.ID)
		return
	}
	if target == msg.ChatID {
		d.stats.RecordDropped()
		slog.Warn("source is the target, message dropped", "chat_id", msg.ChatID, "message_id", msg.ID)
		return
	}
	// The source may have been removed while the message was queued.
	if !d.registry.IsSource(msg.ChatID) {
		d.stats.RecordDropped()
		slog.Info("source removed, message dropped", "chat_id", msg.ChatID, "message_id", msg.ID)
		return
	}

	d.copier.Copy(ctx, msg, target)
}

// QueueDepths reports how many messages wait per source.
func (d *Dispatcher) QueueDepths() map[int64]int {
	return d.lanes.Depths()
}

// Close stops the per-source lanes. Messages still queued are dropped.
func (d *Dispatcher) Close() {
	d.lanes.Close()
}
