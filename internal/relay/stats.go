// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"sync"
	"time"

	"github.com/chanrelay/chanrelay/pkg/health"
)

// Stats counts copy outcomes across the realtime and batch paths. A nil
// *Stats is valid and records nothing.
type Stats struct {
	mu             sync.RWMutex
	delivered      int64
	skipped        int64
	failed         int64
	floodWaits     int64
	dropped        int64
	lastDeliveryAt time.Time
	lastFailureAt  time.Time
	cooldownUntil  time.Time
	startedAt      time.Time
	nowFunc        func() time.Time // for testing
}

// StatsSnapshot is a point-in-time copy of Stats, safe to serialize.
type StatsSnapshot struct {
	Delivered      int64      `json:"delivered"`
	Skipped        int64      `json:"skipped"`
	Failed         int64      `json:"failed"`
	FloodWaits     int64      `json:"flood_waits"`
	Dropped        int64      `json:"dropped"`
	LastDeliveryAt *time.Time `json:"last_delivery_at,omitempty"`
	LastFailureAt  *time.Time `json:"last_failure_at,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	s := &Stats{nowFunc: time.Now}
	s.startedAt = s.nowFunc()
	return s
}

// SetNowFunc overrides the time source (for testing).
func (s *Stats) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	s.nowFunc = fn
	s.mu.Unlock()
}

func (s *Stats) RecordDelivered() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.delivered++
	s.lastDeliveryAt = s.nowFunc()
	s.mu.Unlock()
}

func (s *Stats) RecordSkipped() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.skipped++
	s.mu.Unlock()
}

func (s *Stats) RecordFailed() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.failed++
	s.lastFailureAt = s.nowFunc()
	s.mu.Unlock()
}

// RecordFloodWait counts a flood wait and extends the platform cooldown to
// now+wait.
func (s *Stats) RecordFloodWait(wait time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.floodWaits++
	if until := s.nowFunc().Add(wait); until.After(s.cooldownUntil) {
		s.cooldownUntil = until
	}
	s.mu.Unlock()
}

// RecordDropped counts a realtime message that was not copied at all
// (no target, queue full, loop guard).
func (s *Stats) RecordDropped() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		Delivered:  s.delivered,
		Skipped:    s.skipped,
		Failed:     s.failed,
		FloodWaits: s.floodWaits,
		Dropped:    s.dropped,
		StartedAt:  s.startedAt,
	}
	if !s.lastDeliveryAt.IsZero() {
		t := s.lastDeliveryAt
		snap.LastDeliveryAt = &t
	}
	if !s.lastFailureAt.IsZero() {
		t := s.lastFailureAt
		snap.LastFailureAt = &t
	}
	return snap
}

// Health summarizes failures and the current flood wait cooldown.
func (s *Stats) Health() health.Metrics {
	if s == nil {
		return health.Metrics{Available: true}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := health.Metrics{FailureCount: s.failed}
	if !s.lastFailureAt.IsZero() {
		t := s.lastFailureAt
		m.LastFailureAt = &t
	}
	if !s.cooldownUntil.IsZero() {
		t := s.cooldownUntil
		m.CooldownUntil = &t
	}
	m.Available = !m.CoolingDown(s.nowFunc())
	return m
}
