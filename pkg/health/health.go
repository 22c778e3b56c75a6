// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

// Package health describes the availability of the messaging platform as
// seen by the copy engine.
package health

import "time"

// Metrics is a point-in-time view of platform health, safe to serialize
// to JSON. CooldownUntil is set while the platform has asked the relay to
// back off (flood wait).
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// CoolingDown reports whether the cooldown is still in effect at now.
func (m Metrics) CoolingDown(now time.Time) bool {
	return m.CooldownUntil != nil && now.Before(*m.CooldownUntil)
}
