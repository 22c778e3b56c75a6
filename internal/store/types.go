// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package store

import "slices"

// ChannelsDocumentID is the key of the singleton channel document.
const ChannelsDocumentID = "channels"

// Persisted field names of the channel document.
const (
	FieldSources        = "sources"
	FieldTarget         = "target"
	FieldSelectedSource = "selected_source"
)

var channelFields = []string{FieldSources, FieldTarget, FieldSelectedSource}

// ChannelConfig is the singleton relay configuration: the ordered source
// set, the single target and the source picked for manual copies.
type ChannelConfig struct {
	Sources        []int64 `json:"sources" yaml:"sources"`
	Target         *int64  `json:"target" yaml:"target"`
	SelectedSource *int64  `json:"selected_source" yaml:"selected_source"`
}

// DefaultChannelConfig returns the document written on first boot.
func DefaultChannelConfig() *ChannelConfig {
	return &ChannelConfig{Sources: []int64{}}
}

// Clone returns a deep copy.
func (c *ChannelConfig) Clone() *ChannelConfig {
	if c == nil {
		return nil
	}
	out := &ChannelConfig{Sources: slices.Clone(c.Sources)}
	if out.Sources == nil {
		out.Sources = []int64{}
	}
	if c.Target != nil {
		v := *c.Target
		out.Target = &v
	}
	if c.SelectedSource != nil {
		v := *c.SelectedSource
		out.SelectedSource = &v
	}
	return out
}

// HasSource reports whether id is a registered source.
func (c *ChannelConfig) HasSource(id int64) bool {
	return c != nil && slices.Contains(c.Sources, id)
}

// Normalize drops duplicate sources (keeping first occurrence) and replaces a
// nil source list with an empty one.
func (c *ChannelConfig) Normalize() {
	if c.Sources == nil {
		c.Sources = []int64{}
		return
	}
	seen := make(map[int64]struct{}, len(c.Sources))
	out := c.Sources[:0]
	for _, id := range c.Sources {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	c.Sources = out
}

// MissingChannelFields lists the channel document fields absent from a raw
// decoded record. Backends use it to upgrade older documents in place.
func MissingChannelFields[V any](doc map[string]V) []string {
	var missing []string
	for _, f := range channelFields {
		if _, ok := doc[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// Int64Ptr is a small helper for optional chat ids.
func Int64Ptr(v int64) *int64 { return &v }
