// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/chanrelay/chanrelay/internal/store"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// ChannelIDPrefix starts every canonical channel and supergroup id.
const ChannelIDPrefix = "-100"

// IsCanonicalChannelID reports whether s is written in the canonical
// channel id form: "-100" followed by at least one more digit.
func IsCanonicalChannelID(s string) bool {
	if len(s) <= len(ChannelIDPrefix) || !strings.HasPrefix(s, ChannelIDPrefix) {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// IsCanonicalChatID is IsCanonicalChannelID for a parsed id.
func IsCanonicalChatID(id int64) bool {
	return IsCanonicalChannelID(strconv.FormatInt(id, 10))
}

// Outcome reports what a registry mutation did.
type Outcome string

const (
	OutcomeAdded          Outcome = "added"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeRemoved        Outcome = "removed"
	OutcomeNotPresent     Outcome = "not_present"
	OutcomeSet            Outcome = "set"
	OutcomeUnchanged      Outcome = "unchanged"
	OutcomeSelected       Outcome = "selected"
	OutcomeReset          Outcome = "reset"
)

// RegistryOptions tunes registry policy.
type RegistryOptions struct {
	// ForbidSelfRelay rejects a chat being both a source and the target.
	ForbidSelfRelay bool
}

// Registry owns the channel configuration. Every mutation persists the full
// document before the in-memory copy is replaced, so a failed write leaves
// both untouched.
type Registry struct {
	mu    sync.RWMutex
	store store.ChannelStore
	cfg   *store.ChannelConfig
	opts  RegistryOptions
}

// LoadRegistry reads the persisted configuration, writing the defaults on
// first boot.
func LoadRegistry(ctx context.Context, cs store.ChannelStore, opts RegistryOptions) (*Registry, error) {
	cfg, err := cs.LoadChannels(ctx)
	if relayerr.IsNotFound(err) {
		cfg = store.DefaultChannelConfig()
		if err := cs.SaveChannels(ctx, cfg); err != nil {
			return nil, relayerr.Wrap(err, relayerr.CodeRegistryPersistFailure, "initialising channel document")
		}
		slog.Info("initialised default channel configuration")
	} else if err != nil {
		return nil, relayerr.Wrap(err, relayerr.CodeRegistryPersistFailure, "loading channel document")
	}

	return &Registry{store: cs, cfg: cfg.Clone(), opts: opts}, nil
}

// Snapshot returns a copy of the current configuration.
func (r *Registry) Snapshot() *store.ChannelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Clone()
}

// Sources returns the registered sources in insertion order.
func (r *Registry) Sources() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.cfg.Sources)
}

// IsSource reports whether id is a registered source.
func (r *Registry) IsSource(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.HasSource(id)
}

// Target returns the target chat, if set.
func (r *Registry) Target() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg.Target == nil {
		return 0, false
	}
	return *r.cfg.Target, true
}

// SelectedSource returns the source picked for manual copies, if set.
func (r *Registry) SelectedSource() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg.SelectedSource == nil {
		return 0, false
	}
	return *r.cfg.SelectedSource, true
}

// AddSource registers id as a source channel.
func (r *Registry) AddSource(ctx context.Context, id int64) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome, err := r.checkAddSourceLocked(id)
	if err != nil || outcome == OutcomeAlreadyPresent {
		return outcome, err
	}

	next := r.cfg.Clone()
	next.Sources = append(next.Sources, id)
	if err := r.commitLocked(ctx, next); err != nil {
		return "", err
	}
	slog.Info("source added", "chat_id", id, "sources", len(next.Sources))
	return OutcomeAdded, nil
}

// RemoveSource unregisters id. A selection pointing at id is cleared in the
// same write.
func (r *Registry) RemoveSource(ctx context.Context, id int64) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.HasSource(id) {
		return OutcomeNotPresent, nil
	}

	next := r.cfg.Clone()
	next.Sources = slices.DeleteFunc(next.Sources, func(s int64) bool { return s == id })
	if next.SelectedSource != nil && *next.SelectedSource == id {
		next.SelectedSource = nil
	}
	if err := r.commitLocked(ctx, next); err != nil {
		return "", err
	}
	slog.Info("source removed", "chat_id", id, "sources", len(next.Sources))
	return OutcomeRemoved, nil
}

// SetTarget makes id the single target chat.
func (r *Registry) SetTarget(ctx context.Context, id int64) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome, err := r.checkSetTargetLocked(id)
	if err != nil || outcome == OutcomeUnchanged {
		return outcome, err
	}

	next := r.cfg.Clone()
	next.Target = &id
	if err := r.commitLocked(ctx, next); err != nil {
		return "", err
	}
	slog.Info("target set", "chat_id", id)
	return OutcomeSet, nil
}

// SelectSource picks the source used by manual copies when none is given.
// It fails without touching the selection when id is not a source.
func (r *Registry) SelectSource(ctx context.Context, id int64) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.HasSource(id) {
		return "", relayerr.New(relayerr.CodeRegistrySourceNotFound, "chat is not a registered source",
			relayerr.FieldChatID(id))
	}
	if r.cfg.SelectedSource != nil && *r.cfg.SelectedSource == id {
		return OutcomeSelected, nil
	}

	next := r.cfg.Clone()
	next.SelectedSource = &id
	if err := r.commitLocked(ctx, next); err != nil {
		return "", err
	}
	slog.Info("source selected", "chat_id", id)
	return OutcomeSelected, nil
}

// Reset restores the default, empty configuration.
func (r *Registry) Reset(ctx context.Context) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.commitLocked(ctx, store.DefaultChannelConfig()); err != nil {
		return "", err
	}
	slog.Info("channel configuration reset")
	return OutcomeReset, nil
}

// CheckAddSource reports what AddSource would do without persisting.
func (r *Registry) CheckAddSource(id int64) (Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkAddSourceLocked(id)
}

// CheckSetTarget reports what SetTarget would do without persisting.
func (r *Registry) CheckSetTarget(id int64) (Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkSetTargetLocked(id)
}

func (r *Registry) checkAddSourceLocked(id int64) (Outcome, error) {
	if err := validateChatID(id); err != nil {
		return "", err
	}
	if r.cfg.HasSource(id) {
		return OutcomeAlreadyPresent, nil
	}
	if r.opts.ForbidSelfRelay && r.cfg.Target != nil && *r.cfg.Target == id {
		return "", relayerr.New(relayerr.CodeRegistrySelfRelayConflict,
			"chat is the target and cannot also be a source", relayerr.FieldChatID(id))
	}
	return OutcomeAdded, nil
}

func (r *Registry) checkSetTargetLocked(id int64) (Outcome, error) {
	if err := validateChatID(id); err != nil {
		return "", err
	}
	if r.cfg.Target != nil && *r.cfg.Target == id {
		return OutcomeUnchanged, nil
	}
	if r.opts.ForbidSelfRelay && r.cfg.HasSource(id) {
		return "", relayerr.New(relayerr.CodeRegistrySelfRelayConflict,
			"chat is a source and cannot also be the target", relayerr.FieldChatID(id))
	}
	return OutcomeSet, nil
}

// commitLocked persists next and then swaps it in. The caller MUST hold r.mu.
func (r *Registry) commitLocked(ctx context.Context, next *store.ChannelConfig) error {
	if err := r.store.SaveChannels(ctx, next); err != nil {
		return relayerr.Errorf(relayerr.CodeRegistryPersistFailure, "persisting channel document: %v", err)
	}
	r.cfg = next
	return nil
}

func validateChatID(id int64) error {
	if !IsCanonicalChatID(id) {
		return relayerr.New(relayerr.CodeRegistryIDInvalid,
			"channel ids must start with "+ChannelIDPrefix, relayerr.FieldChatID(id))
	}
	return nil
}
