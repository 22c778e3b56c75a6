// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"context"
	"regexp"
	"strings"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

var numericPattern = regexp.MustCompile(`^-?\d+$`)

// Registration is the result of registering one identifier.
type Registration struct {
	ChatID  int64
	Outcome Outcome
}

// Registrar runs the add-channel flow: resolve the identifier, require the
// canonical id form, probe admin rights, then mutate the registry. Numeric
// input that is not already canonical is rejected before any network call.
type Registrar struct {
	resolver *Resolver
	admin    *AdminValidator
	registry *Registry
}

// NewRegistrar wires the registration flow.
func NewRegistrar(resolver *Resolver, admin *AdminValidator, registry *Registry) *Registrar {
	return &Registrar{resolver: resolver, admin: admin, registry: registry}
}

// AddSource registers identifier as a source channel.
func (r *Registrar) AddSource(ctx context.Context, identifier string) (Registration, error) {
	id, err := r.resolve(ctx, identifier)
	if err != nil {
		return Registration{}, err
	}

	outcome, err := r.registry.CheckAddSource(id)
	if err != nil || outcome == OutcomeAlreadyPresent {
		return Registration{ChatID: id, Outcome: outcome}, err
	}
	if !r.admin.HasAdminRights(ctx, id) {
		return Registration{ChatID: id}, adminDenied(id)
	}

	outcome, err = r.registry.AddSource(ctx, id)
	return Registration{ChatID: id, Outcome: outcome}, err
}

// SetTarget makes identifier the target channel.
func (r *Registrar) SetTarget(ctx context.Context, identifier string) (Registration, error) {
	id, err := r.resolve(ctx, identifier)
	if err != nil {
		return Registration{}, err
	}

	outcome, err := r.registry.CheckSetTarget(id)
	if err != nil || outcome == OutcomeUnchanged {
		return Registration{ChatID: id, Outcome: outcome}, err
	}
	if !r.admin.HasAdminRights(ctx, id) {
		return Registration{ChatID: id}, adminDenied(id)
	}

	outcome, err = r.registry.SetTarget(ctx, id)
	return Registration{ChatID: id, Outcome: outcome}, err
}

func (r *Registrar) resolve(ctx context.Context, identifier string) (int64, error) {
	ident := strings.TrimSpace(identifier)
	if numericPattern.MatchString(ident) && !IsCanonicalChannelID(ident) {
		return 0, relayerr.New(relayerr.CodeRegistryIDInvalid,
			"channel ids must start with "+ChannelIDPrefix, relayerr.FieldIdentifier(ident))
	}

	id, err := r.resolver.Resolve(ctx, ident)
	if err != nil {
		return 0, err
	}
	if !IsCanonicalChatID(id) {
		return 0, relayerr.New(relayerr.CodeRegistryIDInvalid,
			"resolved chat is not a channel or supergroup", relayerr.FieldChatID(id))
	}
	return id, nil
}

func adminDenied(id int64) error {
	return relayerr.New(relayerr.CodeRegistryAdminDenied,
		"relay lacks admin rights in chat", relayerr.FieldChatID(id))
}
