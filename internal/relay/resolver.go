// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

var (
	digitsPattern       = regexp.MustCompile(`^\d+$`)
	signedDigitsPattern = regexp.MustCompile(`^-\d+$`)
	usernamePattern     = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Resolver turns user supplied channel identifiers into canonical chat ids.
type Resolver struct {
	dir ChatDirectory
}

// NewResolver returns a Resolver that performs lookups and joins through dir.
func NewResolver(dir ChatDirectory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve maps identifier to a chat id. Accepted forms, in priority order:
//
//   - a canonical "-100..." id, parsed without any network call
//   - bare digits as found in t.me/c links, prefixed with -100 and checked
//     with a metadata lookup
//   - an invite ("+hash", ".../joinchat/hash"), joined
//   - a username, looked up
//
// "@name", "t.me/..." and "https://t.me/..." spellings are normalised first.
// Failures carry one of the relay.resolve.* codes.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (int64, error) {
	ident := normalizeIdentifier(identifier)
	if ident == "" {
		return 0, relayerr.New(relayerr.CodeResolveInvalidFormat, "empty channel identifier")
	}

	switch {
	case strings.HasPrefix(ident, ChannelIDPrefix):
		if !IsCanonicalChannelID(ident) {
			return 0, relayerr.New(relayerr.CodeResolveInvalidFormat, "malformed channel id",
				relayerr.FieldIdentifier(identifier))
		}
		id, _ := strconv.ParseInt(ident, 10, 64)
		return id, nil

	case digitsPattern.MatchString(ident):
		id, err := strconv.ParseInt(ChannelIDPrefix+ident, 10, 64)
		if err != nil {
			return 0, relayerr.New(relayerr.CodeResolveInvalidFormat, "channel id out of range",
				relayerr.FieldIdentifier(identifier))
		}
		if _, err := r.dir.GetChat(ctx, id); err != nil {
			slog.Warn("channel not accessible", "chat_id", id, "error", err)
			return 0, relayerr.Errorf(relayerr.CodeResolveNotAccessible, "chat %d is not accessible: %v", id, err)
		}
		return id, nil

	case strings.HasPrefix(ident, "+"):
		hash := strings.TrimPrefix(ident, "+")
		chat, err := r.dir.JoinInvite(ctx, hash)
		if err != nil {
			slog.Warn("joining via invite failed", "identifier", identifier, "error", err)
			return 0, relayerr.Errorf(relayerr.CodeResolveInvalidInvite, "invite %q: %v", identifier, err)
		}
		slog.Info("joined chat via invite", "chat_id", chat.ID, "title", chat.Title)
		return chat.ID, nil

	case signedDigitsPattern.MatchString(ident):
		return 0, relayerr.New(relayerr.CodeResolveInvalidFormat, "channel ids must start with "+ChannelIDPrefix,
			relayerr.FieldIdentifier(identifier))

	default:
		if !usernamePattern.MatchString(ident) {
			return 0, relayerr.New(relayerr.CodeResolveInvalidUsername, "invalid username",
				relayerr.FieldIdentifier(identifier))
		}
		chat, err := r.dir.ResolveUsername(ctx, ident)
		if relayerr.HasCode(err, relayerr.CodePlatformUsernameInvalid) {
			return 0, relayerr.Errorf(relayerr.CodeResolveInvalidUsername, "username %q: %v", ident, err)
		}
		if err != nil {
			slog.Warn("username not accessible", "username", ident, "error", err)
			return 0, relayerr.Errorf(relayerr.CodeResolveNotAccessible, "username %q is not accessible: %v", ident, err)
		}
		return chat.ID, nil
	}
}

// ParseChannelID reads a canonical "-100..." id, bare digits or a t.me/c
// link without touching the network. ok is false for every other form.
func ParseChannelID(identifier string) (id int64, ok bool) {
	ident := normalizeIdentifier(identifier)
	if digitsPattern.MatchString(ident) {
		ident = ChannelIDPrefix + ident
	}
	if !IsCanonicalChannelID(ident) {
		return 0, false
	}
	id, err := strconv.ParseInt(ident, 10, 64)
	return id, err == nil
}

// normalizeIdentifier strips link decoration so Resolve only sees an id,
// digits, "+hash" or a bare username.
func normalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "/joinchat/"); i >= 0 {
		return "+" + firstSegment(s[i+len("/joinchat/"):])
	}

	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	for _, host := range []string{"t.me/", "telegram.me/"} {
		if !strings.HasPrefix(strings.ToLower(s), host) {
			continue
		}
		rest := s[len(host):]
		if strings.HasPrefix(rest, "c/") {
			return firstSegment(rest[len("c/"):])
		}
		if strings.HasPrefix(rest, "+") {
			return "+" + firstSegment(rest[1:])
		}
		return firstSegment(rest)
	}

	return strings.TrimPrefix(s, "@")
}

func firstSegment(s string) string {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		return s[:i]
	}
	return s
}
