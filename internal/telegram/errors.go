// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package telegram

import (
	"github.com/gotd/td/tgerr"

	"github.com/chanrelay/chanrelay/internal/relay"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// RPC error types grouped by the relay code they map to.
var (
	messageNotFoundTypes = []string{"MESSAGE_ID_INVALID", "MESSAGE_IDS_EMPTY"}
	usernameTypes        = []string{"USERNAME_INVALID", "USERNAME_NOT_OCCUPIED", "USERNAME_NOT_MODIFIED"}
	inviteTypes          = []string{"INVITE_HASH_INVALID", "INVITE_HASH_EXPIRED", "INVITE_HASH_EMPTY", "INVITE_REQUEST_SENT"}
	chatNotFoundTypes    = []string{"CHANNEL_PRIVATE", "CHANNEL_INVALID", "PEER_ID_INVALID", "CHAT_ID_INVALID", "CHAT_FORBIDDEN"}
)

// translate maps an MTProto error onto the relay error taxonomy. Flood
// waits become *relay.FloodWaitError so the copier can honour them.
func translate(err error, op string, fields ...relayerr.Attr) error {
	if err == nil {
		return nil
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &relay.FloodWaitError{Wait: wait, Err: err}
	}

	code := relayerr.CodePlatformUpstreamFailure
	switch {
	case tgerr.Is(err, messageNotFoundTypes...):
		code = relayerr.CodePlatformMessageNotFound
	case tgerr.Is(err, usernameTypes...):
		code = relayerr.CodePlatformUsernameInvalid
	case tgerr.Is(err, inviteTypes...):
		code = relayerr.CodePlatformInviteInvalid
	case tgerr.Is(err, chatNotFoundTypes...):
		code = relayerr.CodePlatformChatNotFound
	}
	return relayerr.With(relayerr.Errorf(code, "%s: %w", op, err), fields...)
}
