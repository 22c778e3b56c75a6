// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay_test

import (
	"context"
	"testing"

	"github.com/chanrelay/chanrelay/internal/relay"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_CanonicalIDNeedsNoNetwork(t *testing.T) {
	for _, in := range []string{"-1001111", "-1001234567890", "  -1009  "} {
		t.Run(in, func(t *testing.T) {
			p := newFakePlatform()
			id, err := relay.NewResolver(p).Resolve(context.Background(), in)
			require.NoError(t, err)
			assert.Less(t, id, int64(0))
			assert.Empty(t, p.Calls(), "canonical ids must not touch the platform")
		})
	}
}

func TestResolve_BareDigitsAreCheckedForAccess(t *testing.T) {
	ctx := context.Background()
	p := newFakePlatform()
	p.addChat(-1001234567890, "News")
	r := relay.NewResolver(p)

	id, err := r.Resolve(ctx, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), id)
	assert.Equal(t, []string{"get_chat"}, p.Calls())

	_, err = r.Resolve(ctx, "999")
	require.Error(t, err)
	assert.True(t, relayerr.HasCode(err, relayerr.CodeResolveNotAccessible))
}

func TestResolve_InviteLinks(t *testing.T) {
	ctx := context.Background()
	p := newFakePlatform()
	p.invites["AbCdEf"] = &relay.Chat{ID: -1005555, Title: "Private"}
	r := relay.NewResolver(p)

	for _, in := range []string{"+AbCdEf", "https://t.me/+AbCdEf", "t.me/joinchat/AbCdEf", "https://telegram.me/joinchat/AbCdEf"} {
		t.Run(in, func(t *testing.T) {
			id, err := r.Resolve(ctx, in)
			require.NoError(t, err)
			assert.Equal(t, int64(-1005555), id)
		})
	}

	_, err := r.Resolve(ctx, "+expired")
	require.Error(t, err)
	assert.True(t, relayerr.HasCode(err, relayerr.CodeResolveInvalidInvite))
}

func TestResolve_Usernames(t *testing.T) {
	ctx := context.Background()
	p := newFakePlatform()
	p.users["news_channel"] = &relay.Chat{ID: -1007777, Title: "News"}
	r := relay.NewResolver(p)

	for _, in := range []string{"news_channel", "@news_channel", "https://t.me/news_channel", "t.me/news_channel/42"} {
		t.Run(in, func(t *testing.T) {
			id, err := r.Resolve(ctx, in)
			require.NoError(t, err)
			assert.Equal(t, int64(-1007777), id)
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	ctx := context.Background()
	p := newFakePlatform()
	r := relay.NewResolver(p)

	tests := []struct {
		name string
		in   string
		code relayerr.Code
	}{
		{"empty", "   ", relayerr.CodeResolveInvalidFormat},
		{"malformed canonical", "-100abc", relayerr.CodeResolveInvalidFormat},
		{"signed non-canonical", "-123456", relayerr.CodeResolveInvalidFormat},
		{"bad username chars", "no spaces allowed", relayerr.CodeResolveInvalidUsername},
		{"unknown username", "ghost_channel", relayerr.CodeResolveInvalidUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, relayerr.CodeOf(err))
		})
	}
}

func TestResolve_InternalLinkUsesNumericPath(t *testing.T) {
	p := newFakePlatform()
	p.addChat(-100555, "Internal")

	id, err := relay.NewResolver(p).Resolve(context.Background(), "https://t.me/c/555/10")
	require.NoError(t, err)
	assert.Equal(t, int64(-100555), id)
}

func TestResolve_PrivateUsernameNotAccessible(t *testing.T) {
	p := &privateUsernames{fakePlatform: newFakePlatform()}
	_, err := relay.NewResolver(p).Resolve(context.Background(), "hidden")
	require.Error(t, err)
	assert.True(t, relayerr.HasCode(err, relayerr.CodeResolveNotAccessible))
}

// privateUsernames resolves every username to an inaccessible chat.
type privateUsernames struct {
	*fakePlatform
}

func (p *privateUsernames) ResolveUsername(_ context.Context, _ string) (*relay.Chat, error) {
	return nil, relayerr.New(relayerr.CodePlatformChatNotFound, "CHANNEL_PRIVATE")
}

func TestParseChannelID(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{in: "-1001111", want: -1001111, wantOK: true},
		{in: " 1111 ", want: -1001111, wantOK: true},
		{in: "https://t.me/c/1234567890/42", want: -1001234567890, wantOK: true},
		{in: "-100", wantOK: false},
		{in: "-12345", wantOK: false},
		{in: "@news", wantOK: false},
		{in: "+AbCdEf", wantOK: false},
		{in: "99999999999999999999", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, ok := relay.ParseChannelID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, id)
			}
		})
	}
}
