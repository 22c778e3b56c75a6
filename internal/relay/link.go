// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"regexp"
	"strconv"
)

// LinkShape tells which kind of channel token a message link carried.
type LinkShape int

const (
	LinkInternal LinkShape = iota // t.me/c/<id>/<msg>
	LinkPublic                    // t.me/<username>/<msg>, telegram.me/<username>/<msg>
	LinkInvite                    // t.me/+<hash>/<msg>, t.me/joinchat/<hash>/<msg>
)

type linkPattern struct {
	re    *regexp.Regexp
	shape LinkShape
}

// Message link shapes, tried in order. The first capture is the channel
// token, the second the message id.
var linkPatterns = []linkPattern{
	{regexp.MustCompile(`(?:https?://)?t\.me/c/(\d+)/(\d+)`), LinkInternal},
	{regexp.MustCompile(`(?:https?://)?t\.me/([a-zA-Z0-9_]+)/(\d+)`), LinkPublic},
	{regexp.MustCompile(`(?:https?://)?telegram\.me/([a-zA-Z0-9_]+)/(\d+)`), LinkPublic},
	{regexp.MustCompile(`(?:https?://)?t\.me/\+([a-zA-Z0-9_-]+)/(\d+)`), LinkInvite},
	{regexp.MustCompile(`(?:https?://)?t\.me/joinchat/([a-zA-Z0-9_-]+)/(\d+)`), LinkInvite},
}

// MessageLink is a parsed message link.
type MessageLink struct {
	Token     string
	MessageID int
	Shape     LinkShape
}

// ChannelRef returns the token in the form Resolver.Resolve expects.
func (l MessageLink) ChannelRef() string {
	if l.Shape == LinkInvite {
		return "+" + l.Token
	}
	return l.Token
}

// ParseMessageLink matches link against the known shapes; first match wins.
func ParseMessageLink(link string) (MessageLink, bool) {
	for _, p := range linkPatterns {
		m := p.re.FindStringSubmatch(link)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		return MessageLink{Token: m[1], MessageID: id, Shape: p.shape}, true
	}
	return MessageLink{}, false
}

// ParseChannelFromLink extracts the channel token and message id from a
// message link. The token is the numeric internal id for t.me/c links, the
// username for public links and the invite hash for invite links. ok is
// false when no shape matches.
func ParseChannelFromLink(link string) (token string, messageID int, ok bool) {
	l, ok := ParseMessageLink(link)
	if !ok {
		return "", 0, false
	}
	return l.Token, l.MessageID, true
}
