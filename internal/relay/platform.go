// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

// Package relay is the channel relay engine: the channel registry, identifier
// resolution, admin probing, the content copier and the batch and realtime
// drivers built on top of it. Platform I/O goes through the interfaces in
// this file so the engine can run against any client implementation.
package relay

import (
	"context"
	"time"
)

// ChatType classifies a chat returned by the platform.
type ChatType string

const (
	ChatTypeChannel    ChatType = "channel"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeGroup      ChatType = "group"
	ChatTypePrivate    ChatType = "private"
)

// Chat is the metadata the engine needs about a chat.
type Chat struct {
	ID       int64
	Title    string
	Username string
	Type     ChatType
}

// File references a media object already stored on the platform. ID is an
// opaque token understood by the Sender that produced the Message.
type File struct {
	ID       string
	Name     string
	MIMEType string
	Size     int64
}

// Message is a platform message reduced to the payloads the copier can
// reproduce. At most one of Photo, Video, Sticker and Document is expected
// to be set; Text is only used for plain text messages and Caption for media.
type Message struct {
	ID       int
	ChatID   int64
	Date     time.Time
	Text     string
	Caption  string
	Photo    *File
	Video    *File
	Sticker  *File
	Document *File
	// Unsupported names a payload the platform delivered that has no copy
	// branch (voice, poll, round video...). Informational only.
	Unsupported string
	// Markup is the reply keyboard attached to the message, carried verbatim.
	Markup any
}

// Sender re-creates content in a chat. Each method returns the id of the
// message it created.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, markup any) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photo File, caption string, markup any) (int, error)
	SendVideo(ctx context.Context, chatID int64, video File, caption string, markup any) (int, error)
	SendSticker(ctx context.Context, chatID int64, sticker File, markup any) (int, error)
	SendDocument(ctx context.Context, chatID int64, doc File, caption string, markup any) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// ChatDirectory looks chats up and joins them.
type ChatDirectory interface {
	GetChat(ctx context.Context, chatID int64) (*Chat, error)
	ResolveUsername(ctx context.Context, username string) (*Chat, error)
	// JoinInvite joins the chat behind an invite hash (the part after
	// "t.me/+" or "t.me/joinchat/").
	JoinInvite(ctx context.Context, hash string) (*Chat, error)
}

// MessageSource fetches historical messages. A missing message yields an
// error for which relayerr.IsNotFound reports true.
type MessageSource interface {
	GetMessage(ctx context.Context, chatID int64, messageID int) (*Message, error)
}

// Platform is everything the engine needs from a messaging client.
type Platform interface {
	Sender
	ChatDirectory
	MessageSource
}
