// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

// Package bot is the conversational surface of the relay: private chat
// commands, inline menus and the pending-input flow for operators.
package bot

import "context"

// Button is an inline keyboard button. Data is returned in the callback.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, one slice per row.
type Keyboard [][]Button

// Incoming is a private message sent to the bot.
type Incoming struct {
	ChatID    int64
	UserID    int64
	MessageID int
	FirstName string
	Text      string
}

// Callback is an inline button press.
type Callback struct {
	QueryID   int64
	ChatID    int64
	UserID    int64
	MessageID int
	FirstName string
	Data      string
}

// Responder talks back to users.
type Responder interface {
	Reply(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, queryID int64, text string) error
}
