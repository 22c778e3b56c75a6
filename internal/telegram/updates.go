// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package telegram

import (
	"context"
	"sync/atomic"

	"github.com/gotd/td/tg"

	"github.com/chanrelay/chanrelay/internal/bot"
	"github.com/chanrelay/chanrelay/internal/relay"
)

// SourceHandler receives new channel posts.
type SourceHandler interface {
	OnSourceMessage(ctx context.Context, msg *relay.Message)
}

// BotHandler receives private messages and button presses.
type BotHandler interface {
	HandleMessage(ctx context.Context, in bot.Incoming)
	HandleCallback(ctx context.Context, cb bot.Callback)
}

// Handlers are the consumers bound to a Router once the session is up.
type Handlers struct {
	Source SourceHandler
	Bot    BotHandler
}

// Router turns MTProto updates into relay and bot events. Updates that
// arrive before Bind are discarded.
type Router struct {
	dispatcher tg.UpdateDispatcher
	handlers   atomic.Pointer[Handlers]
}

// NewRouter returns an unbound Router.
func NewRouter() *Router {
	r := &Router{dispatcher: tg.NewUpdateDispatcher()}
	r.dispatcher.OnNewChannelMessage(r.onChannelMessage)
	r.dispatcher.OnNewMessage(r.onMessage)
	r.dispatcher.OnBotCallbackQuery(r.onCallback)
	return r
}

// Bind installs the consumers.
func (r *Router) Bind(h Handlers) {
	r.handlers.Store(&h)
}

// Handle implements telegram.UpdateHandler.
func (r *Router) Handle(ctx context.Context, u tg.UpdatesClass) error {
	return r.dispatcher.Handle(ctx, u)
}

func (r *Router) onChannelMessage(ctx context.Context, _ tg.Entities, u *tg.UpdateNewChannelMessage) error {
	h := r.handlers.Load()
	if h == nil || h.Source == nil {
		return nil
	}
	msg, ok := u.Message.(*tg.Message)
	if !ok || msg.Out {
		return nil
	}
	chatID, ok := peerChatID(msg.PeerID)
	if !ok {
		return nil
	}
	h.Source.OnSourceMessage(ctx, convertMessage(chatID, msg))
	return nil
}

func (r *Router) onMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	h := r.handlers.Load()
	if h == nil || h.Bot == nil {
		return nil
	}
	msg, ok := u.Message.(*tg.Message)
	if !ok || msg.Out {
		return nil
	}
	// Only private chats reach the bot layer.
	peer, ok := msg.PeerID.(*tg.PeerUser)
	if !ok {
		return nil
	}
	h.Bot.HandleMessage(ctx, bot.Incoming{
		ChatID:    peer.UserID,
		UserID:    peer.UserID,
		MessageID: msg.ID,
		FirstName: firstName(e, peer.UserID),
		Text:      msg.Message,
	})
	return nil
}

func (r *Router) onCallback(ctx context.Context, e tg.Entities, u *tg.UpdateBotCallbackQuery) error {
	h := r.handlers.Load()
	if h == nil || h.Bot == nil {
		return nil
	}
	chatID, ok := peerChatID(u.Peer)
	if !ok {
		chatID = u.UserID
	}
	h.Bot.HandleCallback(ctx, bot.Callback{
		QueryID:   u.QueryID,
		ChatID:    chatID,
		UserID:    u.UserID,
		MessageID: u.MsgID,
		FirstName: firstName(e, u.UserID),
		Data:      string(u.Data),
	})
	return nil
}

func firstName(e tg.Entities, userID int64) string {
	if u, ok := e.Users[userID]; ok {
		return u.FirstName
	}
	return ""
}
