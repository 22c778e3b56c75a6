// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

// Package telegram adapts an MTProto bot session (gotd/td) to the relay
// engine and the bot layer.
package telegram

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/gotd/td/constant"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/chanrelay/chanrelay/internal/bot"
	"github.com/chanrelay/chanrelay/internal/relay"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// Client implements relay.Platform and bot.Responder over a raw API
// client. Access hashes come from the peer manager, which is fed by
// updates and by every RPC result that carries entities.
type Client struct {
	api      *tg.Client
	peers    *peers.Manager
	randomID func() int64
}

var (
	_ relay.Platform = (*Client)(nil)
	_ bot.Responder  = (*Client)(nil)
)

// NewClient wraps api. pm must be built on the same api client.
func NewClient(api *tg.Client, pm *peers.Manager) *Client {
	return &Client{api: api, peers: pm, randomID: rand.Int64}
}

func (c *Client) resolve(ctx context.Context, chatID int64) (peers.Peer, error) {
	p, err := c.peers.ResolveTDLibID(ctx, constant.TDLibPeerID(chatID))
	if err != nil {
		return nil, translate(err, "resolving chat", relayerr.FieldChatID(chatID))
	}
	return p, nil
}

func (c *Client) resolveChannel(ctx context.Context, chatID int64) (peers.Channel, error) {
	p, err := c.resolve(ctx, chatID)
	if err != nil {
		return peers.Channel{}, err
	}
	ch, ok := p.(peers.Channel)
	if !ok {
		return peers.Channel{}, relayerr.New(relayerr.CodePlatformChatNotFound,
			"chat is not a channel or supergroup", relayerr.FieldChatID(chatID))
	}
	return ch, nil
}

// SendText sends text with the given markup.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, markup any) (int, error) {
	p, err := c.resolve(ctx, chatID)
	if err != nil {
		return 0, err
	}
	req := &tg.MessagesSendMessageRequest{
		Peer:     p.InputPeer(),
		Message:  text,
		RandomID: c.randomID(),
	}
	if m, ok := replyMarkup(markup); ok {
		req.ReplyMarkup = m
	}
	upd, err := c.api.MessagesSendMessage(ctx, req)
	if err != nil {
		return 0, translate(err, "sending message", relayerr.FieldChatID(chatID))
	}
	return c.sentID(ctx, upd, req.RandomID), nil
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, photo relay.File, caption string, markup any) (int, error) {
	return c.sendMedia(ctx, chatID, photo, caption, markup)
}

func (c *Client) SendVideo(ctx context.Context, chatID int64, video relay.File, caption string, markup any) (int, error) {
	return c.sendMedia(ctx, chatID, video, caption, markup)
}

func (c *Client) SendSticker(ctx context.Context, chatID int64, sticker relay.File, markup any) (int, error) {
	return c.sendMedia(ctx, chatID, sticker, "", markup)
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, doc relay.File, caption string, markup any) (int, error) {
	return c.sendMedia(ctx, chatID, doc, caption, markup)
}

func (c *Client) sendMedia(ctx context.Context, chatID int64, f relay.File, caption string, markup any) (int, error) {
	ref, err := decodeFileID(f.ID)
	if err != nil {
		return 0, err
	}
	p, err := c.resolve(ctx, chatID)
	if err != nil {
		return 0, err
	}
	req := &tg.MessagesSendMediaRequest{
		Peer:     p.InputPeer(),
		Media:    ref.inputMedia(),
		Message:  caption,
		RandomID: c.randomID(),
	}
	if m, ok := replyMarkup(markup); ok {
		req.ReplyMarkup = m
	}
	upd, err := c.api.MessagesSendMedia(ctx, req)
	if err != nil {
		return 0, translate(err, "sending media", relayerr.FieldChatID(chatID))
	}
	return c.sentID(ctx, upd, req.RandomID), nil
}

// DeleteMessage deletes a message for everyone.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	var err error
	if constant.TDLibPeerID(chatID).IsChannel() {
		var ch peers.Channel
		ch, err = c.resolveChannel(ctx, chatID)
		if err != nil {
			return err
		}
		_, err = c.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: ch.InputChannel(),
			ID:      []int{messageID},
		})
	} else {
		_, err = c.api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
			Revoke: true,
			ID:     []int{messageID},
		})
	}
	return translate(err, "deleting message", relayerr.FieldChatID(chatID), relayerr.FieldMessageID(messageID))
}

// GetChat returns chat metadata.
func (c *Client) GetChat(ctx context.Context, chatID int64) (*relay.Chat, error) {
	p, err := c.resolve(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return chatFromPeer(p), nil
}

// ResolveUsername looks a public username up.
func (c *Client) ResolveUsername(ctx context.Context, username string) (*relay.Chat, error) {
	p, err := c.peers.ResolveDomain(ctx, username)
	if err != nil {
		return nil, translate(err, "resolving username", relayerr.FieldIdentifier(username))
	}
	return chatFromPeer(p), nil
}

// JoinInvite joins the chat behind hash. Joining a chat the bot is already
// in returns that chat.
func (c *Client) JoinInvite(ctx context.Context, hash string) (*relay.Chat, error) {
	var chats []tg.ChatClass

	upd, err := c.api.MessagesImportChatInvite(ctx, hash)
	switch {
	case tgerr.Is(err, "USER_ALREADY_PARTICIPANT"):
		inv, err := c.api.MessagesCheckChatInvite(ctx, hash)
		if err != nil {
			return nil, translate(err, "checking invite", relayerr.FieldIdentifier(hash))
		}
		switch inv := inv.(type) {
		case *tg.ChatInviteAlready:
			chats = []tg.ChatClass{inv.Chat}
		case *tg.ChatInvitePeek:
			chats = []tg.ChatClass{inv.Chat}
		}
	case err != nil:
		return nil, translate(err, "joining invite", relayerr.FieldIdentifier(hash))
	default:
		chats = updateChats(upd)
	}

	if err := c.peers.Apply(ctx, nil, chats); err != nil {
		slog.Debug("storing invite chat failed", "error", err)
	}
	for _, ch := range chats {
		if chat, ok := chatFromClass(ch); ok {
			return chat, nil
		}
	}
	return nil, relayerr.New(relayerr.CodePlatformInviteInvalid, "invite did not lead to a chat",
		relayerr.FieldIdentifier(hash))
}

// GetMessage fetches one message of a channel.
func (c *Client) GetMessage(ctx context.Context, chatID int64, messageID int) (*relay.Message, error) {
	ch, err := c.resolveChannel(ctx, chatID)
	if err != nil {
		return nil, err
	}
	res, err := c.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: ch.InputChannel(),
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}},
	})
	if err != nil {
		return nil, translate(err, "fetching message", relayerr.FieldChatID(chatID), relayerr.FieldMessageID(messageID))
	}

	modified, ok := res.AsModified()
	if !ok {
		return nil, messageNotFound(chatID, messageID)
	}
	if err := c.peers.Apply(ctx, modified.GetUsers(), modified.GetChats()); err != nil {
		slog.Debug("storing message entities failed", "error", err)
	}
	return findMessage(chatID, messageID, modified.GetMessages())
}

// Reply sends text with an inline keyboard.
func (c *Client) Reply(ctx context.Context, chatID int64, text string, kb bot.Keyboard) (int, error) {
	return c.SendText(ctx, chatID, text, kb)
}

// Edit replaces the text and keyboard of a message the bot sent.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, text string, kb bot.Keyboard) error {
	p, err := c.resolve(ctx, chatID)
	if err != nil {
		return err
	}
	req := &tg.MessagesEditMessageRequest{
		Peer:    p.InputPeer(),
		ID:      messageID,
		Message: text,
	}
	if len(kb) > 0 {
		req.ReplyMarkup = inlineKeyboard(kb)
	}
	_, err = c.api.MessagesEditMessage(ctx, req)
	if tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
		return nil
	}
	return translate(err, "editing message", relayerr.FieldChatID(chatID), relayerr.FieldMessageID(messageID))
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallback(ctx context.Context, queryID int64, text string) error {
	_, err := c.api.MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID: queryID,
		Message: text,
	})
	return translate(err, "answering callback")
}

func (c *Client) sentID(ctx context.Context, upd tg.UpdatesClass, randomID int64) int {
	switch u := upd.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID
	case *tg.Updates:
		if err := c.peers.Apply(ctx, u.Users, u.Chats); err != nil {
			slog.Debug("storing update entities failed", "error", err)
		}
		return sentIDFromUpdates(u.Updates, randomID)
	case *tg.UpdatesCombined:
		return sentIDFromUpdates(u.Updates, randomID)
	}
	return 0
}

func sentIDFromUpdates(updates []tg.UpdateClass, randomID int64) int {
	for _, upd := range updates {
		if m, ok := upd.(*tg.UpdateMessageID); ok && m.RandomID == randomID {
			return m.ID
		}
	}
	for _, upd := range updates {
		switch u := upd.(type) {
		case *tg.UpdateNewChannelMessage:
			return u.Message.GetID()
		case *tg.UpdateNewMessage:
			return u.Message.GetID()
		}
	}
	return 0
}

func updateChats(upd tg.UpdatesClass) []tg.ChatClass {
	switch u := upd.(type) {
	case *tg.Updates:
		return u.Chats
	case *tg.UpdatesCombined:
		return u.Chats
	}
	return nil
}

func findMessage(chatID int64, messageID int, msgs []tg.MessageClass) (*relay.Message, error) {
	for _, m := range msgs {
		if m.GetID() != messageID {
			continue
		}
		switch m := m.(type) {
		case *tg.Message:
			return convertMessage(chatID, m), nil
		case *tg.MessageService:
			return &relay.Message{ID: m.ID, ChatID: chatID, Unsupported: "service"}, nil
		}
	}
	return nil, messageNotFound(chatID, messageID)
}

func messageNotFound(chatID int64, messageID int) error {
	return relayerr.New(relayerr.CodePlatformMessageNotFound, "message not found",
		relayerr.FieldChatID(chatID), relayerr.FieldMessageID(messageID))
}

func chatFromPeer(p peers.Peer) *relay.Chat {
	switch p := p.(type) {
	case peers.Channel:
		chat, _ := chatFromClass(p.Raw())
		return chat
	case peers.Chat:
		return &relay.Chat{ID: int64(p.TDLibPeerID()), Title: p.VisibleName(), Type: relay.ChatTypeGroup}
	}
	chat := &relay.Chat{ID: int64(p.TDLibPeerID()), Title: p.VisibleName(), Type: relay.ChatTypePrivate}
	chat.Username, _ = p.Username()
	return chat
}

func chatFromClass(c tg.ChatClass) (*relay.Chat, bool) {
	switch ch := c.(type) {
	case *tg.Channel:
		chat := &relay.Chat{ID: channelChatID(ch.ID), Title: ch.Title, Username: ch.Username, Type: relay.ChatTypeChannel}
		if ch.Megagroup {
			chat.Type = relay.ChatTypeSupergroup
		}
		return chat, true
	case *tg.Chat:
		var id constant.TDLibPeerID
		id.Chat(ch.ID)
		return &relay.Chat{ID: int64(id), Title: ch.Title, Type: relay.ChatTypeGroup}, true
	}
	return nil, false
}
