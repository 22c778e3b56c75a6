// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chanrelay/chanrelay/internal/relay"
	"github.com/chanrelay/chanrelay/internal/store"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/stretchr/testify/require"
)

// sent records one Send* call on the fake platform.
type sent struct {
	Kind    relay.Kind
	ChatID  int64
	Text    string
	Caption string
	File    relay.File
	Markup  any
}

// fakePlatform is an in-memory relay.Platform. Hooks left nil succeed.
type fakePlatform struct {
	mu       sync.Mutex
	calls    []string
	sent     []sent
	deleted  []int
	nextID   int
	chats    map[int64]*relay.Chat
	users    map[string]*relay.Chat
	invites  map[string]*relay.Chat
	messages map[int64]map[int]*relay.Message

	sendErr   func(n int, chatID int64) error // n counts send calls from 1
	deleteErr error
	fetchErr  func(chatID int64, id int) error
	fetched   []int
	onSend    func(chatID int64)
	sendCount int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		nextID:   1000,
		chats:    map[int64]*relay.Chat{},
		users:    map[string]*relay.Chat{},
		invites:  map[string]*relay.Chat{},
		messages: map[int64]map[int]*relay.Message{},
	}
}

func (f *fakePlatform) addChat(id int64, title string) {
	f.chats[id] = &relay.Chat{ID: id, Title: title, Type: relay.ChatTypeChannel}
}

func (f *fakePlatform) addMessage(m *relay.Message) {
	if f.messages[m.ChatID] == nil {
		f.messages[m.ChatID] = map[int]*relay.Message{}
	}
	f.messages[m.ChatID][m.ID] = m
}

func (f *fakePlatform) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakePlatform) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlatform) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakePlatform) send(s sent) (int, error) {
	f.mu.Lock()
	f.record("send:" + string(s.Kind))
	f.sendCount++
	n := f.sendCount
	hook := f.sendErr
	onSend := f.onSend
	f.mu.Unlock()

	if onSend != nil {
		onSend(s.ChatID)
	}
	if hook != nil {
		if err := hook(n, s.ChatID); err != nil {
			return 0, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, s)
	return f.nextID, nil
}

func (f *fakePlatform) SendText(_ context.Context, chatID int64, text string, markup any) (int, error) {
	return f.send(sent{Kind: relay.KindText, ChatID: chatID, Text: text, Markup: markup})
}

func (f *fakePlatform) SendPhoto(_ context.Context, chatID int64, photo relay.File, caption string, markup any) (int, error) {
	return f.send(sent{Kind: relay.KindPhoto, ChatID: chatID, File: photo, Caption: caption, Markup: markup})
}

func (f *fakePlatform) SendVideo(_ context.Context, chatID int64, video relay.File, caption string, markup any) (int, error) {
	return f.send(sent{Kind: relay.KindVideo, ChatID: chatID, File: video, Caption: caption, Markup: markup})
}

func (f *fakePlatform) SendSticker(_ context.Context, chatID int64, sticker relay.File, markup any) (int, error) {
	return f.send(sent{Kind: relay.KindSticker, ChatID: chatID, File: sticker, Markup: markup})
}

func (f *fakePlatform) SendDocument(_ context.Context, chatID int64, doc relay.File, caption string, markup any) (int, error) {
	return f.send(sent{Kind: relay.KindDocument, ChatID: chatID, File: doc, Caption: caption, Markup: markup})
}

func (f *fakePlatform) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakePlatform) GetChat(_ context.Context, chatID int64) (*relay.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_chat")
	if c, ok := f.chats[chatID]; ok {
		return c, nil
	}
	return nil, relayerr.New(relayerr.CodePlatformChatNotFound, "CHANNEL_INVALID", relayerr.FieldChatID(chatID))
}

func (f *fakePlatform) ResolveUsername(_ context.Context, username string) (*relay.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("resolve_username")
	if c, ok := f.users[username]; ok {
		return c, nil
	}
	return nil, relayerr.New(relayerr.CodePlatformUsernameInvalid, "USERNAME_NOT_OCCUPIED")
}

func (f *fakePlatform) JoinInvite(_ context.Context, hash string) (*relay.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("join_invite")
	if c, ok := f.invites[hash]; ok {
		return c, nil
	}
	return nil, relayerr.New(relayerr.CodePlatformInviteInvalid, "INVITE_HASH_INVALID")
}

func (f *fakePlatform) GetMessage(_ context.Context, chatID int64, messageID int) (*relay.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_message")
	f.fetched = append(f.fetched, messageID)
	if f.fetchErr != nil {
		if err := f.fetchErr(chatID, messageID); err != nil {
			return nil, err
		}
	}
	if m, ok := f.messages[chatID][messageID]; ok {
		return m, nil
	}
	return nil, relayerr.New(relayerr.CodePlatformMessageNotFound, "message not found",
		relayerr.FieldChatID(chatID), relayerr.FieldMessageID(messageID))
}

func (f *fakePlatform) Fetched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.fetched...)
}

// failingChannelStore wraps a store and fails every save when fail is set.
type failingChannelStore struct {
	store.ChannelStore
	fail bool
}

func (s *failingChannelStore) SaveChannels(ctx context.Context, cfg *store.ChannelConfig) error {
	if s.fail {
		return fmt.Errorf("disk on fire: %w", store.ErrDatabase)
	}
	return s.ChannelStore.SaveChannels(ctx, cfg)
}

// newRegistry loads a registry over a memory store pre-seeded with cfg.
func newRegistry(t *testing.T, cfg *store.ChannelConfig) *relay.Registry {
	t.Helper()
	s := store.NewMemoryStore()
	if cfg != nil {
		require.NoError(t, s.Channels().SaveChannels(context.Background(), cfg))
	}
	reg, err := relay.LoadRegistry(context.Background(), s.Channels(), relay.RegistryOptions{ForbidSelfRelay: true})
	require.NoError(t, err)
	return reg
}

// noSleep records requested waits without sleeping.
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (n *noSleep) Sleep(_ context.Context, d time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waits = append(n.waits, d)
	return nil
}

func floodWait(d time.Duration) error {
	return &relay.FloodWaitError{Wait: d, Err: fmt.Errorf("FLOOD_WAIT_%d", int(d.Seconds()))}
}

func textMessage(chatID int64, id int, text string) *relay.Message {
	return &relay.Message{ChatID: chatID, ID: id, Text: text}
}
