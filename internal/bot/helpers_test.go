// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package bot_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chanrelay/chanrelay/internal/bot"
	"github.com/chanrelay/chanrelay/internal/relay"
	"github.com/chanrelay/chanrelay/internal/store"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

type reply struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  bot.Keyboard
}

// fakeTelegram serves both the relay platform and the bot responder.
type fakeTelegram struct {
	mu        sync.Mutex
	nextID    int
	chats     map[int64]*relay.Chat
	messages  map[int64]map[int]*relay.Message
	copies    []int64 // chat ids that received relayed content
	replies   []reply
	edits     []reply
	deleted   []int
	answered  []int64
	replyErr  map[int64]error
	noSendIDs map[int64]bool // chats where probe sends fail
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{
		nextID:    100,
		chats:     map[int64]*relay.Chat{},
		messages:  map[int64]map[int]*relay.Message{},
		replyErr:  map[int64]error{},
		noSendIDs: map[int64]bool{},
	}
}

func (f *fakeTelegram) addChannel(id int64, title string) {
	f.chats[id] = &relay.Chat{ID: id, Title: title, Type: relay.ChatTypeChannel}
}

func (f *fakeTelegram) addMessage(m *relay.Message) {
	if f.messages[m.ChatID] == nil {
		f.messages[m.ChatID] = map[int]*relay.Message{}
	}
	f.messages[m.ChatID][m.ID] = m
}

func (f *fakeTelegram) Replies() []reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reply(nil), f.replies...)
}

func (f *fakeTelegram) Edits() []reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reply(nil), f.edits...)
}

func (f *fakeTelegram) Copies() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.copies...)
}

// lastReplyTo returns the text of the latest reply to chatID.
func (f *fakeTelegram) lastReplyTo(chatID int64) string {
	rs := f.Replies()
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].ChatID == chatID {
			return rs[i].Text
		}
	}
	return ""
}

func (f *fakeTelegram) repliedWith(chatID int64, substr string) bool {
	for _, r := range f.Replies() {
		if r.ChatID == chatID && strings.Contains(r.Text, substr) {
			return true
		}
	}
	return false
}

func (f *fakeTelegram) send(chatID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noSendIDs[chatID] {
		return 0, relayerr.New(relayerr.CodePlatformUpstreamFailure, "CHAT_WRITE_FORBIDDEN")
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTelegram) SendText(_ context.Context, chatID int64, _ string, _ any) (int, error) {
	id, err := f.send(chatID)
	if err == nil && chatID < 0 {
		f.mu.Lock()
		f.copies = append(f.copies, chatID)
		f.mu.Unlock()
	}
	return id, err
}

func (f *fakeTelegram) SendPhoto(ctx context.Context, chatID int64, _ relay.File, _ string, m any) (int, error) {
	return f.SendText(ctx, chatID, "", m)
}

func (f *fakeTelegram) SendVideo(ctx context.Context, chatID int64, _ relay.File, _ string, m any) (int, error) {
	return f.SendText(ctx, chatID, "", m)
}

func (f *fakeTelegram) SendSticker(ctx context.Context, chatID int64, _ relay.File, m any) (int, error) {
	return f.SendText(ctx, chatID, "", m)
}

func (f *fakeTelegram) SendDocument(ctx context.Context, chatID int64, _ relay.File, _ string, m any) (int, error) {
	return f.SendText(ctx, chatID, "", m)
}

func (f *fakeTelegram) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTelegram) GetChat(_ context.Context, chatID int64) (*relay.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.chats[chatID]; ok {
		return c, nil
	}
	return nil, relayerr.New(relayerr.CodePlatformChatNotFound, "CHANNEL_INVALID")
}

func (f *fakeTelegram) ResolveUsername(_ context.Context, username string) (*relay.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.chats {
		if c.Username == username {
			return c, nil
		}
	}
	return nil, relayerr.New(relayerr.CodePlatformUsernameInvalid, "USERNAME_NOT_OCCUPIED")
}

func (f *fakeTelegram) JoinInvite(context.Context, string) (*relay.Chat, error) {
	return nil, relayerr.New(relayerr.CodePlatformInviteInvalid, "INVITE_HASH_INVALID")
}

func (f *fakeTelegram) GetMessage(_ context.Context, chatID int64, messageID int) (*relay.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[chatID][messageID]; ok {
		return m, nil
	}
	return nil, relayerr.New(relayerr.CodePlatformMessageNotFound, "message not found")
}

func (f *fakeTelegram) Reply(_ context.Context, chatID int64, text string, kb bot.Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.replyErr[chatID]; err != nil {
		return 0, err
	}
	f.nextID++
	f.replies = append(f.replies, reply{ChatID: chatID, MessageID: f.nextID, Text: text, Keyboard: kb})
	return f.nextID, nil
}

func (f *fakeTelegram) Edit(_ context.Context, chatID int64, messageID int, text string, kb bot.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, reply{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
	return nil
}

func (f *fakeTelegram) AnswerCallback(_ context.Context, queryID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, queryID)
	return nil
}

// flakyChannels fails every save while fail is set.
type flakyChannels struct {
	store.ChannelStore
	mu   sync.Mutex
	fail bool
}

func (c *flakyChannels) setFail(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = v
}

func (c *flakyChannels) SaveChannels(ctx context.Context, cfg *store.ChannelConfig) error {
	c.mu.Lock()
	fail := c.fail
	c.mu.Unlock()
	if fail {
		return relayerr.Wrap(store.ErrDatabase, relayerr.CodeStoreDatabaseFailure, "write rejected")
	}
	return c.ChannelStore.SaveChannels(ctx, cfg)
}

type fixture struct {
	tg       *fakeTelegram
	store    *store.MemoryStore
	channels *flakyChannels
	registry *relay.Registry
	handler  *bot.Handler
}

const (
	alice int64 = 11
	bob   int64 = 22
	admin int64 = 99

	srcA   int64 = -1001111
	srcB   int64 = -1002222
	target int64 = -1003333
)

func newFixture(t *testing.T, cfg *store.ChannelConfig) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{tg: newFakeTelegram(), store: store.NewMemoryStore()}
	f.tg.addChannel(srcA, "Alpha")
	f.tg.addChannel(srcB, "Beta")
	f.tg.addChannel(target, "Mirror")

	if cfg != nil {
		require.NoError(t, f.store.Channels().SaveChannels(ctx, cfg))
	}
	f.channels = &flakyChannels{ChannelStore: f.store.Channels()}
	reg, err := relay.LoadRegistry(ctx, f.channels, relay.RegistryOptions{ForbidSelfRelay: true})
	require.NoError(t, err)
	f.registry = reg

	resolver := relay.NewResolver(f.tg)
	adminCheck := relay.NewAdminValidator(f.tg, f.tg, relay.DefaultProbeText)
	copier := relay.NewCopier(f.tg, relay.DefaultRetryPolicy(), nil)
	f.handler = bot.NewHandler(bot.Deps{
		Responder:    f.tg,
		Registry:     reg,
		Registrar:    relay.NewRegistrar(resolver, adminCheck, reg),
		Resolver:     resolver,
		Admin:        adminCheck,
		Directory:    f.tg,
		Orchestrator: relay.NewOrchestrator(reg, f.tg, copier, 10),
		Users:        f.store.Users(),
	}, bot.Config{Admins: []int64{admin}, OwnerName: "Ops Team"})
	t.Cleanup(f.handler.Close)
	return f
}

func (f *fixture) say(userID int64, text string) {
	f.handler.HandleMessage(context.Background(), bot.Incoming{ChatID: userID, UserID: userID, Text: text})
}

func (f *fixture) press(userID int64, messageID int, data string) {
	f.handler.HandleCallback(context.Background(), bot.Callback{
		QueryID: 1, ChatID: userID, UserID: userID, MessageID: messageID, Data: data,
	})
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
