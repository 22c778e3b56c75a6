// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/chanrelay/chanrelay/internal/relay"
	"github.com/chanrelay/chanrelay/internal/store"
)

// Config holds bot behaviour settings.
type Config struct {
	// Admins may use /broadcast.
	Admins    []int64
	OwnerName string
	// JobQueueSize bounds copy and broadcast jobs waiting to run.
	JobQueueSize int
}

// Deps are the relay components the bot drives.
type Deps struct {
	Responder    Responder
	Registry     *relay.Registry
	Registrar    *relay.Registrar
	Resolver     *relay.Resolver
	Admin        *relay.AdminValidator
	Directory    relay.ChatDirectory
	Orchestrator *relay.Orchestrator
	Users        store.UserStore
}

// Handler serves private chats with operators. Commands that touch many
// messages (copies and broadcasts) run one at a time on a job lane so they
// never hold up update processing.
type Handler struct {
	deps        Deps
	admins      map[int64]struct{}
	ownerName   string
	pending     *PendingInputs
	broadcaster *Broadcaster
	jobs        *relay.Lane
}

func NewHandler(deps Deps, cfg Config) *Handler {
	admins := make(map[int64]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = struct{}{}
	}
	return &Handler{
		deps:        deps,
		admins:      admins,
		ownerName:   cfg.OwnerName,
		pending:     NewPendingInputs(),
		broadcaster: NewBroadcaster(deps.Users, deps.Responder),
		jobs:        relay.NewLane("bot:jobs", cfg.JobQueueSize),
	}
}

// Pending exposes the pending-input table.
func (h *Handler) Pending() *PendingInputs { return h.pending }

// Close stops the job lane. A running batch stops before its next message.
func (h *Handler) Close() { h.jobs.Close() }

func (h *Handler) isAdmin(userID int64) bool {
	_, ok := h.admins[userID]
	return ok
}

// HandleMessage routes a private message: commands first, then freeform
// input the user was prompted for.
func (h *Handler) HandleMessage(ctx context.Context, in Incoming) {
	cmd, args, rest, ok := parseCommand(in.Text)
	if !ok {
		h.handleInput(ctx, in)
		return
	}

	// Any command interrupts a pending prompt.
	cancelled := h.pending.Cancel(in.UserID)

	log := slog.With("user_id", in.UserID, "command", cmd)
	log.Debug("bot command")

	switch cmd {
	case "start":
		h.start(ctx, in)
	case "help":
		h.reply(ctx, in.ChatID, helpText, helpKeyboard)
	case "cancel":
		if cancelled {
			h.reply(ctx, in.ChatID, "Cancelled.", nil)
		} else {
			h.reply(ctx, in.ChatID, "Nothing to cancel.", nil)
		}
	case "setsource":
		if len(args) == 0 {
			h.pending.Await(in.UserID, AwaitingSources)
			h.reply(ctx, in.ChatID, promptSources, nil)
			return
		}
		h.addSources(ctx, in.ChatID, args)
	case "removesource":
		h.removeSource(ctx, in.ChatID, args)
	case "listsources":
		h.listSources(ctx, in.ChatID)
	case "settarget":
		if len(args) == 0 {
			h.pending.Await(in.UserID, AwaitingTarget)
			h.reply(ctx, in.ChatID, promptTarget, nil)
			return
		}
		h.setTarget(ctx, in.ChatID, args[0])
	case "selectsource":
		text, kb := h.sourcePicker(ctx)
		h.reply(ctx, in.ChatID, text, kb)
	case "copy":
		h.copyOne(ctx, in.ChatID, args)
	case "ncopy":
		h.copyRange(ctx, in.ChatID, args)
	case "broadcast":
		h.broadcast(ctx, in, rest)
	default:
		h.reply(ctx, in.ChatID, "Unknown command. Send /help to see what I can do.", nil)
	}
}

func (h *Handler) handleInput(ctx context.Context, in Incoming) {
	kind, ok := h.pending.Peek(in.UserID)
	if !ok {
		h.reply(ctx, in.ChatID, "Send /start to see what I can do.", nil)
		return
	}

	fields := strings.Fields(in.Text)
	if len(fields) == 0 {
		h.reply(ctx, in.ChatID, retryHint, nil)
		return
	}

	var accepted bool
	switch kind {
	case AwaitingSources:
		accepted = h.addSources(ctx, in.ChatID, fields)
	case AwaitingTarget:
		accepted = h.setTarget(ctx, in.ChatID, fields[0])
	}
	if accepted {
		h.pending.Complete(in.UserID, kind)
		return
	}
	h.reply(ctx, in.ChatID, retryHint, nil)
}

func (h *Handler) start(ctx context.Context, in Incoming) {
	added, err := h.deps.Users.AddUser(ctx, in.UserID)
	if err != nil {
		slog.Error("recording user failed", "user_id", in.UserID, "error", err)
	} else if added {
		slog.Info("new user", "user_id", in.UserID)
	}
	h.reply(ctx, in.ChatID, h.home(ctx, in.FirstName), homeKeyboard)
}

func (h *Handler) home(ctx context.Context, firstName string) string {
	cfg := h.deps.Registry.Snapshot()
	v := homeView{FirstName: firstName, OwnerName: h.ownerName}
	for _, id := range cfg.Sources {
		v.Sources = append(v.Sources, relay.ChannelName(ctx, h.deps.Directory, id))
	}
	if cfg.SelectedSource != nil {
		v.Selected = relay.ChannelName(ctx, h.deps.Directory, *cfg.SelectedSource)
	}
	if cfg.Target != nil {
		v.Target = relay.ChannelName(ctx, h.deps.Directory, *cfg.Target)
	}
	return v.String()
}

// addSources registers each identifier and reports per item. It returns
// true when at least one identifier ended up as a source.
func (h *Handler) addSources(ctx context.Context, chatID int64, idents []string) bool {
	var added []string
	var accepted bool
	for _, ident := range idents {
		reg, err := h.deps.Registrar.AddSource(ctx, ident)
		if err != nil {
			slog.Warn("adding source failed", "identifier", ident, "error", err)
			h.reply(ctx, chatID, fmt.Sprintf("%s: %s", ident, describeError(err)), nil)
			continue
		}
		accepted = true
		name := channelLabel(relay.ChannelName(ctx, h.deps.Directory, reg.ChatID), reg.ChatID)
		if reg.Outcome == relay.OutcomeAlreadyPresent {
			h.reply(ctx, chatID, fmt.Sprintf("Channel %s is already a source channel.", name), nil)
			continue
		}
		added = append(added, name)
	}
	if len(added) > 0 {
		h.announce(ctx, chatID, fmt.Sprintf("Added %d source channel(s):\n%s", len(added), strings.Join(added, "\n")))
	}
	return accepted
}

func (h *Handler) setTarget(ctx context.Context, chatID int64, ident string) bool {
	reg, err := h.deps.Registrar.SetTarget(ctx, ident)
	if err != nil {
		slog.Warn("setting target failed", "identifier", ident, "error", err)
		h.reply(ctx, chatID, fmt.Sprintf("%s: %s", ident, describeError(err)), nil)
		return false
	}
	name := channelLabel(relay.ChannelName(ctx, h.deps.Directory, reg.ChatID), reg.ChatID)
	if reg.Outcome == relay.OutcomeUnchanged {
		h.reply(ctx, chatID, fmt.Sprintf("Channel %s is already the target channel.", name), nil)
		return true
	}
	h.announce(ctx, chatID, "Target channel set to:\n"+name)
	return true
}

// announce tells every known user about a configuration change and
// replies to the operator who made it.
func (h *Handler) announce(ctx context.Context, chatID int64, text string) {
	ids, err := h.deps.Users.ListUsers(ctx)
	if err != nil {
		slog.Error("listing users for notification failed", "error", err)
	}
	for _, id := range ids {
		if id == chatID {
			continue
		}
		if _, err := h.deps.Responder.Reply(ctx, id, text, nil); err != nil {
			slog.Warn("notifying user failed", "user_id", id, "error", err)
		}
	}
	h.reply(ctx, chatID, text, nil)
}

func (h *Handler) removeSource(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		h.reply(ctx, chatID, "Usage: /removesource <channel_id>", nil)
		return
	}
	// Ids are parsed offline so a channel the account lost access to can
	// still be removed.
	id, ok := relay.ParseChannelID(args[0])
	if !ok {
		var err error
		id, err = h.deps.Resolver.Resolve(ctx, args[0])
		if err != nil {
			h.reply(ctx, chatID, fmt.Sprintf("%s: %s", args[0], describeError(err)), nil)
			return
		}
	}
	outcome, err := h.deps.Registry.RemoveSource(ctx, id)
	switch {
	case err != nil:
		h.reply(ctx, chatID, describeError(err), nil)
	case outcome == relay.OutcomeNotPresent:
		h.reply(ctx, chatID, fmt.Sprintf("Channel %d is not a source channel.", id), nil)
	default:
		h.reply(ctx, chatID, fmt.Sprintf("Removed source channel %d.", id), nil)
	}
}

func (h *Handler) listSources(ctx context.Context, chatID int64) {
	sources := h.deps.Registry.Sources()
	if len(sources) == 0 {
		h.reply(ctx, chatID, "No source channels set.", nil)
		return
	}
	lines := make([]string, 0, len(sources))
	for _, id := range sources {
		if h.deps.Admin.HasAdminRights(ctx, id) {
			lines = append(lines, channelLabel(relay.ChannelName(ctx, h.deps.Directory, id), id))
		} else {
			lines = append(lines, fmt.Sprintf("%d (Bot is not admin)", id))
		}
	}
	h.reply(ctx, chatID, "Source Channels where bot is admin:\n"+strings.Join(lines, "\n"), nil)
}

// sourcePicker lists the sources the bot can still administer as buttons.
func (h *Handler) sourcePicker(ctx context.Context) (string, Keyboard) {
	var kb Keyboard
	for _, id := range h.deps.Registry.Sources() {
		if !h.deps.Admin.HasAdminRights(ctx, id) {
			continue
		}
		kb = append(kb, []Button{{
			Text: relay.ChannelName(ctx, h.deps.Directory, id),
			Data: dataSourcePrefix + strconv.FormatInt(id, 10),
		}})
	}
	if len(kb) == 0 {
		return "No accessible source channels. Add one with /setsource.", backKeyboard
	}
	kb = append(kb, backKeyboard...)
	return "Select a source channel for manual copying:", kb
}

// copySource resolves the optional explicit source argument. A pasted
// message link names its channel, which is used when no source is given.
func (h *Handler) copySource(ctx context.Context, ref string, explicit []string) (int64, error) {
	ident := ""
	if len(explicit) > 0 {
		ident = explicit[0]
	} else if link, ok := relay.ParseMessageLink(ref); ok {
		ident = link.ChannelRef()
	}
	if ident == "" {
		return 0, nil
	}
	return h.deps.Resolver.Resolve(ctx, ident)
}

func (h *Handler) copyOne(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 || len(args) > 2 {
		h.reply(ctx, chatID, "Usage: /copy <message_id_or_link> [source_id]", nil)
		return
	}
	ref := args[0]
	messageID, err := relay.ParseMessageRef(ref)
	if err != nil {
		h.reply(ctx, chatID, describeError(err), nil)
		return
	}
	source, err := h.copySource(ctx, ref, args[1:])
	if err != nil {
		h.reply(ctx, chatID, describeError(err), nil)
		return
	}

	h.runJob(ctx, chatID, func(ctx context.Context) error {
		res, err := h.deps.Orchestrator.CopyOne(ctx, source, ref)
		if err != nil {
			h.reply(ctx, chatID, describeError(err), nil)
			return nil
		}
		h.reply(ctx, chatID, copyResultText(messageID, res), nil)
		return nil
	})
}

func (h *Handler) copyRange(ctx context.Context, chatID int64, args []string) {
	usage := "Usage: /ncopy <start_id> <count> [source_id]"
	if len(args) < 2 || len(args) > 3 {
		h.reply(ctx, chatID, usage, nil)
		return
	}
	start, err1 := strconv.Atoi(args[0])
	count, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || start <= 0 || count <= 0 {
		h.reply(ctx, chatID, usage, nil)
		return
	}
	var source int64
	if len(args) == 3 {
		source, err1 = h.deps.Resolver.Resolve(ctx, args[2])
		if err1 != nil {
			h.reply(ctx, chatID, describeError(err1), nil)
			return
		}
	}

	maxBatch := h.deps.Orchestrator.MaxBatchSize()
	n := min(count, maxBatch)
	h.reply(ctx, chatID, fmt.Sprintf("Copying %d message(s) starting at %d...", n, start), nil)
	h.runJob(ctx, chatID, func(ctx context.Context) error {
		res, err := h.deps.Orchestrator.CopyRange(ctx, source, start, count)
		if err != nil {
			h.reply(ctx, chatID, describeError(err), nil)
			return nil
		}
		h.reply(ctx, chatID, batchResultText(res, maxBatch), nil)
		return nil
	})
}

func (h *Handler) broadcast(ctx context.Context, in Incoming, text string) {
	if !h.isAdmin(in.UserID) {
		slog.Warn("broadcast denied", "user_id", in.UserID)
		h.reply(ctx, in.ChatID, "You are not allowed to broadcast.", nil)
		return
	}
	if text == "" {
		h.reply(ctx, in.ChatID, "Usage: /broadcast <message>", nil)
		return
	}
	h.runJob(ctx, in.ChatID, func(ctx context.Context) error {
		res, err := h.broadcaster.Broadcast(ctx, text)
		if err != nil {
			h.reply(ctx, in.ChatID, describeError(err), nil)
			return err
		}
		h.reply(ctx, in.ChatID, fmt.Sprintf("Broadcast sent: %d successful, %d failed.", res.Sent, res.Failed), nil)
		return nil
	})
}

func (h *Handler) runJob(ctx context.Context, chatID int64, fn func(context.Context) error) {
	if !h.jobs.Enqueue(fn) {
		h.reply(ctx, chatID, "Too many jobs queued, try again later.", nil)
	}
}

// HandleCallback serves inline menu buttons.
func (h *Handler) HandleCallback(ctx context.Context, cb Callback) {
	defer func() {
		if err := h.deps.Responder.AnswerCallback(ctx, cb.QueryID, ""); err != nil {
			slog.Debug("answering callback failed", "error", err)
		}
	}()

	switch {
	case cb.Data == dataHelp:
		h.edit(ctx, cb, helpText, helpKeyboard)
	case cb.Data == dataCreator:
		h.edit(ctx, cb, creatorText(h.ownerName), backKeyboard)
	case cb.Data == dataClose:
		if err := h.deps.Responder.DeleteMessage(ctx, cb.ChatID, cb.MessageID); err != nil {
			slog.Warn("closing menu failed", "error", err)
		}
	case cb.Data == dataBackHome:
		h.edit(ctx, cb, h.home(ctx, cb.FirstName), homeKeyboard)
	case cb.Data == dataSetSources:
		h.pending.Await(cb.UserID, AwaitingSources)
		h.edit(ctx, cb, promptSources, backKeyboard)
	case cb.Data == dataSetTarget:
		h.pending.Await(cb.UserID, AwaitingTarget)
		h.edit(ctx, cb, promptTarget, backKeyboard)
	case cb.Data == dataSelectSource:
		text, kb := h.sourcePicker(ctx)
		h.edit(ctx, cb, text, kb)
	case strings.HasPrefix(cb.Data, dataSourcePrefix):
		h.selectSource(ctx, cb)
	default:
		slog.Debug("unknown callback", "data", cb.Data)
	}
}

func (h *Handler) selectSource(ctx context.Context, cb Callback) {
	id, err := strconv.ParseInt(strings.TrimPrefix(cb.Data, dataSourcePrefix), 10, 64)
	if err != nil {
		slog.Debug("malformed source callback", "data", cb.Data)
		return
	}
	if _, err := h.deps.Registry.SelectSource(ctx, id); err != nil {
		h.edit(ctx, cb, describeError(err), backKeyboard)
		return
	}
	name := relay.ChannelName(ctx, h.deps.Directory, id)
	h.edit(ctx, cb, "Selected source for manual copying:\n"+channelLabel(name, id), backKeyboard)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, kb Keyboard) {
	if _, err := h.deps.Responder.Reply(ctx, chatID, text, kb); err != nil {
		slog.Warn("bot reply failed", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) edit(ctx context.Context, cb Callback, text string, kb Keyboard) {
	if err := h.deps.Responder.Edit(ctx, cb.ChatID, cb.MessageID, text, kb); err != nil {
		slog.Warn("bot edit failed", "chat_id", cb.ChatID, "error", err)
	}
}

// parseCommand splits "/cmd@bot a b" into "cmd", its fields and the raw
// text after the command.
func parseCommand(text string) (cmd string, args []string, rest string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, "", false
	}
	head := text
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i+1:]
	}
	cmd = strings.ToLower(strings.TrimPrefix(head, "/"))
	cmd, _, _ = strings.Cut(cmd, "@")
	if cmd == "" {
		return "", nil, "", false
	}
	rest = strings.TrimSpace(rest)
	return cmd, strings.Fields(rest), rest, true
}
