// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package bot

import (
	"fmt"
	"strings"

	"github.com/chanrelay/chanrelay/internal/relay"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// Callback data values.
const (
	dataHelp         = "help"
	dataCreator      = "creator"
	dataClose        = "close"
	dataBackHome     = "back_home"
	dataSetSources   = "set_sources"
	dataSetTarget    = "set_target"
	dataSelectSource = "select_source"
	dataSourcePrefix = "source_"
)

const notSet = "Not set"

const helpText = `Bot Commands and Usage:
- /setsource <channel_id> [...]: Adds source channels for real-time copying.
- /removesource <channel_id>: Removes a source channel.
- /settarget <channel_id>: Sets the target channel.
- /listsources: Lists all source channels where the bot is admin.
- /selectsource: Select a source channel for manual copying of old messages.
- /copy <message_id_or_link> [source_id]: Copies a message from the selected or given source.
- /ncopy <start_id> <count> [source_id]: Copies a range of messages from the selected or given source.
- /cancel: Stops waiting for channel input.

Channels can be given as -100 ids, @usernames, t.me links or invite links.`

const (
	promptSources = "Send the source channel id(s), separated by spaces. Channel ids must start with -100.\nSend /cancel to stop."
	promptTarget  = "Send the target channel id. Channel ids must start with -100.\nSend /cancel to stop."
	retryHint     = "Send another channel or /cancel."
)

var (
	homeKeyboard = Keyboard{
		{{Text: "Help", Data: dataHelp}, {Text: "Creator", Data: dataCreator}},
		{{Text: "Close", Data: dataClose}},
	}
	helpKeyboard = Keyboard{
		{{Text: "Select Source", Data: dataSelectSource}},
		{{Text: "Set Sources", Data: dataSetSources}, {Text: "Set Target", Data: dataSetTarget}},
		{{Text: "Back to Home", Data: dataBackHome}},
	}
	backKeyboard = Keyboard{
		{{Text: "Back to Home", Data: dataBackHome}},
	}
)

type homeView struct {
	FirstName string
	OwnerName string
	Sources   []string
	Selected  string
	Target    string
}

func (v homeView) String() string {
	sources := notSet
	if len(v.Sources) > 0 {
		sources = strings.Join(v.Sources, ", ")
	}
	var b strings.Builder
	if v.FirstName != "" {
		fmt.Fprintf(&b, "Hi there, %s!\n\n", v.FirstName)
	} else {
		b.WriteString("Hi there!\n\n")
	}
	if v.OwnerName != "" {
		fmt.Fprintf(&b, "Created by %s.\n", v.OwnerName)
	}
	b.WriteString("This bot copies new messages from all source channels to the target channel when added as an admin.\n\n")
	fmt.Fprintf(&b, "Sources: %s\n", sources)
	fmt.Fprintf(&b, "Selected Source (for manual copying): %s\n", orNotSet(v.Selected))
	fmt.Fprintf(&b, "Target: %s", orNotSet(v.Target))
	return b.String()
}

func creatorText(owner string) string {
	if owner == "" {
		return "Thanks for using this bot!"
	}
	return fmt.Sprintf("Bot created by %s.\n\nThanks for using this bot!", owner)
}

func orNotSet(s string) string {
	if s == "" {
		return notSet
	}
	return s
}

func channelLabel(name string, id int64) string {
	return fmt.Sprintf("%s (ID: %d)", name, id)
}

func copyResultText(messageID int, res relay.CopyResult) string {
	switch res.Status {
	case relay.StatusDelivered:
		return fmt.Sprintf("Message %d copied to the target channel.", messageID)
	case relay.StatusSkipped:
		return fmt.Sprintf("Message %d has an unsupported type and was not copied.", messageID)
	default:
		return fmt.Sprintf("Copying message %d failed: %s", messageID, describeError(res.Err))
	}
}

func batchResultText(res *relay.BatchResult, maxBatch int) string {
	var b strings.Builder
	processed := res.Processed()
	if processed == 0 {
		b.WriteString("No messages were copied.")
	} else {
		fmt.Fprintf(&b, "Copied messages %d to %d: %d delivered, %d skipped, %d failed, %d not found.",
			res.StartID, res.StartID+processed-1, res.Delivered, res.Skipped, res.Failed, res.NotFound)
	}
	if res.Clamped {
		fmt.Fprintf(&b, "\nRequested %d, limited to %d per batch.", res.Requested, maxBatch)
	}
	if res.Interrupted {
		b.WriteString("\nStopped early because the bot is shutting down.")
	}
	return b.String()
}

// describeError turns a relay error into operator-facing text.
func describeError(err error) string {
	switch relayerr.CodeOf(err) {
	case relayerr.CodeRegistryIDInvalid:
		return "Invalid format! Channel IDs must start with -100."
	case relayerr.CodeRegistryAdminDenied:
		return "The bot lacks full admin privileges in that channel."
	case relayerr.CodeRegistrySelfRelayConflict:
		return "A channel cannot be both a source and the target."
	case relayerr.CodeRegistrySourceNotFound:
		return "That channel is not a source channel."
	case relayerr.CodeRegistryPersistFailure:
		return "Saving the channel configuration failed, nothing was changed."
	case relayerr.CodeResolveInvalidFormat:
		return "That is not a valid channel id."
	case relayerr.CodeResolveInvalidUsername:
		return "Invalid username."
	case relayerr.CodeResolveInvalidInvite:
		return "Invalid or expired invite link."
	case relayerr.CodeResolveNotAccessible:
		return "Cannot access that channel. Make sure the bot is a member."
	case relayerr.CodeCopySourceRequired:
		return "No source selected. Use /selectsource or pass a source channel."
	case relayerr.CodeCopyTargetRequired:
		return "No target channel set. Use /settarget first."
	case relayerr.CodeCopyMessageNotFound:
		return "Message not found."
	case relayerr.CodeCopyRateLimitExceeded:
		return "Telegram rate limits did not clear in time, try again later."
	case relayerr.CodeCopyRequestInvalid:
		return "Invalid request. Send /help for usage."
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
