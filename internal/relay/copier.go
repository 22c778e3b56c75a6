// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"context"
	"log/slog"
	"time"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// CopyStatus is the terminal state of one copy.
type CopyStatus string

const (
	StatusDelivered CopyStatus = "delivered"
	StatusSkipped   CopyStatus = "skipped"
	StatusFailed    CopyStatus = "failed"
)

// ReasonUnsupportedType is the skip reason for messages with no copy branch.
const ReasonUnsupportedType = "unsupported_type"

// CopyResult describes what happened to one message.
type CopyResult struct {
	Status CopyStatus
	Kind   Kind
	// Reason is set for skipped copies.
	Reason string
	// SentID is the id of the message created in the target chat.
	SentID int
	// Err is set for failed copies.
	Err      error
	Attempts int
	Waited   time.Duration
}

// RetryPolicy bounds how long a copy may keep honouring flood waits.
type RetryPolicy struct {
	// MaxAttempts caps send attempts, the first one included.
	MaxAttempts int
	// MaxTotalWait caps the cumulative flood wait slept for one copy.
	MaxTotalWait time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, MaxTotalWait: 10 * time.Minute}
}

// Copier re-creates source messages in a target chat.
type Copier struct {
	sender    Sender
	policy    RetryPolicy
	stats     *Stats
	sleepFunc func(context.Context, time.Duration) error // for testing
}

// NewCopier returns a Copier sending through sender. stats may be nil.
func NewCopier(sender Sender, policy RetryPolicy, stats *Stats) *Copier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if policy.MaxTotalWait <= 0 {
		policy.MaxTotalWait = DefaultRetryPolicy().MaxTotalWait
	}
	return &Copier{sender: sender, policy: policy, stats: stats, sleepFunc: sleep}
}

// SetSleepFunc overrides how flood waits are slept (for testing).
func (c *Copier) SetSleepFunc(fn func(context.Context, time.Duration) error) {
	c.sleepFunc = fn
}

// Policy returns the effective retry policy.
func (c *Copier) Policy() RetryPolicy { return c.policy }

// Copy re-creates msg in target. Unsupported messages are skipped, flood
// waits are slept and retried within the policy, and any other error fails
// the copy without a retry.
func (c *Copier) Copy(ctx context.Context, msg *Message, target int64) CopyResult {
	kind := Classify(msg)
	if kind == KindUnsupported {
		attrs := []any{"target", target}
		if msg != nil {
			attrs = append(attrs, "chat_id", msg.ChatID, "message_id", msg.ID, "payload", msg.Unsupported)
		}
		slog.Warn("unsupported message type, not copied", attrs...)
		c.stats.RecordSkipped()
		return CopyResult{Status: StatusSkipped, Kind: kind, Reason: ReasonUnsupportedType}
	}

	res := CopyResult{Kind: kind}
	var sentID int
	var err error
	res.Attempts, res.Waited, err = c.retryFloodWait(ctx, "copy", msg.ChatID, msg.ID, func() error {
		var sendErr error
		sentID, sendErr = c.send(ctx, kind, msg, target)
		return sendErr
	})
	if err != nil {
		return c.fail(res, msg, target, err)
	}

	res.Status = StatusDelivered
	res.SentID = sentID
	c.stats.RecordDelivered()
	slog.Info("message copied",
		"chat_id", msg.ChatID, "message_id", msg.ID, "target", target,
		"kind", kind, "has_markup", msg.Markup != nil, "attempts", res.Attempts)
	return res
}

// Fetch reads one message from src, honouring flood waits within the same
// policy as Copy.
func (c *Copier) Fetch(ctx context.Context, src MessageSource, chatID int64, messageID int) (*Message, error) {
	var msg *Message
	_, _, err := c.retryFloodWait(ctx, "fetch", chatID, messageID, func() error {
		var fetchErr error
		msg, fetchErr = src.GetMessage(ctx, chatID, messageID)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// retryFloodWait runs op until it returns something other than a flood
// wait or the policy budget is spent. Every flood wait is recorded in stats.
func (c *Copier) retryFloodWait(ctx context.Context, op string, chatID int64, messageID int, fn func() error) (attempts int, waited time.Duration, err error) {
	for {
		attempts++
		err = fn()
		if err == nil {
			return attempts, waited, nil
		}

		fw, ok := AsFloodWait(err)
		if !ok {
			return attempts, waited, err
		}

		c.stats.RecordFloodWait(fw.Wait)
		if attempts >= c.policy.MaxAttempts || waited+fw.Wait > c.policy.MaxTotalWait {
			return attempts, waited, relayerr.New(relayerr.CodeCopyRateLimitExceeded,
				"flood wait budget exhausted",
				relayerr.FieldChatID(chatID),
				relayerr.FieldMessageID(messageID),
				relayerr.Field("op", op),
				relayerr.Field("attempts", attempts),
				relayerr.Field("waited", waited.String()),
				relayerr.Field("requested_wait", fw.Wait.String()),
			)
		}

		slog.Warn("flood wait, retrying",
			"op", op, "chat_id", chatID, "message_id", messageID,
			"wait", fw.Wait, "attempt", attempts)
		if err := c.sleepFunc(ctx, fw.Wait); err != nil {
			return attempts, waited, err
		}
		waited += fw.Wait
	}
}

func (c *Copier) fail(res CopyResult, msg *Message, target int64, err error) CopyResult {
	res.Status = StatusFailed
	res.Err = err
	c.stats.RecordFailed()
	slog.Error("copying message failed",
		"chat_id", msg.ChatID, "message_id", msg.ID, "target", target,
		"kind", res.Kind, "attempts", res.Attempts, "error", err)
	return res
}

func (c *Copier) send(ctx context.Context, kind Kind, msg *Message, target int64) (int, error) {
	switch kind {
	case KindText:
		return c.sender.SendText(ctx, target, msg.Text, msg.Markup)
	case KindPhoto:
		return c.sender.SendPhoto(ctx, target, *msg.Photo, msg.Caption, msg.Markup)
	case KindVideo:
		return c.sender.SendVideo(ctx, target, *msg.Video, msg.Caption, msg.Markup)
	case KindSticker:
		return c.sender.SendSticker(ctx, target, *msg.Sticker, msg.Markup)
	case KindDocument:
		return c.sender.SendDocument(ctx, target, *msg.Document, msg.Caption, msg.Markup)
	default:
		return 0, relayerr.Errorf(relayerr.CodeCopyFailure, "no copy branch for kind %q", kind)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
