// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// DefaultMaxBatchSize caps CopyRange when no limit is configured.
const DefaultMaxBatchSize = 100

// ItemStatus is the per-message outcome inside a batch.
type ItemStatus string

const (
	ItemDelivered ItemStatus = "delivered"
	ItemSkipped   ItemStatus = "skipped"
	ItemFailed    ItemStatus = "failed"
	ItemNotFound  ItemStatus = "not_found"
)

// BatchItem records one message id processed by CopyRange.
type BatchItem struct {
	MessageID int
	Status    ItemStatus
	Kind      Kind
	Reason    string
	Err       error
}

// BatchResult aggregates a CopyRange run.
type BatchResult struct {
	JobID     string
	Source    int64
	Target    int64
	StartID   int
	Requested int
	// Clamped is true when Requested exceeded the configured maximum.
	Clamped   bool
	Delivered int
	Skipped   int
	Failed    int
	NotFound  int
	// Interrupted is true when shutdown stopped the batch early.
	Interrupted bool
	Items       []BatchItem
	Duration    time.Duration
}

// Processed is the number of ids attempted.
func (r *BatchResult) Processed() int {
	return r.Delivered + r.Skipped + r.Failed + r.NotFound
}

// Orchestrator drives the Copier over historical messages of one source.
type Orchestrator struct {
	registry *Registry
	source   MessageSource
	copier   *Copier
	maxBatch int
	newJobID func() string
}

// NewOrchestrator returns an Orchestrator that clamps ranges to maxBatch.
func NewOrchestrator(registry *Registry, source MessageSource, copier *Copier, maxBatch int) *Orchestrator {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &Orchestrator{
		registry: registry,
		source:   source,
		copier:   copier,
		maxBatch: maxBatch,
		newJobID: func() string { return uuid.NewString() },
	}
}

// MaxBatchSize returns the clamp applied by CopyRange.
func (o *Orchestrator) MaxBatchSize() int { return o.maxBatch }

// CopyOne copies a single message. ref is a message id or a message link;
// only the link's message id is used. source 0 means the selected source.
// Errors are returned for problems found before the copy starts; the copy
// outcome itself is in the CopyResult.
func (o *Orchestrator) CopyOne(ctx context.Context, source int64, ref string) (CopyResult, error) {
	messageID, err := ParseMessageRef(ref)
	if err != nil {
		return CopyResult{}, err
	}
	src, target, err := o.endpoints(source)
	if err != nil {
		return CopyResult{}, err
	}

	msg, err := o.copier.Fetch(ctx, o.source, src, messageID)
	if relayerr.HasCode(err, relayerr.CodePlatformMessageNotFound) {
		return CopyResult{}, relayerr.New(relayerr.CodeCopyMessageNotFound, "message not found",
			relayerr.FieldChatID(src), relayerr.FieldMessageID(messageID))
	}
	if err != nil {
		return CopyResult{}, relayerr.Errorf(relayerr.CodeCopyFailure, "fetching message %d from %d: %v",
			messageID, src, err)
	}

	return o.copier.Copy(ctx, msg, target), nil
}

// CopyRange copies count consecutive messages starting at startID, strictly
// in increasing id order and one at a time. count is clamped to the
// configured maximum. Missing messages are counted as NotFound and never
// abort the batch.
func (o *Orchestrator) CopyRange(ctx context.Context, source int64, startID, count int) (*BatchResult, error) {
	if startID <= 0 {
		return nil, relayerr.New(relayerr.CodeCopyRequestInvalid, "start id must be positive",
			relayerr.FieldMessageID(startID))
	}
	if count <= 0 {
		return nil, relayerr.New(relayerr.CodeCopyRequestInvalid, "count must be positive",
			relayerr.Field("count", count))
	}
	src, target, err := o.endpoints(source)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{
		JobID:     o.newJobID(),
		Source:    src,
		Target:    target,
		StartID:   startID,
		Requested: count,
	}
	n := count
	if n > o.maxBatch {
		n = o.maxBatch
		res.Clamped = true
	}

	log := slog.With("job_id", res.JobID, "source", src, "target", target)
	log.Info("batch copy started", "start_id", startID, "count", n, "requested", count)
	started := time.Now()

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			res.Interrupted = true
			log.Warn("batch copy interrupted by shutdown", "next_id", startID+i)
			break
		}
		res.Items = append(res.Items, o.copyItem(ctx, src, target, startID+i))
		switch item := res.Items[len(res.Items)-1]; item.Status {
		case ItemDelivered:
			res.Delivered++
		case ItemSkipped:
			res.Skipped++
		case ItemNotFound:
			res.NotFound++
		default:
			res.Failed++
		}
	}

	res.Duration = time.Since(started)
	log.Info("batch copy finished",
		"delivered", res.Delivered, "skipped", res.Skipped,
		"failed", res.Failed, "not_found", res.NotFound,
		"duration", res.Duration)
	return res, nil
}

func (o *Orchestrator) copyItem(ctx context.Context, src, target int64, id int) BatchItem {
	item := BatchItem{MessageID: id}

	msg, err := o.copier.Fetch(ctx, o.source, src, id)
	if relayerr.HasCode(err, relayerr.CodePlatformMessageNotFound) {
		slog.Debug("message not found", "chat_id", src, "message_id", id)
		item.Status = ItemNotFound
		return item
	}
	if err != nil {
		slog.Error("fetching message failed", "chat_id", src, "message_id", id, "error", err)
		item.Status = ItemFailed
		item.Err = err
		return item
	}

	res := o.copier.Copy(ctx, msg, target)
	item.Kind = res.Kind
	item.Reason = res.Reason
	item.Err = res.Err
	switch res.Status {
	case StatusDelivered:
		item.Status = ItemDelivered
	case StatusSkipped:
		item.Status = ItemSkipped
	default:
		item.Status = ItemFailed
	}
	return item
}

// endpoints applies the source precedence (explicit, then selected) and
// reads the target fresh from the registry.
func (o *Orchestrator) endpoints(source int64) (src, target int64, err error) {
	src = source
	if src == 0 {
		selected, ok := o.registry.SelectedSource()
		if !ok {
			return 0, 0, relayerr.New(relayerr.CodeCopySourceRequired,
				"no source given and no source selected")
		}
		src = selected
	} else if !IsCanonicalChatID(src) {
		return 0, 0, relayerr.New(relayerr.CodeCopyRequestInvalid,
			"source ids must start with "+ChannelIDPrefix, relayerr.FieldChatID(src))
	}

	target, ok := o.registry.Target()
	if !ok {
		return 0, 0, relayerr.New(relayerr.CodeCopyTargetRequired, "no target channel set")
	}
	return src, target, nil
}

// ParseMessageRef accepts a positive message id or a message link.
func ParseMessageRef(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		if id <= 0 {
			return 0, relayerr.New(relayerr.CodeCopyRequestInvalid, "message id must be positive",
				relayerr.FieldMessageID(id))
		}
		return id, nil
	}
	if link, ok := ParseMessageLink(ref); ok && link.MessageID > 0 {
		return link.MessageID, nil
	}
	return 0, relayerr.New(relayerr.CodeCopyRequestInvalid, "not a message id or message link",
		relayerr.FieldIdentifier(ref))
}
