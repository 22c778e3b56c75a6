// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// DefaultQueueSize bounds the number of pending items per lane.
const DefaultQueueSize = 256

// workItem represents a unit of work queued on a Lane.
type workItem struct {
	fn func(context.Context) error
}

// Lane serialises work for a single key. Items are executed one at a time
// in FIFO order by a background goroutine.
type Lane struct {
	name    string
	queue   chan workItem
	done    chan struct{}
	closing chan struct{} // Closed immediately when Close() is called

	// ctx is handed to every item and cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
}

// NewLane creates a Lane and starts its background processing goroutine.
// Call Close when the lane is no longer needed.
func NewLane(name string, queueSize int) *Lane {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Lane{
		name:    name,
		queue:   make(chan workItem, queueSize),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go l.run()
	return l
}

// run processes work items sequentially until the lane is closed.
func (l *Lane) run() {
	defer close(l.done)
	for {
		select {
		case w := <-l.queue:
			l.executeWork(w)
		case <-l.closing:
			// Drain any remaining queued items before exiting.
			for {
				select {
				case w := <-l.queue:
					l.executeWork(w)
				default:
					return
				}
			}
		}
	}
}

// executeWork runs a work item with panic recovery. Items still queued
// when the lane closes are skipped.
func (l *Lane) executeWork(w workItem) {
	if err := l.ctx.Err(); err != nil {
		slog.Debug("lane item skipped", "lane", l.name, "error", err)
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("lane worker panic recovered",
					"lane", l.name,
					"panic", r,
					"stack", string(debug.Stack()))
				err = relayerr.Errorf(relayerr.CodeServerInternalFailure, "worker panic: %v", r)
			}
		}()
		err = w.fn(l.ctx)
	}()

	if err != nil {
		slog.Warn("lane item failed", "lane", l.name, "error", err)
	}
}

// Enqueue schedules fn without waiting for it. fn runs with a context that
// is cancelled when the lane closes. It returns false when the queue is full
// or the lane is closed; the item is then dropped.
func (l *Lane) Enqueue(fn func(context.Context) error) bool {
	select {
	case <-l.closing:
		return false
	default:
	}

	select {
	case l.queue <- workItem{fn: fn}:
		return true
	default:
		return false
	}
}

// Len returns the number of queued items.
func (l *Lane) Len() int { return len(l.queue) }

// Close stops accepting work, cancels the context of queued fire-and-forget
// items and waits for the worker to drain. Close is idempotent and safe for
// concurrent calls.
func (l *Lane) Close() {
	l.once.Do(func() {
		close(l.closing)
		l.cancel()
		<-l.done
	})
}

// LanePool manages a set of Lanes keyed by chat id. It creates lanes on
// first access and is safe for concurrent use.
type LanePool struct {
	mu        sync.Mutex
	lanes     map[int64]*Lane
	queueSize int
}

// NewLanePool returns an empty LanePool whose lanes hold up to queueSize
// pending items each.
func NewLanePool(queueSize int) *LanePool {
	return &LanePool{
		lanes:     make(map[int64]*Lane),
		queueSize: queueSize,
	}
}

// Get returns the Lane for chatID, creating one if it does not already exist.
func (p *LanePool) Get(chatID int64) *Lane {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.lanes[chatID]; ok {
		return l
	}

	l := NewLane(laneName(chatID), p.queueSize)
	p.lanes[chatID] = l
	return l
}

// Depths returns the pending item count of every live lane.
func (p *LanePool) Depths() map[int64]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[int64]int, len(p.lanes))
	for id, l := range p.lanes {
		out[id] = l.Len()
	}
	return out
}

// Close shuts down all lanes managed by the pool.
func (p *LanePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, l := range p.lanes {
		l.Close()
	}
	p.lanes = make(map[int64]*Lane)
}

func laneName(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}
