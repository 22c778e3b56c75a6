// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package bot

import "sync"

// InputKind is what the bot expects from a user's next freeform message.
type InputKind string

const (
	AwaitingSources InputKind = "awaiting_sources"
	AwaitingTarget  InputKind = "awaiting_target"
)

// PendingInputs maps users to the input the bot is waiting for. An entry
// is created by a menu action and removed only by Complete (the input was
// accepted) or Cancel (the user ran a command instead). Entries live in
// memory only.
type PendingInputs struct {
	mu      sync.Mutex
	pending map[int64]InputKind
}

func NewPendingInputs() *PendingInputs {
	return &PendingInputs{pending: make(map[int64]InputKind)}
}

// Await records that userID's next message is input of kind, replacing
// any earlier expectation.
func (p *PendingInputs) Await(userID int64, kind InputKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[userID] = kind
}

// Peek returns the pending kind for userID without changing it.
func (p *PendingInputs) Peek(userID int64) (InputKind, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kind, ok := p.pending[userID]
	return kind, ok
}

// Complete clears the entry after input of kind was accepted. It reports
// false, leaving the entry alone, if the user is not awaiting kind.
func (p *PendingInputs) Complete(userID int64, kind InputKind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[userID] != kind {
		return false
	}
	delete(p.pending, userID)
	return true
}

// Cancel drops whatever userID was expected to send. It reports whether
// there was anything to drop.
func (p *PendingInputs) Cancel(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[userID]
	delete(p.pending, userID)
	return ok
}

// Len is the number of users with pending input.
func (p *PendingInputs) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
