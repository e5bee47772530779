// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import "sync"

// eventBuffer is the per-kind dispatch channel capacity. Publishing
// blocks when a kind's buffer is full, which preserves at-least-once
// FIFO delivery within the kind; subscribers must not stall.
const eventBuffer = 64

// StatusChange is delivered to connection-status subscribers. Err is
// non-nil only for failure-driven transitions to Disconnected.
type StatusChange struct {
	State State
	Err   error
}

// dispatcher fans one kind of event out to its subscribers from a
// dedicated goroutine. Events of one kind are delivered FIFO; there
// is no ordering guarantee across kinds.
type dispatcher[T any] struct {
	mu     sync.Mutex
	subs   []func(T)
	ch     chan T
	closed bool
	done   chan struct{}
}

func newDispatcher[T any]() *dispatcher[T] {
	d := &dispatcher[T]{
		ch:   make(chan T, eventBuffer),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher[T]) run() {
	defer close(d.done)
	for ev := range d.ch {
		d.mu.Lock()
		subs := d.subs
		d.mu.Unlock()
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func (d *dispatcher[T]) subscribe(fn func(T)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, fn)
}

// publish enqueues one event. Events published after close are
// silently dropped; the session is already torn down at that point.
// The lock is held across the send so close cannot race it; run only
// takes the lock after draining a slot, so a full buffer still makes
// progress.
func (d *dispatcher[T]) publish(ev T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.ch <- ev
}

func (d *dispatcher[T]) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.ch)
	<-d.done
}
