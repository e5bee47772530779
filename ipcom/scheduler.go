// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import (
	"context"
	"time"

	"github.com/J-Delsinne/homeanywhere/lib/command"
)

// startSchedulerLocked launches the four session loops: status poll,
// keyboard poll, keep-alive, and queue drain. One context cancels them
// all; each loop checks it at the top of every iteration and exits
// cleanly. Caller holds s.mu.
func (s *Session) startSchedulerLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.runLoop(ctx, s.cfg.Timing.StatusInterval, s.pollStatus)
	go s.runLoop(ctx, s.cfg.Timing.KeyboardInterval, s.pollKeyboard)
	go s.runLoop(ctx, s.cfg.Timing.KeepAliveInterval, s.keepAlive)
	go s.runLoop(ctx, s.cfg.Timing.DrainInterval, s.drainQueue)
}

// runLoop ticks fn at a fixed cadence until the scheduler context is
// cancelled. Errors never escape fn: each tick handler converts its
// own failures into a session teardown.
func (s *Session) runLoop(ctx context.Context, interval time.Duration, fn func()) {
	ticker := s.clk.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// pollStatus requests the output block and hands it to the snapshot
// builder. Skipped while a queued command is being serviced.
func (s *Session) pollStatus() {
	s.mu.Lock()
	if s.state != Connected || s.processing {
		s.mu.Unlock()
		return
	}
	resp, err := s.exchangeLocked(command.ExoOutputsRequest(), 2+command.OutputBlockLen)
	if err != nil {
		s.mu.Unlock()
		s.fail(err)
		return
	}
	s.unanswered = 0
	s.mu.Unlock()

	raw, err := command.ParseExoOutputsResponse(resp)
	if err != nil {
		// A malformed response counts as no response; the next poll
		// or the keep-alive threshold resolves it.
		s.logger.Warn("dropping status response", "error", err)
		return
	}
	s.applySnapshot(raw)
}

// pollKeyboard requests keyboard status. The response length varies
// with the installed keypads, so one read burst is one response.
func (s *Session) pollKeyboard() {
	s.mu.Lock()
	if s.state != Connected || s.processing {
		s.mu.Unlock()
		return
	}
	resp, err := s.exchangeLocked(command.KeyboardStatusRequest(), 0)
	if err != nil {
		s.mu.Unlock()
		s.fail(err)
		return
	}
	s.unanswered = 0
	s.mu.Unlock()

	payload, err := command.ParseKeyboardStatusResponse(resp)
	if err != nil {
		s.logger.Warn("dropping keyboard response", "error", err)
		return
	}
	s.keyboardEvents.publish(payload)
}

// keepAlive probes session liveness. The counter increments on every
// send and resets only when the controller answers with a well-formed
// keep-alive response; crossing the threshold declares the session
// stale and tears it down before the controller silently drops it.
func (s *Session) keepAlive() {
	s.mu.Lock()
	if s.state != Connected || s.processing {
		s.mu.Unlock()
		return
	}
	s.unanswered++
	resp, err := s.exchangeLocked(command.KeepAlive(), 0)
	if err != nil {
		s.mu.Unlock()
		s.fail(err)
		return
	}
	if len(resp) >= 1 && command.ID(resp[0]) == command.IDKeepAlive {
		s.unanswered = 0
	}
	stale := s.unanswered > s.cfg.Timing.KeepAliveThreshold
	s.mu.Unlock()
	if stale {
		s.fail(ErrStaleConnection)
	}
}

// drainQueue sends exactly one queued command per tick, FIFO, ahead of
// poll traffic. The processing flag is set when a command is enqueued
// and cleared here once the queue empties, so the poll loops yield the
// socket until pending commands are out.
func (s *Session) drainQueue() {
	s.mu.Lock()
	if s.state != Connected || len(s.queue) == 0 {
		s.processing = false
		s.mu.Unlock()
		return
	}
	pc := s.queue[0]
	s.queue = s.queue[1:]

	resp, err := s.exchangeLocked(pc.payload, 0)
	if err != nil {
		s.processing = false
		s.mu.Unlock()
		pc.result <- CommandResult{Err: err}
		s.fail(err)
		return
	}
	s.unanswered = 0
	s.processing = len(s.queue) > 0
	s.mu.Unlock()

	pc.result <- CommandResult{Response: resp}
}
