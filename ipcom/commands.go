// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import (
	"fmt"

	"github.com/J-Delsinne/homeanywhere/lib/command"
	"github.com/J-Delsinne/homeanywhere/lib/frame"
	"github.com/J-Delsinne/homeanywhere/lib/snapshot"
)

// CommandResult resolves a queued command's subscription. Response
// holds the decrypted reply; Err is set when the command failed or was
// dropped at disconnect.
type CommandResult struct {
	Response []byte
	Err      error
}

type pendingCommand struct {
	payload []byte
	result  chan CommandResult
}

// SendFrameCommand queues a bus frame for delivery ahead of poll
// traffic and returns a subscription that resolves with the reply.
// Delivery is best-effort: commands still queued when the session goes
// down resolve with ErrCommandDropped and must be resubmitted after
// reconnect. Commands are rejected, never queued, while disconnected.
func (s *Session) SendFrameCommand(f frame.Frame) (<-chan CommandResult, error) {
	encoded, err := frame.Encode(f)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return s.enqueue(command.WrapFrame(encoded))
}

// SetOutput queues a write of one output to the given value. The
// controller applies a whole module block per write, so the command
// carries the latest snapshot's values for the module's other outputs,
// overlaid with writes still awaiting confirmation. Without the
// overlay, two quick writes to outputs of the same module would revert
// each other: the second would rebuild the block from a snapshot that
// predates the first.
func (s *Session) SetOutput(module, output int, value byte) (<-chan CommandResult, error) {
	if output < 1 || output > snapshot.Outputs {
		return nil, fmt.Errorf("%w: output %d", snapshot.ErrOutputRange, output)
	}

	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	if s.latest == nil {
		s.mu.Unlock()
		return nil, ErrNoSnapshot
	}
	values, err := s.latest.Module(module)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	for key, pending := range s.pending {
		if key.module == module {
			values[key.output-1] = pending
		}
	}
	values[output-1] = value
	s.pending[outputKey{module: module, output: output}] = value
	s.mu.Unlock()

	payload, err := command.SetOutputs(module, values, s.cfg.BusAddress, s.cfg.Bus)
	if err != nil {
		return nil, err
	}
	return s.enqueue(payload)
}

// enqueue appends one encoded command to the FIFO queue and raises the
// processing flag so the poll loops yield the socket to the drain
// loop.
func (s *Session) enqueue(payload []byte) (<-chan CommandResult, error) {
	pc := &pendingCommand{
		payload: payload,
		result:  make(chan CommandResult, 1),
	}

	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	s.queue = append(s.queue, pc)
	s.processing = true
	s.mu.Unlock()
	return pc.result, nil
}
