// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"errors"
	"fmt"
	"time"
)

const (
	// Modules is the number of output modules a bus addresses.
	Modules = 16
	// Outputs is the number of channels per module.
	Outputs = 8
	// RawLen is the status payload size: Modules × Outputs.
	RawLen = Modules * Outputs
)

var (
	ErrRawLength   = errors.New("snapshot: raw payload must be exactly 128 bytes")
	ErrModuleRange = errors.New("snapshot: module out of range 1-16")
	ErrOutputRange = errors.New("snapshot: output out of range 1-8")
)

// Snapshot is the complete output-level table at one point in time.
// Published snapshots are never mutated; each poll cycle replaces the
// previous snapshot wholesale.
type Snapshot struct {
	outputs [Modules][Outputs]byte
	takenAt time.Time
}

// Change records one output whose level differed between two
// snapshots. Module and Output are 1-based.
type Change struct {
	Module int
	Output int
	Old    byte
	New    byte
}

// Build splits a 128-byte status payload into 16 consecutive 8-byte
// module rows, in payload order: module 1 is raw[0:8], module 16 is
// raw[120:128].
func Build(raw []byte, takenAt time.Time) (*Snapshot, error) {
	if len(raw) != RawLen {
		return nil, fmt.Errorf("%w: got %d", ErrRawLength, len(raw))
	}
	s := &Snapshot{takenAt: takenAt}
	for m := 0; m < Modules; m++ {
		copy(s.outputs[m][:], raw[m*Outputs:(m+1)*Outputs])
	}
	return s, nil
}

// TakenAt returns the time the snapshot was received.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Value returns the level of one output. Module and output are
// 1-based, matching the controller's addressing.
func (s *Snapshot) Value(module, output int) (byte, error) {
	if module < 1 || module > Modules {
		return 0, fmt.Errorf("%w: %d", ErrModuleRange, module)
	}
	if output < 1 || output > Outputs {
		return 0, fmt.Errorf("%w: %d", ErrOutputRange, output)
	}
	return s.outputs[module-1][output-1], nil
}

// Module returns a copy of one module's eight output levels.
func (s *Snapshot) Module(module int) ([Outputs]byte, error) {
	if module < 1 || module > Modules {
		return [Outputs]byte{}, fmt.Errorf("%w: %d", ErrModuleRange, module)
	}
	return s.outputs[module-1], nil
}

// On reports whether an output is driven at all (level > 0).
func (s *Snapshot) On(module, output int) (bool, error) {
	v, err := s.Value(module, output)
	return v > 0, err
}

// Percent maps an output level to 0-100. Dimmer consumers display
// this; relay outputs only ever yield 0 or 100.
func (s *Snapshot) Percent(module, output int) (int, error) {
	v, err := s.Value(module, output)
	if err != nil {
		return 0, err
	}
	pct := int(v) * 100 / 255
	return pct, nil
}

// Diff lists every output whose level differs from prev, in module
// then output order. A nil prev reports every non-zero output as a
// change from zero, which seeds journals and subscribers on the first
// poll after connect.
func (s *Snapshot) Diff(prev *Snapshot) []Change {
	var changes []Change
	for m := 0; m < Modules; m++ {
		for o := 0; o < Outputs; o++ {
			var old byte
			if prev != nil {
				old = prev.outputs[m][o]
			}
			if s.outputs[m][o] != old {
				changes = append(changes, Change{
					Module: m + 1,
					Output: o + 1,
					Old:    old,
					New:    s.outputs[m][o],
				})
			}
		}
	}
	return changes
}

// Raw reassembles the 128-byte payload form, module rows in order.
// The journal stores this form in checkpoints.
func (s *Snapshot) Raw() []byte {
	raw := make([]byte, 0, RawLen)
	for m := 0; m < Modules; m++ {
		raw = append(raw, s.outputs[m][:]...)
	}
	return raw
}
