// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

var when = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func distinctRaw() []byte {
	raw := make([]byte, RawLen)
	for i := range raw {
		raw[i] = byte(i)
	}
	return raw
}

func TestBuildSplitsModulesInOrder(t *testing.T) {
	s, err := Build(distinctRaw(), when)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	m1, err := s.Module(1)
	if err != nil {
		t.Fatalf("Module(1): %v", err)
	}
	if !bytes.Equal(m1[:], []byte{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("module 1 = % x, want bytes 0-7", m1)
	}

	m16, err := s.Module(16)
	if err != nil {
		t.Fatalf("Module(16): %v", err)
	}
	if !bytes.Equal(m16[:], []byte{120, 121, 122, 123, 124, 125, 126, 127}) {
		t.Errorf("module 16 = % x, want bytes 120-127", m16)
	}

	v, err := s.Value(3, 5)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != 2*8+4 {
		t.Errorf("Value(3,5) = %d, want %d", v, 2*8+4)
	}
}

func TestBuildRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 127, 129, 130} {
		if _, err := Build(make([]byte, n), when); !errors.Is(err, ErrRawLength) {
			t.Errorf("Build(%d bytes) = %v, want ErrRawLength", n, err)
		}
	}
}

func TestValueRangeChecks(t *testing.T) {
	s, _ := Build(make([]byte, RawLen), when)
	if _, err := s.Value(0, 1); !errors.Is(err, ErrModuleRange) {
		t.Errorf("Value(0,1) = %v, want ErrModuleRange", err)
	}
	if _, err := s.Value(17, 1); !errors.Is(err, ErrModuleRange) {
		t.Errorf("Value(17,1) = %v, want ErrModuleRange", err)
	}
	if _, err := s.Value(1, 0); !errors.Is(err, ErrOutputRange) {
		t.Errorf("Value(1,0) = %v, want ErrOutputRange", err)
	}
	if _, err := s.Value(1, 9); !errors.Is(err, ErrOutputRange) {
		t.Errorf("Value(1,9) = %v, want ErrOutputRange", err)
	}
}

func TestOnAndPercent(t *testing.T) {
	raw := make([]byte, RawLen)
	raw[0] = 0   // module 1 output 1
	raw[1] = 255 // module 1 output 2
	raw[2] = 128 // module 1 output 3
	s, _ := Build(raw, when)

	if on, _ := s.On(1, 1); on {
		t.Error("On(1,1) = true for level 0")
	}
	if on, _ := s.On(1, 2); !on {
		t.Error("On(1,2) = false for level 255")
	}
	if pct, _ := s.Percent(1, 2); pct != 100 {
		t.Errorf("Percent(1,2) = %d, want 100", pct)
	}
	if pct, _ := s.Percent(1, 3); pct != 50 {
		t.Errorf("Percent(1,3) = %d, want 50", pct)
	}
}

func TestDiff(t *testing.T) {
	rawA := make([]byte, RawLen)
	rawA[0] = 255 // module 1 output 1
	rawA[38] = 10 // module 5 output 7
	prev, _ := Build(rawA, when)

	rawB := make([]byte, RawLen)
	rawB[0] = 255  // unchanged
	rawB[38] = 0   // switched off
	rawB[39] = 255 // module 5 output 8 switched on
	next, _ := Build(rawB, when.Add(350*time.Millisecond))

	changes := next.Diff(prev)
	want := []Change{
		{Module: 5, Output: 7, Old: 10, New: 0},
		{Module: 5, Output: 8, Old: 0, New: 255},
	}
	if len(changes) != len(want) {
		t.Fatalf("Diff produced %d changes, want %d: %+v", len(changes), len(want), changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, changes[i], want[i])
		}
	}
}

func TestDiffNilPrevSeedsNonZero(t *testing.T) {
	raw := make([]byte, RawLen)
	raw[8] = 42 // module 2 output 1
	s, _ := Build(raw, when)

	changes := s.Diff(nil)
	if len(changes) != 1 {
		t.Fatalf("Diff(nil) produced %d changes, want 1", len(changes))
	}
	if changes[0] != (Change{Module: 2, Output: 1, Old: 0, New: 42}) {
		t.Errorf("change = %+v", changes[0])
	}
}

func TestRawRoundTrip(t *testing.T) {
	raw := distinctRaw()
	s, _ := Build(raw, when)
	if !bytes.Equal(s.Raw(), raw) {
		t.Error("Raw() does not reproduce the input payload")
	}
}
