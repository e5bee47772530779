// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/J-Delsinne/homeanywhere/lib/clock"
)

func TestManagerDeduplicatesSessions(t *testing.T) {
	m := NewManager(ManagerConfig{Clock: clock.Fake(time.Now())})
	defer m.Close()

	first := m.Session(Config{Name: "villa", Bus: 1, RemoteAddr: "a:5000"})
	again := m.Session(Config{Name: "villa", Bus: 1, RemoteAddr: "a:5000"})
	if first != again {
		t.Error("same (controller, bus) key produced two sessions")
	}

	otherBus := m.Session(Config{Name: "villa", Bus: 2, RemoteAddr: "a:5000"})
	if otherBus == first {
		t.Error("different bus shares a session")
	}
	otherController := m.Session(Config{Name: "garage", Bus: 1, RemoteAddr: "b:5000"})
	if otherController == first {
		t.Error("different controller shares a session")
	}
}

func TestManagerGet(t *testing.T) {
	m := NewManager(ManagerConfig{Clock: clock.Fake(time.Now())})
	defer m.Close()

	created := m.Session(Config{Name: "villa", Bus: 1, RemoteAddr: "a:5000"})

	got, ok := m.Get(Key{Controller: "villa", Bus: 1})
	if !ok || got != created {
		t.Errorf("Get = (%v, %v), want the created session", got, ok)
	}
	if _, ok := m.Get(Key{Controller: "missing", Bus: 1}); ok {
		t.Error("Get returned a session for an unknown key")
	}
}

func TestManagerFillsAmbientDependencies(t *testing.T) {
	clk := clock.Fake(time.Now())
	m := NewManager(ManagerConfig{Clock: clk, Dialer: &pipeDialer{}})
	defer m.Close()

	s := m.Session(Config{Name: "villa", Bus: 1, RemoteAddr: "a:5000"})
	if s.clk != clk {
		t.Error("session did not inherit the manager clock")
	}

	// The inherited dialer is empty, so a connect attempt must fail
	// through it rather than through a real network dial.
	if err := s.Connect(context.Background()); err == nil {
		t.Error("Connect through empty inherited dialer succeeded")
	}
}

func TestManagerClose(t *testing.T) {
	m := NewManager(ManagerConfig{Clock: clock.Fake(time.Now())})

	s := m.Session(Config{Name: "villa", Bus: 1, RemoteAddr: "a:5000"})
	m.Close()

	if err := s.Connect(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Connect after manager close = %v, want ErrSessionClosed", err)
	}
	if _, ok := m.Get(Key{Controller: "villa", Bus: 1}); ok {
		t.Error("registry still holds sessions after Close")
	}
}
