// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction.
//
// The IPCom session runs four independently timed loops (status poll,
// keyboard poll, keep-alive, queue drain). Testing those loops against
// the wall clock would mean sleeping through hundreds of milliseconds
// per assertion, so every timed component accepts a Clock instead of
// calling the time package directly. Production wiring passes Real();
// tests pass Fake() and move time explicitly with Advance.
//
// # Fake synchronization
//
// A goroutine that calls After, NewTicker, or Sleep on a FakeClock
// registers a pending waiter. Tests call WaitForTimers to block until
// the expected number of waiters exist before calling Advance, which
// removes the race between waiter registration and time advancement.
package clock
