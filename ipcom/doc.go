// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipcom manages authenticated sessions against HomeAnywhere
// IPCom bus controllers.
//
// A Session owns one TCP connection and everything scheduled on it:
// the encrypted handshake, the status and keyboard polls, keep-alives,
// and the outbound command queue. The protocol is strictly half-duplex
// with one response per request, so all socket traffic serializes
// through a single lock that pairs every write with exactly one read.
// Four background loops share that lock once a session reaches the
// Connected state; one shared cancellation stops them all.
//
// Sessions deliver output snapshots, keyboard status, and connection
// changes through per-kind subscription channels. Reconnection is the
// caller's job: any transport failure tears the session down, reports
// a Disconnected event with the reason, and leaves the session ready
// for another Connect.
//
// A Manager deduplicates sessions by controller name and bus number so
// independent consumers share one connection per controller.
package ipcom
