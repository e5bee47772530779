// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal persists output-state history to SQLite.
//
// Two tables: changes holds one row per output transition (the diff
// between consecutive snapshots), checkpoints holds periodic full
// snapshots as deterministic CBOR blobs so history can be replayed
// from a known base without walking every change row. The session
// feeds the journal from its snapshot-publish path, off the socket
// lock - a slow disk never backs up poll traffic.
//
// Credentials and connection configuration are never stored here.
package journal
