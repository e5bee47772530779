// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import "errors"

var (
	// ErrHandshakeRejected is returned when the controller refuses the
	// connect exchange. Terminal: retrying with the same credentials
	// will not succeed, so the session never retries on its own.
	ErrHandshakeRejected = errors.New("ipcom: handshake rejected")

	// ErrStaleConnection reports a session torn down because too many
	// consecutive keep-alives went unanswered.
	ErrStaleConnection = errors.New("ipcom: connection stale")

	// ErrNotConnected rejects commands submitted while the session is
	// not in the Connected state. Commands are never queued across a
	// disconnect.
	ErrNotConnected = errors.New("ipcom: not connected")

	// ErrCommandDropped resolves the subscription of a queued command
	// that was still pending when the session went down.
	ErrCommandDropped = errors.New("ipcom: command dropped at disconnect")

	// ErrNoSnapshot is returned by SetOutput before the first status
	// poll has completed. Output writes replace a whole module block,
	// so they need current values to start from.
	ErrNoSnapshot = errors.New("ipcom: no snapshot available yet")

	// ErrSessionClosed is returned by Connect on a session that has
	// been permanently closed via Close.
	ErrSessionClosed = errors.New("ipcom: session closed")
)
