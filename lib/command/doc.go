// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

// Package command implements the typed request/response layer of the
// IPCom protocol.
//
// Every command starts with a one-byte ID and a one-byte version.
// Connect, disconnect, keep-alive, and the two status polls are fixed
// shapes; FrameCommand wraps an arbitrary bus frame (lib/frame) for
// device control. Commands are plaintext here - the session applies
// the cipher transform immediately before the bytes hit the socket.
package command
