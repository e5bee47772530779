// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

// Package cipher implements the IPCom session stream transform.
//
// The controller obscures traffic with a table-driven XOR chain, not a
// real cipher: two fixed 256-byte tables (B is A rotated by 128) plus
// an optional per-session key echoed back by the controller during the
// handshake. This provides no confidentiality against anyone holding
// the tables - which ship in every client binary - and is reproduced
// here solely because the controller requires it. Do not mistake it
// for transport security; run the link over a trusted network.
//
// The outbound and inbound transforms differ only in how the chaining
// index advances: both chain on the ciphertext byte, which on the
// outbound side is the byte just produced and on the inbound side the
// byte just consumed. That asymmetry is what makes the pair
// self-inverse, and it must not be "simplified" away.
package cipher
