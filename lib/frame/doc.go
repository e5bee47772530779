// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame implements the IPCom byte-level frame format.
//
// A frame is one checksum-delimited unit on the controller's TCP
// link:
//
//	[bus?] [0x23] [to] [from] [len] [payload...] [checksum]
//
// The optional leading bus-selector byte is emitted only on outbound
// frames addressed through a non-zero bus; the controller never sends
// one back. The length field counts the payload plus the checksum
// byte, and the checksum is the XOR fold of the payload bytes only.
// Payload bytes are cipher text on the wire - the checksum is computed
// and verified before any cipher transform (see lib/cipher).
package frame
