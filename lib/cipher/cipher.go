// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package cipher

import (
	"errors"
	"sync"
)

// MaxSessionKeyLen bounds the per-session key the controller echoes in
// its connect response (bytes 7..135 of the payload).
const MaxSessionKeyLen = 128

var ErrSessionKeyTooLong = errors.New("cipher: session key exceeds 128 bytes")

// Cipher holds the per-session transform state. Before the handshake
// completes there is no session key and both directions use table B
// alone. Once SetSessionKey is called, both directions use table A
// XORed with the session key. ResetKey reverts to the pre-handshake
// mode; SetSecure(false) makes both transforms identity, which the
// controller demands through a NonSecureConnect response.
//
// Cipher is safe for concurrent use, though the session serializes
// all wire traffic under its own lock anyway.
type Cipher struct {
	mu         sync.Mutex
	sessionKey []byte
	secure     bool
}

// New returns a Cipher in secure mode with no session key.
func New() *Cipher {
	return &Cipher{secure: true}
}

// SetSessionKey installs the key blob echoed by the controller. The
// key applies to every subsequent transform in both directions.
func (c *Cipher) SetSessionKey(key []byte) error {
	if len(key) > MaxSessionKeyLen {
		return ErrSessionKeyTooLong
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionKey = append([]byte(nil), key...)
	return nil
}

// ResetKey clears the session key, reverting to the fallback table.
// Called on disconnect so a stale key never bleeds into the next
// handshake.
func (c *Cipher) ResetKey() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionKey = nil
}

// HasSessionKey reports whether a non-empty session key is installed.
func (c *Cipher) HasSessionKey() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessionKey) > 0
}

// SetSecure toggles the transform on or off. Off means both
// directions pass bytes through untouched.
func (c *Cipher) SetSecure(secure bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secure = secure
}

// Secure reports whether the transform is enabled.
func (c *Cipher) Secure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secure
}

// TransformOutbound enciphers buf in place. The chaining index starts
// at zero for every call and advances on the ciphertext byte just
// produced.
func (c *Cipher) TransformOutbound(buf []byte) {
	c.transform(buf, true)
}

// TransformInbound deciphers buf in place. The chaining index starts
// at zero for every call and advances on the ciphertext byte just
// consumed - the input byte before the XOR, not the plaintext result.
// This is the only difference from the outbound direction and is what
// makes the two transforms inverses of each other.
func (c *Cipher) TransformInbound(buf []byte) {
	c.transform(buf, false)
}

func (c *Cipher) transform(buf []byte, outbound bool) {
	c.mu.Lock()
	key := c.sessionKey
	secure := c.secure
	c.mu.Unlock()

	if !secure {
		return
	}

	// Wire messages are at most 135 bytes, so the position never
	// overflows the byte-sized chaining index.
	var idx byte
	for i := range buf {
		idx ^= byte(i)
		in := buf[i]
		var out byte
		if len(key) > 0 {
			out = in ^ staticKeyA[idx] ^ key[int(idx)%len(key)]
		} else {
			out = in ^ staticKeyB[idx]
		}
		buf[i] = out
		if outbound {
			idx = out
		} else {
			idx = in
		}
	}
}
