// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package cipher

import (
	"bytes"
	"testing"
)

func testPayloads() [][]byte {
	payloads := [][]byte{
		{0x05, 0x01},
		{0x00},
		{0xff},
		bytes.Repeat([]byte{0x00}, 128),
		bytes.Repeat([]byte{0xff}, 135),
	}
	sweep := make([]byte, 130)
	for i := range sweep {
		sweep[i] = byte(i * 3)
	}
	return append(payloads, sweep)
}

func TestRoundTripFallbackKey(t *testing.T) {
	c := New()
	for _, payload := range testPayloads() {
		buf := append([]byte(nil), payload...)
		c.TransformOutbound(buf)
		if len(payload) > 0 && bytes.Equal(buf, payload) {
			t.Errorf("outbound transform left % x unchanged", payload)
		}
		c.TransformInbound(buf)
		if !bytes.Equal(buf, payload) {
			t.Errorf("round trip: got % x, want % x", buf, payload)
		}
	}
}

func TestRoundTripWithSessionKey(t *testing.T) {
	key := make([]byte, 128)
	for i := range key {
		key[i] = byte(191 - i)
	}
	c := New()
	if err := c.SetSessionKey(key); err != nil {
		t.Fatalf("SetSessionKey: %v", err)
	}
	for _, payload := range testPayloads() {
		buf := append([]byte(nil), payload...)
		c.TransformOutbound(buf)
		c.TransformInbound(buf)
		if !bytes.Equal(buf, payload) {
			t.Errorf("round trip with key: got % x, want % x", buf, payload)
		}
	}
}

func TestSessionKeyChangesCiphertext(t *testing.T) {
	payload := []byte{0x05, 0x01, 0x20, 0x30}

	without := append([]byte(nil), payload...)
	New().TransformOutbound(without)

	withKey := New()
	if err := withKey.SetSessionKey([]byte{9, 9, 9, 9}); err != nil {
		t.Fatalf("SetSessionKey: %v", err)
	}
	with := append([]byte(nil), payload...)
	withKey.TransformOutbound(with)

	if bytes.Equal(without, with) {
		t.Error("session key had no effect on ciphertext")
	}
}

func TestResetKeyRevertsToFallback(t *testing.T) {
	payload := []byte{0x03, 0x01}

	baseline := append([]byte(nil), payload...)
	New().TransformOutbound(baseline)

	c := New()
	if err := c.SetSessionKey([]byte{1, 2, 3}); err != nil {
		t.Fatalf("SetSessionKey: %v", err)
	}
	c.ResetKey()
	if c.HasSessionKey() {
		t.Error("HasSessionKey after ResetKey")
	}
	buf := append([]byte(nil), payload...)
	c.TransformOutbound(buf)
	if !bytes.Equal(buf, baseline) {
		t.Errorf("after ResetKey: got % x, want % x", buf, baseline)
	}
}

func TestEmptySessionKeyFallsBack(t *testing.T) {
	payload := []byte{0x05, 0x01, 0x42}

	baseline := append([]byte(nil), payload...)
	New().TransformOutbound(baseline)

	c := New()
	if err := c.SetSessionKey(nil); err != nil {
		t.Fatalf("SetSessionKey(nil): %v", err)
	}
	buf := append([]byte(nil), payload...)
	c.TransformOutbound(buf)
	if !bytes.Equal(buf, baseline) {
		t.Error("empty session key must behave like no key")
	}
}

func TestSessionKeyTooLong(t *testing.T) {
	if err := New().SetSessionKey(make([]byte, 129)); err != ErrSessionKeyTooLong {
		t.Errorf("SetSessionKey(129 bytes) = %v, want ErrSessionKeyTooLong", err)
	}
}

func TestInsecureModeIsIdentity(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	c := New()
	c.SetSecure(false)
	buf := append([]byte(nil), payload...)
	c.TransformOutbound(buf)
	if !bytes.Equal(buf, payload) {
		t.Error("insecure outbound transform modified buffer")
	}
	c.TransformInbound(buf)
	if !bytes.Equal(buf, payload) {
		t.Error("insecure inbound transform modified buffer")
	}
}

func TestKeyTableRotation(t *testing.T) {
	for i := 0; i < 256; i++ {
		if staticKeyB[i] != staticKeyA[(i+128)%256] {
			t.Fatalf("staticKeyB[%d] = %d, want staticKeyA[%d] = %d",
				i, staticKeyB[i], (i+128)%256, staticKeyA[(i+128)%256])
		}
	}
}

func TestShortBufferKnownBytes(t *testing.T) {
	// First byte: index = 0^0 = 0, so out = in ^ staticKeyB[0].
	buf := []byte{0x00}
	New().TransformOutbound(buf)
	if buf[0] != staticKeyB[0] {
		t.Errorf("first byte = %#x, want %#x", buf[0], staticKeyB[0])
	}
}
