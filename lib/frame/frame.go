// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import "errors"

// Sentinel is the frame start marker.
const Sentinel byte = 0x23

// MaxPayload is the largest payload a frame can carry: the one-byte
// length field counts payload plus checksum, capping the payload at
// 254 bytes. The protocol never uses more than 250 in practice, and
// decode fixtures are derived for that range, so the encoder enforces
// the observed ceiling.
const MaxPayload = 250

var (
	ErrInvalidSentinel  = errors.New("frame: invalid sentinel byte")
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
	ErrTruncated        = errors.New("frame: truncated")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
	ErrEmptyPayload     = errors.New("frame: empty payload")
)

// Frame is one complete wire unit. BusSelector 0 means no selector
// byte is emitted; the controllers address bus 1 and bus 2 links with
// a non-zero selector prefix.
type Frame struct {
	BusSelector byte
	To          byte
	From        byte
	Payload     []byte
}

// Checksum XOR-folds the payload bytes. The checksum of an all-zero
// payload is 0; flipping any single payload bit flips the checksum.
func Checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum ^= b
	}
	return sum
}

// Encode serializes f: optional bus selector, sentinel, destination,
// source, length (payload length + 1), payload, checksum.
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(f.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}

	size := 4 + len(f.Payload) + 1
	if f.BusSelector != 0 {
		size++
	}
	buf := make([]byte, 0, size)
	if f.BusSelector != 0 {
		buf = append(buf, f.BusSelector)
	}
	buf = append(buf, Sentinel, f.To, f.From, byte(len(f.Payload)+1))
	buf = append(buf, f.Payload...)
	buf = append(buf, Checksum(f.Payload))
	return buf, nil
}

// Decode parses one frame starting at b[0]. The input must begin with
// the sentinel (inbound frames carry no bus selector). Returns
// ErrInvalidSentinel when b[0] is not the start marker,
// ErrTruncated when b is shorter than the header or the length field
// promises more bytes than are present, and ErrChecksumMismatch when
// the trailing byte does not XOR-fold the payload.
func Decode(b []byte) (Frame, error) {
	if len(b) < 1 || b[0] != Sentinel {
		return Frame{}, ErrInvalidSentinel
	}
	if len(b) < 5 {
		return Frame{}, ErrTruncated
	}

	length := int(b[3])
	if length < 2 {
		return Frame{}, ErrTruncated
	}
	payloadLen := length - 1
	if len(b) < 4+payloadLen+1 {
		return Frame{}, ErrTruncated
	}

	payload := b[4 : 4+payloadLen]
	checksum := b[4+payloadLen]
	if Checksum(payload) != checksum {
		return Frame{}, ErrChecksumMismatch
	}

	out := Frame{To: b[1], From: b[2], Payload: make([]byte, payloadLen)}
	copy(out.Payload, payload)
	return out, nil
}

// WireSize returns the total encoded size of a frame whose length
// field is lengthField: header, payload, and checksum. It does not
// include a bus selector byte. Use this to delimit a frame in a
// stream once the four header bytes are available.
func WireSize(lengthField byte) int {
	return 4 + int(lengthField)
}
