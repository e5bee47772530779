// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"

	"github.com/J-Delsinne/homeanywhere/lib/frame"
)

// ID identifies a command. The controller uses the same ID for a
// request and its response.
type ID byte

const (
	IDConnect          ID = 1
	IDDisconnect       ID = 2
	IDKeepAlive        ID = 3
	IDFrame            ID = 4
	IDExoOutputs       ID = 5
	IDKeyboardStatus   ID = 6
	IDNonSecureConnect ID = 14
	IDTriCom           ID = 35
)

// Versions observed on the wire. Connect is the only command the
// controller versions separately.
const (
	connectVersion = 2
	commandVersion = 1
)

// credentialFieldLen is the fixed width of the USER: and PWD: fields
// in the connect payload, space padded.
const credentialFieldLen = 26

// ConnectPayloadLen is the fixed size of an encoded connect request.
const ConnectPayloadLen = 2 + 2*credentialFieldLen + 2

// connectResponseKeyEnd is one past the last session-key byte in a
// full connect response payload; the key occupies bytes 7..135.
const (
	connectResponseKeyStart = 7
	connectResponseKeyEnd   = 135
)

var (
	ErrCredentialTooLong = errors.New("command: credential field exceeds 26 bytes")
	ErrShortResponse     = errors.New("command: response too short")
	ErrWrongCommand      = errors.New("command: unexpected command id")
	ErrModuleRange       = errors.New("command: module out of range 1-16")
)

// Name returns a human-readable command name for logs.
func (id ID) Name() string {
	switch id {
	case IDConnect:
		return "connect"
	case IDDisconnect:
		return "disconnect"
	case IDKeepAlive:
		return "keepalive"
	case IDFrame:
		return "frame"
	case IDExoOutputs:
		return "exo-outputs"
	case IDKeyboardStatus:
		return "keyboard-status"
	case IDNonSecureConnect:
		return "nonsecure-connect"
	case IDTriCom:
		return "tricom"
	}
	return fmt.Sprintf("unknown(%d)", byte(id))
}

// EncodeConnect builds the authentication payload:
//
//	[1] [2] ["USER:"+username padded to 26] ["PWD:"+password padded to 26] [bus] [busLock]
//
// The credential fields are ASCII, space padded on the right. Returns
// ErrCredentialTooLong if either prefixed field exceeds its 26 bytes.
func EncodeConnect(username, password string, busNumber, busLock byte) ([]byte, error) {
	user := "USER:" + username
	pwd := "PWD:" + password
	if len(user) > credentialFieldLen || len(pwd) > credentialFieldLen {
		return nil, ErrCredentialTooLong
	}

	payload := make([]byte, 0, ConnectPayloadLen)
	payload = append(payload, byte(IDConnect), connectVersion)
	payload = appendPadded(payload, user)
	payload = appendPadded(payload, pwd)
	payload = append(payload, busNumber, busLock)
	return payload, nil
}

func appendPadded(dst []byte, s string) []byte {
	dst = append(dst, s...)
	for i := len(s); i < credentialFieldLen; i++ {
		dst = append(dst, ' ')
	}
	return dst
}

// ConnectResponse is the controller's answer to a connect request.
type ConnectResponse struct {
	// Status is 1 on success. Any other value is a rejection.
	Status byte

	// VersionTag is the four-character ASCII firmware tag, present
	// only in full responses.
	VersionTag string

	// SessionKey is the echoed key blob (bytes 7..135 of the
	// payload), nil when the response is too short to carry one.
	SessionKey []byte

	// NonSecure is set when the controller demands the insecure
	// handshake mode instead of answering the connect.
	NonSecure bool
}

// OK reports whether the response accepts the connection.
func (r ConnectResponse) OK() bool {
	return r.NonSecure || r.Status == 1
}

// ParseConnectResponse decodes a connect response payload. Three
// shapes occur on the wire:
//
//   - [14 101 ...]: the controller demands a non-secure handshake.
//   - exactly 3 bytes: a bare status, byte 0 carrying the failure
//     code (or 1 for a keyless accept).
//   - full response: byte 0 status, bytes 2..6 the ASCII version tag,
//     bytes 7..135 the session key blob.
func ParseConnectResponse(payload []byte) (ConnectResponse, error) {
	if len(payload) == 0 {
		return ConnectResponse{}, ErrShortResponse
	}

	if len(payload) >= 2 && ID(payload[0]) == IDNonSecureConnect && payload[1] == 101 {
		return ConnectResponse{NonSecure: true}, nil
	}

	resp := ConnectResponse{Status: payload[0]}
	if len(payload) <= 3 {
		return resp, nil
	}

	if len(payload) >= 6 {
		resp.VersionTag = string(payload[2:6])
	}
	if len(payload) >= connectResponseKeyEnd {
		resp.SessionKey = append([]byte(nil), payload[connectResponseKeyStart:connectResponseKeyEnd]...)
	}
	return resp, nil
}

// ExoOutputsRequest builds the status poll request.
func ExoOutputsRequest() []byte {
	return []byte{byte(IDExoOutputs), commandVersion}
}

// OutputBlockLen is the size of the module output block in a status
// response: 16 modules of 8 outputs each.
const OutputBlockLen = 128

// ParseExoOutputsResponse extracts the 128-byte output block from a
// status response ([5 1] header plus the block).
func ParseExoOutputsResponse(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, ErrShortResponse
	}
	if ID(payload[0]) != IDExoOutputs {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongCommand, ID(payload[0]).Name(), IDExoOutputs.Name())
	}
	if len(payload) < 2+OutputBlockLen {
		return nil, ErrShortResponse
	}
	block := make([]byte, OutputBlockLen)
	copy(block, payload[2:2+OutputBlockLen])
	return block, nil
}

// KeyboardStatusRequest builds the keyboard poll request.
func KeyboardStatusRequest() []byte {
	return []byte{byte(IDKeyboardStatus), commandVersion}
}

// ParseKeyboardStatusResponse strips the [6 1] header and returns the
// keyboard payload. The block length varies with the installed
// keypads, so anything after the header passes through.
func ParseKeyboardStatusResponse(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, ErrShortResponse
	}
	if ID(payload[0]) != IDKeyboardStatus {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongCommand, ID(payload[0]).Name(), IDKeyboardStatus.Name())
	}
	return append([]byte(nil), payload[2:]...), nil
}

// KeepAlive builds the liveness command.
func KeepAlive() []byte {
	return []byte{byte(IDKeepAlive), commandVersion}
}

// Disconnect builds the session teardown command.
func Disconnect() []byte {
	return []byte{byte(IDDisconnect), commandVersion}
}

// WrapFrame wraps encoded frame bytes as a FrameCommand ([4 1] plus
// the frame).
func WrapFrame(frameBytes []byte) []byte {
	out := make([]byte, 0, 2+len(frameBytes))
	out = append(out, byte(IDFrame), commandVersion)
	return append(out, frameBytes...)
}

// DefaultBusAddress is the base destination address of the output
// modules; module N answers at DefaultBusAddress + N - 1.
const DefaultBusAddress = 60

// SetOutputs builds a FrameCommand that writes all eight output
// values of one module. The controller applies the whole block, so
// callers must pass the current values for outputs they do not intend
// to change - sending zeros switches those outputs off. The frame
// payload is [1] followed by the eight values.
func SetOutputs(module int, values [8]byte, busAddress, busNumber byte) ([]byte, error) {
	if module < 1 || module > 16 {
		return nil, fmt.Errorf("%w: %d", ErrModuleRange, module)
	}

	payload := make([]byte, 0, 9)
	payload = append(payload, 1)
	payload = append(payload, values[:]...)

	encoded, err := frame.Encode(frame.Frame{
		BusSelector: busNumber,
		To:          busAddress + byte(module-1),
		From:        0,
		Payload:     payload,
	})
	if err != nil {
		return nil, err
	}
	return WrapFrame(encoded), nil
}
