// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/zeebo/blake3"

	"github.com/J-Delsinne/homeanywhere/lib/command"
)

// connectResponseFullLen is the wire size of a connect response that
// carries a session key. Shorter responses are a bare status (3 bytes)
// or a non-secure demand (2 bytes).
const connectResponseFullLen = 135

// authenticate runs the encrypted connect exchange. The request goes
// out raw, not framed; the controller rejects framed connects. A
// non-secure demand toggles the cipher mode and retries exactly once.
// Any rejection or malformed answer is terminal.
func (s *Session) authenticate() error {
	payload, err := command.EncodeConnect(s.cfg.Username, s.cfg.Password, s.cfg.Bus, busLockByte(s.cfg.LockBus))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
	}

	for attempt := 0; ; attempt++ {
		raw, err := s.connectExchange(payload)
		if err != nil {
			return err
		}

		resp, err := command.ParseConnectResponse(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
		}

		if resp.NonSecure {
			if attempt > 0 {
				return fmt.Errorf("%w: non-secure demand repeated", ErrHandshakeRejected)
			}
			s.logger.Warn("controller demands non-secure session, retrying")
			s.ciph.ResetKey()
			s.ciph.SetSecure(!s.ciph.Secure())
			continue
		}

		if !resp.OK() {
			return fmt.Errorf("%w: status %d", ErrHandshakeRejected, resp.Status)
		}

		if len(resp.SessionKey) > 0 {
			if err := s.ciph.SetSessionKey(resp.SessionKey); err != nil {
				return fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
			}
			s.logger.Info("handshake accepted",
				"firmware", resp.VersionTag,
				"key_fingerprint", keyFingerprint(resp.SessionKey))
		} else {
			s.logger.Info("handshake accepted without session key")
		}
		return nil
	}
}

// connectExchange sends the connect payload and assembles one complete
// response. The response length is not known up front, so the first
// burst decides: a full response may arrive fragmented and is read to
// completion, while the short shapes fit a single burst. Decryption
// happens once over the assembled ciphertext because the chaining
// index runs over the whole message.
func (s *Session) connectExchange(payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, ErrNotConnected
	}
	if err := s.writeLocked(payload); err != nil {
		return nil, err
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.Timing.ReceiveTimeout)); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}

	buf := make([]byte, connectResponseFullLen)
	n, err := s.conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("reading connect response: %w", err)
	}
	if n > 3 && n < connectResponseFullLen {
		if _, err := io.ReadFull(s.conn, buf[n:]); err != nil {
			return nil, fmt.Errorf("reading connect response tail: %w", err)
		}
		n = connectResponseFullLen
	}

	resp := buf[:n]
	s.ciph.TransformInbound(resp)
	return resp, nil
}

func busLockByte(lock bool) byte {
	if lock {
		return 1
	}
	return 0
}

// keyFingerprint returns a short blake3 digest of the session key for
// log correlation. The key itself never reaches the logs.
func keyFingerprint(key []byte) string {
	sum := blake3.Sum256(key)
	return hex.EncodeToString(sum[:8])
}
