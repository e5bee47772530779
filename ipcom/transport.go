// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import (
	"context"
	"net"
)

// Dialer opens the TCP connection for a session. It is the only
// transport capability a session holds; tests substitute an in-memory
// pipe, production uses NetDialer.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// NetDialer returns a Dialer backed by the operating system network
// stack.
func NetDialer() Dialer {
	return &net.Dialer{}
}

// selectEndpoint picks the address to dial. When a local address is
// configured and preferred, it is probed with a bounded TCP connect;
// the remote address is the fallback. The probe connection is closed
// immediately, the caller dials the winner itself.
func selectEndpoint(ctx context.Context, dialer Dialer, cfg *Config) string {
	if cfg.LocalAddr == "" || !cfg.PreferLocal {
		return cfg.RemoteAddr
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timing.ConnectTimeout)
	defer cancel()

	conn, err := dialer.DialContext(probeCtx, "tcp", cfg.LocalAddr)
	if err != nil {
		return cfg.RemoteAddr
	}
	conn.Close()
	return cfg.LocalAddr
}
