// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/J-Delsinne/homeanywhere/lib/cipher"
	"github.com/J-Delsinne/homeanywhere/lib/clock"
	"github.com/J-Delsinne/homeanywhere/lib/command"
	"github.com/J-Delsinne/homeanywhere/lib/config"
	"github.com/J-Delsinne/homeanywhere/lib/snapshot"
)

// State is the session lifecycle position.
type State int

const (
	// NotConnected is the initial state before the first Connect.
	NotConnected State = iota
	// Connecting covers endpoint selection and the TCP dial.
	Connecting
	// Authenticating covers the encrypted connect exchange.
	Authenticating
	// Connected means the scheduler loops are running.
	Connected
	// Disconnected is reached after any teardown, deliberate or not.
	Disconnected
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "not-connected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Timing holds the scheduler cadences and socket timeouts.
type Timing struct {
	StatusInterval     time.Duration
	KeyboardInterval   time.Duration
	KeepAliveInterval  time.Duration
	DrainInterval      time.Duration
	KeepAliveThreshold int
	ConnectTimeout     time.Duration
	SendTimeout        time.Duration
	ReceiveTimeout     time.Duration
}

// DefaultTiming returns the cadences and timeouts observed from the
// official client. Sites override them through configuration, not by
// editing constants.
func DefaultTiming() Timing {
	return Timing{
		StatusInterval:     350 * time.Millisecond,
		KeyboardInterval:   475 * time.Millisecond,
		KeepAliveInterval:  30 * time.Second,
		DrainInterval:      250 * time.Millisecond,
		KeepAliveThreshold: 3,
		ConnectTimeout:     1 * time.Second,
		SendTimeout:        3 * time.Second,
		ReceiveTimeout:     6 * time.Second,
	}
}

// Recorder receives output changes and snapshot checkpoints off the
// poll path. The journal package implements it; a nil recorder
// disables recording.
type Recorder interface {
	RecordChanges(ctx context.Context, bus byte, at time.Time, changes []snapshot.Change) error
	Checkpoint(ctx context.Context, bus byte, snap *snapshot.Snapshot) error
}

// Config describes one controller session.
type Config struct {
	// Name identifies the controller in logs and the Manager registry.
	Name string

	// RemoteAddr is the controller's host:port.
	RemoteAddr string

	// LocalAddr is an optional LAN host:port for the same controller,
	// probed first when PreferLocal is set.
	LocalAddr   string
	PreferLocal bool

	// Username and Password authenticate the connect exchange.
	Username string
	Password string

	// Bus selects the hardware bus; LockBus requests exclusive use.
	Bus     byte
	LockBus bool

	// BusAddress is the frame address output writes are sent through.
	// Zero means command.DefaultBusAddress.
	BusAddress byte

	// Insecure starts the session with the cipher disabled. Normally
	// left false; the controller demands insecure mode on its own when
	// it wants it.
	Insecure bool

	// Timing defaults to DefaultTiming when zero.
	Timing Timing

	// Logger defaults to a discard logger. Clock and Dialer default to
	// the real implementations.
	Logger *slog.Logger
	Clock  clock.Clock
	Dialer Dialer

	// Recorder is optional; see Recorder.
	Recorder Recorder
}

// FromControllerConfig maps a configuration file entry onto a session
// Config. Ambient dependencies (logger, clock, dialer, recorder) stay
// zero for the caller to fill in.
func FromControllerConfig(ctrl config.ControllerConfig, timing config.TimingConfig) Config {
	cfg := Config{
		Name:        ctrl.Name,
		RemoteAddr:  net.JoinHostPort(ctrl.Host, fmt.Sprintf("%d", ctrl.Port)),
		PreferLocal: ctrl.PreferLocal,
		Username:    ctrl.Username,
		Password:    ctrl.Password,
		Bus:         ctrl.Bus,
		LockBus:     ctrl.LockBus,
		BusAddress:  ctrl.BusAddress,
		Insecure:    ctrl.Insecure,
		Timing: Timing{
			StatusInterval:     timing.StatusInterval.Std(),
			KeyboardInterval:   timing.KeyboardInterval.Std(),
			KeepAliveInterval:  timing.KeepAliveInterval.Std(),
			DrainInterval:      timing.DrainInterval.Std(),
			KeepAliveThreshold: timing.KeepAliveThreshold,
			ConnectTimeout:     timing.ConnectTimeout.Std(),
			SendTimeout:        timing.SendTimeout.Std(),
			ReceiveTimeout:     timing.ReceiveTimeout.Std(),
		},
	}
	if ctrl.LocalHost != "" {
		cfg.LocalAddr = net.JoinHostPort(ctrl.LocalHost, fmt.Sprintf("%d", ctrl.Port))
	}
	return cfg
}

type outputKey struct {
	module int
	output int
}

// Session is one connection to one controller bus. All mutable state
// is confined to the session and guarded by one lock, which doubles
// as the half-duplex socket lock: holding it across a write and the
// following read is what keeps request and response paired.
type Session struct {
	cfg    Config
	logger *slog.Logger
	clk    clock.Clock
	dialer Dialer

	statusEvents   *dispatcher[StatusChange]
	snapshotEvents *dispatcher[*snapshot.Snapshot]
	keyboardEvents *dispatcher[[]byte]

	mu         sync.Mutex
	state      State
	closed     bool
	generation uint64
	conn       net.Conn
	ciph       *cipher.Cipher
	cancel     context.CancelFunc
	unanswered int
	processing bool
	queue      []*pendingCommand
	latest     *snapshot.Snapshot
	pending    map[outputKey]byte
}

// NewSession builds a session in the NotConnected state. Nothing
// touches the network until Connect.
func NewSession(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = NetDialer()
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	if cfg.BusAddress == 0 {
		cfg.BusAddress = command.DefaultBusAddress
	}

	s := &Session{
		cfg:            cfg,
		logger:         cfg.Logger.With("controller", cfg.Name, "bus", cfg.Bus),
		clk:            cfg.Clock,
		dialer:         cfg.Dialer,
		statusEvents:   newDispatcher[StatusChange](),
		snapshotEvents: newDispatcher[*snapshot.Snapshot](),
		keyboardEvents: newDispatcher[[]byte](),
		ciph:           cipher.New(),
		pending:        make(map[outputKey]byte),
	}
	s.ciph.SetSecure(!cfg.Insecure)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LatestSnapshot returns the most recent output snapshot, or nil
// before the first status poll completes. Snapshots are immutable;
// callers may hold the pointer indefinitely.
func (s *Session) LatestSnapshot() *snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// OnConnectionStatusChanged registers a callback for state
// transitions. Delivery is at-least-once and FIFO within this kind;
// callbacks run on the dispatcher goroutine and must not block.
func (s *Session) OnConnectionStatusChanged(fn func(StatusChange)) {
	s.statusEvents.subscribe(fn)
}

// OnSnapshotUpdated registers a callback for new output snapshots.
func (s *Session) OnSnapshotUpdated(fn func(*snapshot.Snapshot)) {
	s.snapshotEvents.subscribe(fn)
}

// OnKeyboardStatus registers a callback for keyboard poll payloads.
func (s *Session) OnKeyboardStatus(fn func([]byte)) {
	s.keyboardEvents.subscribe(fn)
}

// Connect dials the controller, runs the handshake, and starts the
// scheduler. Calls while a connect is in flight or the session is
// already connected are no-ops. A failed handshake leaves the session
// Disconnected with no partial state.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	switch s.state {
	case Connecting, Authenticating, Connected:
		s.mu.Unlock()
		return nil
	}
	s.state = Connecting
	gen := s.generation
	s.mu.Unlock()
	s.statusEvents.publish(StatusChange{State: Connecting})

	addr := selectEndpoint(ctx, s.dialer, &s.cfg)
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.Timing.ConnectTimeout)
	conn, err := s.dialer.DialContext(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		err = fmt.Errorf("dialing %s: %w", addr, err)
		s.abortConnect(gen, err)
		return err
	}

	s.mu.Lock()
	if s.generation != gen || s.state != Connecting {
		// Disconnect won the race; drop the fresh socket.
		s.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	s.conn = conn
	s.state = Authenticating
	s.mu.Unlock()
	s.logger.Info("connected", "addr", addr)
	s.statusEvents.publish(StatusChange{State: Authenticating})

	if err := s.authenticate(); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	if s.generation != gen || s.state != Authenticating {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.state = Connected
	s.unanswered = 0
	s.processing = false
	s.startSchedulerLocked()
	s.mu.Unlock()
	s.statusEvents.publish(StatusChange{State: Connected})
	return nil
}

// abortConnect rolls back a failed dial, which has no socket or
// scheduler to tear down.
func (s *Session) abortConnect(gen uint64, err error) {
	s.mu.Lock()
	if s.generation != gen || s.state != Connecting {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.state = Disconnected
	s.mu.Unlock()
	s.logger.Warn("connect failed", "error", err)
	s.statusEvents.publish(StatusChange{State: Disconnected, Err: err})
}

// Disconnect tears the session down from any state. A best-effort
// disconnect command goes out first if the socket is open. Idempotent
// and safe to call from subscription callbacks or failure handlers.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == Disconnected || s.state == NotConnected {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		// The controller also handles a plain TCP close, so a failed
		// write here is not an error.
		if err := s.writeLocked(command.Disconnect()); err != nil {
			s.logger.Debug("disconnect command not sent", "error", err)
		}
	}
	s.teardownLocked()
	s.mu.Unlock()
	s.logger.Info("disconnected")
	s.statusEvents.publish(StatusChange{State: Disconnected})
}

// Close permanently shuts the session down: teardown plus dispatcher
// shutdown. The session cannot be reconnected afterwards.
func (s *Session) Close() {
	s.Disconnect()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.statusEvents.close()
	s.snapshotEvents.close()
	s.keyboardEvents.close()
}

// fail converts any transport or liveness error into a teardown and a
// Disconnected notification. Idempotent: after the first failure wins,
// later calls from other loops see a dead session and return.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state != Connected && s.state != Authenticating {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	s.mu.Unlock()
	s.logger.Warn("session failed", "error", err)
	s.statusEvents.publish(StatusChange{State: Disconnected, Err: err})
}

// teardownLocked cancels the scheduler, closes the socket, clears the
// cipher key, and drops queued commands. Caller holds s.mu and is
// responsible for the Disconnected notification.
func (s *Session) teardownLocked() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.ciph.ResetKey()
	s.ciph.SetSecure(!s.cfg.Insecure)
	s.state = Disconnected
	s.unanswered = 0
	s.processing = false
	s.pending = make(map[outputKey]byte)

	for _, pc := range s.queue {
		pc.result <- CommandResult{Err: ErrCommandDropped}
	}
	s.queue = nil

	if s.cfg.Recorder != nil && s.latest != nil {
		snap := s.latest
		go func() {
			if err := s.cfg.Recorder.Checkpoint(context.Background(), s.cfg.Bus, snap); err != nil {
				s.logger.Warn("checkpoint failed", "error", err)
			}
		}()
	}
}

// writeLocked encrypts one command and writes it under the send
// deadline. Caller holds s.mu.
func (s *Session) writeLocked(plain []byte) error {
	buf := make([]byte, len(plain))
	copy(buf, plain)
	s.ciph.TransformOutbound(buf)

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.Timing.SendTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := s.conn.Write(buf); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	return nil
}

// exchangeLocked performs one half-duplex round trip: write the
// request, then read exactly one response. want > 0 reads exactly that
// many bytes; want == 0 accepts a single read burst for responses of
// variable length. The whole ciphertext is assembled before the
// inbound transform because the chaining index runs over the complete
// message. Caller holds s.mu.
func (s *Session) exchangeLocked(req []byte, want int) ([]byte, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	if err := s.writeLocked(req); err != nil {
		return nil, err
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.Timing.ReceiveTimeout)); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}

	var resp []byte
	if want > 0 {
		resp = make([]byte, want)
		if _, err := io.ReadFull(s.conn, resp); err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
	} else {
		buf := make([]byte, 512)
		n, err := s.conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		resp = buf[:n]
	}

	s.ciph.TransformInbound(resp)
	return resp, nil
}

// applySnapshot replaces the latest snapshot wholesale, confirms
// shadow writes, publishes the update, and hands the diff to the
// recorder off the socket lock.
func (s *Session) applySnapshot(raw []byte) {
	snap, err := snapshot.Build(raw, s.clk.Now())
	if err != nil {
		s.logger.Warn("dropping malformed status payload", "error", err)
		return
	}

	s.mu.Lock()
	prev := s.latest
	s.latest = snap
	for key, want := range s.pending {
		got, err := snap.Value(key.module, key.output)
		if err == nil && got == want {
			delete(s.pending, key)
		}
	}
	s.mu.Unlock()

	s.snapshotEvents.publish(snap)

	if s.cfg.Recorder != nil {
		changes := snap.Diff(prev)
		if len(changes) > 0 {
			go func() {
				if err := s.cfg.Recorder.RecordChanges(context.Background(), s.cfg.Bus, snap.TakenAt(), changes); err != nil {
					s.logger.Warn("recording changes failed", "error", err)
				}
			}()
		}
	}
}
