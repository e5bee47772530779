// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/J-Delsinne/homeanywhere/lib/codec"
	"github.com/J-Delsinne/homeanywhere/lib/snapshot"
)

const schema = `
CREATE TABLE IF NOT EXISTS changes (
	at      INTEGER NOT NULL,
	bus     INTEGER NOT NULL,
	module  INTEGER NOT NULL,
	output  INTEGER NOT NULL,
	old     INTEGER NOT NULL,
	new     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS changes_at ON changes (at);
CREATE INDEX IF NOT EXISTS changes_addr ON changes (bus, module, output, at);

CREATE TABLE IF NOT EXISTS checkpoints (
	at    INTEGER NOT NULL,
	bus   INTEGER NOT NULL,
	state BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS checkpoints_at ON checkpoints (bus, at);
`

// Config holds the parameters for opening a journal.
type Config struct {
	// Path is the SQLite database file. The parent directory must
	// exist; the file is created on first open. ":memory:" works for
	// tests with PoolSize 1.
	Path string

	// PoolSize is the connection pool size. Defaults to 2: the
	// session writes, readers query history.
	PoolSize int

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Journal is an append-only history of output changes for one or more
// buses. Safe for concurrent use; each call borrows its own pooled
// connection.
type Journal struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// ChangeRecord is one persisted output transition.
type ChangeRecord struct {
	At     time.Time
	Bus    byte
	Module int
	Output int
	Old    byte
	New    byte
}

// checkpointBlob is the CBOR shape stored in the checkpoints table.
type checkpointBlob struct {
	Outputs []byte `cbor:"outputs"`
}

// Open creates or opens the journal database and applies the schema.
// The caller must Close when done.
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", cfg.Path, err)
	}

	j := &Journal{pool: pool, logger: logger, path: cfg.Path}

	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: initializing %s: %w", cfg.Path, err)
	}
	defer pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: applying schema: %w", err)
	}

	logger.Info("journal opened", "path", cfg.Path)
	return j, nil
}

// prepareConnection applies the standard pragmas once per pooled
// connection. WAL keeps change appends from blocking history reads.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("journal: %s: %w", pragma, err)
		}
	}
	return nil
}

// RecordChanges appends one row per change, all in one transaction.
// A nil or empty change list is a no-op.
func (j *Journal) RecordChanges(ctx context.Context, bus byte, at time.Time, changes []snapshot.Change) (err error) {
	if len(changes) == 0 {
		return nil
	}

	conn, err := j.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: record changes: %w", err)
	}
	defer j.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("journal: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, change := range changes {
		err = sqlitex.Execute(conn,
			"INSERT INTO changes (at, bus, module, output, old, new) VALUES (?, ?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{
					at.UnixNano(),
					int(bus),
					change.Module,
					change.Output,
					int(change.Old),
					int(change.New),
				},
			})
		if err != nil {
			return fmt.Errorf("journal: insert change: %w", err)
		}
	}
	return nil
}

// Checkpoint stores a full snapshot as a deterministic CBOR blob.
func (j *Journal) Checkpoint(ctx context.Context, bus byte, snap *snapshot.Snapshot) error {
	blob, err := codec.Marshal(checkpointBlob{Outputs: snap.Raw()})
	if err != nil {
		return fmt.Errorf("journal: encode checkpoint: %w", err)
	}

	conn, err := j.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: checkpoint: %w", err)
	}
	defer j.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO checkpoints (at, bus, state) VALUES (?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{snap.TakenAt().UnixNano(), int(bus), blob},
		})
	if err != nil {
		return fmt.Errorf("journal: insert checkpoint: %w", err)
	}
	return nil
}

// ChangesSince returns all changes for one bus at or after since, in
// time order.
func (j *Journal) ChangesSince(ctx context.Context, bus byte, since time.Time) ([]ChangeRecord, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: changes since: %w", err)
	}
	defer j.pool.Put(conn)

	var records []ChangeRecord
	err = sqlitex.Execute(conn,
		"SELECT at, bus, module, output, old, new FROM changes WHERE bus = ? AND at >= ? ORDER BY at, rowid",
		&sqlitex.ExecOptions{
			Args: []any{int(bus), since.UnixNano()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = append(records, ChangeRecord{
					At:     time.Unix(0, stmt.ColumnInt64(0)),
					Bus:    byte(stmt.ColumnInt(1)),
					Module: stmt.ColumnInt(2),
					Output: stmt.ColumnInt(3),
					Old:    byte(stmt.ColumnInt(4)),
					New:    byte(stmt.ColumnInt(5)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("journal: query changes: %w", err)
	}
	return records, nil
}

// LastCheckpoint returns the newest checkpoint for a bus, rebuilt as
// a snapshot. Returns (nil, nil) when the bus has no checkpoints.
func (j *Journal) LastCheckpoint(ctx context.Context, bus byte) (*snapshot.Snapshot, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: last checkpoint: %w", err)
	}
	defer j.pool.Put(conn)

	var found *snapshot.Snapshot
	err = sqlitex.Execute(conn,
		"SELECT at, state FROM checkpoints WHERE bus = ? ORDER BY at DESC LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []any{int(bus)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				at := time.Unix(0, stmt.ColumnInt64(0))
				blob := make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, blob)

				var decoded checkpointBlob
				if err := codec.Unmarshal(blob, &decoded); err != nil {
					return fmt.Errorf("decode checkpoint: %w", err)
				}
				snap, err := snapshot.Build(decoded.Outputs, at)
				if err != nil {
					return fmt.Errorf("rebuild checkpoint: %w", err)
				}
				found = snap
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("journal: query checkpoint: %w", err)
	}
	return found, nil
}

// Close closes the connection pool. Blocks until borrowed connections
// are returned.
func (j *Journal) Close() error {
	if err := j.pool.Close(); err != nil {
		j.logger.Error("journal close error", "path", j.path, "error", err)
		return fmt.Errorf("journal: closing %s: %w", j.path, err)
	}
	j.logger.Info("journal closed", "path", j.path)
	return nil
}
