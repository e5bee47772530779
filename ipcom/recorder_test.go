// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/J-Delsinne/homeanywhere/lib/clock"
	"github.com/J-Delsinne/homeanywhere/lib/journal"
	"github.com/J-Delsinne/homeanywhere/lib/snapshot"
	"github.com/J-Delsinne/homeanywhere/lib/testutil"
)

var _ Recorder = (*journal.Journal)(nil)

func TestSnapshotChangesReachTheJournal(t *testing.T) {
	j, err := journal.Open(journal.Config{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer j.Close()

	client, server := net.Pipe()
	ctrl := newFakeController(server, testKey)
	go ctrl.run()

	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	timing := isolatedTiming()
	timing.StatusInterval = 350 * time.Millisecond

	s := NewSession(Config{
		Name:       "journaled",
		RemoteAddr: "controller:5000",
		Username:   "installer",
		Password:   "hunter2",
		Bus:        1,
		Timing:     timing,
		Clock:      clk,
		Dialer:     &pipeDialer{conns: []net.Conn{client}},
		Recorder:   j,
	})
	defer s.Close()

	snapCh := make(chan *snapshot.Snapshot, 4)
	s.OnSnapshotUpdated(func(snap *snapshot.Snapshot) { snapCh <- snap })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	clk.WaitForTimers(4)

	clk.Advance(350 * time.Millisecond)
	testutil.RequireReceive(t, snapCh, testTimeout, "seed snapshot")

	ctrl.setOutput(0, 200)
	clk.Advance(350 * time.Millisecond)
	testutil.RequireReceive(t, snapCh, testTimeout, "changed snapshot")

	// Recording happens off the poll path, so poll until the row lands.
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	waitFor(t, func() bool {
		records, err := j.ChangesSince(context.Background(), 1, since)
		if err != nil {
			t.Fatalf("ChangesSince: %v", err)
		}
		for _, rec := range records {
			if rec.Module == 1 && rec.Output == 1 && rec.New == 200 {
				return true
			}
		}
		return false
	}, "journal row for the output change")
}
