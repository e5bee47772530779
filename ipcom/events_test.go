// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package ipcom

import (
	"sync"
	"testing"
	"time"

	"github.com/J-Delsinne/homeanywhere/lib/testutil"
)

func TestDispatcherDeliversFIFO(t *testing.T) {
	d := newDispatcher[int]()
	defer d.close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	d.subscribe(func(v int) {
		mu.Lock()
		got = append(got, v)
		if len(got) == 10 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		d.publish(i)
	}

	testutil.RequireClosed(t, done, 5*time.Second, "all events delivered")
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("delivery order = %v, want 0..9 in order", got)
		}
	}
}

func TestDispatcherFansOut(t *testing.T) {
	d := newDispatcher[string]()
	defer d.close()

	first := make(chan string, 1)
	second := make(chan string, 1)
	d.subscribe(func(v string) { first <- v })
	d.subscribe(func(v string) { second <- v })

	d.publish("hello")

	if got := testutil.RequireReceive(t, first, 5*time.Second, "first subscriber"); got != "hello" {
		t.Errorf("first subscriber got %q", got)
	}
	if got := testutil.RequireReceive(t, second, 5*time.Second, "second subscriber"); got != "hello" {
		t.Errorf("second subscriber got %q", got)
	}
}

func TestDispatcherPublishAfterClose(t *testing.T) {
	d := newDispatcher[int]()
	d.close()

	// Must not panic; the event is dropped.
	d.publish(42)
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := newDispatcher[int]()
	d.close()
	d.close()
}
