package core

import (
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func mustNoEvent(t *testing.T, ch chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubRegisterSnapshotIncludesSelf(t *testing.T) {
	hub := NewHub()

	alice := NewClient("c1", "u-alice", "alice", "")
	bob := NewClient("c2", "u-bob", "bob", "")

	entries := hub.Register(alice)
	if len(entries) != 1 || entries[0].ConnID != "c1" {
		t.Fatalf("unexpected snapshot after first register: %+v", entries)
	}

	entries = hub.Register(bob)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.UserID] = true
	}
	if !seen["u-alice"] || !seen["u-bob"] {
		t.Fatalf("snapshot missing users: %+v", entries)
	}
}

func TestHubUnregisterIdempotent(t *testing.T) {
	hub := NewHub()

	alice := NewClient("c1", "u-alice", "alice", "")
	hub.Register(alice)

	if !hub.Unregister("c1") {
		t.Fatal("first unregister should remove the entry")
	}
	if hub.Unregister("c1") {
		t.Fatal("second unregister should be a no-op")
	}
	if hub.IsRegistered("c1") {
		t.Fatal("entry still present after unregister")
	}
}

func TestHubBroadcastAllAndOthers(t *testing.T) {
	hub := NewHub()

	alice := NewClient("c1", "u-alice", "alice", "")
	bob := NewClient("c2", "u-bob", "bob", "")
	hub.Register(alice)
	hub.Register(bob)

	hub.BroadcastAll(&Event{Kind: EventNewMessage})
	mustEvent(t, alice.Events, EventNewMessage)
	mustEvent(t, bob.Events, EventNewMessage)

	hub.BroadcastOthers("c1", &Event{Kind: EventUserTyping})
	mustEvent(t, bob.Events, EventUserTyping)
	mustNoEvent(t, alice.Events)
}

func TestHubSlowConsumerDoesNotBlock(t *testing.T) {
	hub := NewHub()

	slow := NewClient("c1", "u-slow", "slow", "")
	hub.Register(slow)

	done := make(chan struct{})
	go func() {
		// Overflow the events buffer; sends must drop, not block.
		for i := 0; i < 100; i++ {
			hub.BroadcastAll(&Event{Kind: EventNewMessage})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on slow consumer")
	}
}
