package storage

import "testing"

func TestWALNotifierPublishSkipsSelf(t *testing.T) {
	n := NewWALNotifier()
	chA := n.Subscribe("a")
	chB := n.Subscribe("b")

	n.Publish("a")

	if n.Drain(chA) {
		t.Errorf("publisher should not receive its own signal")
	}
	if !n.Drain(chB) {
		t.Errorf("expected subscriber b to receive a's publish")
	}
}

func TestWALNotifierCoalescesSignals(t *testing.T) {
	n := NewWALNotifier()
	ch := n.Subscribe("b")

	n.Publish("a")
	n.Publish("a") // second publish before b drains must not block or double-queue

	if !n.Drain(ch) {
		t.Fatalf("expected a pending signal")
	}
	if n.Drain(ch) {
		t.Errorf("expected only one coalesced signal, got a second")
	}
}

func TestWALNotifierUnsubscribe(t *testing.T) {
	n := NewWALNotifier()
	n.Subscribe("a")
	n.Unsubscribe("a")
	// Publish from another session must not panic touching the closed channel.
	n.Publish("b")
}

func TestWALNotifierDrainEmpty(t *testing.T) {
	n := NewWALNotifier()
	ch := n.Subscribe("a")
	if n.Drain(ch) {
		t.Errorf("expected no pending signal on a fresh subscription")
	}
}
