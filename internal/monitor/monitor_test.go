package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMonitorReportsNewEventNode(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFor(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := m.Events(ctx)

	path := filepath.Join(dir, "event7")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("create node: %v", err)
	}

	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event channel closed early")
		}
		if ev.Type != Added || ev.Path != path {
			t.Fatalf("got %v %q, want added %q", ev.Type, ev.Path, path)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}
}

func TestMonitorIgnoresOtherNodes(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFor(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Events(ctx)

	if err := os.WriteFile(filepath.Join(dir, "mouse0"), nil, 0644); err != nil {
		t.Fatalf("create node: %v", err)
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for %q", ev.Path)
	case <-time.After(2 * debounce):
	}
}

func TestMonitorCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFor(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events := m.Events(ctx)

	// First event fires and drains the debounce timer, so the burst
	// below exercises re-arming after an elapsed timer.
	if err := os.WriteFile(filepath.Join(dir, "event1"), nil, 0644); err != nil {
		t.Fatalf("create node: %v", err)
	}
	select {
	case <-events:
	case <-ctx.Done():
		t.Fatal("timeout waiting for first event")
	}

	for _, name := range []string{"event2", "event3", "event4"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("create node: %v", err)
		}
	}

	select {
	case ev := <-events:
		if ev.Type != Added {
			t.Fatalf("got %v, want added", ev.Type)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for burst event")
	}

	// One debounced event per burst, not one per node.
	select {
	case ev := <-events:
		t.Fatalf("extra event for %q after burst", ev.Path)
	case <-time.After(2 * debounce):
	}
}

func TestMonitorStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFor(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events := m.Events(ctx)
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("got event after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
