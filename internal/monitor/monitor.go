// Package monitor watches for input devices appearing and
// disappearing, so callers can re-enumerate instead of polling.
// Enumeration snapshots taken by the registry are static; this is the
// complementary change signal.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const inputDir = "/dev/input"

// Burst of node churn on hotplug collapses into one event.
const debounce = 500 * time.Millisecond

// EventType says what happened to a device node.
type EventType int

const (
	Added EventType = iota
	Removed
)

func (t EventType) String() string {
	if t == Removed {
		return "removed"
	}
	return "added"
}

// Event is one device node change.
type Event struct {
	Type EventType
	Path string
}

// Monitor watches the platform input directory for device nodes
// coming and going.
type Monitor struct {
	watcher *fsnotify.Watcher
}

// New returns a monitor over the platform input directory.
func New() (*Monitor, error) {
	return NewFor(inputDir)
}

// NewFor returns a monitor over an arbitrary directory.
func NewFor(dir string) (*Monitor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("monitor: watch %s: %w", dir, err)
	}
	return &Monitor{watcher: w}, nil
}

// Events starts the watch loop, reporting debounced device changes
// until the context is canceled. The returned channel is closed on
// cancellation or watcher failure.
func (m *Monitor) Events(ctx context.Context) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		timer := time.NewTimer(debounce)
		timer.Stop()
		var pending *Event

		for {
			select {
			case <-ctx.Done():
				return

			case <-timer.C:
				if pending != nil {
					select {
					case out <- *pending:
					case <-ctx.Done():
						return
					}
					pending = nil
				}

			case ev, ok := <-m.watcher.Events:
				if !ok {
					slog.Info("watcher event channel closed")
					return
				}
				if !strings.Contains(ev.Name, "event") {
					continue
				}
				var typ EventType
				switch {
				case ev.Op.Has(fsnotify.Create):
					typ = Added
				case ev.Op.Has(fsnotify.Remove):
					typ = Removed
				default:
					continue
				}
				slog.Debug("device node change",
					slog.String("op", ev.Op.String()),
					slog.String("path", ev.Name))
				pending = &Event{Type: typ, Path: ev.Name}
				// A tick may have fired unread while this case was
				// handled; drain it so Reset arms a clean debounce.
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)

			case err, ok := <-m.watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("device watch error", slog.Any("error", err))
			}
		}
	}()

	return out
}

// Close stops the underlying watcher.
func (m *Monitor) Close() error {
	return m.watcher.Close()
}
