//go:build !linux

package haptic

import (
	"fmt"

	"github.com/seaforth/haptic/internal/ffdrv"
	"github.com/seaforth/haptic/internal/hidpad"
	"github.com/seaforth/haptic/internal/padusb"
)

// NewPlatformRegistry returns a registry over the platform's default
// backend. Off Linux that is the HID pad backend; only rumble-class
// devices are reachable.
func NewPlatformRegistry() *Registry {
	return NewRegistry(hidpad.New())
}

// NewRegistryFor returns a registry over a backend selected by name:
// "hidpad" (default) or "padusb". The "evdev" backend is Linux only.
func NewRegistryFor(backend string) (*Registry, error) {
	var drv ffdrv.Driver
	switch backend {
	case "", "hidpad":
		drv = hidpad.New()
	case "padusb":
		drv = padusb.New()
	case "evdev":
		return nil, fmt.Errorf("haptic: the evdev backend is only available on linux")
	default:
		return nil, fmt.Errorf("haptic: unknown backend %q", backend)
	}
	return NewRegistry(drv), nil
}
