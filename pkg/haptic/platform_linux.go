//go:build linux

package haptic

import (
	"fmt"

	"github.com/seaforth/haptic/internal/evdev"
	"github.com/seaforth/haptic/internal/ffdrv"
	"github.com/seaforth/haptic/internal/hidpad"
	"github.com/seaforth/haptic/internal/padusb"
)

// NewPlatformRegistry returns a registry over the platform's default
// backend, the kernel force-feedback interface.
func NewPlatformRegistry() *Registry {
	return NewRegistry(evdev.New())
}

// NewRegistryFor returns a registry over a backend selected by name:
// "evdev" (default), "hidpad" or "padusb".
func NewRegistryFor(backend string) (*Registry, error) {
	var drv ffdrv.Driver
	switch backend {
	case "", "evdev":
		drv = evdev.New()
	case "hidpad":
		drv = hidpad.New()
	case "padusb":
		drv = padusb.New()
	default:
		return nil, fmt.Errorf("haptic: unknown backend %q", backend)
	}
	return NewRegistry(drv), nil
}
