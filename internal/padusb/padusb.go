// Package padusb is a force-feedback backend for Xbox 360 class
// controllers, which take rumble commands on a raw USB interrupt
// endpoint rather than through HID. Like hidpad it offers a single
// left/right effect slot.
package padusb

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/usb"

	"github.com/seaforth/haptic/internal/ffdrv"
)

const (
	microsoftVID = 0x045E

	x360PID         = 0x028E
	x360WirelessPID = 0x0719
)

var knownPIDs = map[uint16]string{
	x360PID:         "Xbox 360 Controller",
	x360WirelessPID: "Xbox 360 Wireless Receiver",
}

type driver struct{}

// New returns the raw-USB pad backend driver.
func New() ffdrv.Driver { return driver{} }

func (driver) Name() string { return "padusb" }

func enumerate() ([]usb.DeviceInfo, error) {
	infos, err := usb.Enumerate(microsoftVID, 0)
	if err != nil {
		return nil, fmt.Errorf("padusb: enumerate: %w", err)
	}
	var out []usb.DeviceInfo
	for _, info := range infos {
		if _, ok := knownPIDs[info.ProductID]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (driver) Enumerate() ([]ffdrv.DeviceInfo, error) {
	infos, err := enumerate()
	if err != nil {
		return nil, err
	}
	out := make([]ffdrv.DeviceInfo, 0, len(infos))
	for i, info := range infos {
		out = append(out, ffdrv.DeviceInfo{
			Index: i,
			Name:  knownPIDs[info.ProductID],
			Path:  info.Path,
		})
	}
	return out, nil
}

func (d driver) Open(index int) (ffdrv.Device, error) {
	infos, err := enumerate()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("padusb: no pad at index %d", index)
	}
	dev, err := infos[index].Open()
	if err != nil {
		return nil, fmt.Errorf("padusb: open: %w", err)
	}
	return &device{dev: dev, gainPct: 100}, nil
}

func (d driver) OpenPath(path string) (ffdrv.Device, error) {
	infos, err := enumerate()
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Path == path {
			dev, err := info.Open()
			if err != nil {
				return nil, fmt.Errorf("padusb: open %s: %w", path, err)
			}
			return &device{dev: dev, gainPct: 100}, nil
		}
	}
	return nil, fmt.Errorf("padusb: no pad at path %q", path)
}

type device struct {
	dev usb.Device

	mu       sync.Mutex
	uploaded bool
	large    uint16
	small    uint16
	length   uint32
	gainPct  int
	stopTmr  *time.Timer
}

func (d *device) Features() (ffdrv.Features, error) {
	return ffdrv.Features{
		Mask:       ffdrv.CapLeftRight | ffdrv.CapGain,
		Axes:       0,
		MaxEffects: 1,
		MaxPlaying: 1,
	}, nil
}

// setMotors writes the controller's 8-byte rumble command. Motor
// values are the controller's 8-bit range.
func (d *device) setMotors(large, small byte) error {
	cmd := []byte{0x00, 0x08, 0x00, large, small, 0x00, 0x00, 0x00}
	if _, err := d.dev.Write(cmd); err != nil {
		return fmt.Errorf("padusb: rumble command: %w", err)
	}
	return nil
}

func (d *device) scale(v uint16) byte {
	return byte(uint32(v) * uint32(d.gainPct) / 100 >> 8)
}

func (d *device) Upload(e *ffdrv.Effect) (int, error) {
	if e.Kind != ffdrv.KindLeftRight {
		return 0, fmt.Errorf("padusb: effect kind %v not playable on a rumble pad", e.Kind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploaded {
		return 0, fmt.Errorf("padusb: the single rumble slot is in use")
	}
	d.uploaded = true
	d.large = e.LargeMagnitude
	d.small = e.SmallMagnitude
	d.length = e.Length
	return 0, nil
}

func (d *device) Update(id int, e *ffdrv.Effect) error {
	if e.Kind != ffdrv.KindLeftRight {
		return fmt.Errorf("padusb: effect kind %v not playable on a rumble pad", e.Kind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.uploaded || id != 0 {
		return fmt.Errorf("padusb: no uploaded effect %d", id)
	}
	d.large = e.LargeMagnitude
	d.small = e.SmallMagnitude
	d.length = e.Length
	return nil
}

func (d *device) Erase(id int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.uploaded || id != 0 {
		return fmt.Errorf("padusb: no uploaded effect %d", id)
	}
	d.stopLocked()
	d.uploaded = false
	return nil
}

func (d *device) Run(id int, iterations uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.uploaded || id != 0 {
		return fmt.Errorf("padusb: no uploaded effect %d", id)
	}
	if err := d.setMotors(d.scale(d.large), d.scale(d.small)); err != nil {
		return err
	}
	if d.stopTmr != nil {
		d.stopTmr.Stop()
		d.stopTmr = nil
	}
	if d.length != 0 && d.length != ffdrv.Infinity && iterations != ffdrv.Infinity {
		total := time.Duration(d.length) * time.Duration(iterations) * time.Millisecond
		d.stopTmr = time.AfterFunc(total, func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			if err := d.setMotors(0, 0); err != nil {
				slog.Debug("rumble auto-stop failed", slog.Any("error", err))
			}
		})
	}
	return nil
}

func (d *device) stopLocked() {
	if d.stopTmr != nil {
		d.stopTmr.Stop()
		d.stopTmr = nil
	}
	if err := d.setMotors(0, 0); err != nil {
		slog.Debug("rumble stop failed", slog.Any("error", err))
	}
}

func (d *device) Stop(id int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.uploaded || id != 0 {
		return fmt.Errorf("padusb: no uploaded effect %d", id)
	}
	d.stopLocked()
	return nil
}

func (d *device) Playing(int) (bool, error) {
	return false, fmt.Errorf("padusb: no playback status query")
}

func (d *device) SetGain(pct int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gainPct = pct
	return nil
}

func (d *device) SetAutocenter(int) error {
	return fmt.Errorf("padusb: no autocenter")
}

func (d *device) Pause() error  { return fmt.Errorf("padusb: no device-wide pause") }
func (d *device) Resume() error { return fmt.Errorf("padusb: no device-wide pause") }

func (d *device) Close() error {
	d.mu.Lock()
	if d.uploaded {
		d.stopLocked()
	}
	d.mu.Unlock()
	return d.dev.Close()
}
