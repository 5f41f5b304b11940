// Package hidpad is a force-feedback backend for gamepads that expose
// rumble through HID output reports, currently DualShock 4 class
// devices. It offers a single left/right effect slot; the general
// effect kinds need a kernel force-feedback driver and are not
// available here.
package hidpad

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	usbhid "rafaelmartins.com/p/usbhid"

	"github.com/seaforth/haptic/internal/ffdrv"
)

type padModel struct {
	vendorID  uint16
	productID uint16
	name      string
}

var knownPads = []padModel{
	{0x054C, 0x05C4, "DualShock 4"},
	{0x054C, 0x09CC, "DualShock 4 (v2)"},
	{0x054C, 0x0BA0, "DualShock 4 Wireless Adapter"},
}

func model(vid, pid uint16) (padModel, bool) {
	for _, m := range knownPads {
		if m.vendorID == vid && m.productID == pid {
			return m, true
		}
	}
	return padModel{}, false
}

type driver struct{}

// New returns the HID pad backend driver.
func New() ffdrv.Driver { return driver{} }

func (driver) Name() string { return "hidpad" }

func (driver) Enumerate() ([]ffdrv.DeviceInfo, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, fmt.Errorf("hidpad: enumerate: %w", err)
	}
	var out []ffdrv.DeviceInfo
	for _, d := range devs {
		m, ok := model(d.VendorId(), d.ProductId())
		if !ok {
			continue
		}
		name := d.Product()
		if name == "" {
			name = m.name
		}
		out = append(out, ffdrv.DeviceInfo{
			Index: len(out),
			Name:  name,
			Path:  d.Path(),
		})
	}
	return out, nil
}

func (d driver) Open(index int) (ffdrv.Device, error) {
	infos, err := d.Enumerate()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("hidpad: no pad at index %d", index)
	}
	return d.OpenPath(infos[index].Path)
}

func (driver) OpenPath(path string) (ffdrv.Device, error) {
	dev, err := usbhid.Get(func(d *usbhid.Device) bool {
		return d.Path() == path
	}, true, false)
	if err != nil {
		return nil, fmt.Errorf("hidpad: open %s: %w", path, err)
	}
	return &device{dev: dev, gainPct: 100}, nil
}

// device drives the pad's two motors through output report 0x05.
// There is exactly one effect slot; the pad has no effect memory.
type device struct {
	dev *usbhid.Device

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

const rumbleReportID = 0x05

// setMotors sends one output report. Motor values are the pad's 8-bit
// range.
func (d *device) setMotors(large, small byte) error {
	payload := make([]byte, 31)
	payload[0] = 0x07 // enable rumble and LED fields
	payload[3] = small
	payload[4] = large
	if err := d.dev.SetOutputReport(rumbleReportID, payload); err != nil {
		return fmt.Errorf("hidpad: output report: %w", err)
	}
	return nil
}

func (d *device) Upload(e *ffdrv.Effect) (int, error) {
	if e.Kind != ffdrv.KindLeftRight {
		return 0, fmt.Errorf("hidpad: effect kind %v not playable on a rumble pad", e.Kind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploaded {
		return 0, fmt.Errorf("hidpad: the single rumble slot is in use")
	}
	d.uploaded = true
	d.large = e.LargeMagnitude
	d.small = e.SmallMagnitude
	d.length = e.Length
	return 0, nil
}

func (d *device) Update(id int, e *ffdrv.Effect) error {
	if e.Kind != ffdrv.KindLeftRight {
		return fmt.Errorf("hidpad: effect kind %v not playable on a rumble pad", e.Kind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.uploaded || id != 0 {
		return fmt.Errorf("hidpad: no uploaded effect %d", id)
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
		return fmt.Errorf("hidpad: no uploaded effect %d", id)
	}
	d.stopLocked()
	d.uploaded = false
	return nil
}

// scale applies the software gain and narrows to the pad's 8-bit
// motor range.
func (d *device) scale(v uint16) byte {
	return byte(uint32(v) * uint32(d.gainPct) / 100 >> 8)
}

func (d *device) Run(id int, iterations uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.uploaded || id != 0 {
		return fmt.Errorf("hidpad: no uploaded effect %d", id)
	}
	if err := d.setMotors(d.scale(d.large), d.scale(d.small)); err != nil {
		return err
	}
	if d.stopTmr != nil {
		d.stopTmr.Stop()
		d.stopTmr = nil
	}
	// The pad keeps rumbling until told otherwise; emulate the replay
	// length unless it, or the iteration count, is unbounded.
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
		return fmt.Errorf("hidpad: no uploaded effect %d", id)
	}
	d.stopLocked()
	return nil
}

func (d *device) Playing(int) (bool, error) {
	return false, fmt.Errorf("hidpad: no playback status query")
}

func (d *device) SetGain(pct int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gainPct = pct
	return nil
}

func (d *device) SetAutocenter(int) error {
	return fmt.Errorf("hidpad: no autocenter")
}

func (d *device) Pause() error  { return fmt.Errorf("hidpad: no device-wide pause") }
func (d *device) Resume() error { return fmt.Errorf("hidpad: no device-wide pause") }

func (d *device) Close() error {
	d.mu.Lock()
	if d.uploaded {
		d.stopLocked()
	}
	d.mu.Unlock()
	return d.dev.Close()
}
