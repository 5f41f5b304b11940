package haptic

import (
	"fmt"
	"log/slog"

	"github.com/seaforth/haptic/internal/config"
	"github.com/seaforth/haptic/internal/ffdrv"
)

// maxEffectSlots bounds the per-device effect table when the backend
// reports no usable hint.
const maxEffectSlots = 128

// EffectHandle identifies an uploaded effect within one device. It is
// unique per device while the effect is alive and may be reused after
// Destroy; it carries no meaning on any other device.
type EffectHandle int

// PlaybackStatus is the answer of a Status query.
type PlaybackStatus int

const (
	Idle PlaybackStatus = iota
	Playing
)

func (s PlaybackStatus) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

type slotState uint8

const (
	slotFree slotState = iota
	slotUploaded
	slotRunning
)

type effectSlot struct {
	state slotState
	kind  EffectKind
	drvID int // backend effect id, never exposed
}

// Device is one opened force-feedback device. It owns every effect
// uploaded to it; an effect cannot outlive its device. Methods are not
// safe for concurrent use; callers serialize access externally.
type Device struct {
	reg *Registry
	drv ffdrv.Device

	index int // -1 for devices resolved from a Source
	name  string
	path  string

	refs   int
	closed bool
	paused bool

	caps    Capability
	axes    int
	slotCap int
	playCap int

	slots  []effectSlot
	rumble *rumbleState
}

// Name returns the device name from enumeration.
func (d *Device) Name() string { return d.name }

// Index returns the device's enumeration index, or -1 when the device
// was resolved from a Source.
func (d *Device) Index() int { return d.index }

// Query returns the capability bitmask of supported effect kinds and
// device features.
func (d *Device) Query() Capability { return d.caps }

// SupportsEffect reports whether the device supports the kind of the
// given definition. A true answer does not guarantee a successful
// upload; hardware may still reject on resource exhaustion.
func (d *Device) SupportsEffect(def EffectDefinition) (bool, error) {
	if d.closed {
		return false, ErrClosed
	}
	return d.caps.Has(KindBit(def.Kind())), nil
}

// AxisCount returns the number of axes the device applies forces on.
func (d *Device) AxisCount() int { return d.axes }

// EffectCapacity returns the backend's effect slot count. Platforms
// may not report this exactly; treat it as a hint, not a precondition.
func (d *Device) EffectCapacity() int {
	if d.slotCap > 0 {
		return d.slotCap
	}
	return len(d.slots)
}

// ConcurrentPlaybackCapacity returns how many effects the device can
// play at the same time, as reported by the backend.
func (d *Device) ConcurrentPlaybackCapacity() int { return d.playCap }

// EffectCount returns the number of effects currently uploaded.
func (d *Device) EffectCount() int {
	n := 0
	for i := range d.slots {
		if d.slots[i].state != slotFree {
			n++
		}
	}
	return n
}

func (d *Device) slot(h EffectHandle) (*effectSlot, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if h < 0 || int(h) >= len(d.slots) || d.slots[h].state == slotFree {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	return &d.slots[h], nil
}

// Upload validates a definition and uploads it, returning the handle
// of the new effect. The kind is immutable thereafter. A failed upload
// allocates nothing.
func (d *Device) Upload(def EffectDefinition) (EffectHandle, error) {
	if d.closed {
		return -1, ErrClosed
	}
	enc, err := encodeEffect(def)
	if err != nil {
		return -1, err
	}
	if !d.caps.Has(KindBit(def.Kind())) {
		return -1, fmt.Errorf("%w: effect kind %s", ErrUnsupported, def.Kind())
	}

	h := EffectHandle(-1)
	for i := range d.slots {
		if d.slots[i].state == slotFree {
			h = EffectHandle(i)
			break
		}
	}
	if h < 0 {
		return -1, fmt.Errorf("%w: all %d effect slots in use", ErrResourceExhausted, len(d.slots))
	}

	id, err := d.drv.Upload(enc)
	if err != nil {
		return -1, fmt.Errorf("%w: upload %s: %v", ErrResourceExhausted, def.Kind(), err)
	}

	d.slots[h] = effectSlot{state: slotUploaded, kind: def.Kind(), drvID: id}
	return h, nil
}

// Update replaces the definition of an uploaded effect. The kind of
// the replacement must match the original. A direction change may make
// the device restart playback from the beginning; that is a hardware
// side effect the caller must expect. On failure the original
// definition stays active.
func (d *Device) Update(h EffectHandle, def EffectDefinition) error {
	s, err := d.slot(h)
	if err != nil {
		return err
	}
	if def.Kind() != s.kind {
		return fmt.Errorf("%w: effect %d is %s, got %s", ErrKindMismatch, h, s.kind, def.Kind())
	}
	enc, err := encodeEffect(def)
	if err != nil {
		return err
	}
	if err := d.drv.Update(s.drvID, enc); err != nil {
		return fmt.Errorf("%w: update effect %d: %v", ErrDevice, h, err)
	}
	return nil
}

// Destroy stops an effect if it is playing and releases its slot. It
// is a no-op on an already destroyed handle, mirroring the guarantee
// that closing the device destroys all remaining effects.
func (d *Device) Destroy(h EffectHandle) {
	if d.closed || h < 0 || int(h) >= len(d.slots) {
		return
	}
	s := &d.slots[h]
	if s.state == slotFree {
		return
	}
	if s.state == slotRunning {
		if err := d.drv.Stop(s.drvID); err != nil {
			slog.Debug("stop before destroy failed", slog.String("device", d.name), slog.Any("error", err))
		}
	}
	if err := d.drv.Erase(s.drvID); err != nil {
		slog.Warn("effect erase failed", slog.String("device", d.name), slog.Int("handle", int(h)), slog.Any("error", err))
	}
	*s = effectSlot{}
	if d.rumble != nil && d.rumble.handle == h {
		d.rumble = nil
	}
}

// Run starts an effect. iterations is a nonzero repeat count, or
// Infinity to repeat without bound; an infinitely iterated effect
// replays its envelope every iteration, unlike an effect whose Length
// is Infinity, which plays once forever. Zero iterations is rejected
// rather than passed down, where some backends would read it as a
// stop command. A failed Run leaves the effect's prior state
// unchanged.
func (d *Device) Run(h EffectHandle, iterations uint32) error {
	s, err := d.slot(h)
	if err != nil {
		return err
	}
	if iterations == 0 {
		return fmt.Errorf("haptic: run of effect %d with zero iterations", h)
	}
	if err := d.drv.Run(s.drvID, iterations); err != nil {
		return fmt.Errorf("%w: run effect %d: %v", ErrDevice, h, err)
	}
	s.state = slotRunning
	return nil
}

// Stop halts a running effect. Stopping an effect that is not running
// is a no-op.
func (d *Device) Stop(h EffectHandle) error {
	s, err := d.slot(h)
	if err != nil {
		return err
	}
	if s.state != slotRunning {
		return nil
	}
	if err := d.drv.Stop(s.drvID); err != nil {
		return fmt.Errorf("%w: stop effect %d: %v", ErrDevice, h, err)
	}
	s.state = slotUploaded
	return nil
}

// StopAll halts every running effect on the device.
func (d *Device) StopAll() error {
	if d.closed {
		return ErrClosed
	}
	var firstErr error
	for i := range d.slots {
		s := &d.slots[i]
		if s.state != slotRunning {
			continue
		}
		if err := d.drv.Stop(s.drvID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: stop effect %d: %v", ErrDevice, i, err)
			}
			continue
		}
		s.state = slotUploaded
	}
	return firstErr
}

// Status reports whether an effect is currently playing. Devices
// without the status-query capability fail with ErrUnsupported, which
// is distinct from an effect that is simply not playing.
func (d *Device) Status(h EffectHandle) (PlaybackStatus, error) {
	s, err := d.slot(h)
	if err != nil {
		return Idle, err
	}
	if !d.caps.Has(CapStatus) {
		return Idle, fmt.Errorf("%w: device cannot query effect status", ErrUnsupported)
	}
	playing, err := d.drv.Playing(s.drvID)
	if err != nil {
		return Idle, fmt.Errorf("%w: status of effect %d: %v", ErrDevice, h, err)
	}
	if playing {
		return Playing, nil
	}
	// The driver is authoritative; a finished effect is idle even if
	// no Stop was issued.
	if s.state == slotRunning {
		s.state = slotUploaded
	}
	return Idle, nil
}

// Pause suspends playback of every effect on the device. While paused,
// no Upload, Update or Destroy calls may be issued; the effect of
// doing so is platform-dependent and not checked here.
func (d *Device) Pause() error {
	if d.closed {
		return ErrClosed
	}
	if !d.caps.Has(CapPause) {
		return fmt.Errorf("%w: device cannot pause", ErrUnsupported)
	}
	if err := d.drv.Pause(); err != nil {
		return fmt.Errorf("%w: pause: %v", ErrDevice, err)
	}
	d.paused = true
	return nil
}

// Unpause resumes playback after Pause.
func (d *Device) Unpause() error {
	if d.closed {
		return ErrClosed
	}
	if !d.caps.Has(CapPause) {
		return fmt.Errorf("%w: device cannot pause", ErrUnsupported)
	}
	if err := d.drv.Resume(); err != nil {
		return fmt.Errorf("%w: unpause: %v", ErrDevice, err)
	}
	d.paused = false
	return nil
}

// scaleGain applies the registry's gain ceiling, or the
// HAPTIC_GAIN_MAX environment override when present, to a 0-100
// percentage.
func (d *Device) scaleGain(pct int) int {
	ceil := config.GainMax(d.reg.gainCeiling())
	return pct * ceil / 100
}

// SetGain sets the device's global output strength in percent. The
// value is scaled linearly by the configured maximum-gain ceiling
// before it reaches the driver.
func (d *Device) SetGain(pct int) error {
	if d.closed {
		return ErrClosed
	}
	if !d.caps.Has(CapGain) {
		return fmt.Errorf("%w: device has no gain control", ErrUnsupported)
	}
	if pct < 0 || pct > 100 {
		return fmt.Errorf("haptic: gain must be between 0 and 100, got %d", pct)
	}
	if err := d.drv.SetGain(d.scaleGain(pct)); err != nil {
		return fmt.Errorf("%w: set gain: %v", ErrDevice, err)
	}
	return nil
}

// SetAutocenter sets the driver-applied centering force in percent;
// 0 disables autocentering.
func (d *Device) SetAutocenter(pct int) error {
	if d.closed {
		return ErrClosed
	}
	if !d.caps.Has(CapAutocenter) {
		return fmt.Errorf("%w: device has no autocenter control", ErrUnsupported)
	}
	if pct < 0 || pct > 100 {
		return fmt.Errorf("haptic: autocenter must be between 0 and 100, got %d", pct)
	}
	if err := d.drv.SetAutocenter(pct); err != nil {
		return fmt.Errorf("%w: set autocenter: %v", ErrDevice, err)
	}
	return nil
}

// Close decrements the reference count and, at zero, destroys every
// remaining effect slot, releases the rumble slot and frees the
// backend device. The device leaves the registry tables in the same
// critical section that sees the count hit zero, so a concurrent Open
// never resurrects a dying device.
func (d *Device) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.reg.mu.Lock()
	d.refs--
	if d.refs > 0 {
		d.reg.mu.Unlock()
		return nil
	}
	if d.index >= 0 {
		delete(d.reg.open, d.index)
	}
	delete(d.reg.byPath, d.path)
	d.reg.mu.Unlock()

	for i := range d.slots {
		if d.slots[i].state != slotFree {
			d.Destroy(EffectHandle(i))
		}
	}
	d.rumble = nil

	err := d.drv.Close()
	d.closed = true
	if err != nil {
		return fmt.Errorf("%w: close: %v", ErrDevice, err)
	}
	return nil
}
