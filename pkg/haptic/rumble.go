package haptic

import (
	"errors"
	"fmt"
)

// rumbleState is the privileged, pre-reserved effect slot backing the
// simple rumble API. A device holds at most one.
type rumbleState struct {
	handle    EffectHandle
	leftRight bool
}

var errRumbleNotInitialized = errors.New("haptic: rumble not initialized, call RumbleInit first")

// RumbleSupported reports whether the device can play simple rumble,
// which needs either a left/right or a sine effect.
func (d *Device) RumbleSupported() (bool, error) {
	if d.closed {
		return false, ErrClosed
	}
	return d.caps&(CapLeftRight|CapSine) != 0, nil
}

// RumbleInit reserves the device's rumble slot. It is sugar over
// Upload: the slot is a persistent left/right effect, or a sine effect
// on devices without one, re-templated by every RumblePlay. Calling it
// again on an initialized device is a no-op.
func (d *Device) RumbleInit() error {
	if d.closed {
		return ErrClosed
	}
	if d.rumble != nil {
		return nil
	}

	var (
		def EffectDefinition
		lr  bool
	)
	switch {
	case d.caps.Has(CapLeftRight):
		def = LeftRightEffect{Base: Base{Length: 5000}}
		lr = true
	case d.caps.Has(CapSine):
		def = PeriodicEffect{
			Base:   Base{Length: 5000, Direction: PolarDirection(0)},
			Wave:   WaveSine,
			Period: 1000,
		}
	default:
		return fmt.Errorf("%w: device can play neither left/right nor sine effects", ErrUnsupported)
	}

	h, err := d.Upload(def)
	if err != nil {
		return err
	}
	d.rumble = &rumbleState{handle: h, leftRight: lr}
	return nil
}

// RumblePlay re-templates the rumble slot with the given strength in
// [0, 1] and duration in milliseconds, then runs it once.
func (d *Device) RumblePlay(strength float64, durationMs uint32) error {
	if d.closed {
		return ErrClosed
	}
	if d.rumble == nil {
		return errRumbleNotInitialized
	}
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}

	var def EffectDefinition
	if d.rumble.leftRight {
		mag := uint16(strength * 0xFFFF)
		def = LeftRightEffect{
			Base:           Base{Length: durationMs},
			LargeMagnitude: mag,
			SmallMagnitude: mag,
		}
	} else {
		def = PeriodicEffect{
			Base:      Base{Length: durationMs, Direction: PolarDirection(0)},
			Wave:      WaveSine,
			Period:    1000,
			Magnitude: int16(strength * 32767),
		}
	}

	if err := d.Update(d.rumble.handle, def); err != nil {
		return err
	}
	return d.Run(d.rumble.handle, 1)
}

// RumbleStop halts rumble playback. The slot stays reserved.
func (d *Device) RumbleStop() error {
	if d.closed {
		return ErrClosed
	}
	if d.rumble == nil {
		return errRumbleNotInitialized
	}
	return d.Stop(d.rumble.handle)
}
