package haptic

import (
	"fmt"

	"github.com/seaforth/haptic/internal/ffdrv"
)

// Infinity is the sentinel for an unbounded effect length or iteration
// count. It is only legal in the Length field of a non-ramp effect and
// in the iterations argument of Run; delay, interval and envelope
// fields must always be finite.
const Infinity uint32 = 0xFFFFFFFF

// EffectKind identifies the waveform family of an effect definition.
type EffectKind uint16

const (
	Constant EffectKind = iota
	Sine
	Square
	Triangle
	SawtoothUp
	SawtoothDown
	Ramp
	Spring
	Damper
	Inertia
	Friction
	LeftRight
	Custom
)

func (k EffectKind) String() string { return ffdrv.Kind(k).String() }

// DirectionEncoding selects the coordinate system of a Direction.
type DirectionEncoding uint8

const (
	// Polar: Dir[0] is the direction the force comes from, in
	// hundredths of a degree clockwise from north.
	Polar DirectionEncoding = iota
	// Cartesian: Dir[0..2] are X (right), Y (away from the user) and
	// Z (down) components of the origin vector.
	Cartesian
	// Spherical: Dir[0] and Dir[1] are rotations in hundredths of a
	// degree, first away from (X, Y) toward Z, then around the plane.
	Spherical
)

// Direction encodes where a force comes from. The encoding tag decides
// how many of the three components are meaningful; unused components
// are ignored, not validated.
type Direction struct {
	Encoding DirectionEncoding
	Dir      [3]int32
}

// PolarDirection returns a polar Direction from hundredths of a degree
// clockwise from north (9000 is east).
func PolarDirection(centidegrees int32) Direction {
	return Direction{Encoding: Polar, Dir: [3]int32{centidegrees}}
}

// CartesianDirection returns a cartesian Direction. Devices with fewer
// axes ignore the trailing components.
func CartesianDirection(x, y, z int32) Direction {
	return Direction{Encoding: Cartesian, Dir: [3]int32{x, y, z}}
}

// SphericalDirection returns a spherical Direction from two rotations
// in hundredths of a degree.
func SphericalDirection(first, second int32) Direction {
	return Direction{Encoding: Spherical, Dir: [3]int32{first, second}}
}

// Envelope shapes the strength of an effect's start and end. An
// envelope is in use when any of its fields is nonzero; a level
// without its matching length is rejected at upload.
type Envelope struct {
	AttackLength uint32 // ms to ramp from AttackLevel to full strength
	AttackLevel  uint16
	FadeLength   uint32 // ms to ramp from full strength to FadeLevel
	FadeLevel    uint16
}

func (e Envelope) active() bool {
	return e.AttackLength != 0 || e.AttackLevel != 0 || e.FadeLength != 0 || e.FadeLevel != 0
}

func (e Envelope) fades() bool {
	return e.FadeLength != 0 || e.FadeLevel != 0
}

// Base carries the replay, trigger and envelope parameters common to
// every effect kind. Condition and left/right effects ignore the
// envelope.
type Base struct {
	Direction Direction
	Length    uint32 // total duration in ms, or Infinity
	Delay     uint32 // ms before playback starts, never Infinity
	Button    uint16 // triggering button, 0 for none
	Interval  uint32 // ms between trigger retriggers, never Infinity
	Envelope  Envelope
}

func (b Base) common() Base { return b }

// EffectDefinition is the tagged union over effect kinds. The concrete
// types are ConstantEffect, PeriodicEffect, ConditionEffect,
// RampEffect, LeftRightEffect and CustomEffect.
type EffectDefinition interface {
	// Kind reports the effect kind, used for capability checks and the
	// update kind-match rule.
	Kind() EffectKind

	common() Base
}

// ConstantEffect applies a fixed force along a direction.
type ConstantEffect struct {
	Base
	Level int16
}

func (ConstantEffect) Kind() EffectKind { return Constant }

// Waveform selects the shape of a PeriodicEffect.
type Waveform uint16

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveTriangle
	WaveSawtoothUp
	WaveSawtoothDown
)

// PeriodicEffect applies a wave-shaped force. Its kind is derived from
// the waveform, so a sine effect checks the sine capability bit.
type PeriodicEffect struct {
	Base
	Wave      Waveform
	Period    uint32 // ms per cycle
	Magnitude int16
	Offset    int16
	Phase     uint16 // hundredths of a percent into the cycle
}

func (e PeriodicEffect) Kind() EffectKind { return Sine + EffectKind(e.Wave) }

// ConditionType selects the axis-position response of a ConditionEffect.
type ConditionType uint16

const (
	CondSpring ConditionType = iota
	CondDamper
	CondInertia
	CondFriction
)

// ConditionEffect applies a force as a function of axis position or
// motion. Parameters are per axis; Direction is unused.
type ConditionEffect struct {
	Base
	Condition  ConditionType
	RightSat   [3]uint16 // max force on the positive side
	LeftSat    [3]uint16
	RightCoeff [3]int16 // force ramp-up coefficient
	LeftCoeff  [3]int16
	Deadband   [3]uint16 // dead zone around Center
	Center     [3]int16
}

func (e ConditionEffect) Kind() EffectKind { return Spring + EffectKind(e.Condition) }

// RampEffect sweeps linearly between two force levels over the
// effect's length. Ramp effects never have an infinite length and
// never use the fade half of the envelope.
type RampEffect struct {
	Base
	Start int16
	End   int16
}

func (RampEffect) Kind() EffectKind { return Ramp }

// LeftRightEffect drives the two motors of a rumble pad directly.
// Direction and envelope are unused.
type LeftRightEffect struct {
	Base
	LargeMagnitude uint16
	SmallMagnitude uint16
}

func (LeftRightEffect) Kind() EffectKind { return LeftRight }

// CustomEffect plays back user-supplied waveform samples, Channels
// interleaved, one sample per Period.
type CustomEffect struct {
	Base
	Channels uint8
	Period   uint32 // ms per sample
	Samples  []uint16
}

func (CustomEffect) Kind() EffectKind { return Custom }

// encodeEffect validates a definition and produces the normalized wire
// form handed to the backend. No driver call is attempted for a
// definition that fails here.
func encodeEffect(def EffectDefinition) (*ffdrv.Effect, error) {
	b := def.common()

	if b.Direction.Encoding > Spherical {
		return nil, fmt.Errorf("%w: unknown direction encoding %d", ErrInvalidEffect, b.Direction.Encoding)
	}
	// The infinity sentinel is only ever legal in Length.
	for _, f := range []struct {
		name  string
		value uint32
	}{
		{"delay", b.Delay},
		{"interval", b.Interval},
		{"attack length", b.Envelope.AttackLength},
		{"fade length", b.Envelope.FadeLength},
	} {
		if f.value == Infinity {
			return nil, fmt.Errorf("%w: %s must be finite", ErrInvalidEffect, f.name)
		}
	}
	if b.Envelope.AttackLevel != 0 && b.Envelope.AttackLength == 0 {
		return nil, fmt.Errorf("%w: attack level without attack length", ErrInvalidEffect)
	}
	if b.Envelope.FadeLevel != 0 && b.Envelope.FadeLength == 0 {
		return nil, fmt.Errorf("%w: fade level without fade length", ErrInvalidEffect)
	}
	if b.Length == Infinity && b.Envelope.fades() {
		return nil, fmt.Errorf("%w: infinite effects cannot fade", ErrInvalidEffect)
	}

	e := &ffdrv.Effect{
		Kind: ffdrv.Kind(def.Kind()),
		Direction: ffdrv.Direction{
			Encoding: uint8(b.Direction.Encoding),
			Dir:      b.Direction.Dir,
		},
		Length:       b.Length,
		Delay:        b.Delay,
		Button:       b.Button,
		Interval:     b.Interval,
		AttackLength: b.Envelope.AttackLength,
		AttackLevel:  b.Envelope.AttackLevel,
		FadeLength:   b.Envelope.FadeLength,
		FadeLevel:    b.Envelope.FadeLevel,
	}

	switch v := def.(type) {
	case ConstantEffect:
		e.Level = v.Level

	case PeriodicEffect:
		if v.Wave > WaveSawtoothDown {
			return nil, fmt.Errorf("%w: unknown waveform %d", ErrInvalidEffect, v.Wave)
		}
		if v.Period == 0 || v.Period == Infinity {
			return nil, fmt.Errorf("%w: periodic effect needs a finite nonzero period", ErrInvalidEffect)
		}
		e.Period = v.Period
		e.Magnitude = v.Magnitude
		e.Offset = v.Offset
		e.Phase = v.Phase

	case ConditionEffect:
		if v.Condition > CondFriction {
			return nil, fmt.Errorf("%w: unknown condition type %d", ErrInvalidEffect, v.Condition)
		}
		e.RightSat = v.RightSat
		e.LeftSat = v.LeftSat
		e.RightCoeff = v.RightCoeff
		e.LeftCoeff = v.LeftCoeff
		e.Deadband = v.Deadband
		e.Center = v.Center

	case RampEffect:
		if b.Length == Infinity {
			return nil, fmt.Errorf("%w: ramp effects cannot be infinite", ErrInvalidEffect)
		}
		if b.Envelope.fades() {
			return nil, fmt.Errorf("%w: ramp effects cannot fade", ErrInvalidEffect)
		}
		e.Start = v.Start
		e.End = v.End

	case LeftRightEffect:
		e.LargeMagnitude = v.LargeMagnitude
		e.SmallMagnitude = v.SmallMagnitude

	case CustomEffect:
		if v.Channels == 0 {
			return nil, fmt.Errorf("%w: custom effect needs at least one channel", ErrInvalidEffect)
		}
		if v.Period == 0 || v.Period == Infinity {
			return nil, fmt.Errorf("%w: custom effect needs a finite nonzero period", ErrInvalidEffect)
		}
		if len(v.Samples) == 0 || len(v.Samples)%int(v.Channels) != 0 {
			return nil, fmt.Errorf("%w: custom samples must be a whole number of %d-channel frames", ErrInvalidEffect, v.Channels)
		}
		e.Channels = v.Channels
		e.Period = v.Period
		e.Samples = v.Samples

	default:
		return nil, fmt.Errorf("%w: unknown effect definition %T", ErrInvalidEffect, def)
	}

	return e, nil
}
