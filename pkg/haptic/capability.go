package haptic

import (
	"strings"

	"github.com/seaforth/haptic/internal/ffdrv"
)

// Capability is the bitmask of effect kinds and device features a
// device supports.
type Capability uint32

const (
	CapConstant     = Capability(ffdrv.CapConstant)
	CapSine         = Capability(ffdrv.CapSine)
	CapSquare       = Capability(ffdrv.CapSquare)
	CapTriangle     = Capability(ffdrv.CapTriangle)
	CapSawtoothUp   = Capability(ffdrv.CapSawtoothUp)
	CapSawtoothDown = Capability(ffdrv.CapSawtoothDown)
	CapRamp         = Capability(ffdrv.CapRamp)
	CapSpring       = Capability(ffdrv.CapSpring)
	CapDamper       = Capability(ffdrv.CapDamper)
	CapInertia      = Capability(ffdrv.CapInertia)
	CapFriction     = Capability(ffdrv.CapFriction)
	CapLeftRight    = Capability(ffdrv.CapLeftRight)
	CapCustom       = Capability(ffdrv.CapCustom)

	// Device features.
	CapGain       = Capability(ffdrv.CapGain)
	CapAutocenter = Capability(ffdrv.CapAutocenter)
	CapStatus     = Capability(ffdrv.CapStatus)
	CapPause      = Capability(ffdrv.CapPause)
)

// KindBit returns the capability bit checked for an effect kind.
func KindBit(k EffectKind) Capability {
	return Capability(ffdrv.CapBit(ffdrv.Kind(k)))
}

// Has reports whether every bit of want is set.
func (c Capability) Has(want Capability) bool { return c&want == want }

var capNames = []struct {
	bit  Capability
	name string
}{
	{CapConstant, "constant"},
	{CapSine, "sine"},
	{CapSquare, "square"},
	{CapTriangle, "triangle"},
	{CapSawtoothUp, "sawtooth-up"},
	{CapSawtoothDown, "sawtooth-down"},
	{CapRamp, "ramp"},
	{CapSpring, "spring"},
	{CapDamper, "damper"},
	{CapInertia, "inertia"},
	{CapFriction, "friction"},
	{CapLeftRight, "left-right"},
	{CapCustom, "custom"},
	{CapGain, "gain"},
	{CapAutocenter, "autocenter"},
	{CapStatus, "status"},
	{CapPause, "pause"},
}

func (c Capability) String() string {
	var names []string
	for _, e := range capNames {
		if c&e.bit != 0 {
			names = append(names, e.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
