// Package ffdrv defines the boundary between the haptic core and the
// platform force-feedback backends. A backend implements Driver and
// Device; the core never sees backend effect ids, file descriptors or
// report formats beyond these interfaces.
package ffdrv

// Kind identifies the waveform family of an effect. Kinds double as bit
// positions in the capability mask.
type Kind uint16

const (
	KindConstant Kind = iota
	KindSine
	KindSquare
	KindTriangle
	KindSawtoothUp
	KindSawtoothDown
	KindRamp
	KindSpring
	KindDamper
	KindInertia
	KindFriction
	KindLeftRight
	KindCustom

	numKinds
)

var kindNames = map[Kind]string{
	KindConstant:     "constant",
	KindSine:         "sine",
	KindSquare:       "square",
	KindTriangle:     "triangle",
	KindSawtoothUp:   "sawtooth-up",
	KindSawtoothDown: "sawtooth-down",
	KindRamp:         "ramp",
	KindSpring:       "spring",
	KindDamper:       "damper",
	KindInertia:      "inertia",
	KindFriction:     "friction",
	KindLeftRight:    "left-right",
	KindCustom:       "custom",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Capability mask bits. The low bits are effect kinds, the high bits are
// device features.
const (
	CapConstant     uint32 = 1 << KindConstant
	CapSine         uint32 = 1 << KindSine
	CapSquare       uint32 = 1 << KindSquare
	CapTriangle     uint32 = 1 << KindTriangle
	CapSawtoothUp   uint32 = 1 << KindSawtoothUp
	CapSawtoothDown uint32 = 1 << KindSawtoothDown
	CapRamp         uint32 = 1 << KindRamp
	CapSpring       uint32 = 1 << KindSpring
	CapDamper       uint32 = 1 << KindDamper
	CapInertia      uint32 = 1 << KindInertia
	CapFriction     uint32 = 1 << KindFriction
	CapLeftRight    uint32 = 1 << KindLeftRight
	CapCustom       uint32 = 1 << KindCustom

	CapGain       uint32 = 1 << 16
	CapAutocenter uint32 = 1 << 17
	CapStatus     uint32 = 1 << 18
	CapPause      uint32 = 1 << 19
)

// CapBit returns the capability bit for an effect kind.
func CapBit(k Kind) uint32 {
	if k >= numKinds {
		return 0
	}
	return 1 << k
}

// Infinity is the sentinel for an unbounded duration or iteration count.
const Infinity uint32 = 0xFFFFFFFF

// Direction encodings.
const (
	DirPolar uint8 = iota
	DirCartesian
	DirSpherical
)

// Direction is a force direction in one of three coordinate systems.
// Only the components the encoding calls for are meaningful.
type Direction struct {
	Encoding uint8
	Dir      [3]int32
}

// Effect is the normalized wire form of an effect definition. The core
// validates and fills it; backends translate it to their native format.
// Only the fields relevant to Kind carry meaning.
type Effect struct {
	Kind      Kind
	Direction Direction

	// Common replay/trigger parameters, milliseconds unless noted.
	Length   uint32 // Infinity for an unbounded effect
	Delay    uint32
	Button   uint16
	Interval uint32

	// Envelope. Unused by condition and left/right effects.
	AttackLength uint32
	AttackLevel  uint16
	FadeLength   uint32
	FadeLevel    uint16

	// Constant.
	Level int16

	// Periodic and custom.
	Period    uint32
	Magnitude int16
	Offset    int16
	Phase     uint16

	// Condition, indexed per axis.
	RightSat   [3]uint16
	LeftSat    [3]uint16
	RightCoeff [3]int16
	LeftCoeff  [3]int16
	Deadband   [3]uint16
	Center     [3]int16

	// Ramp.
	Start int16
	End   int16

	// Left/right.
	LargeMagnitude uint16
	SmallMagnitude uint16

	// Custom waveform samples, Channels interleaved.
	Channels uint8
	Samples  []uint16
}

// Features describes what an opened backend device can do.
type Features struct {
	Mask       uint32 // capability bits
	Axes       int
	MaxEffects int // effect slot hint, may be approximate
	MaxPlaying int // concurrent playback hint
}

// DeviceInfo describes an enumerated device before it is opened.
type DeviceInfo struct {
	Index int
	Name  string
	Path  string
}

// Driver enumerates and opens force-feedback devices for one platform
// backend. A backend implements every Device operation or reports the
// matching capability bit unset; there is no partial availability.
type Driver interface {
	Name() string
	Enumerate() ([]DeviceInfo, error)
	Open(index int) (Device, error)

	// OpenPath opens the device backing a platform path, used when a
	// device is resolved from another input object rather than the
	// enumeration snapshot.
	OpenPath(path string) (Device, error)
}

// Device is one opened backend device. Calls are synchronous; they
// complete or fail immediately. Serialization across goroutines is the
// caller's responsibility.
type Device interface {
	Features() (Features, error)

	// Upload sends a new effect and returns the backend effect id.
	Upload(e *Effect) (int, error)
	// Update replaces the definition of an uploaded effect in place.
	Update(id int, e *Effect) error
	Erase(id int) error

	Run(id int, iterations uint32) error
	Stop(id int) error
	// Playing reports whether the effect is currently running. Only
	// valid when the feature mask carries CapStatus.
	Playing(id int) (bool, error)

	// SetGain and SetAutocenter take the device-ready value in percent.
	SetGain(pct int) error
	SetAutocenter(pct int) error

	Pause() error
	Resume() error

	Close() error
}
