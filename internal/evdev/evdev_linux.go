//go:build linux

// Package evdev is the Linux force-feedback backend, speaking the
// kernel input subsystem's ioctl and event interface on
// /dev/input/event* nodes.
package evdev

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/seaforth/haptic/internal/ffdrv"
)

// Input subsystem constants from linux/input.h and
// linux/input-event-codes.h.
const (
	evAbs = 0x03
	evFF  = 0x15

	ffRumble   = 0x50
	ffPeriodic = 0x51
	ffConstant = 0x52
	ffSpring   = 0x53
	ffFriction = 0x54
	ffDamper   = 0x55
	ffInertia  = 0x56
	ffRamp     = 0x57

	ffSquare   = 0x58
	ffTriangle = 0x59
	ffSine     = 0x5a
	ffSawUp    = 0x5b
	ffSawDown  = 0x5c
	ffCustom   = 0x5d

	ffGain       = 0x60
	ffAutocenter = 0x61
	ffMax        = 0x7f

	absX   = 0x00
	absY   = 0x01
	absZ   = 0x02
	absMax = 0x3f

	// Kernel replay lengths are u16 and capped at 0x7FFF ms.
	maxDurationMs = 0x7FFF
)

// ioctl request numbers ('E' is the input subsystem magic).
func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | 'E'<<8 | nr
}

const (
	iocRead  = 2
	iocWrite = 1
)

func eviocgname(size uintptr) uintptr { return ioc(iocRead, 0x06, size) }

func eviocgbit(ev, size uintptr) uintptr {
	return ioc(iocRead, 0x20+ev, size)
}

var (
	eviocgeffects = ioc(iocRead, 0x84, 4)
	eviocsff      = ioc(iocWrite, 0x80, unsafe.Sizeof(ffEffect{}))
	eviocrmff     = ioc(iocWrite, 0x81, 4)
)

func ioctlPtr(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// ffEffect mirrors struct ff_effect. The kind-specific union is kept
// as raw bytes; it is 8-aligned on 64-bit kernels because
// ff_periodic_effect carries a sample pointer, hence the two bytes of
// padding after the replay block.
type ffEffect struct {
	typ          uint16
	id           int16
	direction    uint16
	trigButton   uint16
	trigInterval uint16
	replayLength uint16
	replayDelay  uint16
	_            [2]byte
	u            [32]byte
}

type driver struct{}

// New returns the evdev backend driver.
func New() ffdrv.Driver { return driver{} }

func (driver) Name() string { return "evdev" }

func hasBit(bits []byte, n int) bool {
	return n/8 < len(bits) && bits[n/8]&(1<<(n%8)) != 0
}

func deviceName(f *os.File) string {
	var buf [256]byte
	if err := ioctlPtr(f.Fd(), eviocgname(uintptr(len(buf))), unsafe.Pointer(&buf[0])); err != nil {
		return filepath.Base(f.Name())
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf[:])
}

func ffBits(f *os.File) ([]byte, error) {
	bits := make([]byte, ffMax/8+1)
	if err := ioctlPtr(f.Fd(), eviocgbit(evFF, uintptr(len(bits))), unsafe.Pointer(&bits[0])); err != nil {
		return nil, err
	}
	return bits, nil
}

// Enumerate lists every event node that advertises at least one
// force-feedback effect bit.
func (driver) Enumerate() ([]ffdrv.DeviceInfo, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []ffdrv.DeviceInfo
	for _, path := range paths {
		f, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
		if err != nil {
			// Nodes we cannot open (permissions, races with
			// hotplug) are not haptic devices for us.
			continue
		}
		bits, err := ffBits(f)
		usable := err == nil
		if usable {
			usable = false
			for _, b := range bits {
				if b != 0 {
					usable = true
					break
				}
			}
		}
		if !usable {
			f.Close()
			continue
		}
		out = append(out, ffdrv.DeviceInfo{
			Index: len(out),
			Name:  deviceName(f),
			Path:  path,
		})
		f.Close()
	}
	return out, nil
}

func (d driver) Open(index int) (ffdrv.Device, error) {
	infos, err := d.Enumerate()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("evdev: no haptic device at index %d", index)
	}
	return d.OpenPath(infos[index].Path)
}

func (driver) OpenPath(path string) (ffdrv.Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("evdev: open %s: %w", path, err)
	}
	return &device{f: f, custom: make(map[int][]int16)}, nil
}

type device struct {
	f *os.File
	// custom keeps uploaded sample buffers reachable while the kernel
	// holds a pointer to them.
	custom map[int][]int16
}

func (d *device) Features() (ffdrv.Features, error) {
	bits, err := ffBits(d.f)
	if err != nil {
		return ffdrv.Features{}, fmt.Errorf("evdev: query ff bits: %w", err)
	}

	var mask uint32
	for bit, capBit := range map[int]uint32{
		ffConstant: ffdrv.CapConstant,
		ffSine:     ffdrv.CapSine,
		ffSquare:   ffdrv.CapSquare,
		ffTriangle: ffdrv.CapTriangle,
		ffSawUp:    ffdrv.CapSawtoothUp,
		ffSawDown:  ffdrv.CapSawtoothDown,
		ffRamp:     ffdrv.CapRamp,
		ffSpring:   ffdrv.CapSpring,
		ffDamper:   ffdrv.CapDamper,
		ffInertia:  ffdrv.CapInertia,
		ffFriction: ffdrv.CapFriction,
		ffRumble:   ffdrv.CapLeftRight,
		ffCustom:   ffdrv.CapCustom,
	} {
		if hasBit(bits, bit) {
			mask |= capBit
		}
	}
	if hasBit(bits, ffGain) {
		mask |= ffdrv.CapGain
	}
	if hasBit(bits, ffAutocenter) {
		mask |= ffdrv.CapAutocenter
	}
	// The kernel interface has no playback status query and no
	// device-wide pause, so CapStatus and CapPause stay unset.

	var n int32
	if err := ioctlPtr(d.f.Fd(), eviocgeffects, unsafe.Pointer(&n)); err != nil {
		return ffdrv.Features{}, fmt.Errorf("evdev: query effect count: %w", err)
	}

	axes := 0
	absBits := make([]byte, absMax/8+1)
	if err := ioctlPtr(d.f.Fd(), eviocgbit(evAbs, uintptr(len(absBits))), unsafe.Pointer(&absBits[0])); err == nil {
		for _, a := range []int{absX, absY, absZ} {
			if hasBit(absBits, a) {
				axes++
			}
		}
	}

	return ffdrv.Features{
		Mask:       mask,
		Axes:       axes,
		MaxEffects: int(n),
		MaxPlaying: int(n),
	}, nil
}

func (d *device) Upload(e *ffdrv.Effect) (int, error) {
	fe, samples, err := d.translate(e, -1)
	if err != nil {
		return 0, err
	}
	if err := ioctlPtr(d.f.Fd(), eviocsff, unsafe.Pointer(fe)); err != nil {
		return 0, fmt.Errorf("evdev: upload: %w", err)
	}
	id := int(fe.id)
	if samples != nil {
		d.custom[id] = samples
	}
	return id, nil
}

func (d *device) Update(id int, e *ffdrv.Effect) error {
	fe, samples, err := d.translate(e, int16(id))
	if err != nil {
		return err
	}
	if err := ioctlPtr(d.f.Fd(), eviocsff, unsafe.Pointer(fe)); err != nil {
		return fmt.Errorf("evdev: update: %w", err)
	}
	if samples != nil {
		d.custom[id] = samples
	}
	return nil
}

func (d *device) Erase(id int) error {
	v := int32(id)
	if err := ioctlPtr(d.f.Fd(), eviocrmff, unsafe.Pointer(&v)); err != nil {
		return fmt.Errorf("evdev: erase %d: %w", id, err)
	}
	delete(d.custom, id)
	return nil
}

// writeEvent emits one input_event on the device node.
func (d *device) writeEvent(typ, code uint16, value int32) error {
	// struct input_event on 64-bit: 16 bytes of timestamp the kernel
	// ignores on write, then type, code, value.
	var buf [24]byte
	binary.LittleEndian.PutUint16(buf[16:], typ)
	binary.LittleEndian.PutUint16(buf[18:], code)
	binary.LittleEndian.PutUint32(buf[20:], uint32(value))
	if _, err := d.f.Write(buf[:]); err != nil {
		return err
	}
	return nil
}

func (d *device) Run(id int, iterations uint32) error {
	v := int32(math.MaxInt32)
	if iterations != ffdrv.Infinity && iterations <= math.MaxInt32 {
		v = int32(iterations)
	}
	if err := d.writeEvent(evFF, uint16(id), v); err != nil {
		return fmt.Errorf("evdev: run %d: %w", id, err)
	}
	return nil
}

func (d *device) Stop(id int) error {
	if err := d.writeEvent(evFF, uint16(id), 0); err != nil {
		return fmt.Errorf("evdev: stop %d: %w", id, err)
	}
	return nil
}

func (d *device) Playing(int) (bool, error) {
	return false, fmt.Errorf("evdev: no playback status query")
}

func (d *device) SetGain(pct int) error {
	if err := d.writeEvent(evFF, ffGain, int32(pct)*0xFFFF/100); err != nil {
		return fmt.Errorf("evdev: set gain: %w", err)
	}
	return nil
}

func (d *device) SetAutocenter(pct int) error {
	if err := d.writeEvent(evFF, ffAutocenter, int32(pct)*0xFFFF/100); err != nil {
		return fmt.Errorf("evdev: set autocenter: %w", err)
	}
	return nil
}

func (d *device) Pause() error  { return fmt.Errorf("evdev: no device-wide pause") }
func (d *device) Resume() error { return fmt.Errorf("evdev: no device-wide pause") }

func (d *device) Close() error {
	for id := range d.custom {
		delete(d.custom, id)
	}
	return d.f.Close()
}

// clampMs narrows a millisecond duration to the kernel's u16 replay
// field; the infinity sentinel maps to 0, which the kernel treats as
// unbounded.
func clampMs(ms uint32) uint16 {
	if ms == ffdrv.Infinity {
		return 0
	}
	if ms > maxDurationMs {
		slog.Debug("duration clamped", slog.Uint64("ms", uint64(ms)))
		return maxDurationMs
	}
	return uint16(ms)
}

// toDirection maps the three direction encodings onto the kernel's
// single u16, where north is 0, east is 0x4000 and a full turn is
// 0x10000.
func toDirection(dir ffdrv.Direction) uint16 {
	var centideg int32
	switch dir.Encoding {
	case ffdrv.DirPolar:
		centideg = dir.Dir[0]
	case ffdrv.DirSpherical:
		centideg = dir.Dir[0] + 9000
	case ffdrv.DirCartesian:
		if dir.Dir[0] == 0 && dir.Dir[1] == 0 {
			return 0
		}
		rad := math.Atan2(float64(dir.Dir[1]), float64(dir.Dir[0]))
		centideg = int32(rad*18000/math.Pi) + 9000
	}
	centideg %= 36000
	if centideg < 0 {
		centideg += 36000
	}
	return uint16(uint32(centideg) * 0x8000 / 18000)
}

func putEnvelope(u []byte, e *ffdrv.Effect) {
	binary.LittleEndian.PutUint16(u[0:], clampMs(e.AttackLength))
	binary.LittleEndian.PutUint16(u[2:], e.AttackLevel)
	binary.LittleEndian.PutUint16(u[4:], clampMs(e.FadeLength))
	binary.LittleEndian.PutUint16(u[6:], e.FadeLevel)
}

// translate produces the kernel struct for an effect. For custom
// effects it also returns the sample buffer the struct points into;
// the caller must keep it reachable while the effect is uploaded.
func (d *device) translate(e *ffdrv.Effect, id int16) (*ffEffect, []int16, error) {
	fe := &ffEffect{
		id:           id,
		direction:    toDirection(e.Direction),
		trigButton:   e.Button,
		trigInterval: clampMs(e.Interval),
		replayLength: clampMs(e.Length),
		replayDelay:  clampMs(e.Delay),
	}
	u := fe.u[:]

	putWave := func(wave uint16) {
		fe.typ = ffPeriodic
		binary.LittleEndian.PutUint16(u[0:], wave)
		binary.LittleEndian.PutUint16(u[2:], clampMs(e.Period))
		binary.LittleEndian.PutUint16(u[4:], uint16(e.Magnitude))
		binary.LittleEndian.PutUint16(u[6:], uint16(e.Offset))
		binary.LittleEndian.PutUint16(u[8:], e.Phase)
		putEnvelope(u[10:], e)
	}

	putCondition := func() {
		// The kernel carries one ff_condition_effect per axis pair;
		// our per-axis parameters collapse onto the first two.
		for axis := 0; axis < 2; axis++ {
			base := axis * 12
			binary.LittleEndian.PutUint16(u[base+0:], e.RightSat[axis])
			binary.LittleEndian.PutUint16(u[base+2:], e.LeftSat[axis])
			binary.LittleEndian.PutUint16(u[base+4:], uint16(e.RightCoeff[axis]))
			binary.LittleEndian.PutUint16(u[base+6:], uint16(e.LeftCoeff[axis]))
			binary.LittleEndian.PutUint16(u[base+8:], e.Deadband[axis])
			binary.LittleEndian.PutUint16(u[base+10:], uint16(e.Center[axis]))
		}
	}

	var samples []int16

	switch e.Kind {
	case ffdrv.KindConstant:
		fe.typ = ffConstant
		binary.LittleEndian.PutUint16(u[0:], uint16(e.Level))
		putEnvelope(u[2:], e)

	// The kernel reuses the FF_* effect ids as waveform ids.
	case ffdrv.KindSine:
		putWave(ffSine)
	case ffdrv.KindSquare:
		putWave(ffSquare)
	case ffdrv.KindTriangle:
		putWave(ffTriangle)
	case ffdrv.KindSawtoothUp:
		putWave(ffSawUp)
	case ffdrv.KindSawtoothDown:
		putWave(ffSawDown)

	case ffdrv.KindRamp:
		fe.typ = ffRamp
		binary.LittleEndian.PutUint16(u[0:], uint16(e.Start))
		binary.LittleEndian.PutUint16(u[2:], uint16(e.End))
		putEnvelope(u[4:], e)

	case ffdrv.KindSpring:
		fe.typ = ffSpring
		putCondition()
	case ffdrv.KindDamper:
		fe.typ = ffDamper
		putCondition()
	case ffdrv.KindInertia:
		fe.typ = ffInertia
		putCondition()
	case ffdrv.KindFriction:
		fe.typ = ffFriction
		putCondition()

	case ffdrv.KindLeftRight:
		fe.typ = ffRumble
		binary.LittleEndian.PutUint16(u[0:], e.LargeMagnitude)
		binary.LittleEndian.PutUint16(u[2:], e.SmallMagnitude)

	case ffdrv.KindCustom:
		fe.typ = ffPeriodic
		binary.LittleEndian.PutUint16(u[0:], ffCustom)
		binary.LittleEndian.PutUint16(u[2:], clampMs(e.Period))
		binary.LittleEndian.PutUint16(u[4:], uint16(e.Magnitude))
		putEnvelope(u[10:], e)
		samples = make([]int16, len(e.Samples))
		for i, s := range e.Samples {
			samples[i] = int16(s)
		}
		binary.LittleEndian.PutUint32(u[20:], uint32(len(samples)))
		binary.LittleEndian.PutUint64(u[24:], uint64(uintptr(unsafe.Pointer(&samples[0]))))

	default:
		return nil, nil, fmt.Errorf("evdev: untranslatable effect kind %v", e.Kind)
	}

	return fe, samples, nil
}
