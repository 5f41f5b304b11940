package haptic

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/seaforth/haptic/internal/ffdrv"
)

// DeviceInfo describes an enumerated force-feedback device. The index
// is the device's stable position in the registry; enumeration is a
// static snapshot and does not imply the device stays available.
type DeviceInfo struct {
	Index int
	Name  string
	Path  string
}

// Source is an input object owned by a collaborating subsystem (a
// joystick, a mouse) that may be backed by a force-feedback device.
//
// A Device opened from a Source holds no ownership link to it: closing
// one does not close the other. The caller must close the Device
// before releasing the Source it was derived from; not doing so leaks
// platform resources.
type Source interface {
	// FFPath returns the platform path of the backing force-feedback
	// node, or "" if the object has none.
	FFPath() string
}

// Registry owns the process-scoped table of opened haptic devices.
// Opening the same index twice yields the same *Device with its
// reference count raised; the backend device is released on the last
// Close. The registry's own bookkeeping is safe for concurrent use;
// individual Devices are not.
type Registry struct {
	drv ffdrv.Driver

	mu       sync.Mutex
	open     map[int]*Device
	byPath   map[string]*Device
	gainCeil int
}

// NewRegistry returns a registry over the given backend driver.
func NewRegistry(drv ffdrv.Driver) *Registry {
	return &Registry{
		drv:      drv,
		open:     make(map[int]*Device),
		byPath:   make(map[string]*Device),
		gainCeil: 100,
	}
}

// SetGainCeiling caps the effective gain of every device opened
// through this registry. SetGain values are scaled linearly into
// [0, pct]. The HAPTIC_GAIN_MAX environment variable, when set,
// overrides this at call time.
func (r *Registry) SetGainCeiling(pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	r.gainCeil = pct
}

func (r *Registry) gainCeiling() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gainCeil
}

// Enumerate returns a snapshot of the devices the backend can see.
func (r *Registry) Enumerate() ([]DeviceInfo, error) {
	infos, err := r.drv.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate: %v", ErrDevice, err)
	}
	out := make([]DeviceInfo, 0, len(infos))
	for _, in := range infos {
		out = append(out, DeviceInfo{Index: in.Index, Name: in.Name, Path: in.Path})
	}
	return out, nil
}

// Open opens the device at an enumeration index. If this process
// already holds it open, the same *Device is returned with its
// reference count raised. On first open the device is set to maximum
// gain and autocenter disabled, matching the documented device default.
func (r *Registry) Open(index int) (*Device, error) {
	r.mu.Lock()
	if d, ok := r.open[index]; ok {
		d.refs++
		r.mu.Unlock()
		return d, nil
	}
	r.mu.Unlock()

	infos, err := r.drv.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate: %v", ErrDevice, err)
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("%w: index %d", ErrNotFound, index)
	}
	info := infos[index]

	dev, err := r.drv.Open(index)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrDevice, info.Name, err)
	}

	d, err := r.adopt(dev, index, info.Name, info.Path)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// OpenFromSource resolves and opens the device backing another input
// object. It fails with ErrUnsupported when the object has no
// force-feedback node. See Source for the close-ordering contract.
func (r *Registry) OpenFromSource(src Source) (*Device, error) {
	path := src.FFPath()
	if path == "" {
		return nil, fmt.Errorf("%w: source has no force-feedback device", ErrUnsupported)
	}

	r.mu.Lock()
	if d, ok := r.byPath[path]; ok {
		d.refs++
		r.mu.Unlock()
		return d, nil
	}
	r.mu.Unlock()

	dev, err := r.drv.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrDevice, path, err)
	}

	// Devices resolved from a source may sit outside the enumeration
	// snapshot; they are tracked by path only.
	return r.adopt(dev, -1, path, path)
}

// adopt wires an opened backend device into the registry, querying its
// features and applying the first-open defaults.
func (r *Registry) adopt(dev ffdrv.Device, index int, name, path string) (*Device, error) {
	feat, err := dev.Features()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("%w: features of %q: %v", ErrDevice, name, err)
	}

	slots := feat.MaxEffects
	if slots <= 0 || slots > maxEffectSlots {
		slots = maxEffectSlots
	}

	d := &Device{
		reg:     r,
		drv:     dev,
		index:   index,
		name:    name,
		path:    path,
		refs:    1,
		caps:    Capability(feat.Mask),
		axes:    feat.Axes,
		slotCap: feat.MaxEffects,
		playCap: feat.MaxPlaying,
		slots:   make([]effectSlot, slots),
	}

	r.mu.Lock()
	// Another goroutine may have adopted this device between the cache
	// miss and here; the first insert wins and this open folds into it.
	if existing := r.lookupLocked(index, path); existing != nil {
		existing.refs++
		r.mu.Unlock()
		dev.Close()
		return existing, nil
	}
	if index >= 0 {
		r.open[index] = d
	}
	r.byPath[path] = d
	r.mu.Unlock()

	if d.caps.Has(CapGain) {
		if err := dev.SetGain(d.scaleGain(100)); err != nil {
			slog.Warn("initial gain not applied", slog.String("device", name), slog.Any("error", err))
		}
	}
	if d.caps.Has(CapAutocenter) {
		if err := dev.SetAutocenter(0); err != nil {
			slog.Warn("initial autocenter not applied", slog.String("device", name), slog.Any("error", err))
		}
	}

	return d, nil
}

// lookupLocked finds an already open device by index or path. Callers
// hold r.mu.
func (r *Registry) lookupLocked(index int, path string) *Device {
	if index >= 0 {
		if d, ok := r.open[index]; ok {
			return d
		}
	}
	if d, ok := r.byPath[path]; ok {
		return d
	}
	return nil
}

// IsOpen reports whether this process holds the device at index open.
func (r *Registry) IsOpen(index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.open[index]
	return ok
}

// Close decrements a device's reference count, physically releasing it
// at zero. Equivalent to calling d.Close().
func (r *Registry) Close(d *Device) error { return d.Close() }
