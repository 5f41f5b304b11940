package ffdrv

import (
	"errors"
	"fmt"
)

// MockDriver is an in-memory backend used by core tests. Devices are
// configured up front; effect uploads, playback and gain changes are
// recorded so tests can assert on what reached the "driver".
type MockDriver struct {
	Devices []*MockDevice

	// EnumerateErr, when set, makes Enumerate fail.
	EnumerateErr error
}

func NewMockDriver(devices ...*MockDevice) *MockDriver {
	return &MockDriver{Devices: devices}
}

func (m *MockDriver) Name() string { return "mock" }

func (m *MockDriver) Enumerate() ([]DeviceInfo, error) {
	if m.EnumerateErr != nil {
		return nil, m.EnumerateErr
	}
	out := make([]DeviceInfo, 0, len(m.Devices))
	for i, d := range m.Devices {
		out = append(out, DeviceInfo{Index: i, Name: d.DeviceName, Path: d.Path})
	}
	return out, nil
}

func (m *MockDriver) Open(index int) (Device, error) {
	if index < 0 || index >= len(m.Devices) {
		return nil, fmt.Errorf("mock: no device at index %d", index)
	}
	d := m.Devices[index]
	d.Opens++
	return d, nil
}

func (m *MockDriver) OpenPath(path string) (Device, error) {
	for _, d := range m.Devices {
		if d.Path == path {
			d.Opens++
			return d, nil
		}
	}
	return nil, fmt.Errorf("mock: no device at path %q", path)
}

// MockEffect is one uploaded effect slot as the mock driver sees it.
type MockEffect struct {
	Effect  Effect
	Running bool
	// Iterations passed to the last Run call.
	Iterations uint32
}

// MockDevice is one scriptable backend device.
type MockDevice struct {
	DeviceName string
	Path       string
	Feat       Features

	// Failure injection. Each applies to the next matching call only
	// when consumed is false; set Sticky to keep failing.
	UploadErr error
	RunErr    error
	Sticky    bool

	// Recorded state.
	Opens      int
	Closes     int
	Gain       int
	Autocenter int
	Paused     bool

	effects map[int]*MockEffect
	nextID  int
}

func NewMockDevice(name string, feat Features) *MockDevice {
	return &MockDevice{
		DeviceName: name,
		Path:       "/dev/mock/" + name,
		Feat:       feat,
		effects:    make(map[int]*MockEffect),
	}
}

func (d *MockDevice) Features() (Features, error) { return d.Feat, nil }

// EffectCount reports how many effects are currently uploaded.
func (d *MockDevice) EffectCount() int { return len(d.effects) }

// EffectByID returns the recorded slot for a backend id.
func (d *MockDevice) EffectByID(id int) (*MockEffect, bool) {
	e, ok := d.effects[id]
	return e, ok
}

func (d *MockDevice) consume(errp *error) error {
	err := *errp
	if err != nil && !d.Sticky {
		*errp = nil
	}
	return err
}

func (d *MockDevice) Upload(e *Effect) (int, error) {
	if err := d.consume(&d.UploadErr); err != nil {
		return 0, err
	}
	if d.Feat.MaxEffects > 0 && len(d.effects) >= d.Feat.MaxEffects {
		return 0, errors.New("mock: effect table full")
	}
	id := d.nextID
	d.nextID++
	cp := *e
	d.effects[id] = &MockEffect{Effect: cp}
	return id, nil
}

func (d *MockDevice) Update(id int, e *Effect) error {
	slot, ok := d.effects[id]
	if !ok {
		return fmt.Errorf("mock: update of unknown effect %d", id)
	}
	slot.Effect = *e
	return nil
}

func (d *MockDevice) Erase(id int) error {
	if _, ok := d.effects[id]; !ok {
		return fmt.Errorf("mock: erase of unknown effect %d", id)
	}
	delete(d.effects, id)
	return nil
}

func (d *MockDevice) Run(id int, iterations uint32) error {
	if err := d.consume(&d.RunErr); err != nil {
		return err
	}
	slot, ok := d.effects[id]
	if !ok {
		return fmt.Errorf("mock: run of unknown effect %d", id)
	}
	slot.Running = true
	slot.Iterations = iterations
	return nil
}

func (d *MockDevice) Stop(id int) error {
	slot, ok := d.effects[id]
	if !ok {
		return fmt.Errorf("mock: stop of unknown effect %d", id)
	}
	slot.Running = false
	return nil
}

func (d *MockDevice) Playing(id int) (bool, error) {
	slot, ok := d.effects[id]
	if !ok {
		return false, fmt.Errorf("mock: status of unknown effect %d", id)
	}
	return slot.Running, nil
}

func (d *MockDevice) SetGain(pct int) error {
	d.Gain = pct
	return nil
}

func (d *MockDevice) SetAutocenter(pct int) error {
	d.Autocenter = pct
	return nil
}

func (d *MockDevice) Pause() error {
	d.Paused = true
	return nil
}

func (d *MockDevice) Resume() error {
	d.Paused = false
	return nil
}

func (d *MockDevice) Close() error {
	d.Closes++
	return nil
}
