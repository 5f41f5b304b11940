package haptic

import (
	"errors"
	"testing"

	"github.com/seaforth/haptic/internal/ffdrv"
)

const allKinds = ffdrv.CapConstant | ffdrv.CapSine | ffdrv.CapSquare |
	ffdrv.CapTriangle | ffdrv.CapSawtoothUp | ffdrv.CapSawtoothDown |
	ffdrv.CapRamp | ffdrv.CapSpring | ffdrv.CapDamper | ffdrv.CapInertia |
	ffdrv.CapFriction | ffdrv.CapLeftRight | ffdrv.CapCustom

func fullFeatures() ffdrv.Features {
	return ffdrv.Features{
		Mask:       allKinds | ffdrv.CapGain | ffdrv.CapAutocenter | ffdrv.CapStatus | ffdrv.CapPause,
		Axes:       2,
		MaxEffects: 16,
		MaxPlaying: 4,
	}
}

func newTestDevice(t *testing.T, feat ffdrv.Features) (*Device, *ffdrv.MockDevice) {
	t.Helper()
	mock := ffdrv.NewMockDevice("pad0", feat)
	reg := NewRegistry(ffdrv.NewMockDriver(mock))
	d, err := reg.Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return d, mock
}

func TestUploadDestroyLeavesCountUnchanged(t *testing.T) {
	d, _ := newTestDevice(t, fullFeatures())
	defer d.Close()

	defs := []EffectDefinition{
		validSine(),
		ConstantEffect{Base: Base{Length: 1000}, Level: 10000},
		RampEffect{Base: Base{Length: 1000}, Start: 0, End: 10000},
		ConditionEffect{Base: Base{Length: 1000}, Condition: CondDamper},
		LeftRightEffect{Base: Base{Length: 500}, LargeMagnitude: 0x8000},
		CustomEffect{Base: Base{Length: 100}, Channels: 1, Period: 10, Samples: []uint16{1, 2, 3}},
	}
	for _, def := range defs {
		before := d.EffectCount()
		h, err := d.Upload(def)
		if err != nil {
			t.Fatalf("upload %v: %v", def.Kind(), err)
		}
		d.Destroy(h)
		if got := d.EffectCount(); got != before {
			t.Fatalf("%v: effect count %d after upload+destroy, want %d", def.Kind(), got, before)
		}
	}
}

func TestRunUnknownHandle(t *testing.T) {
	d, _ := newTestDevice(t, fullFeatures())
	defer d.Close()

	for _, h := range []EffectHandle{-1, 0, 7, 1000} {
		if err := d.Run(h, 1); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("run(%d): got %v, want ErrInvalidHandle", h, err)
		}
	}

	// A destroyed handle is just as invalid.
	h, err := d.Upload(validSine())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	d.Destroy(h)
	if err := d.Run(h, 1); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("run destroyed handle: got %v, want ErrInvalidHandle", err)
	}
}

func TestRunZeroIterations(t *testing.T) {
	d, mock := newTestDevice(t, fullFeatures())
	defer d.Close()

	h, err := d.Upload(validSine())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := d.Run(h, 0); err == nil {
		t.Fatal("run with zero iterations succeeded")
	}
	// The driver never saw the call; the kernel backend would have read
	// a zero play value as a stop.
	e, ok := mock.EffectByID(0)
	if !ok {
		t.Fatal("uploaded effect missing from driver")
	}
	if e.Running {
		t.Fatal("effect running after rejected run")
	}
	st, err := d.Status(h)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st != Idle {
		t.Fatalf("status = %v, want idle", st)
	}
}

func TestStatusAfterRun(t *testing.T) {
	d, _ := newTestDevice(t, fullFeatures())
	defer d.Close()

	h, err := d.Upload(validSine())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := d.Run(h, 3); err != nil {
		t.Fatalf("run: %v", err)
	}
	st, err := d.Status(h)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st != Playing {
		t.Fatalf("status = %v, want playing", st)
	}
	if err := d.Stop(h); err != nil {
		t.Fatalf("stop: %v", err)
	}
	st, err = d.Status(h)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st != Idle {
		t.Fatalf("status = %v, want idle", st)
	}
}

func TestStatusWithoutCapability(t *testing.T) {
	feat := fullFeatures()
	feat.Mask &^= ffdrv.CapStatus
	d, _ := newTestDevice(t, feat)
	defer d.Close()

	h, err := d.Upload(validSine())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := d.Run(h, 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := d.Status(h); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("status: got %v, want ErrUnsupported", err)
	}
}

func TestInfinitySentinelNeverReachesDriver(t *testing.T) {
	d, mock := newTestDevice(t, fullFeatures())
	defer d.Close()

	bad := []EffectDefinition{
		func() EffectDefinition { e := validSine(); e.Delay = Infinity; return e }(),
		func() EffectDefinition { e := validSine(); e.Interval = Infinity; return e }(),
		func() EffectDefinition { e := validSine(); e.Envelope.AttackLength = Infinity; return e }(),
		func() EffectDefinition { e := validSine(); e.Envelope.FadeLength = Infinity; return e }(),
	}
	for _, def := range bad {
		if _, err := d.Upload(def); !errors.Is(err, ErrInvalidEffect) {
			t.Errorf("upload: got %v, want ErrInvalidEffect", err)
		}
	}
	if mock.EffectCount() != 0 {
		t.Fatalf("driver saw %d uploads, want 0", mock.EffectCount())
	}
}

func TestUpdateKindRules(t *testing.T) {
	d, mock := newTestDevice(t, fullFeatures())
	defer d.Close()

	h, err := d.Upload(validSine())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	// Same kind succeeds.
	replacement := validSine()
	replacement.Magnitude = 12345
	if err := d.Update(h, replacement); err != nil {
		t.Fatalf("same-kind update: %v", err)
	}

	// Changing the kind fails and leaves the replacement active.
	err = d.Update(h, ConstantEffect{Base: Base{Length: 1000}, Level: 1})
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("cross-kind update: got %v, want ErrKindMismatch", err)
	}
	for id := 0; ; id++ {
		e, ok := mock.EffectByID(id)
		if !ok {
			t.Fatal("uploaded effect missing from driver")
		}
		if e.Effect.Kind == ffdrv.KindSine {
			if e.Effect.Magnitude != 12345 {
				t.Fatalf("driver magnitude = %d, want 12345", e.Effect.Magnitude)
			}
			break
		}
	}
}

func TestUploadFailureAllocatesNothing(t *testing.T) {
	d, mock := newTestDevice(t, fullFeatures())
	defer d.Close()

	mock.UploadErr = errors.New("driver said no")
	if _, err := d.Upload(validSine()); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("upload: got %v, want ErrResourceExhausted", err)
	}
	if d.EffectCount() != 0 {
		t.Fatalf("effect count %d after failed upload, want 0", d.EffectCount())
	}

	// The failure consumed the injection; the next upload succeeds.
	if _, err := d.Upload(validSine()); err != nil {
		t.Fatalf("upload after failure: %v", err)
	}
}

func TestFailedRunLeavesStateUnchanged(t *testing.T) {
	d, _ := newTestDevice(t, fullFeatures())
	defer d.Close()

	h, err := d.Upload(validSine())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	mock := d.drv.(*ffdrv.MockDevice)
	mock.RunErr = errors.New("bus glitch")
	if err := d.Run(h, 1); !errors.Is(err, ErrDevice) {
		t.Fatalf("run: got %v, want ErrDevice", err)
	}
	st, err := d.Status(h)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st != Idle {
		t.Fatalf("status = %v after failed run, want idle", st)
	}
}

func TestSineOnlyDevice(t *testing.T) {
	d, _ := newTestDevice(t, ffdrv.Features{Mask: ffdrv.CapSine, MaxEffects: 4})
	defer d.Close()

	if _, err := d.Upload(ConstantEffect{Base: Base{Length: 1000}, Level: 1}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("constant upload: got %v, want ErrUnsupported", err)
	}

	sine := PeriodicEffect{
		Base: Base{
			Direction: PolarDirection(0),
			Length:    5000,
			Envelope:  Envelope{AttackLength: 1000, FadeLength: 1000},
		},
		Wave:      WaveSine,
		Period:    1000,
		Magnitude: 20000,
	}
	h1, err := d.Upload(sine)
	if err != nil {
		t.Fatalf("sine upload: %v", err)
	}
	d.Destroy(h1)
	h2, err := d.Upload(sine)
	if err != nil {
		t.Fatalf("sine re-upload: %v", err)
	}
	if d.EffectCount() != 1 {
		t.Fatalf("effect count %d, want 1", d.EffectCount())
	}
	if err := d.Run(h2, 1); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestStopAll(t *testing.T) {
	d, _ := newTestDevice(t, fullFeatures())
	defer d.Close()

	var handles []EffectHandle
	for i := 0; i < 3; i++ {
		h, err := d.Upload(validSine())
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		if err := d.Run(h, Infinity); err != nil {
			t.Fatalf("run: %v", err)
		}
		handles = append(handles, h)
	}
	if err := d.StopAll(); err != nil {
		t.Fatalf("stopall: %v", err)
	}
	for _, h := range handles {
		st, err := d.Status(h)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if st != Idle {
			t.Fatalf("effect %d still %v after stopall", h, st)
		}
	}
}

func TestEffectTableExhaustion(t *testing.T) {
	d, _ := newTestDevice(t, ffdrv.Features{Mask: allKinds, MaxEffects: 2})
	defer d.Close()

	if _, err := d.Upload(validSine()); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := d.Upload(validSine()); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := d.Upload(validSine()); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("third upload: got %v, want ErrResourceExhausted", err)
	}
}

func TestPauseGating(t *testing.T) {
	feat := fullFeatures()
	feat.Mask &^= ffdrv.CapPause
	d, _ := newTestDevice(t, feat)
	defer d.Close()

	if err := d.Pause(); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("pause: got %v, want ErrUnsupported", err)
	}

	d2, mock2 := newTestDevice(t, fullFeatures())
	defer d2.Close()
	if err := d2.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !mock2.Paused {
		t.Fatal("driver not paused")
	}
	if err := d2.Unpause(); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if mock2.Paused {
		t.Fatal("driver still paused")
	}
}

func TestSetGainScaling(t *testing.T) {
	d, mock := newTestDevice(t, fullFeatures())
	defer d.Close()

	if err := d.SetGain(80); err != nil {
		t.Fatalf("set gain: %v", err)
	}
	if mock.Gain != 80 {
		t.Fatalf("driver gain %d, want 80", mock.Gain)
	}

	d.reg.SetGainCeiling(50)
	if err := d.SetGain(80); err != nil {
		t.Fatalf("set gain: %v", err)
	}
	if mock.Gain != 40 {
		t.Fatalf("driver gain %d with 50%% ceiling, want 40", mock.Gain)
	}

	if err := d.SetGain(101); err == nil {
		t.Fatal("expected range error")
	}
}

func TestSetGainEnvOverride(t *testing.T) {
	d, mock := newTestDevice(t, fullFeatures())
	defer d.Close()

	t.Setenv("HAPTIC_GAIN_MAX", "25")
	if err := d.SetGain(100); err != nil {
		t.Fatalf("set gain: %v", err)
	}
	if mock.Gain != 25 {
		t.Fatalf("driver gain %d with env ceiling 25, want 25", mock.Gain)
	}
}

func TestGainAndAutocenterGating(t *testing.T) {
	d, _ := newTestDevice(t, ffdrv.Features{Mask: allKinds, MaxEffects: 4})
	defer d.Close()

	if err := d.SetGain(50); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("set gain: got %v, want ErrUnsupported", err)
	}
	if err := d.SetAutocenter(50); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("set autocenter: got %v, want ErrUnsupported", err)
	}

	d2, mock2 := newTestDevice(t, fullFeatures())
	defer d2.Close()
	if err := d2.SetAutocenter(30); err != nil {
		t.Fatalf("set autocenter: %v", err)
	}
	if mock2.Autocenter != 30 {
		t.Fatalf("driver autocenter %d, want 30", mock2.Autocenter)
	}
}
