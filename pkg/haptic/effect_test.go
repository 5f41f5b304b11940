package haptic

import (
	"errors"
	"testing"
)

func validSine() PeriodicEffect {
	return PeriodicEffect{
		Base: Base{
			Direction: PolarDirection(9000),
			Length:    5000,
		},
		Wave:      WaveSine,
		Period:    1000,
		Magnitude: 20000,
	}
}

func TestEncodeEffectValidation(t *testing.T) {
	tests := []struct {
		name string
		def  EffectDefinition
		ok   bool
	}{
		{
			name: "valid sine",
			def:  validSine(),
			ok:   true,
		},
		{
			name: "valid sine with envelope",
			def: func() EffectDefinition {
				e := validSine()
				e.Envelope = Envelope{AttackLength: 1000, AttackLevel: 0x4000, FadeLength: 1000, FadeLevel: 0x4000}
				return e
			}(),
			ok: true,
		},
		{
			name: "infinite length without fade",
			def: func() EffectDefinition {
				e := validSine()
				e.Length = Infinity
				return e
			}(),
			ok: true,
		},
		{
			name: "infinite delay",
			def: func() EffectDefinition {
				e := validSine()
				e.Delay = Infinity
				return e
			}(),
		},
		{
			name: "infinite interval",
			def: func() EffectDefinition {
				e := validSine()
				e.Interval = Infinity
				return e
			}(),
		},
		{
			name: "infinite attack length",
			def: func() EffectDefinition {
				e := validSine()
				e.Envelope.AttackLength = Infinity
				return e
			}(),
		},
		{
			name: "infinite fade length",
			def: func() EffectDefinition {
				e := validSine()
				e.Envelope.FadeLength = Infinity
				return e
			}(),
		},
		{
			name: "attack level without length",
			def: func() EffectDefinition {
				e := validSine()
				e.Envelope.AttackLevel = 0x2000
				return e
			}(),
		},
		{
			name: "fade level without length",
			def: func() EffectDefinition {
				e := validSine()
				e.Envelope.FadeLevel = 0x2000
				return e
			}(),
		},
		{
			name: "infinite length with fade",
			def: func() EffectDefinition {
				e := validSine()
				e.Length = Infinity
				e.Envelope = Envelope{FadeLength: 500, FadeLevel: 100}
				return e
			}(),
		},
		{
			name: "periodic zero period",
			def: func() EffectDefinition {
				e := validSine()
				e.Period = 0
				return e
			}(),
		},
		{
			name: "valid ramp",
			def: RampEffect{
				Base:  Base{Direction: PolarDirection(0), Length: 2000},
				Start: -10000,
				End:   10000,
			},
			ok: true,
		},
		{
			name: "infinite ramp",
			def: RampEffect{
				Base:  Base{Direction: PolarDirection(0), Length: Infinity},
				Start: 0,
				End:   10000,
			},
		},
		{
			name: "ramp with fade",
			def: RampEffect{
				Base: Base{
					Direction: PolarDirection(0),
					Length:    2000,
					Envelope:  Envelope{FadeLength: 500, FadeLevel: 100},
				},
			},
		},
		{
			name: "valid constant",
			def: ConstantEffect{
				Base:  Base{Direction: CartesianDirection(1, 0, 0), Length: 1000},
				Level: 15000,
			},
			ok: true,
		},
		{
			name: "valid spring",
			def: ConditionEffect{
				Base:      Base{Length: 3000},
				Condition: CondSpring,
				RightSat:  [3]uint16{0x7FFF, 0x7FFF, 0},
				LeftSat:   [3]uint16{0x7FFF, 0x7FFF, 0},
			},
			ok: true,
		},
		{
			name: "unknown condition type",
			def: ConditionEffect{
				Base:      Base{Length: 3000},
				Condition: CondFriction + 1,
			},
		},
		{
			name: "valid left-right",
			def: LeftRightEffect{
				Base:           Base{Length: 500},
				LargeMagnitude: 0xC000,
				SmallMagnitude: 0x4000,
			},
			ok: true,
		},
		{
			name: "valid custom",
			def: CustomEffect{
				Base:     Base{Direction: SphericalDirection(0, 0), Length: 1000},
				Channels: 2,
				Period:   10,
				Samples:  []uint16{0, 100, 200, 300},
			},
			ok: true,
		},
		{
			name: "custom ragged samples",
			def: CustomEffect{
				Base:     Base{Length: 1000},
				Channels: 2,
				Period:   10,
				Samples:  []uint16{0, 100, 200},
			},
		},
		{
			name: "custom zero channels",
			def: CustomEffect{
				Base:    Base{Length: 1000},
				Period:  10,
				Samples: []uint16{0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := encodeEffect(tt.def)
			if tt.ok && err != nil {
				t.Fatalf("encodeEffect: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidEffect) {
					t.Fatalf("expected ErrInvalidEffect, got %v", err)
				}
			}
		})
	}
}

func TestEffectKinds(t *testing.T) {
	tests := []struct {
		def  EffectDefinition
		want EffectKind
	}{
		{ConstantEffect{}, Constant},
		{PeriodicEffect{Wave: WaveSine}, Sine},
		{PeriodicEffect{Wave: WaveSquare}, Square},
		{PeriodicEffect{Wave: WaveTriangle}, Triangle},
		{PeriodicEffect{Wave: WaveSawtoothUp}, SawtoothUp},
		{PeriodicEffect{Wave: WaveSawtoothDown}, SawtoothDown},
		{ConditionEffect{Condition: CondSpring}, Spring},
		{ConditionEffect{Condition: CondDamper}, Damper},
		{ConditionEffect{Condition: CondInertia}, Inertia},
		{ConditionEffect{Condition: CondFriction}, Friction},
		{RampEffect{}, Ramp},
		{LeftRightEffect{}, LeftRight},
		{CustomEffect{}, Custom},
	}
	for _, tt := range tests {
		if got := tt.def.Kind(); got != tt.want {
			t.Errorf("%T: kind = %v, want %v", tt.def, got, tt.want)
		}
	}
}

func TestEncodeEffectCarriesEnvelope(t *testing.T) {
	e := validSine()
	e.Envelope = Envelope{AttackLength: 1000, AttackLevel: 0x1000, FadeLength: 1000, FadeLevel: 0x2000}
	enc, err := encodeEffect(e)
	if err != nil {
		t.Fatalf("encodeEffect: %v", err)
	}
	if enc.AttackLength != 1000 || enc.AttackLevel != 0x1000 || enc.FadeLength != 1000 || enc.FadeLevel != 0x2000 {
		t.Fatalf("envelope not carried: %+v", enc)
	}
	if enc.Period != 1000 || enc.Magnitude != 20000 {
		t.Fatalf("periodic fields not carried: %+v", enc)
	}
}
