// hapctl inspects and exercises force-feedback devices: listing them,
// showing capabilities, and running test effects.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/seaforth/haptic/internal/config"
	"github.com/seaforth/haptic/internal/monitor"
	"github.com/seaforth/haptic/pkg/haptic"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: hapctl [flags] <command> [args]

commands:
  list                     list force-feedback devices
  info <index>             show device capabilities
  rumble <index>           play a rumble test
  sine <index>             play a sine test effect
  gain <index> <pct>       set device gain
  autocenter <index> <pct> set device autocenter
  watch                    report device hotplug until interrupted

flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		backendFlag  = flag.String("backend", "", "force a backend (evdev, hidpad, padusb)")
		configFlag   = flag.String("config", "", "config file path")
		strengthFlag = flag.Float64("strength", 0, "rumble/sine strength in [0,1]")
		durationFlag = flag.Duration("duration", 0, "effect duration")
		verboseFlag  = flag.Bool("v", false, "debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	cfgPath := *configFlag
	if cfgPath == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			cfgPath = filepath.Join(dir, "hapctl", "config.toml")
		}
	}
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			slog.Warn("config not loaded, using defaults", slog.String("path", cfgPath), slog.Any("error", err))
		} else {
			cfg = loaded
		}
	}

	backend := cfg.Backend
	if *backendFlag != "" {
		backend = *backendFlag
	}
	strength := cfg.Rumble.Strength
	if *strengthFlag > 0 {
		strength = *strengthFlag
	}
	duration := time.Duration(cfg.Rumble.DurationMs) * time.Millisecond
	if *durationFlag > 0 {
		duration = *durationFlag
	}

	if err := run(ctx, flag.Args(), backend, cfg.GainMax, strength, duration); err != nil {
		fmt.Fprintf(os.Stderr, "hapctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, backend string, gainMax int, strength float64, duration time.Duration) error {
	if args[0] == "watch" {
		return watch(ctx)
	}

	reg, err := haptic.NewRegistryFor(backend)
	if err != nil {
		return err
	}
	reg.SetGainCeiling(gainMax)

	switch cmd := args[0]; cmd {
	case "list":
		return list(reg)
	case "info":
		return withDevice(reg, args[1:], info)
	case "rumble":
		return withDevice(reg, args[1:], func(d *haptic.Device) error {
			return rumble(ctx, d, strength, duration)
		})
	case "sine":
		return withDevice(reg, args[1:], func(d *haptic.Device) error {
			return sine(ctx, d, strength, duration)
		})
	case "gain":
		return withDevicePct(reg, args[1:], (*haptic.Device).SetGain)
	case "autocenter":
		return withDevicePct(reg, args[1:], (*haptic.Device).SetAutocenter)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func list(reg *haptic.Registry) error {
	infos, err := reg.Enumerate()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("no force-feedback devices")
		return nil
	}
	for _, in := range infos {
		fmt.Printf("%2d  %-40s %s\n", in.Index, in.Name, in.Path)
	}
	return nil
}

func withDevice(reg *haptic.Registry, args []string, f func(*haptic.Device) error) error {
	if len(args) < 1 {
		return fmt.Errorf("device index required")
	}
	var index int
	if _, err := fmt.Sscanf(args[0], "%d", &index); err != nil {
		return fmt.Errorf("bad device index %q", args[0])
	}
	d, err := reg.Open(index)
	if err != nil {
		return err
	}
	defer d.Close()
	return f(d)
}

func withDevicePct(reg *haptic.Registry, args []string, f func(*haptic.Device, int) error) error {
	if len(args) < 2 {
		return fmt.Errorf("device index and percentage required")
	}
	var pct int
	if _, err := fmt.Sscanf(args[1], "%d", &pct); err != nil {
		return fmt.Errorf("bad percentage %q", args[1])
	}
	return withDevice(reg, args[:1], func(d *haptic.Device) error {
		return f(d, pct)
	})
}

func info(d *haptic.Device) error {
	fmt.Printf("name:               %s\n", d.Name())
	fmt.Printf("capabilities:       %s\n", d.Query())
	fmt.Printf("axes:               %d\n", d.AxisCount())
	fmt.Printf("effect slots:       %d (hint)\n", d.EffectCapacity())
	fmt.Printf("concurrent effects: %d\n", d.ConcurrentPlaybackCapacity())
	return nil
}

func rumble(ctx context.Context, d *haptic.Device, strength float64, duration time.Duration) error {
	if err := d.RumbleInit(); err != nil {
		return err
	}
	slog.Info("rumbling", slog.Float64("strength", strength), slog.Duration("for", duration))
	if err := d.RumblePlay(strength, uint32(duration.Milliseconds())); err != nil {
		return err
	}
	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}
	return d.RumbleStop()
}

func sine(ctx context.Context, d *haptic.Device, strength float64, duration time.Duration) error {
	def := haptic.PeriodicEffect{
		Base: haptic.Base{
			Direction: haptic.PolarDirection(0),
			Length:    uint32(duration.Milliseconds()),
			Envelope: haptic.Envelope{
				AttackLength: 250,
				FadeLength:   250,
			},
		},
		Wave:      haptic.WaveSine,
		Period:    100,
		Magnitude: int16(strength * 32767),
	}
	h, err := d.Upload(def)
	if err != nil {
		return err
	}
	defer d.Destroy(h)

	slog.Info("playing sine", slog.Float64("strength", strength), slog.Duration("for", duration))
	if err := d.Run(h, 1); err != nil {
		return err
	}
	select {
	case <-time.After(duration):
	case <-ctx.Done():
		return d.Stop(h)
	}
	return nil
}

func watch(ctx context.Context) error {
	m, err := monitor.New()
	if err != nil {
		return err
	}
	defer m.Close()

	slog.Info("watching for device changes, interrupt to stop")
	for ev := range m.Events(ctx) {
		fmt.Printf("%s  %s\n", ev.Type, ev.Path)
	}
	return nil
}
