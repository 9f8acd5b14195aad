package sensor

import (
	"errors"
	"fmt"

	"github.com/itohio/wally/pkg/hal"
)

const (
	// DefaultSettleMicros holds the trigger low before a measurement.
	DefaultSettleMicros = 4000
	// DefaultPulseMicros is the trigger-high window.
	DefaultPulseMicros = 900
	// DefaultMaxPolls bounds the echo wait so a read can never hang.
	DefaultMaxPolls = 30000

	// speed of sound in m/s
	speedOfSound = 340
)

// ErrEchoTimeout is reported when the echo never rises within the poll bound.
var ErrEchoTimeout = errors.New("Echo timeout")

// RangerConfig tunes the trigger timing and the echo poll bound.
type RangerConfig struct {
	SettleMicros uint32
	PulseMicros  uint32
	MaxPolls     int
}

// DefaultRangerConfig returns the HC-SR04 timing used by the Vernier sketch.
func DefaultRangerConfig() RangerConfig {
	return RangerConfig{
		SettleMicros: DefaultSettleMicros,
		PulseMicros:  DefaultPulseMicros,
		MaxPolls:     DefaultMaxPolls,
	}
}

// Pins is the digital side of a board.
type Pins interface {
	hal.Input
	hal.Output
}

// Ranger measures distance with an ultrasonic trigger/echo pair.
type Ranger struct {
	pins  Pins
	clock hal.Clock
	cfg   RangerConfig
}

// NewRanger creates a ranger; zero config fields take the defaults.
func NewRanger(pins Pins, clock hal.Clock, cfg RangerConfig) *Ranger {
	def := DefaultRangerConfig()
	if cfg.SettleMicros == 0 {
		cfg.SettleMicros = def.SettleMicros
	}
	if cfg.PulseMicros == 0 {
		cfg.PulseMicros = def.PulseMicros
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = def.MaxPolls
	}
	return &Ranger{pins: pins, clock: clock, cfg: cfg}
}

// Measure fires the trigger and returns the echo delay in microseconds.
func (r *Ranger) Measure(trigger, echo hal.Pin) (uint32, error) {
	defer r.pins.Set(trigger, false)

	if err := r.pins.Set(trigger, false); err != nil {
		return 0, fmt.Errorf("trigger low: %w", err)
	}
	r.clock.SleepMicros(r.cfg.SettleMicros)

	if err := r.pins.Set(trigger, true); err != nil {
		return 0, fmt.Errorf("trigger high: %w", err)
	}
	start := r.clock.Micros()
	r.clock.SleepMicros(r.cfg.PulseMicros)

	for polls := 0; ; polls++ {
		high, err := r.pins.Get(echo)
		if err != nil {
			return 0, fmt.Errorf("read echo: %w", err)
		}
		if high {
			break
		}
		if polls >= r.cfg.MaxPolls {
			return 0, ErrEchoTimeout
		}
	}

	return hal.TicksDiff(r.clock.Micros(), start), nil
}

// Read measures an ultrasonic descriptor. A timeout yields an error reading the
// caller may retry on the next request.
func (r *Ranger) Read(d Descriptor) Reading {
	reading := newReading(d, r.clock.Now(), r.clock.Millis())

	duration, err := r.Measure(d.Trigger, d.Echo)
	if err != nil {
		return reading.fail(err)
	}

	reading.Value = ptr(Round(Distance(duration), 2))
	reading.Unit = Unit(d)
	reading.DurationUs = ptr(duration)
	return reading
}

// Distance converts a round-trip echo time in microseconds to centimeters.
func Distance(durationUs uint32) float64 {
	return float64(durationUs) * speedOfSound / 2 / 10000
}
