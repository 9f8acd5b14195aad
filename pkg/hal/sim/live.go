package sim

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/sensor"
)

// LiveConfig shapes the waveforms of a live simulated board.
type LiveConfig struct {
	NoiseLevel float32       // noise amplitude (V)
	Period     time.Duration // period of the slow waveforms
}

// DefaultLiveConfig returns the waveforms used by the mock server.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		NoiseLevel: 0.01,
		Period:     30 * time.Second,
	}
}

// NewLive wires a board whose inputs follow slow periodic signals for every
// descriptor: a room temperature drifting around 22°C, a force swinging ±50N, a
// photogate blocked for a short part of each cycle and a target moving between
// 20 and 80 cm in front of the ranger.
func NewLive(descs sensor.Descriptors, cfg LiveConfig, clock hal.Clock) *Board {
	if cfg.Period <= 0 {
		cfg.Period = DefaultLiveConfig().Period
	}
	period := float32(cfg.Period.Seconds())
	w := 2 * math32.Pi / period

	noise := func(t float32) float32 {
		return (math32.Sin(t*7.3) + math32.Cos(t*11.1)) * cfg.NoiseLevel * 0.5
	}

	b := NewBoard(clock)
	for i, d := range descs {
		phase := float32(i) * 0.7

		switch {
		case d.Kind == sensor.Photogate:
			b.SetPattern(d.Pin, func(t float32) bool {
				// low (blocked) while the beam is crossed
				return math32.Sin(3*w*t+phase) < 0.8
			})
		case d.Ultrasonic():
			b.AttachRangerFunc(d.Trigger, d.Echo, func(t float32) int64 {
				cm := 50 + 30*math32.Sin(w*t+phase)
				return int64(cm * 2 * 10000 / 340)
			})
		default:
			var center, swing float32
			switch d.Kind {
			case sensor.Temperature:
				center, swing = 0.72, 0.02
			case sensor.Force:
				center, swing = 2.5, 1.0
			case sensor.Motion:
				center, swing = 1.65, 0.2
			default:
				center, swing = 1.5, 0.5
			}
			b.SetWave(d.Pin, func(t float32) uint16 {
				v := center + swing*math32.Sin(w*t+phase) + noise(t+phase)
				return voltsToRaw(v)
			})
		}
		if d.Indicator.Wired() {
			b.Set(d.Indicator, false)
		}
	}
	return b
}

func voltsToRaw(v float32) uint16 {
	raw := v / sensor.VRef * sensor.ADCMax
	if raw < 0 {
		raw = 0
	} else if raw > sensor.ADCMax {
		raw = sensor.ADCMax
	}
	return uint16(raw)
}
