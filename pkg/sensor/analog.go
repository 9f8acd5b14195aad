package sensor

import (
	"fmt"
	"time"

	"github.com/itohio/wally/pkg/hal"
)

const (
	// DefaultSamples is the number of ADC samples averaged per reading.
	DefaultSamples = 3
	// DefaultSampleDelay separates consecutive ADC samples.
	DefaultSampleDelay = 10 * time.Millisecond
)

// Bank reads analog sensors: it averages a few raw samples, converts the
// average to volts and calibrates it.
type Bank struct {
	adc     hal.ADC
	clock   hal.Clock
	samples int
	delay   time.Duration
}

// NewBank creates a bank. Non-positive samples falls back to DefaultSamples.
func NewBank(adc hal.ADC, clock hal.Clock, samples int, delay time.Duration) *Bank {
	if samples <= 0 {
		samples = DefaultSamples
	}
	if delay < 0 {
		delay = DefaultSampleDelay
	}
	return &Bank{
		adc:     adc,
		clock:   clock,
		samples: samples,
		delay:   delay,
	}
}

// Sample averages the configured number of raw counts on pin.
func (b *Bank) Sample(pin hal.Pin) (float64, error) {
	var sum uint32
	for i := 0; i < b.samples; i++ {
		if i > 0 {
			hal.Sleep(b.clock, b.delay)
		}
		raw, err := b.adc.ReadRaw(pin)
		if err != nil {
			return 0, fmt.Errorf("read adc pin %d: %w", pin, err)
		}
		if raw > ADCMax {
			return 0, fmt.Errorf("adc pin %d: raw count %d out of range", pin, raw)
		}
		sum += uint32(raw)
	}
	return float64(sum) / float64(b.samples), nil
}

// Read samples and calibrates an analog descriptor. Hardware failures are
// reported through the reading's status, never returned.
func (b *Bank) Read(d Descriptor) Reading {
	r := newReading(d, b.clock.Now(), b.clock.Millis())

	avg, err := b.Sample(d.Pin)
	if err != nil {
		return r.fail(err)
	}

	voltage := Voltage(avg)
	r.Value = ptr(Round(Convert(d, voltage), 2))
	r.Voltage = ptr(Round(voltage, 3))
	r.Raw = ptr(int(avg))
	r.Unit = Unit(d)
	return r
}
