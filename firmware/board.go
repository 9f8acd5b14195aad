//go:build tinygo

package main

import (
	"errors"
	"machine"

	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/sensor"
)

var errPin = errors.New("pin not configured")

// board maps hal pins one to one onto ESP32 GPIOs.
type board struct {
	adcs map[hal.Pin]machine.ADC
	gpio map[hal.Pin]machine.Pin
}

func newBoard(descs sensor.Descriptors) *board {
	machine.InitADC()

	b := &board{
		adcs: make(map[hal.Pin]machine.ADC),
		gpio: make(map[hal.Pin]machine.Pin),
	}

	for _, d := range descs {
		switch {
		case d.Ultrasonic():
			b.output(d.Trigger)
			b.input(d.Echo)
		case d.Kind == sensor.Photogate:
			b.input(d.Pin)
		default:
			p := machine.Pin(d.Pin)
			p.Configure(machine.PinConfig{Mode: machine.PinInput})
			adc := machine.ADC{Pin: p}
			adc.Configure(machine.ADCConfig{Reference: 3300, Resolution: 12})
			b.adcs[d.Pin] = adc
		}
		if d.Indicator.Wired() {
			b.output(d.Indicator)
		}
	}
	return b
}

func (b *board) input(pin hal.Pin) {
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinInput})
	b.gpio[pin] = p
}

func (b *board) output(pin hal.Pin) {
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	b.gpio[pin] = p
}

func (b *board) ReadRaw(pin hal.Pin) (uint16, error) {
	adc, ok := b.adcs[pin]
	if !ok {
		return 0, errPin
	}
	return adc.Get() >> ADC_SHIFT_TO_12_BITS, nil
}

func (b *board) Get(pin hal.Pin) (bool, error) {
	p, ok := b.gpio[pin]
	if !ok {
		return false, errPin
	}
	return p.Get(), nil
}

func (b *board) Set(pin hal.Pin, high bool) error {
	p, ok := b.gpio[pin]
	if !ok {
		return errPin
	}
	p.Set(high)
	return nil
}

func (b *board) Close() error { return nil }
