//go:build !tinygo

// Package periph is a Linux board backend: digital pins through the periph GPIO
// registry and analog channels through an ADS1115 on I2C.
//
// Digital pins are the host GPIO numbers (BCM numbering on a Raspberry Pi).
// Analog pins are ADS1115 single-ended channels 0-3.
package periph

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/experimental/devices/ads1x15"
	"periph.io/x/periph/host"

	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/sensor"
)

var ErrClosed = errors.New("board closed")

// Config describes the wiring of the ADC.
type Config struct {
	I2CBus     string // empty opens the first bus
	ADCAddress uint16
}

var channels = [...]ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// Plan lists the pins a descriptor table needs, by direction.
type Plan struct {
	Analog  []hal.Pin
	Inputs  []hal.Pin
	Outputs []hal.Pin
}

// NewPlan sorts the pins of descs. Analog pins must be ADS1115 channels.
func NewPlan(descs sensor.Descriptors) (Plan, error) {
	var p Plan
	seen := make(map[hal.Pin]struct{})
	add := func(list *[]hal.Pin, pin hal.Pin) {
		if !pin.Wired() {
			return
		}
		if _, ok := seen[pin]; ok {
			return
		}
		seen[pin] = struct{}{}
		*list = append(*list, pin)
	}

	for _, d := range descs {
		switch {
		case d.Ultrasonic():
			add(&p.Outputs, d.Trigger)
			add(&p.Inputs, d.Echo)
		case d.Kind == sensor.Photogate:
			add(&p.Inputs, d.Pin)
		default:
			if d.Pin < 0 || int(d.Pin) >= len(channels) {
				return Plan{}, fmt.Errorf("sensor %s: analog pin %d is not an ADS1115 channel", d.Name, d.Pin)
			}
			add(&p.Analog, d.Pin)
		}
		add(&p.Outputs, d.Indicator)
	}
	return p, nil
}

// Board drives the host pins. It is safe for concurrent use.
type Board struct {
	mu      sync.Mutex
	bus     i2c.BusCloser
	adc     map[hal.Pin]ads1x15.PinADC
	gpio    map[hal.Pin]gpio.PinIO
	outputs []hal.Pin
	closed  bool
}

var _ hal.Board = (*Board)(nil)

// Open initializes the host drivers and claims every pin descs uses.
func Open(cfg Config, descs sensor.Descriptors) (*Board, error) {
	plan, err := NewPlan(descs)
	if err != nil {
		return nil, err
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	b := &Board{
		adc:  make(map[hal.Pin]ads1x15.PinADC),
		gpio: make(map[hal.Pin]gpio.PinIO),
	}

	if len(plan.Analog) > 0 {
		if err := b.openADC(cfg, plan.Analog); err != nil {
			b.Close()
			return nil, err
		}
	}

	for _, pin := range plan.Inputs {
		p, err := lookup(pin)
		if err != nil {
			b.Close()
			return nil, err
		}
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			b.Close()
			return nil, fmt.Errorf("gpio %d input: %w", pin, err)
		}
		b.gpio[pin] = p
	}

	for _, pin := range plan.Outputs {
		p, err := lookup(pin)
		if err != nil {
			b.Close()
			return nil, err
		}
		if err := p.Out(gpio.Low); err != nil {
			b.Close()
			return nil, fmt.Errorf("gpio %d output: %w", pin, err)
		}
		b.gpio[pin] = p
		b.outputs = append(b.outputs, pin)
	}

	log.WithFields(log.Fields{
		"analog":  plan.Analog,
		"inputs":  plan.Inputs,
		"outputs": plan.Outputs,
	}).Info("periph board ready")
	return b, nil
}

func (b *Board) openADC(cfg Config, pins []hal.Pin) error {
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}
	b.bus = bus

	opts := ads1x15.DefaultOpts
	if cfg.ADCAddress != 0 {
		opts.I2cAddress = cfg.ADCAddress
	}
	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return fmt.Errorf("ads1115 at %#x: %w", opts.I2cAddress, err)
	}

	for _, pin := range pins {
		ch, err := dev.PinForChannel(channels[pin], fullScale, 128*physic.Hertz, ads1x15.BestQuality)
		if err != nil {
			return fmt.Errorf("ads1115 channel %d: %w", pin, err)
		}
		b.adc[pin] = ch
	}
	return nil
}

func lookup(pin hal.Pin) (gpio.PinIO, error) {
	p := gpioreg.ByName(strconv.Itoa(int(pin)))
	if p == nil {
		return nil, fmt.Errorf("no GPIO pin named %d", pin)
	}
	return p, nil
}

const fullScale = 3300 * physic.MilliVolt

// ReadRaw converts the channel voltage to the 12-bit count scale the
// calibration expects.
func (b *Board) ReadRaw(pin hal.Pin) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	ch, ok := b.adc[pin]
	if !ok {
		return 0, fmt.Errorf("analog pin %d not configured", pin)
	}
	r, err := ch.Read()
	if err != nil {
		return 0, fmt.Errorf("ads1115 channel %d: %w", pin, err)
	}
	return voltsToRaw(r.V), nil
}

func voltsToRaw(v physic.ElectricPotential) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= fullScale:
		return sensor.ADCMax
	}
	return uint16(int64(v) * sensor.ADCMax / int64(fullScale))
}

func (b *Board) Get(pin hal.Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}
	p, ok := b.gpio[pin]
	if !ok {
		return false, fmt.Errorf("gpio %d not configured", pin)
	}
	return p.Read() == gpio.High, nil
}

func (b *Board) Set(pin hal.Pin, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	p, ok := b.gpio[pin]
	if !ok {
		return fmt.Errorf("gpio %d not configured", pin)
	}
	return p.Out(gpio.Level(high))
}

// Close halts the ADC channels, drives outputs low and releases the bus.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for pin, ch := range b.adc {
		if err := ch.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt channel %d: %w", pin, err))
		}
	}
	for _, pin := range b.outputs {
		if err := b.gpio[pin].Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("gpio %d: %w", pin, err))
		}
	}
	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close i2c: %w", err))
		}
	}
	return errors.Join(errs...)
}
