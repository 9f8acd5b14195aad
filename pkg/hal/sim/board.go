// Package sim provides a simulated board and clock for tests, host development
// and the mock server.
package sim

import (
	"fmt"
	"sync"

	"github.com/itohio/wally/pkg/hal"
)

// Never disables the simulated echo.
const Never = -1

// Board simulates ADC channels, digital inputs and outputs, and an ultrasonic
// module wired to a trigger/echo pin pair.
type Board struct {
	mu    sync.Mutex
	clock hal.Clock

	raw     map[hal.Pin]uint16
	waves   map[hal.Pin]func(t float32) uint16
	adcErr  map[hal.Pin]error
	levels  map[hal.Pin]bool
	edges   map[hal.Pin]func(t float32) bool
	outputs map[hal.Pin]bool
	writes  map[hal.Pin]int

	trigger   hal.Pin
	echo      hal.Pin
	echoDelay func(t float32) int64
	firedAt   uint32
	fired     bool

	adcReads int
	closed   bool
}

var _ hal.Board = (*Board)(nil)

// NewBoard creates an empty board driven by clock.
func NewBoard(clock hal.Clock) *Board {
	return &Board{
		clock:   clock,
		raw:     make(map[hal.Pin]uint16),
		waves:   make(map[hal.Pin]func(float32) uint16),
		adcErr:  make(map[hal.Pin]error),
		levels:  make(map[hal.Pin]bool),
		edges:   make(map[hal.Pin]func(float32) bool),
		outputs: make(map[hal.Pin]bool),
		writes:  make(map[hal.Pin]int),
		trigger: hal.NoPin,
		echo:    hal.NoPin,
	}
}

// SetRaw fixes the raw count returned by an ADC channel.
func (b *Board) SetRaw(pin hal.Pin, raw uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.raw[pin] = raw
	delete(b.adcErr, pin)
}

// SetWave makes an ADC channel follow f(seconds since start).
func (b *Board) SetWave(pin hal.Pin, f func(t float32) uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waves[pin] = f
}

// FailADC makes reads of pin return err.
func (b *Board) FailADC(pin hal.Pin, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adcErr[pin] = err
}

// SetLevel fixes a digital input level.
func (b *Board) SetLevel(pin hal.Pin, high bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.levels[pin] = high
	delete(b.edges, pin)
}

// SetPattern makes a digital input follow f(seconds since start).
func (b *Board) SetPattern(pin hal.Pin, f func(t float32) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edges[pin] = f
}

// AttachRanger wires an ultrasonic module: the echo rises delayUs after the
// trigger goes high. A delay of Never keeps the echo low forever.
func (b *Board) AttachRanger(trigger, echo hal.Pin, delayUs int64) {
	b.AttachRangerFunc(trigger, echo, func(float32) int64 { return delayUs })
}

// AttachRangerFunc is AttachRanger with a time-varying echo delay.
func (b *Board) AttachRangerFunc(trigger, echo hal.Pin, delay func(t float32) int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trigger = trigger
	b.echo = echo
	b.echoDelay = delay
}

// Output returns the last level written to pin.
func (b *Board) Output(pin hal.Pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outputs[pin]
}

// Writes returns how many times pin was driven.
func (b *Board) Writes(pin hal.Pin) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes[pin]
}

// ADCReads returns the number of raw ADC samples taken.
func (b *Board) ADCReads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adcReads
}

func (b *Board) ReadRaw(pin hal.Pin) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, fmt.Errorf("board closed")
	}
	b.adcReads++
	if err, ok := b.adcErr[pin]; ok {
		return 0, err
	}
	if f, ok := b.waves[pin]; ok {
		return f(b.seconds()), nil
	}
	raw, ok := b.raw[pin]
	if !ok {
		return 0, fmt.Errorf("no analog channel on pin %d", pin)
	}
	return raw, nil
}

func (b *Board) Get(pin hal.Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, fmt.Errorf("board closed")
	}
	if pin == b.echo && b.echo.Wired() {
		if !b.fired {
			return false, nil
		}
		delay := b.echoDelay(b.seconds())
		if delay < 0 {
			return false, nil
		}
		return int64(hal.TicksDiff(b.clock.Micros(), b.firedAt)) >= delay, nil
	}
	if f, ok := b.edges[pin]; ok {
		return f(b.seconds()), nil
	}
	level, ok := b.levels[pin]
	if !ok {
		return false, fmt.Errorf("no digital input on pin %d", pin)
	}
	return level, nil
}

func (b *Board) Set(pin hal.Pin, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("board closed")
	}
	if pin == b.trigger && b.trigger.Wired() {
		switch {
		case high && !b.outputs[pin]:
			b.fired = true
			b.firedAt = b.clock.Micros()
		case !high:
			b.fired = false
		}
	}
	b.outputs[pin] = high
	b.writes[pin]++
	return nil
}

func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// seconds returns the time since the board's clock started; the caller holds mu.
func (b *Board) seconds() float32 {
	return float32(b.clock.Millis()) / 1000
}
