// Package hal abstracts the pins and clocks the acquisition core talks to, so the
// same sensor code runs on a microcontroller, a Linux board or a simulation.
package hal

import "time"

// Pin identifies a GPIO or ADC channel on the board.
type Pin int

// NoPin marks an optional pin that is not wired.
const NoPin Pin = -1

// Wired reports whether the pin refers to real hardware.
func (p Pin) Wired() bool { return p >= 0 }

// ADC reads raw analog-to-digital counts (12-bit, 0-4095).
type ADC interface {
	ReadRaw(pin Pin) (uint16, error)
}

// Input reads a digital input level (true = high).
type Input interface {
	Get(pin Pin) (bool, error)
}

// Output drives a digital output.
type Output interface {
	Set(pin Pin, high bool) error
}

// Board bundles everything a sensor backend provides.
type Board interface {
	ADC
	Input
	Output
	Close() error
}

// Clock is a monotonic tick source. Micros and Millis wrap around at 2^32 like
// the counters found on microcontrollers; use TicksDiff to subtract them.
type Clock interface {
	Micros() uint32
	Millis() uint32
	SleepMicros(us uint32)
	Now() time.Time
}

// TicksDiff returns end-start modulo 2^32, so a counter that overflowed between
// the two samples still yields the elapsed ticks.
func TicksDiff(end, start uint32) uint32 {
	return end - start
}

// Sleep is a convenience wrapper for durations longer than a microsecond tick.
func Sleep(c Clock, d time.Duration) {
	if d <= 0 {
		return
	}
	c.SleepMicros(uint32(d / time.Microsecond))
}

// SystemClock is a Clock backed by the Go runtime.
type SystemClock struct {
	start time.Time
}

var _ Clock = (*SystemClock)(nil)

// NewSystemClock creates a clock whose ticks count from now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Micros() uint32 {
	return uint32(time.Since(c.start).Microseconds())
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

func (c *SystemClock) SleepMicros(us uint32) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}
