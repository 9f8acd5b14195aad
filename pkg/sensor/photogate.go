package sensor

import "github.com/itohio/wally/pkg/hal"

// GateState is what the photogate remembers between reads.
type GateState struct {
	Level  bool   // last input level, low means blocked
	TimeMs uint32 // millisecond tick captured on the last blocking edge
	TimeUs uint32 // microsecond tick captured on the last blocking edge
}

// OpenGate is the state before the first read: beam not interrupted.
var OpenGate = GateState{Level: true}

// Blocked reports whether the beam was interrupted at the last read.
func (s GateState) Blocked() bool { return !s.Level }

// NextGate applies one input sample to the previous state. Timestamps are
// captured only on the open→blocked transition; holding the gate blocked does
// not refresh them. It reports whether this sample was such an edge.
func NextGate(prev GateState, level bool, ms, us uint32) (GateState, bool) {
	next := prev
	next.Level = level

	edge := prev.Level && !level
	if edge {
		next.TimeMs = ms
		next.TimeUs = us
	}
	return next, edge
}

// Gate is the edge detector for a digital beam-break sensor.
type Gate struct {
	pins  Pins
	clock hal.Clock
}

func NewGate(pins Pins, clock hal.Clock) *Gate {
	return &Gate{pins: pins, clock: clock}
}

// Read samples the gate and returns the reading and the state for the next call.
// The descriptor's indicator mirrors the blocked state.
func (g *Gate) Read(d Descriptor, prev GateState) (Reading, GateState) {
	r := newReading(d, g.clock.Now(), g.clock.Millis())

	level, err := g.pins.Get(d.Pin)
	if err != nil {
		return r.fail(err), prev
	}

	next, edge := NextGate(prev, level, g.clock.Millis(), g.clock.Micros())

	if d.Indicator.Wired() {
		if err := g.pins.Set(d.Indicator, next.Blocked()); err != nil {
			return r.fail(err), next
		}
	}

	value := 1.0
	r.Unit = "open"
	if next.Blocked() {
		value = 0
		r.Unit = "blocked"
	}
	r.Value = ptr(value)
	r.TimeMs = ptr(next.TimeMs)
	r.TimeUs = ptr(next.TimeUs)
	r.Edge = edge
	return r, next
}
