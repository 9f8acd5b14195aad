// Package vernier holds the active-sensor selection and its single-character
// command protocol, plus the "Vernier Format 2" text headers.
package vernier

import (
	"fmt"

	"github.com/itohio/wally/pkg/sensor"
)

// Commands lists the recognised commands in protocol order.
var Commands = []string{"t", "f", "p", "m", "d", "c"}

// DefaultThreshold is the force LED threshold in newtons.
const DefaultThreshold = 100.0

// State is the acquisition state shared across requests.
type State struct {
	Active        sensor.Kind // always one of sensor.VernierKinds
	ReadingActive bool
	ReadingCount  uint64 // successful force reads, never decreases
	Threshold     float64
}

// Initial returns the state at power-up: temperature selected, readings running.
func Initial(threshold float64) State {
	return State{
		Active:        sensor.Temperature,
		ReadingActive: true,
		Threshold:     threshold,
	}
}

// Result is the outcome of one command.
type Result struct {
	Command       string
	Message       string
	Recognized    bool
	Active        sensor.Kind
	ReadingActive bool
}

var selections = map[string]sensor.Kind{
	"t": sensor.Temperature,
	"f": sensor.Force,
	"p": sensor.Photogate,
	"m": sensor.Motion,
}

// Apply dispatches cmd against s and returns the next state. Unknown, empty or
// multi-character commands leave the state untouched.
func Apply(s State, cmd string) (State, Result) {
	next := s
	var msg string

	switch cmd {
	case "t", "f", "p", "m":
		next.Active = selections[cmd]
		msg = "Sensor changed to " + next.Active.String()
	case "d":
		next.ReadingActive = false
		msg = "Readings stopped"
	case "c":
		next.ReadingActive = true
		msg = "Readings continued"
	default:
		return s, Result{
			Command:       cmd,
			Message:       fmt.Sprintf("Unknown command: %s", cmd),
			Active:        s.Active,
			ReadingActive: s.ReadingActive,
		}
	}

	return next, Result{
		Command:       cmd,
		Message:       msg,
		Recognized:    true,
		Active:        next.Active,
		ReadingActive: next.ReadingActive,
	}
}

// Machine owns the acquisition state. It is not safe for concurrent use; the
// core touches it only from the server goroutine and other hosts must
// serialize access themselves.
type Machine struct {
	state State
}

// New creates a machine in its initial state.
func New(threshold float64) *Machine {
	return &Machine{state: Initial(threshold)}
}

// Dispatch applies a command to the machine.
func (m *Machine) Dispatch(cmd string) Result {
	var res Result
	m.state, res = Apply(m.state, cmd)
	return res
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state
}

// CountForceReading records a successful force read and returns its 1-based
// sequence number.
func (m *Machine) CountForceReading() uint64 {
	m.state.ReadingCount++
	return m.state.ReadingCount
}

// Mapping is the static kind name to sensor id table.
func Mapping() map[string]int {
	m := make(map[string]int, len(sensor.VernierKinds))
	for _, k := range sensor.VernierKinds {
		m[k.String()] = k.ID()
	}
	return m
}
