// Package daq composes the sensor readers and the command state into the
// reports served over HTTP.
package daq

import (
	"errors"
	"runtime"
	"time"

	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/sensor"
	"github.com/itohio/wally/pkg/vernier"
)

// ErrNotConfigured is reported when the active kind has no wired sensor.
var ErrNotConfigured = errors.New("sensor not configured")

// Observer receives every reading the aggregator produces. Observers run on the
// caller's goroutine and must not block.
type Observer interface {
	ObserveReading(r sensor.Reading)
}

// CommandObserver is notified after every dispatched command.
type CommandObserver interface {
	ObserveCommand(res vernier.Result)
}

// Config holds the acquisition parameters.
type Config struct {
	DeviceID            string
	Samples             int
	SampleDelay         time.Duration
	Ranger              sensor.RangerConfig
	TimeBetweenReadings time.Duration
	MemFree             func() uint64
}

// Aggregator owns the readers and the per-sensor edge state. It is not safe for
// concurrent use.
type Aggregator struct {
	cfg     Config
	descs   sensor.Descriptors
	board   hal.Board
	clock   hal.Clock
	machine *vernier.Machine

	bank   *sensor.Bank
	ranger *sensor.Ranger
	gate   *sensor.Gate
	gates  map[string]sensor.GateState

	observers []Observer
	commands  []CommandObserver
	started   time.Time
	lastTick  uint32
}

// New creates an aggregator over an already validated descriptor table.
func New(cfg Config, board hal.Board, clock hal.Clock, descs sensor.Descriptors, machine *vernier.Machine) *Aggregator {
	if cfg.MemFree == nil {
		cfg.MemFree = RuntimeMemFree
	}
	if cfg.TimeBetweenReadings <= 0 {
		cfg.TimeBetweenReadings = 500 * time.Millisecond
	}

	gates := make(map[string]sensor.GateState)
	for _, d := range descs {
		if d.Kind == sensor.Photogate {
			gates[d.Name] = sensor.OpenGate
		}
	}

	return &Aggregator{
		cfg:      cfg,
		descs:    descs,
		board:    board,
		clock:    clock,
		machine:  machine,
		bank:     sensor.NewBank(board, clock, cfg.Samples, cfg.SampleDelay),
		ranger:   sensor.NewRanger(board, clock, cfg.Ranger),
		gate:     sensor.NewGate(board, clock),
		gates:    gates,
		started:  clock.Now(),
		lastTick: clock.Millis(),
	}
}

// Observe registers an observer.
func (a *Aggregator) Observe(o Observer) {
	a.observers = append(a.observers, o)
}

// ObserveCommands registers a command observer.
func (a *Aggregator) ObserveCommands(o CommandObserver) {
	a.commands = append(a.commands, o)
}

// Command dispatches cmd to the state machine. Every transport (HTTP, serial
// console) goes through here so observers see all commands.
func (a *Aggregator) Command(cmd string) vernier.Result {
	res := a.machine.Dispatch(cmd)
	for _, o := range a.commands {
		o.ObserveCommand(res)
	}
	return res
}

// Now returns the wall clock time of the aggregator's clock.
func (a *Aggregator) Now() time.Time {
	return a.clock.Now()
}

func (a *Aggregator) DeviceID() string                { return a.cfg.DeviceID }
func (a *Aggregator) Descriptors() sensor.Descriptors { return a.descs }
func (a *Aggregator) Machine() *vernier.Machine       { return a.machine }
func (a *Aggregator) MemFree() uint64                 { return a.cfg.MemFree() }

// Uptime is the time since the aggregator was created.
func (a *Aggregator) Uptime() time.Duration {
	return a.clock.Now().Sub(a.started)
}

// Read reads one descriptor with the reader its kind calls for.
func (a *Aggregator) Read(d sensor.Descriptor) sensor.Reading {
	var r sensor.Reading

	switch {
	case d.Kind == sensor.Photogate:
		prev, ok := a.gates[d.Name]
		if !ok {
			prev = sensor.OpenGate
		}
		r, a.gates[d.Name] = a.gate.Read(d, prev)
	case d.Ultrasonic():
		r = a.ranger.Read(d)
	default:
		r = a.bank.Read(d)
	}

	if d.Kind == sensor.Force && r.OK() {
		a.force(d, &r)
	}

	for _, o := range a.observers {
		o.ObserveReading(r)
	}
	return r
}

// force adds the counter based series time and drives the threshold LED.
func (a *Aggregator) force(d sensor.Descriptor, r *sensor.Reading) {
	n := a.machine.CountForceReading()
	series := sensor.Round(float64(n-1)*a.cfg.TimeBetweenReadings.Seconds(), 3)
	led := sensor.ForceLED(r.Float(), a.machine.State().Threshold)

	r.ReadingNumber = &n
	r.SeriesTime = &series
	r.LEDOn = &led

	if d.Indicator.Wired() {
		// the LED is advisory, a failed write does not spoil the reading
		_ = a.board.Set(d.Indicator, led)
	}
}

// Report is the all-sensor snapshot served on / and /sensors.
type Report struct {
	DeviceID             string                    `json:"device_id"`
	Timestamp            float64                   `json:"timestamp"`
	Readings             map[string]sensor.Reading `json:"readings"`
	SensorCount          int                       `json:"sensor_count"`
	MemoryFree           uint64                    `json:"memory_free"`
	VernierActiveSensor  int                       `json:"vernier_active_sensor"`
	VernierReadingActive bool                      `json:"vernier_reading_active"`
}

// Report reads every configured sensor. SensorCount counts successful reads.
func (a *Aggregator) Report() Report {
	rep := Report{
		DeviceID:  a.cfg.DeviceID,
		Timestamp: unixSeconds(a.clock.Now()),
		Readings:  make(map[string]sensor.Reading, len(a.descs)),
	}

	for _, d := range a.descs {
		r := a.Read(d)
		rep.Readings[d.Name] = r
		if r.OK() {
			rep.SensorCount++
		}
	}

	st := a.machine.State()
	rep.MemoryFree = a.cfg.MemFree()
	rep.VernierActiveSensor = st.Active.ID()
	rep.VernierReadingActive = st.ReadingActive
	return rep
}

// ActiveReading is the reading of the selected sensor.
type ActiveReading struct {
	sensor.Reading
	ActiveSensor  int  `json:"active_sensor"`
	ReadingActive bool `json:"reading_active"`
}

// Paused is returned instead of a reading while readings are stopped.
type Paused struct {
	Status       string `json:"status"`
	ActiveSensor int    `json:"active_sensor"`
}

// Active reads the selected sensor. It returns Paused while readings are
// stopped and an error reading when the selected kind is not wired.
func (a *Aggregator) Active() any {
	st := a.machine.State()
	if !st.ReadingActive {
		return Paused{Status: "readings_paused", ActiveSensor: st.Active.ID()}
	}

	var r sensor.Reading
	if d, ok := a.descs.ByKind(st.Active); ok {
		r = a.Read(d)
	} else {
		d := sensor.Descriptor{Name: st.Active.String(), Kind: st.Active}
		r = sensor.ErrorReading(d, a.clock.Now(), a.clock.Millis(), ErrNotConfigured)
	}
	return ActiveReading{
		Reading:       r,
		ActiveSensor:  st.Active.ID(),
		ReadingActive: st.ReadingActive,
	}
}

// Tick reads the active sensor once per TimeBetweenReadings while readings
// are running, feeding the observers. It is meant to be called from the
// server loop and reports whether a read happened.
func (a *Aggregator) Tick() bool {
	now := a.clock.Millis()
	interval := uint32(a.cfg.TimeBetweenReadings / time.Millisecond)
	if hal.TicksDiff(now, a.lastTick) < interval {
		return false
	}
	a.lastTick = now

	st := a.machine.State()
	if !st.ReadingActive {
		return false
	}
	d, ok := a.descs.ByKind(st.Active)
	if !ok {
		return false
	}
	a.Read(d)
	return true
}

// RuntimeMemFree estimates free heap from the Go runtime statistics.
func RuntimeMemFree() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapSys - ms.HeapAlloc
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
