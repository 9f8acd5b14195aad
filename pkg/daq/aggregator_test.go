package daq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/hal/sim"
	"github.com/itohio/wally/pkg/sensor"
	"github.com/itohio/wally/pkg/vernier"
)

type recorder struct {
	readings []sensor.Reading
}

func (r *recorder) ObserveReading(reading sensor.Reading) {
	r.readings = append(r.readings, reading)
}

type rig struct {
	clock *sim.Clock
	board *sim.Board
	agg   *Aggregator
}

func wired(name string, kind sensor.Kind, pin, indicator hal.Pin) sensor.Descriptor {
	return sensor.Descriptor{Name: name, Kind: kind, Pin: pin, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: indicator}
}

func newRig(t *testing.T, threshold float64, list ...sensor.Descriptor) *rig {
	t.Helper()
	if len(list) == 0 {
		list = []sensor.Descriptor{
			wired("temperature", sensor.Temperature, 34, hal.NoPin),
			wired("force", sensor.Force, 35, 2),
			wired("photogate", sensor.Photogate, 4, 13),
			{Name: "motion", Kind: sensor.Motion, Pin: hal.NoPin, Trigger: 5, Echo: 18, Indicator: hal.NoPin},
			{Name: "ph", Kind: sensor.Analog, Pin: 32, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: hal.NoPin, Slope: -3, Offset: 14.5, Unit: "pH"},
		}
	}
	descs, err := sensor.NewDescriptors(list...)
	require.NoError(t, err)

	clock := sim.NewClock(0, 1)
	board := sim.NewBoard(clock)
	board.SetRaw(34, 2048)
	board.SetRaw(35, 4095)
	board.SetLevel(4, true)
	board.AttachRanger(5, 18, 1500)
	board.SetRaw(32, 2482)

	agg := New(Config{
		DeviceID:            "esp32_wally",
		Samples:             3,
		SampleDelay:         10 * time.Millisecond,
		TimeBetweenReadings: 500 * time.Millisecond,
		MemFree:             func() uint64 { return 4242 },
	}, board, clock, descs, vernier.New(threshold))

	return &rig{clock: clock, board: board, agg: agg}
}

func TestReport(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)

	rep := r.agg.Report()
	assert.Equal(t, "esp32_wally", rep.DeviceID)
	assert.Len(t, rep.Readings, 5)
	assert.Equal(t, 5, rep.SensorCount)
	assert.Equal(t, uint64(4242), rep.MemoryFree)
	assert.Equal(t, 1, rep.VernierActiveSensor)
	assert.True(t, rep.VernierReadingActive)
	assert.Greater(t, rep.Timestamp, 0.0)

	temp := rep.Readings["temperature"]
	assert.Equal(t, 115.04, temp.Float())
	assert.Equal(t, "°C", temp.Unit)

	assert.Equal(t, "open", rep.Readings["photogate"].Unit)
	assert.Equal(t, "cm", rep.Readings["motion"].Unit)
	assert.Equal(t, "pH", rep.Readings["ph"].Unit)
	assert.InDelta(t, 8.5, rep.Readings["ph"].Float(), 0.01)
}

func TestReport_JSON(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)

	data, err := json.Marshal(r.agg.Report())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"device_id", "timestamp", "readings", "sensor_count", "memory_free", "vernier_active_sensor", "vernier_reading_active"} {
		assert.Contains(t, m, key)
	}
}

func TestReport_FailureIsContained(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)
	r.board.AttachRanger(5, 18, sim.Never)

	rep := r.agg.Report()
	assert.Equal(t, 4, rep.SensorCount)

	motion := rep.Readings["motion"]
	assert.Equal(t, sensor.StatusError, motion.Status)
	assert.Equal(t, "Echo timeout", motion.Error)
	assert.Nil(t, motion.Value)
	assert.True(t, rep.Readings["temperature"].OK())
}

func TestForce_ReadingNumber(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)
	force, _ := r.agg.Descriptors().ByKind(sensor.Force)

	for i := 1; i <= 5; i++ {
		reading := r.agg.Read(force)
		require.True(t, reading.OK())
		require.NotNil(t, reading.ReadingNumber)
		assert.Equal(t, uint64(i), *reading.ReadingNumber)
		assert.Equal(t, float64(i-1)*0.5, *reading.SeriesTime)
		assert.NotZero(t, reading.Timestamp, "wall clock timestamp is kept next to series time")
	}

	r.board.FailADC(35, assert.AnError)
	reading := r.agg.Read(force)
	assert.False(t, reading.OK())
	assert.Nil(t, reading.ReadingNumber)
	assert.Equal(t, uint64(5), r.agg.Machine().State().ReadingCount, "failed reads are not counted")

	r.board.SetRaw(35, 2048)
	reading = r.agg.Read(force)
	assert.Equal(t, uint64(6), *reading.ReadingNumber)
}

func TestForce_LED(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		raw       uint16
		want      bool
	}{
		{"default threshold never reached", 100, 4095, false},
		{"low threshold", 15, 4095, true},
		{"negative force", 15, 0, true},
		{"at rest", 15, 3102, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.threshold)
			r.board.SetRaw(35, tt.raw)
			force, _ := r.agg.Descriptors().ByKind(sensor.Force)

			reading := r.agg.Read(force)
			require.NotNil(t, reading.LEDOn)
			assert.Equal(t, tt.want, *reading.LEDOn)
			assert.Equal(t, tt.want, r.board.Output(2))
		})
	}
}

func TestPhotogate_StateAcrossReports(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)

	r.clock.Advance(100 * time.Millisecond)
	r.board.SetLevel(4, false)
	first := r.agg.Report().Readings["photogate"]
	require.True(t, first.Edge)

	r.clock.Advance(100 * time.Millisecond)
	second := r.agg.Report().Readings["photogate"]
	assert.False(t, second.Edge)
	assert.Equal(t, *first.TimeMs, *second.TimeMs)
	assert.Equal(t, *first.TimeUs, *second.TimeUs)
	assert.True(t, r.board.Output(13))
}

func TestActive(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)

	r.agg.Machine().Dispatch("f")
	got, ok := r.agg.Active().(ActiveReading)
	require.True(t, ok)
	assert.Equal(t, 2, got.ActiveSensor)
	assert.True(t, got.ReadingActive)
	assert.Equal(t, sensor.Force, got.Kind)
	assert.Equal(t, "N", got.Unit)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, 2.0, m["active_sensor"])
	assert.Equal(t, "force", m["kind"])
	assert.Equal(t, "force", m["sensor_type"])
}

func TestActive_Paused(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)
	r.agg.Machine().Dispatch("m")
	r.agg.Machine().Dispatch("d")

	got := r.agg.Active()
	assert.Equal(t, Paused{Status: "readings_paused", ActiveSensor: 4}, got)

	r.agg.Machine().Dispatch("c")
	_, ok := r.agg.Active().(ActiveReading)
	assert.True(t, ok)
}

func TestActive_NotConfigured(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold, wired("temperature", sensor.Temperature, 34, hal.NoPin))
	r.agg.Machine().Dispatch("p")

	got, ok := r.agg.Active().(ActiveReading)
	require.True(t, ok)
	assert.Equal(t, 3, got.ActiveSensor)
	assert.Equal(t, sensor.StatusError, got.Status)
	assert.Equal(t, ErrNotConfigured.Error(), got.Error)
	assert.Nil(t, got.Value)
}

func TestObservers(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)
	rec := &recorder{}
	r.agg.Observe(rec)

	r.agg.Report()
	assert.Len(t, rec.readings, 5)

	r.agg.Active()
	assert.Len(t, rec.readings, 6)
	assert.Equal(t, "temperature", rec.readings[5].Sensor)
}

func TestTick(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)
	rec := &recorder{}
	r.agg.Observe(rec)

	assert.False(t, r.agg.Tick(), "interval has not elapsed")

	r.clock.Advance(500 * time.Millisecond)
	assert.True(t, r.agg.Tick())
	require.Len(t, rec.readings, 1)
	assert.Equal(t, sensor.Temperature, rec.readings[0].Kind)

	// the read itself took 20ms of sample delays
	assert.False(t, r.agg.Tick())

	r.agg.Machine().Dispatch("d")
	r.clock.Advance(time.Second)
	assert.False(t, r.agg.Tick())
	assert.Len(t, rec.readings, 1)
}

func TestUptime(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)
	r.clock.Advance(3 * time.Second)
	assert.GreaterOrEqual(t, r.agg.Uptime(), 3*time.Second)
}

func TestRuntimeMemFree(t *testing.T) {
	assert.Greater(t, RuntimeMemFree(), uint64(0))
}

type commandLog struct {
	results []vernier.Result
}

func (c *commandLog) ObserveCommand(res vernier.Result) {
	c.results = append(c.results, res)
}

func TestCommand(t *testing.T) {
	r := newRig(t, vernier.DefaultThreshold)
	log := &commandLog{}
	r.agg.ObserveCommands(log)

	res := r.agg.Command("f")
	assert.True(t, res.Recognized)
	assert.Equal(t, sensor.Force, r.agg.Machine().State().Active)

	res = r.agg.Command("zz")
	assert.False(t, res.Recognized)

	require.Len(t, log.results, 2)
	assert.Equal(t, "f", log.results[0].Command)
	assert.Equal(t, "Unknown command: zz", log.results[1].Message)
}
