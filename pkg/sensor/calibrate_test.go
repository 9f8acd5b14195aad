package sensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/sensor"
)

func desc(name string, kind sensor.Kind, pin hal.Pin) sensor.Descriptor {
	return sensor.Descriptor{
		Name:      name,
		Kind:      kind,
		Pin:       pin,
		Trigger:   hal.NoPin,
		Echo:      hal.NoPin,
		Indicator: hal.NoPin,
	}
}

func TestVoltage_Range(t *testing.T) {
	for raw := 0; raw <= sensor.ADCMax; raw++ {
		v := sensor.Voltage(float64(raw))
		if v < 0 || v > sensor.VRef+1e-9 {
			t.Fatalf("raw %d: voltage %v out of range", raw, v)
		}
	}
	assert.Equal(t, 0.0, sensor.Voltage(0))
	assert.InDelta(t, 3.3, sensor.Voltage(sensor.ADCMax), 1e-12)
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name    string
		d       sensor.Descriptor
		voltage float64
		want    float64
	}{
		{"temperature zero", desc("t", sensor.Temperature, 34), 0.5, 0},
		{"temperature room", desc("t", sensor.Temperature, 34), 0.75, 25},
		{"force rest", desc("f", sensor.Force, 35), 2.5, 0},
		{"force push", desc("f", sensor.Force, 35), 3.3, 40},
		{"force pull", desc("f", sensor.Force, 35), 0, -125},
		{"accelerometer rest", desc("m", sensor.Motion, 36), 1.65, 0},
		{"accelerometer 1g", desc("m", sensor.Motion, 36), 1.98, 1},
		{"ph", sensor.Descriptor{Name: "ph", Kind: sensor.Analog, Pin: 32, Slope: -3, Offset: 14.5}, 2.5, 7},
		{"pressure", sensor.Descriptor{Name: "p", Kind: sensor.Analog, Pin: 33, Slope: 50}, 1, 50},
		{"identity", sensor.Descriptor{Name: "raw", Kind: sensor.Analog, Pin: 33, Slope: 1}, 1.234, 1.234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, sensor.Convert(tt.d, tt.voltage), 1e-9)
		})
	}
}

func TestConvert_AccelerometerRestIsExact(t *testing.T) {
	assert.Equal(t, 0.0, sensor.Convert(desc("m", sensor.Motion, 36), 1.65))
}

func TestConvert_Temperature2048(t *testing.T) {
	v := sensor.Voltage(2048)
	assert.Equal(t, 1.65, sensor.Round(v, 3))
	assert.Equal(t, 115.04, sensor.Round(sensor.Convert(desc("t", sensor.Temperature, 34), v), 2))
}

func TestUnit(t *testing.T) {
	ranger := sensor.Descriptor{Name: "m", Kind: sensor.Motion, Pin: hal.NoPin, Trigger: 5, Echo: 18}

	assert.Equal(t, "°C", sensor.Unit(desc("t", sensor.Temperature, 34)))
	assert.Equal(t, "N", sensor.Unit(desc("f", sensor.Force, 35)))
	assert.Equal(t, "g", sensor.Unit(desc("m", sensor.Motion, 36)))
	assert.Equal(t, "cm", sensor.Unit(ranger))
	assert.Equal(t, "open", sensor.Unit(desc("p", sensor.Photogate, 4)))
	assert.Equal(t, "V", sensor.Unit(desc("a", sensor.Analog, 33)))
	assert.Equal(t, "pH", sensor.Unit(sensor.Descriptor{Kind: sensor.Analog, Unit: "pH"}))
}

func TestForceLED(t *testing.T) {
	tests := []struct {
		value     float64
		threshold float64
		want      bool
	}{
		{0, 100, false},
		{100, 100, false},
		{100.01, 100, true},
		{-100.01, 100, true},
		{-125, 100, true},
		{16, 15, true},
		{-14.99, 15, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sensor.ForceLED(tt.value, tt.threshold), "value %v threshold %v", tt.value, tt.threshold)
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, sensor.Round(1.2345, 2))
	assert.Equal(t, 1.235, sensor.Round(1.23456, 3))
	assert.Equal(t, -2.5, sensor.Round(-2.4999, 2))
	assert.Equal(t, 3.0, sensor.Round(2.999, 2))
}
