package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/sensor"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()

	tmpfile, err := os.CreateTemp(t.TempDir(), "test_config_*.yaml")
	require.NoError(t, err)
	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "esp32_wally", cfg.Device.ID)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Server.AcceptTimeout)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 1024, cfg.Server.BufferSize)
	assert.Equal(t, 30*time.Second, cfg.Server.MaintenanceInterval)
	assert.Equal(t, "sim", cfg.Hardware.Backend)
	assert.Equal(t, uint16(0x48), cfg.Hardware.ADCAddress)
	assert.Equal(t, 3, cfg.Analog.Samples)
	assert.Equal(t, 10*time.Millisecond, cfg.Analog.SampleDelay)
	assert.Equal(t, uint32(4000), cfg.Ultrasonic.SettleUs)
	assert.Equal(t, uint32(900), cfg.Ultrasonic.PulseUs)
	assert.Equal(t, 30000, cfg.Ultrasonic.MaxPolls)
	assert.Equal(t, 100.0, cfg.Vernier.Threshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Vernier.TimeBetweenReadings)
	assert.Len(t, cfg.Sensors, 6)
	assert.Empty(t, cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 64, cfg.Telemetry.QueueSize)
	assert.Equal(t, "wally/readings", cfg.Telemetry.MQTT.Topic)
	assert.Equal(t, "wally.readings", cfg.Telemetry.Kafka.Topic)
	assert.Equal(t, "127.0.0.1:8080", cfg.Client.Address)
	assert.Equal(t, 3, cfg.Client.RetryAttempts)
	assert.Equal(t, ":9080", cfg.Mock.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestDefault_Descriptors(t *testing.T) {
	descs, err := Default().Descriptors()
	require.NoError(t, err)
	require.Len(t, descs, 6)

	force, ok := descs.ByKind(sensor.Force)
	require.True(t, ok)
	assert.Equal(t, hal.Pin(35), force.Pin)
	assert.Equal(t, hal.Pin(2), force.Indicator)
	assert.Equal(t, hal.NoPin, force.Trigger)

	motion, ok := descs.ByKind(sensor.Motion)
	require.True(t, ok)
	assert.True(t, motion.Ultrasonic())
	assert.Equal(t, hal.NoPin, motion.Pin)

	ph := descs[4]
	assert.Equal(t, "ph", ph.Name)
	assert.Equal(t, sensor.Analog, ph.Kind)
	assert.Equal(t, -3.0, ph.Slope)
	assert.Equal(t, 14.5, ph.Offset)
	assert.Equal(t, "pH", ph.Unit)
}

func TestDescriptors_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		sensors []SensorConfig
	}{
		{"unknown kind", []SensorConfig{{Name: "x", Kind: "humidity", Pin: pin(1)}}},
		{"no pin", []SensorConfig{{Name: "t", Kind: "temperature"}}},
		{"half ranger", []SensorConfig{{Name: "m", Kind: "motion", Trigger: pin(5)}}},
		{"duplicate kind", []SensorConfig{
			{Name: "a", Kind: "force", Pin: pin(1)},
			{Name: "b", Kind: "force", Pin: pin(2)},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Sensors = tt.sensors
			_, err := cfg.Descriptors()
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "esp32_wally", cfg.Device.ID)
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
device:
  id: "lab_bench"
  ip_address: "10.0.0.7"

server:
  port: 80
  accept_timeout: 500ms

hardware:
  backend: periph
  i2c_bus: "1"
  adc_address: 0x49

vernier:
  threshold: 15
  time_between_readings: 100ms

sensors:
  - name: temp
    kind: temperature
    pin: 0
  - name: gate
    kind: photogate
    pin: 17
    indicator: 27

serial:
  port: "/dev/ttyACM0"

telemetry:
  mqtt:
    broker: "tcp://localhost:1883"
  kafka:
    brokers: ["localhost:9092"]
`)

	cfg, err := Load(name)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "lab_bench", cfg.Device.ID)
	assert.Equal(t, "10.0.0.7", cfg.Device.IPAddress)
	assert.Equal(t, 80, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.AcceptTimeout)
	assert.Equal(t, "periph", cfg.Hardware.Backend)
	assert.Equal(t, "1", cfg.Hardware.I2CBus)
	assert.Equal(t, uint16(0x49), cfg.Hardware.ADCAddress)
	assert.Equal(t, 15.0, cfg.Vernier.Threshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Vernier.TimeBetweenReadings)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, "tcp://localhost:1883", cfg.Telemetry.MQTT.Broker)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Telemetry.Kafka.Brokers)

	descs, err := cfg.Descriptors()
	require.NoError(t, err)
	require.Len(t, descs, 2, "configured sensors replace the defaults")
	assert.Equal(t, hal.Pin(0), descs[0].Pin, "pin 0 is wired")
	assert.Equal(t, hal.NoPin, descs[0].Indicator)
	assert.Equal(t, hal.Pin(27), descs[1].Indicator)
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, "invalid: yaml: content: ["))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, `
serial:
  port: "/dev/ttyACM0"
`))
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Len(t, cfg.Sensors, 6)
	assert.Equal(t, 500*time.Millisecond, cfg.Vernier.TimeBetweenReadings)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Vernier.Threshold = 15
	cfg.Analog.SampleDelay = 5 * time.Millisecond

	name := writeTemp(t, "")
	require.NoError(t, cfg.Save(name))

	// Load it back and verify
	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 15.0, loaded.Vernier.Threshold)
	assert.Equal(t, 5*time.Millisecond, loaded.Analog.SampleDelay)
	assert.Equal(t, cfg.Sensors, loaded.Sensors)
}

func TestRanger(t *testing.T) {
	cfg := Default()
	cfg.Ultrasonic.MaxPolls = 10

	r := cfg.Ranger()
	assert.Equal(t, uint32(4000), r.SettleMicros)
	assert.Equal(t, uint32(900), r.PulseMicros)
	assert.Equal(t, 10, r.MaxPolls)
}
