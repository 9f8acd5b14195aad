package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/sensor"
)

// Config represents the application configuration.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Server     ServerConfig     `yaml:"server"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Analog     AnalogConfig     `yaml:"analog"`
	Ultrasonic UltrasonicConfig `yaml:"ultrasonic"`
	Vernier    VernierConfig    `yaml:"vernier"`
	Sensors    []SensorConfig   `yaml:"sensors"`
	Serial     SerialConfig     `yaml:"serial"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Client     ClientConfig     `yaml:"client"`
	Mock       MockConfig       `yaml:"mock"`
	Log        LogConfig        `yaml:"log"`
}

// DeviceConfig identifies the device in reports.
type DeviceConfig struct {
	ID        string `yaml:"id"`
	IPAddress string `yaml:"ip_address"` // reported in /status, empty = detect
}

// ServerConfig contains the embedded HTTP server parameters.
type ServerConfig struct {
	Port                int           `yaml:"port"`
	AcceptTimeout       time.Duration `yaml:"accept_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	BufferSize          int           `yaml:"buffer_size"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

// HardwareConfig selects the board backend.
type HardwareConfig struct {
	Backend    string `yaml:"backend"`     // sim or periph
	I2CBus     string `yaml:"i2c_bus"`     // empty = first bus
	ADCAddress uint16 `yaml:"adc_address"` // ADS1115 address
}

// AnalogConfig contains the averaging parameters.
type AnalogConfig struct {
	Samples     int           `yaml:"samples"`
	SampleDelay time.Duration `yaml:"sample_delay"`
}

// UltrasonicConfig contains the ranger timing.
type UltrasonicConfig struct {
	SettleUs uint32 `yaml:"settle_us"`
	PulseUs  uint32 `yaml:"pulse_us"`
	MaxPolls int    `yaml:"max_polls"`
}

// VernierConfig contains the acquisition parameters.
type VernierConfig struct {
	Threshold           float64       `yaml:"threshold"` // force LED threshold (N)
	TimeBetweenReadings time.Duration `yaml:"time_between_readings"`
}

// SensorConfig describes one wired sensor. Pins are optional, a missing pin
// is not wired.
type SensorConfig struct {
	Name      string  `yaml:"name"`
	Kind      string  `yaml:"kind"`
	Pin       *int    `yaml:"pin,omitempty"`
	Trigger   *int    `yaml:"trigger,omitempty"`
	Echo      *int    `yaml:"echo,omitempty"`
	Indicator *int    `yaml:"indicator,omitempty"`
	Slope     float64 `yaml:"slope,omitempty"`
	Offset    float64 `yaml:"offset,omitempty"`
	Unit      string  `yaml:"unit,omitempty"`
}

// SerialConfig contains the command console port.
type SerialConfig struct {
	Port     string `yaml:"port"` // empty disables the console
	BaudRate int    `yaml:"baud_rate"`
}

// TelemetryConfig contains the reading forwarders.
type TelemetryConfig struct {
	QueueSize int         `yaml:"queue_size"`
	MQTT      MQTTConfig  `yaml:"mqtt"`
	Kafka     KafkaConfig `yaml:"kafka"`
}

type MQTTConfig struct {
	Broker string `yaml:"broker"` // empty disables the sink
	Topic  string `yaml:"topic"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"` // empty disables the sink
	Topic   string   `yaml:"topic"`
}

// ClientConfig contains the collaborator polling parameters.
type ClientConfig struct {
	Address       string        `yaml:"address"`
	Interval      time.Duration `yaml:"interval"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	Addr       string        `yaml:"addr"`
	NoiseLevel float64       `yaml:"noise_level"` // Noise level (V)
	Period     time.Duration `yaml:"period"`      // Period of the simulated waveforms
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func pin(n int) *int { return &n }

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID: "esp32_wally",
		},
		Server: ServerConfig{
			Port:                8080,
			AcceptTimeout:       time.Second,
			ReadTimeout:         2 * time.Second,
			BufferSize:          1024,
			MaintenanceInterval: 30 * time.Second,
		},
		Hardware: HardwareConfig{
			Backend:    "sim",
			ADCAddress: 0x48,
		},
		Analog: AnalogConfig{
			Samples:     3,
			SampleDelay: 10 * time.Millisecond,
		},
		Ultrasonic: UltrasonicConfig{
			SettleUs: sensor.DefaultSettleMicros,
			PulseUs:  sensor.DefaultPulseMicros,
			MaxPolls: sensor.DefaultMaxPolls,
		},
		Vernier: VernierConfig{
			Threshold:           100,
			TimeBetweenReadings: 500 * time.Millisecond,
		},
		Sensors: DefaultSensors(),
		Serial: SerialConfig{
			BaudRate: 115200,
		},
		Telemetry: TelemetryConfig{
			QueueSize: 64,
			MQTT:      MQTTConfig{Topic: "wally/readings"},
			Kafka:     KafkaConfig{Topic: "wally.readings"},
		},
		Client: ClientConfig{
			Address:       "127.0.0.1:8080",
			Interval:      time.Second,
			Timeout:       3 * time.Second,
			RetryAttempts: 3,
		},
		Mock: MockConfig{
			Addr:       ":9080",
			NoiseLevel: 0.01,
			Period:     30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultSensors returns the ESP32 wiring of the Vernier board.
func DefaultSensors() []SensorConfig {
	return []SensorConfig{
		{Name: "temperature", Kind: "temperature", Pin: pin(34)},
		{Name: "force", Kind: "force", Pin: pin(35), Indicator: pin(2)},
		{Name: "photogate", Kind: "photogate", Pin: pin(4), Indicator: pin(2)},
		{Name: "motion", Kind: "motion", Trigger: pin(5), Echo: pin(18)},
		{Name: "ph", Kind: "analog", Pin: pin(32), Slope: -3, Offset: 14.5, Unit: "pH"},
		{Name: "pressure", Kind: "analog", Pin: pin(33), Slope: 50, Unit: "kPa"},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Decode into a zero sensor list so a configured table replaces the
	// default one instead of merging into it.
	cfg.Sensors = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Descriptors builds the validated sensor table.
func (c *Config) Descriptors() (sensor.Descriptors, error) {
	list := make([]sensor.Descriptor, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		kind, err := sensor.ParseKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", s.Name, err)
		}
		list = append(list, sensor.Descriptor{
			Name:      s.Name,
			Kind:      kind,
			Pin:       optionalPin(s.Pin),
			Trigger:   optionalPin(s.Trigger),
			Echo:      optionalPin(s.Echo),
			Indicator: optionalPin(s.Indicator),
			Slope:     s.Slope,
			Offset:    s.Offset,
			Unit:      s.Unit,
		})
	}
	return sensor.NewDescriptors(list...)
}

// Ranger returns the ultrasonic timing.
func (c *Config) Ranger() sensor.RangerConfig {
	return sensor.RangerConfig{
		SettleMicros: c.Ultrasonic.SettleUs,
		PulseMicros:  c.Ultrasonic.PulseUs,
		MaxPolls:     c.Ultrasonic.MaxPolls,
	}
}

func optionalPin(p *int) hal.Pin {
	if p == nil {
		return hal.NoPin
	}
	return hal.Pin(*p)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device.ID == "" {
		c.Device.ID = def.Device.ID
	}

	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.AcceptTimeout == 0 {
		c.Server.AcceptTimeout = def.Server.AcceptTimeout
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.BufferSize == 0 {
		c.Server.BufferSize = def.Server.BufferSize
	}
	if c.Server.MaintenanceInterval == 0 {
		c.Server.MaintenanceInterval = def.Server.MaintenanceInterval
	}

	if c.Hardware.Backend == "" {
		c.Hardware.Backend = def.Hardware.Backend
	}
	if c.Hardware.ADCAddress == 0 {
		c.Hardware.ADCAddress = def.Hardware.ADCAddress
	}

	if c.Analog.Samples == 0 {
		c.Analog.Samples = def.Analog.Samples
	}
	if c.Analog.SampleDelay == 0 {
		c.Analog.SampleDelay = def.Analog.SampleDelay
	}

	if c.Ultrasonic.SettleUs == 0 {
		c.Ultrasonic.SettleUs = def.Ultrasonic.SettleUs
	}
	if c.Ultrasonic.PulseUs == 0 {
		c.Ultrasonic.PulseUs = def.Ultrasonic.PulseUs
	}
	if c.Ultrasonic.MaxPolls == 0 {
		c.Ultrasonic.MaxPolls = def.Ultrasonic.MaxPolls
	}

	if c.Vernier.Threshold == 0 {
		c.Vernier.Threshold = def.Vernier.Threshold
	}
	if c.Vernier.TimeBetweenReadings == 0 {
		c.Vernier.TimeBetweenReadings = def.Vernier.TimeBetweenReadings
	}

	if len(c.Sensors) == 0 {
		c.Sensors = def.Sensors
	}

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Telemetry.QueueSize == 0 {
		c.Telemetry.QueueSize = def.Telemetry.QueueSize
	}
	if c.Telemetry.MQTT.Topic == "" {
		c.Telemetry.MQTT.Topic = def.Telemetry.MQTT.Topic
	}
	if c.Telemetry.Kafka.Topic == "" {
		c.Telemetry.Kafka.Topic = def.Telemetry.Kafka.Topic
	}

	if c.Client.Address == "" {
		c.Client.Address = def.Client.Address
	}
	if c.Client.Interval == 0 {
		c.Client.Interval = def.Client.Interval
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = def.Client.Timeout
	}
	if c.Client.RetryAttempts == 0 {
		c.Client.RetryAttempts = def.Client.RetryAttempts
	}

	if c.Mock.Addr == "" {
		c.Mock.Addr = def.Mock.Addr
	}
	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
