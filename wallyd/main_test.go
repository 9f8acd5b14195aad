package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/wally/pkg/config"
	"github.com/itohio/wally/pkg/hal"
)

func newServeCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "serve"}
	persistentFlags(cmd.PersistentFlags())
	serveFlags(cmd.Flags())
	cmd.Flags().AddFlagSet(cmd.PersistentFlags())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	cmd := newServeCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfig_Flags(t *testing.T) {
	cmd := newServeCmd(t,
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--port", "80",
		"--backend", "periph",
		"--serial", "/dev/ttyUSB0",
		"--kafka", "a:9092,b:9092",
		"--log-level", "debug",
	)

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Server.Port)
	assert.Equal(t, "periph", cfg.Hardware.Backend)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Telemetry.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "esp32_wally", cfg.Device.ID, "unset flags keep the file value")
}

func TestLoadConfig_Env(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "wally.yaml")
	cfg := config.Default()
	cfg.Server.Port = 9000
	cfg.Device.ID = "bench"
	require.NoError(t, cfg.Save(file))

	t.Setenv("WALLY_CONFIG", file)
	t.Setenv("WALLY_SERVER_PORT", "7000")
	t.Setenv("WALLY_TELEMETRY_MQTT_BROKER", "tcp://broker:1883")

	got, err := loadConfig(newServeCmd(t))
	require.NoError(t, err)
	assert.Equal(t, 7000, got.Server.Port, "environment beats the file")
	assert.Equal(t, "bench", got.Device.ID)
	assert.Equal(t, "tcp://broker:1883", got.Telemetry.MQTT.Broker)

	got, err = loadConfig(newServeCmd(t, "--port", "6000"))
	require.NoError(t, err)
	assert.Equal(t, 6000, got.Server.Port, "flags beat the environment")
}

func TestOpenBoard(t *testing.T) {
	cfg := config.Default()
	descs, err := cfg.Descriptors()
	require.NoError(t, err)

	b, err := openBoard(cfg, descs, hal.NewSystemClock())
	require.NoError(t, err)
	assert.NoError(t, b.Close())

	cfg.Hardware.Backend = "esp32"
	_, err = openBoard(cfg, descs, hal.NewSystemClock())
	assert.ErrorContains(t, err, "unknown hardware backend")
}

func TestOpenSinks_None(t *testing.T) {
	sinks, err := openSinks(config.Default())
	require.NoError(t, err)
	assert.Empty(t, sinks)

	cfg := config.Default()
	cfg.Telemetry.Kafka.Brokers = []string{"localhost:9092"}
	sinks, err = openSinks(cfg)
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, "kafka", sinks[0].Name())
	assert.NoError(t, sinks[0].Close())
}

func TestInit(t *testing.T) {
	out := filepath.Join(t.TempDir(), "config.yaml")

	run := func(args ...string) (string, error) {
		cmd := &cobra.Command{Use: "init", RunE: runInit}
		initFlags(cmd.Flags())
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return buf.String(), err
	}

	_, err := run("-o", out)
	require.NoError(t, err)
	loaded, err := config.Load(out)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), loaded)

	_, err = run("-o", out)
	assert.ErrorContains(t, err, "--yes")

	_, err = run("-o", out, "-y")
	assert.NoError(t, err)

	printed, err := run("--print")
	require.NoError(t, err)
	assert.Contains(t, printed, "esp32_wally")
	assert.Contains(t, printed, "time_between_readings: 500ms")

	_, err = os.Stat(out)
	assert.NoError(t, err)
}
