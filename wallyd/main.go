// Command wallyd runs the sensor acquisition service.
package main

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/itohio/wally/pkg/config"
)

const (
	appName       = "wally"
	defaultConfig = "config.yaml"
)

var rootCmd = &cobra.Command{
	Use:           "wallyd",
	Short:         "sensor acquisition and control service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// settings maps viper keys to the flags that may override them. Every key can
// also be set through WALLY_<SECTION>_<KEY>.
var settings = map[string]string{
	"device.id":               "device-id",
	"server.port":             "port",
	"hardware.backend":        "backend",
	"serial.port":             "serial",
	"telemetry.mqtt.broker":   "mqtt",
	"telemetry.kafka.brokers": "kafka",
	"mock.addr":               "addr",
	"log.level":               "log-level",
	"log.file":                "log-file",
}

func persistentFlags(f *pflag.FlagSet) {
	f.StringP("config", "c", defaultConfig, "configuration file path")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-file", "", "also write logs to this file")
}

// loadConfig reads the YAML file and applies environment and flag overrides,
// in that order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	if env := os.Getenv("WALLY_CONFIG"); env != "" && !cmd.Flags().Changed("config") {
		file = env
	}

	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, flag := range settings {
		if fl := cmd.Flags().Lookup(flag); fl != nil {
			_ = v.BindPFlag(key, fl)
		}
	}

	applyOverrides(v, cfg)
	log.WithField("config", file).Debug("configuration loaded")
	return cfg, nil
}

func applyOverrides(v *viper.Viper, cfg *config.Config) {
	if v.IsSet("device.id") {
		cfg.Device.ID = v.GetString("device.id")
	}
	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("hardware.backend") {
		cfg.Hardware.Backend = v.GetString("hardware.backend")
	}
	if v.IsSet("serial.port") {
		cfg.Serial.Port = v.GetString("serial.port")
	}
	if v.IsSet("telemetry.mqtt.broker") {
		cfg.Telemetry.MQTT.Broker = v.GetString("telemetry.mqtt.broker")
	}
	if v.IsSet("telemetry.kafka.brokers") {
		cfg.Telemetry.Kafka.Brokers = v.GetStringSlice("telemetry.kafka.brokers")
	}
	if v.IsSet("mock.addr") {
		cfg.Mock.Addr = v.GetString("mock.addr")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.file") {
		cfg.Log.File = v.GetString("log.file")
	}
}

func main() {
	persistentFlags(rootCmd.PersistentFlags())

	serveFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)

	initFlags(initCmd.Flags())
	rootCmd.AddCommand(initCmd)

	mockFlags(mockCmd.Flags())
	rootCmd.AddCommand(mockCmd)

	rootCmd.AddCommand(portsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("wallyd failed")
		os.Exit(1)
	}
}
