package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/itohio/wally/pkg/api"
	"github.com/itohio/wally/pkg/config"
	"github.com/itohio/wally/pkg/console"
	"github.com/itohio/wally/pkg/daq"
	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/hal/periph"
	"github.com/itohio/wally/pkg/hal/sim"
	"github.com/itohio/wally/pkg/httpd"
	"github.com/itohio/wally/pkg/logging"
	"github.com/itohio/wally/pkg/metrics"
	"github.com/itohio/wally/pkg/sensor"
	"github.com/itohio/wally/pkg/telemetry"
	"github.com/itohio/wally/pkg/vernier"
)

func serveFlags(f *pflag.FlagSet) {
	f.IntP("port", "p", 0, "HTTP port")
	f.String("device-id", "", "device id reported in every payload")
	f.StringP("backend", "b", "", "board backend (sim, periph)")
	f.StringP("serial", "s", "", "serial port of the command console")
	f.String("mqtt", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	f.StringSlice("kafka", nil, "Kafka broker addresses")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the sensor API",
	Long: `serve reads the configured sensors and answers the HTTP API on a single
goroutine. The configuration is read from --config (or WALLY_CONFIG); flags and
WALLY_* environment variables override it.`,
	Example: `  wallyd serve --config config.yaml
  wallyd serve --backend periph --serial /dev/ttyUSB0
  WALLY_SERVER_PORT=80 wallyd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logs, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logs.Close()

	descs, err := cfg.Descriptors()
	if err != nil {
		return fmt.Errorf("sensors: %w", err)
	}

	clock := hal.NewSystemClock()
	board, err := openBoard(cfg, descs, clock)
	if err != nil {
		return err
	}
	defer board.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	agg := daq.New(acquisition(cfg), board, clock, descs, vernier.New(cfg.Vernier.Threshold))
	agg.Observe(m)
	agg.ObserveCommands(m)

	opts := []httpd.Option{
		httpd.WithObserver(m),
		httpd.WithTick(func() { agg.Tick() }),
	}

	if cfg.Serial.Port != "" {
		port, err := console.Open(cfg.Serial.Port, cfg.Serial.BaudRate)
		if err != nil {
			return err
		}
		defer port.Close()

		con := console.New(port, agg)
		agg.Observe(con)
		agg.ObserveCommands(con)
		con.Banner()
		opts = append(opts, httpd.WithTick(func() {
			if err := con.Poll(); err != nil {
				log.WithError(err).Warn("console")
			}
		}))
		log.WithField("port", cfg.Serial.Port).Info("serial console enabled")
	}

	sinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	if len(sinks) > 0 {
		pub := telemetry.NewPublisher(cfg.Telemetry.QueueSize, m, sinks...)
		agg.Observe(pub)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := pub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("telemetry stopped")
			}
		}()
		defer func() {
			<-done
			if err := pub.Close(); err != nil {
				log.WithError(err).Warn("telemetry close")
			}
		}()
	}

	ip := cfg.Device.IPAddress
	if ip == "" {
		ip = localIP()
	}

	router := httpd.NewRouter()
	api.Routes(router, api.New(agg, ip), m)

	srv := httpd.New(httpd.Config{
		Addr:                fmt.Sprintf(":%d", cfg.Server.Port),
		AcceptTimeout:       cfg.Server.AcceptTimeout,
		ReadTimeout:         cfg.Server.ReadTimeout,
		WriteTimeout:        cfg.Server.ReadTimeout,
		BufferSize:          cfg.Server.BufferSize,
		MaintenanceInterval: cfg.Server.MaintenanceInterval,
	}, router, opts...)

	log.WithFields(log.Fields{
		"device":  cfg.Device.ID,
		"backend": cfg.Hardware.Backend,
		"sensors": len(descs),
		"ip":      ip,
	}).Info("wally starting")

	err = srv.ListenAndServe(ctx)
	stop()
	return err
}

func acquisition(cfg *config.Config) daq.Config {
	return daq.Config{
		DeviceID:            cfg.Device.ID,
		Samples:             cfg.Analog.Samples,
		SampleDelay:         cfg.Analog.SampleDelay,
		Ranger:              cfg.Ranger(),
		TimeBetweenReadings: cfg.Vernier.TimeBetweenReadings,
		MemFree:             daq.RuntimeMemFree,
	}
}

func openBoard(cfg *config.Config, descs sensor.Descriptors, clock hal.Clock) (hal.Board, error) {
	switch cfg.Hardware.Backend {
	case "sim":
		live := sim.DefaultLiveConfig()
		live.NoiseLevel = float32(cfg.Mock.NoiseLevel)
		live.Period = cfg.Mock.Period
		return sim.NewLive(descs, live, clock), nil
	case "periph":
		return periph.Open(periph.Config{
			I2CBus:     cfg.Hardware.I2CBus,
			ADCAddress: cfg.Hardware.ADCAddress,
		}, descs)
	}
	return nil, fmt.Errorf("unknown hardware backend %q", cfg.Hardware.Backend)
}

func openSinks(cfg *config.Config) ([]telemetry.Sink, error) {
	var sinks []telemetry.Sink

	if cfg.Telemetry.MQTT.Broker != "" {
		s, err := telemetry.DialMQTT(telemetry.MQTTConfig{
			Broker:   cfg.Telemetry.MQTT.Broker,
			ClientID: cfg.Device.ID,
			Topic:    cfg.Telemetry.MQTT.Topic,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	if len(cfg.Telemetry.Kafka.Brokers) > 0 {
		sinks = append(sinks, telemetry.NewKafkaSink(cfg.Telemetry.Kafka.Brokers, cfg.Telemetry.Kafka.Topic))
	}

	return sinks, nil
}

// localIP returns the first non-loopback IPv4 address of the host.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}
