package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/itohio/wally/pkg/hal/sim"
	"github.com/itohio/wally/pkg/logging"
	"github.com/itohio/wally/pkg/metrics"
	"github.com/itohio/wally/pkg/mockserver"
)

func mockFlags(f *pflag.FlagSet) {
	f.StringP("addr", "a", "", "listen address")
	f.String("device-id", "", "device id reported in every payload")
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "mock serves the device API from simulated sensors",
	Long: `mock runs a stand-in device for client development. Responses have the same
routes, status codes and payload shapes as the device; readings follow slow
simulated waveforms.`,
	Example: `  wallyd mock --addr :9080`,
	RunE:    runMock,
}

func runMock(cmd *cobra.Command, _ []string) error {
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

	gin.SetMode(gin.ReleaseMode)

	live := sim.DefaultLiveConfig()
	live.NoiseLevel = float32(cfg.Mock.NoiseLevel)
	live.Period = cfg.Mock.Period

	m := metrics.New()
	agg := mockserver.Simulated(acquisition(cfg), descs, live, cfg.Vernier.Threshold)
	agg.Observe(m)
	agg.ObserveCommands(m)

	srv := mockserver.New(mockserver.Config{Addr: cfg.Mock.Addr}, agg, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{"addr": cfg.Mock.Addr, "boot_id": srv.BootID()}).Info("mock device starting")
	return srv.Run(ctx)
}
