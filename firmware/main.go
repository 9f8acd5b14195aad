//go:build tinygo

//go:generate tinygo flash -target=esp32-coreboard-v2

package main

import (
	"context"
	"fmt"
	"machine"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/wally/pkg/api"
	"github.com/itohio/wally/pkg/console"
	"github.com/itohio/wally/pkg/daq"
	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/httpd"
	"github.com/itohio/wally/pkg/sensor"
	"github.com/itohio/wally/pkg/vernier"
)

func descriptors() sensor.Descriptors {
	descs, err := sensor.NewDescriptors(
		sensor.Descriptor{Name: "temperature", Kind: sensor.Temperature, Pin: PIN_TEMPERATURE, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: hal.NoPin},
		sensor.Descriptor{Name: "force", Kind: sensor.Force, Pin: PIN_FORCE, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: PIN_LED},
		sensor.Descriptor{Name: "photogate", Kind: sensor.Photogate, Pin: PIN_PHOTOGATE, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: PIN_LED},
		sensor.Descriptor{Name: "motion", Kind: sensor.Motion, Pin: hal.NoPin, Trigger: PIN_TRIGGER, Echo: PIN_ECHO, Indicator: hal.NoPin},
		sensor.Descriptor{Name: "ph", Kind: sensor.Analog, Pin: PIN_PH, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: hal.NoPin, Slope: -3, Offset: 14.5, Unit: "pH"},
		sensor.Descriptor{Name: "pressure", Kind: sensor.Analog, Pin: PIN_PRESSURE, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: hal.NoPin, Slope: 50, Unit: "kPa"},
	)
	if err != nil {
		panic(err)
	}
	return descs
}

func main() {
	uart := machine.Serial
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	descs := descriptors()
	clock := hal.NewSystemClock()
	agg := daq.New(daq.Config{
		DeviceID:            DEVICE_ID,
		Samples:             ANALOG_SAMPLES,
		SampleDelay:         ANALOG_SAMPLE_DELAY_MS * time.Millisecond,
		TimeBetweenReadings: TIME_BETWEEN_READINGS_MS * time.Millisecond,
		MemFree:             daq.RuntimeMemFree,
	}, newBoard(descs), clock, descs, vernier.New(FORCE_THRESHOLD_NEWTONS))

	con := console.New(uart, agg)
	agg.Observe(con)
	agg.ObserveCommands(con)
	con.Banner()

	tick := func() {
		if err := con.Poll(); err != nil {
			log.WithError(err).Warn("console")
		}
		agg.Tick()
	}

	router := httpd.NewRouter()
	api.Routes(router, api.New(agg, ""), nil)
	srv := httpd.New(httpd.Config{Addr: fmt.Sprintf(":%d", HTTP_PORT)}, router, httpd.WithTick(tick))

	// Without a network device the listener fails at once and the board keeps
	// serving the serial console.
	if err := srv.ListenAndServe(context.Background()); err != nil {
		log.WithError(err).Warn("http server unavailable, serial console only")
	}

	for {
		tick()
		clock.SleepMicros(LOOP_WITHOUT_NETWORK_US)
	}
}
