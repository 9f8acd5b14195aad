//go:build tinygo

package main

import "github.com/itohio/wally/pkg/hal"

const (
	DEVICE_ID = "esp32_wally"

	// Acquisition
	ANALOG_SAMPLES           = 3  // ADC samples averaged per reading
	ANALOG_SAMPLE_DELAY_MS   = 10 // Delay between averaged samples
	TIME_BETWEEN_READINGS_MS = 500
	FORCE_THRESHOLD_NEWTONS  = 100.0
	LOOP_WITHOUT_NETWORK_US  = 1000 // Console-only loop period
	ADC_SHIFT_TO_12_BITS     = 4    // machine.ADC.Get scales to 16 bits
	HTTP_PORT                = 80
	UART_BAUD_RATE           = 115200
)

// ESP32 GPIO numbers of the Vernier board.
const (
	PIN_TEMPERATURE = hal.Pin(34)
	PIN_FORCE       = hal.Pin(35)
	PIN_PH          = hal.Pin(32)
	PIN_PRESSURE    = hal.Pin(33)
	PIN_PHOTOGATE   = hal.Pin(4)
	PIN_TRIGGER     = hal.Pin(5)
	PIN_ECHO        = hal.Pin(18)
	PIN_LED         = hal.Pin(2)
)
