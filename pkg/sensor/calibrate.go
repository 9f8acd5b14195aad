package sensor

import "math"

const (
	// ADCMax is the largest raw count of the 12-bit converter.
	ADCMax = 4095
	// VRef is the full-scale voltage of the converter.
	VRef = 3.3
)

// Voltage converts an (averaged) raw count to volts.
func Voltage(raw float64) float64 {
	return adcToVoltage(raw, VRef)
}

func adcToVoltage(adc float64, vref float64) float64 {
	return adc * vref / ADCMax
}

// Convert maps a voltage to the engineering value of the descriptor's kind.
// It is pure and has no error path.
func Convert(d Descriptor, voltage float64) float64 {
	switch d.Kind {
	case Temperature:
		// TMP36 style: 10mV/°C with 500mV offset
		return (voltage - 0.5) * 100
	case Force:
		return (voltage - 2.5) * 50
	case Motion:
		// accelerometer fallback: 1.65V at rest, 330mV/g
		return (voltage - 1.65) / 0.33
	default:
		return voltage*d.Slope + d.Offset
	}
}

// Unit returns the unit string reported for the descriptor's readings.
func Unit(d Descriptor) string {
	switch d.Kind {
	case Temperature:
		return "°C"
	case Force:
		return "N"
	case Motion:
		if d.Ultrasonic() {
			return "cm"
		}
		return "g"
	case Photogate:
		return "open"
	}
	if d.Unit == "" {
		return "V"
	}
	return d.Unit
}

// ForceLED reports whether the force indicator should light up.
func ForceLED(value, threshold float64) bool {
	return math.Abs(value) > threshold
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
