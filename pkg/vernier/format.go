package vernier

import (
	"fmt"

	"github.com/itohio/wally/pkg/sensor"
)

// Header returns the "Vernier Format 2" lines announcing a newly selected
// sensor to Logger Pro style consumers.
func Header(k sensor.Kind) []string {
	switch k {
	case sensor.Temperature:
		return []string{
			"Vernier Format 2",
			"Stainless Steel Temperature Probe",
			"Readings taken using ESP32",
			"Data Set",
			"Time\tTemperature",
			"s\t°C",
			"seconds\tdegrees Celsius",
		}
	case sensor.Force:
		return []string{
			"Vernier Format 2",
			"Dual-Range Force Sensor",
			"Readings taken using ESP32",
			"Data Set",
			"Time\tDual-Range Force Sensor",
			"t\tForce",
			"seconds\tN",
		}
	case sensor.Photogate:
		return []string{
			"Vernier Format 2",
			"Photogate blocked times taken using ESP32",
			"Time\tTime",
			"ms\tmicroseconds",
		}
	case sensor.Motion:
		return []string{
			"Vernier Format 2",
			"Motion Detector Readings taken using ESP32",
			"Data Set",
			"Time for Echo\tDistance",
			"delta t\tD",
			"seconds\tcentimeters",
		}
	}
	return nil
}

// DataLine formats a reading as a tab separated data row. It reports false
// when the reading produces no row: failed reads, and photogate samples that
// are not a blocking edge.
func DataLine(r sensor.Reading) (string, bool) {
	if !r.OK() {
		return "", false
	}

	switch r.Kind {
	case sensor.Temperature:
		return fmt.Sprintf("%.3f\t%.2f", r.Timestamp, r.Float()), true
	case sensor.Force:
		var t float64
		if r.SeriesTime != nil {
			t = *r.SeriesTime
		}
		return fmt.Sprintf("%.3f\t%.2f", t, r.Float()), true
	case sensor.Photogate:
		if !r.Edge || r.TimeMs == nil || r.TimeUs == nil {
			return "", false
		}
		return fmt.Sprintf("%d\t%d", *r.TimeMs, *r.TimeUs), true
	case sensor.Motion:
		if r.DurationUs != nil {
			return fmt.Sprintf("%d\t%.2f", *r.DurationUs, r.Float()), true
		}
		return fmt.Sprintf("%.3f\t%.2f", r.Timestamp, r.Float()), true
	}
	return "", false
}
