package sensor

import "time"

// Status tags a reading as usable or failed.
type Status string

const (
	StatusActive Status = "active"
	StatusError  Status = "error"
)

// Reading is one sensor sample. It is created fresh for every read and owned by
// the caller. An error reading never carries a value.
type Reading struct {
	Sensor    string   `json:"sensor_type"`
	Kind      Kind     `json:"kind"`
	VernierID int      `json:"vernier_id,omitempty"`
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit,omitempty"`
	Voltage   *float64 `json:"voltage,omitempty"`
	Raw       *int     `json:"raw,omitempty"`
	Status    Status   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Timestamp float64  `json:"timestamp"`
	UptimeMs  uint32   `json:"uptime_ms"`

	// Force
	LEDOn         *bool    `json:"led_on,omitempty"`
	ReadingNumber *uint64  `json:"reading_number,omitempty"`
	SeriesTime    *float64 `json:"series_time,omitempty"`

	// Photogate
	TimeMs *uint32 `json:"time_ms,omitempty"`
	TimeUs *uint32 `json:"time_us,omitempty"`
	Edge   bool    `json:"edge,omitempty"`

	// Motion (ultrasonic)
	DurationUs *uint32 `json:"duration_us,omitempty"`
}

// OK reports whether the reading carries a value.
func (r Reading) OK() bool {
	return r.Status == StatusActive
}

// Float returns the value or zero for an error reading.
func (r Reading) Float() float64 {
	if r.Value == nil {
		return 0
	}
	return *r.Value
}

func newReading(d Descriptor, now time.Time, uptimeMs uint32) Reading {
	return Reading{
		Sensor:    d.Name,
		Kind:      d.Kind,
		VernierID: d.Kind.ID(),
		Status:    StatusActive,
		Timestamp: unixSeconds(now),
		UptimeMs:  uptimeMs,
	}
}

// fail turns r into an error reading, clearing every measured field.
func (r Reading) fail(err error) Reading {
	r.Status = StatusError
	r.Error = err.Error()
	r.Value = nil
	r.Voltage = nil
	r.Raw = nil
	r.Unit = ""
	return r
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func ptr[T any](v T) *T { return &v }

// ErrorReading builds an error reading for d without touching hardware.
func ErrorReading(d Descriptor, now time.Time, uptimeMs uint32, err error) Reading {
	return newReading(d, now, uptimeMs).fail(err)
}
