package sensor

import (
	"errors"
	"fmt"

	"github.com/itohio/wally/pkg/hal"
)

// Descriptor describes one wired sensor. It is built once at startup from the
// static hardware configuration and only ever passed by value afterwards.
type Descriptor struct {
	Name      string
	Kind      Kind
	Pin       hal.Pin // analog channel or digital input
	Trigger   hal.Pin // ultrasonic trigger output
	Echo      hal.Pin // ultrasonic echo input
	Indicator hal.Pin // optional LED output
	Slope     float64
	Offset    float64
	Unit      string
}

// Ultrasonic reports whether a Motion descriptor uses the trigger/echo pair
// rather than the accelerometer fallback.
func (d Descriptor) Ultrasonic() bool {
	return d.Kind == Motion && d.Trigger.Wired() && d.Echo.Wired()
}

// Validate rejects descriptors that could not be read at runtime.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return errors.New("sensor name is empty")
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("sensor %s: invalid kind %d", d.Name, uint8(d.Kind))
	}

	switch {
	case d.Kind == Motion && d.Trigger.Wired() != d.Echo.Wired():
		return fmt.Errorf("sensor %s: ultrasonic needs both trigger and echo pins", d.Name)
	case d.Ultrasonic():
		if d.Trigger == d.Echo {
			return fmt.Errorf("sensor %s: trigger and echo share pin %d", d.Name, d.Trigger)
		}
	case !d.Pin.Wired():
		return fmt.Errorf("sensor %s: no input pin", d.Name)
	}

	return nil
}

// Descriptors is the validated, immutable sensor table.
type Descriptors []Descriptor

// NewDescriptors validates the table. Names must be unique and each Vernier
// kind may appear at most once, so the active sensor always resolves to a
// single descriptor.
func NewDescriptors(list ...Descriptor) (Descriptors, error) {
	names := make(map[string]struct{}, len(list))
	kinds := make(map[Kind]string)

	out := make(Descriptors, 0, len(list))
	for _, d := range list {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := names[d.Name]; dup {
			return nil, fmt.Errorf("duplicate sensor name %q", d.Name)
		}
		names[d.Name] = struct{}{}

		if d.Kind.Vernier() {
			if other, dup := kinds[d.Kind]; dup {
				return nil, fmt.Errorf("sensors %q and %q both have kind %s", other, d.Name, d.Kind)
			}
			kinds[d.Kind] = d.Name
		}
		out = append(out, d)
	}
	return out, nil
}

// ByKind returns the descriptor wired for a Vernier kind.
func (ds Descriptors) ByKind(k Kind) (Descriptor, bool) {
	for _, d := range ds {
		if d.Kind == k {
			return d, true
		}
	}
	return Descriptor{}, false
}
