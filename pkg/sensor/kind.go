package sensor

import "fmt"

// Kind is the closed set of sensor types the service understands.
//
// The numeric values of the four Vernier kinds are the sensor ids used on the
// wire (vernier_id, active_sensor), so changing them breaks clients.
type Kind uint8

const (
	Analog      Kind = 0 // generic linear sensor, unit from the descriptor
	Temperature Kind = 1 // °C
	Force       Kind = 2 // N
	Photogate   Kind = 3 // blocked/open
	Motion      Kind = 4 // cm (ultrasonic) or g (accelerometer fallback)
)

var kindNames = [...]string{"analog", "temperature", "force", "photogate", "motion"}

// VernierKinds lists the selectable kinds in id order.
var VernierKinds = []Kind{Temperature, Force, Photogate, Motion}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// Vernier reports whether k is selectable as the active sensor.
func (k Kind) Vernier() bool {
	return k >= Temperature && k <= Motion
}

// ID returns the Vernier sensor id, 0 for generic analog sensors.
func (k Kind) ID() int {
	if !k.Vernier() {
		return 0
	}
	return int(k)
}

// ParseKind converts the text form back into a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return Analog, fmt.Errorf("unknown sensor kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid sensor kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
