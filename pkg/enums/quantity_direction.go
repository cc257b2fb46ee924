package enums

import "fmt"

// QuantityDirection is the single-step change applied to a ticket quantity.
type QuantityDirection string

const (
	QuantityIncrease QuantityDirection = "increase"
	QuantityDecrease QuantityDirection = "decrease"
)

var validQuantityDirections = []QuantityDirection{
	QuantityIncrease,
	QuantityDecrease,
}

// String implements fmt.Stringer.
func (d QuantityDirection) String() string {
	return string(d)
}

// IsValid reports whether the value is a known QuantityDirection.
func (d QuantityDirection) IsValid() bool {
	for _, candidate := range validQuantityDirections {
		if candidate == d {
			return true
		}
	}
	return false
}

// Delta returns +1 for increase, -1 for decrease and 0 otherwise.
func (d QuantityDirection) Delta() int {
	switch d {
	case QuantityIncrease:
		return 1
	case QuantityDecrease:
		return -1
	}
	return 0
}

// ParseQuantityDirection converts raw input into a QuantityDirection.
func ParseQuantityDirection(value string) (QuantityDirection, error) {
	for _, candidate := range validQuantityDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quantity direction %q", value)
}
