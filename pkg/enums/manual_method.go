package enums

import "fmt"

// ManualMethod names how a non-gateway payment leg was collected.
type ManualMethod string

const (
	ManualMethodUPI  ManualMethod = "upi"
	ManualMethodCash ManualMethod = "cash"
	ManualMethodCard ManualMethod = "card"
)

var validManualMethods = []ManualMethod{
	ManualMethodUPI,
	ManualMethodCash,
	ManualMethodCard,
}

// String implements fmt.Stringer.
func (m ManualMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ManualMethod.
func (m ManualMethod) IsValid() bool {
	for _, candidate := range validManualMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseManualMethod converts raw input into a ManualMethod.
func ParseManualMethod(value string) (ManualMethod, error) {
	for _, candidate := range validManualMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid manual method %q", value)
}
