package enums

import "fmt"

// VehicleStatus is the listing availability state. The payments core only ever
// moves it forward from approved to sold, through the availability gate.
type VehicleStatus string

const (
	VehicleStatusPending  VehicleStatus = "pending"
	VehicleStatusApproved VehicleStatus = "approved"
	VehicleStatusRejected VehicleStatus = "rejected"
	VehicleStatusSold     VehicleStatus = "sold"
)

var validVehicleStatuses = []VehicleStatus{
	VehicleStatusPending,
	VehicleStatusApproved,
	VehicleStatusRejected,
	VehicleStatusSold,
}

// String implements fmt.Stringer.
func (v VehicleStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VehicleStatus.
func (v VehicleStatus) IsValid() bool {
	for _, candidate := range validVehicleStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVehicleStatus converts raw input into a VehicleStatus.
func ParseVehicleStatus(value string) (VehicleStatus, error) {
	for _, candidate := range validVehicleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vehicle status %q", value)
}
