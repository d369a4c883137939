package enums

import "fmt"

// DeliveryStatus tracks post-sale vehicle handover logistics. It only becomes
// meaningful once the owning transaction reaches payment_completed.
type DeliveryStatus string

const (
	DeliveryStatusProcessing         DeliveryStatus = "processing"
	DeliveryStatusInspection         DeliveryStatus = "inspection"
	DeliveryStatusDocumentation      DeliveryStatus = "documentation"
	DeliveryStatusReadyForCollection DeliveryStatus = "ready_for_collection"
	DeliveryStatusCollected          DeliveryStatus = "collected"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusProcessing,
	DeliveryStatusInspection,
	DeliveryStatusDocumentation,
	DeliveryStatusReadyForCollection,
	DeliveryStatusCollected,
}

var deliveryOrder = map[DeliveryStatus]int{
	DeliveryStatusProcessing:         0,
	DeliveryStatusInspection:         1,
	DeliveryStatusDocumentation:      2,
	DeliveryStatusReadyForCollection: 3,
	DeliveryStatusCollected:          4,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// CanAdvanceTo reports whether target is a strictly forward step from d.
func (d DeliveryStatus) CanAdvanceTo(target DeliveryStatus) bool {
	from, ok := deliveryOrder[d]
	if !ok {
		return false
	}
	to, ok := deliveryOrder[target]
	if !ok {
		return false
	}
	return to > from
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
