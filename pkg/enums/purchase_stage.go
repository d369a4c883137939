package enums

import "fmt"

// PurchaseStage distinguishes the semantic event a transaction represents,
// orthogonal to the payment method used to settle it.
type PurchaseStage string

const (
	PurchaseStageInitialBooking PurchaseStage = "initial_booking"
	PurchaseStageBalancePayment PurchaseStage = "balance_payment"
	PurchaseStageFullPayment    PurchaseStage = "full_payment"
)

var validPurchaseStages = []PurchaseStage{
	PurchaseStageInitialBooking,
	PurchaseStageBalancePayment,
	PurchaseStageFullPayment,
}

// String implements fmt.Stringer.
func (p PurchaseStage) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PurchaseStage.
func (p PurchaseStage) IsValid() bool {
	for _, candidate := range validPurchaseStages {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePurchaseStage converts raw input into a PurchaseStage.
func ParsePurchaseStage(value string) (PurchaseStage, error) {
	for _, candidate := range validPurchaseStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase stage %q", value)
}
