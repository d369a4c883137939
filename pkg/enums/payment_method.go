package enums

import "fmt"

// PaymentMethod describes how a buyer intends to settle a vehicle purchase.
type PaymentMethod string

const (
	PaymentMethodFullCard    PaymentMethod = "full_card"
	PaymentMethodAdvanceUPI  PaymentMethod = "advance_upi"
	PaymentMethodCashBooking PaymentMethod = "cash_booking"
	PaymentMethodSplitQR     PaymentMethod = "split_qr"
	PaymentMethodSplitCash   PaymentMethod = "split_cash"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodFullCard,
	PaymentMethodAdvanceUPI,
	PaymentMethodCashBooking,
	PaymentMethodSplitQR,
	PaymentMethodSplitCash,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsSplit reports whether the method combines a manual leg with a card leg.
func (p PaymentMethod) IsSplit() bool {
	return p == PaymentMethodSplitQR || p == PaymentMethodSplitCash
}

// IsBooking reports whether the method reserves the vehicle with a token amount.
func (p PaymentMethod) IsBooking() bool {
	return p == PaymentMethodAdvanceUPI || p == PaymentMethodCashBooking
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
