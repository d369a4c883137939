package enums

import "fmt"

// TransactionStatus tracks the lifecycle of a purchase attempt.
type TransactionStatus string

const (
	TransactionStatusPending          TransactionStatus = "pending"
	TransactionStatusPaymentInitiated TransactionStatus = "payment_initiated"
	TransactionStatusPaymentCompleted TransactionStatus = "payment_completed"
	TransactionStatusPaymentFailed    TransactionStatus = "payment_failed"
	TransactionStatusCompleted        TransactionStatus = "completed"
	TransactionStatusCancelled        TransactionStatus = "cancelled"
	TransactionStatusRefunded         TransactionStatus = "refunded"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusPaymentInitiated,
	TransactionStatusPaymentCompleted,
	TransactionStatusPaymentFailed,
	TransactionStatusCompleted,
	TransactionStatusCancelled,
	TransactionStatusRefunded,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transition may leave this status.
func (t TransactionStatus) IsTerminal() bool {
	switch t {
	case TransactionStatusCancelled, TransactionStatusPaymentFailed, TransactionStatusRefunded:
		return true
	default:
		return false
	}
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
