package payments

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
)

var referencePrefixes = map[enums.PaymentMethod]string{
	enums.PaymentMethodFullCard:    "CARD",
	enums.PaymentMethodAdvanceUPI:  "UPI",
	enums.PaymentMethodCashBooking: "CASH",
	enums.PaymentMethodSplitQR:     "SQR",
	enums.PaymentMethodSplitCash:   "SCSH",
}

// ManualReference builds the human-readable reference handed to the buyer for
// the manual leg of a purchase, e.g. WD-UPI-abc123-1f2e3d4c.
func ManualReference(method enums.PaymentMethod, vehicleID uuid.UUID, at time.Time) string {
	prefix, ok := referencePrefixes[method]
	if !ok {
		prefix = "TXN"
	}
	ts := strconv.FormatInt(at.Unix(), 36)
	short := strings.ReplaceAll(vehicleID.String(), "-", "")[:8]
	return fmt.Sprintf("WD-%s-%s-%s", prefix, ts, short)
}
