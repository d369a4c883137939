package payments

import (
	"github.com/shopspring/decimal"

	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
)

// DefaultBookingPercent is the token share collected up front to reserve a
// vehicle when no override is configured.
const DefaultBookingPercent int64 = 5

// Breakdown is the amount split for one purchase attempt. All values are whole
// currency units. Booking is the manual/token portion, Remaining the card-payable
// residual still owed after the manual portion; Booking + Remaining == Total at
// creation time.
type Breakdown struct {
	Total     int64
	Booking   int64
	Remaining int64
}

// AmountInput carries everything the calculator needs. AmountOwed is the
// vehicle price for a new purchase, or the outstanding balance when the attempt
// settles a prior booking.
type AmountInput struct {
	Method         enums.PaymentMethod
	AmountOwed     int64
	QRAmount       int64
	CashAmount     int64
	BookingPercent int64
	IsBalance      bool
}

// BookingToken computes the up-front reservation token: percent of total,
// rounded half-up to whole currency units.
func BookingToken(total, percent int64) int64 {
	if total <= 0 || percent <= 0 {
		return 0
	}
	token := decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return token.IntPart()
}

// ComputeAmounts derives the amount breakdown for a purchase attempt. Pure:
// no I/O, deterministic for the same input.
func ComputeAmounts(input AmountInput) (Breakdown, error) {
	if input.AmountOwed <= 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "amount owed must be positive")
	}
	percent := input.BookingPercent
	if percent <= 0 {
		percent = DefaultBookingPercent
	}

	switch input.Method {
	case enums.PaymentMethodFullCard:
		return Breakdown{
			Total:     input.AmountOwed,
			Booking:   0,
			Remaining: input.AmountOwed,
		}, nil

	case enums.PaymentMethodAdvanceUPI:
		if input.IsBalance {
			return Breakdown{}, pkgerrors.New(pkgerrors.CodeStateConflict, "advance booking is not valid against an existing booking")
		}
		token := BookingToken(input.AmountOwed, percent)
		return Breakdown{
			Total:     input.AmountOwed,
			Booking:   token,
			Remaining: input.AmountOwed - token,
		}, nil

	case enums.PaymentMethodCashBooking:
		if input.IsBalance {
			// Balance leg of a prior booking: nothing is collected manually,
			// the whole outstanding amount is card-payable.
			return Breakdown{
				Total:     input.AmountOwed,
				Booking:   0,
				Remaining: input.AmountOwed,
			}, nil
		}
		token := BookingToken(input.AmountOwed, percent)
		return Breakdown{
			Total:     input.AmountOwed,
			Booking:   token,
			Remaining: input.AmountOwed - token,
		}, nil

	case enums.PaymentMethodSplitQR, enums.PaymentMethodSplitCash:
		return splitBreakdown(input)

	default:
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"method": input.Method.String()})
	}
}

func splitBreakdown(input AmountInput) (Breakdown, error) {
	if input.QRAmount < 0 || input.CashAmount < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "manual amounts must not be negative")
	}
	manual := input.QRAmount + input.CashAmount
	if manual <= 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "a split payment requires a positive manual amount")
	}
	if manual >= input.AmountOwed {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "manual amount must be less than the amount owed").
			WithDetails(map[string]any{"manual_amount": manual, "amount_owed": input.AmountOwed})
	}
	return Breakdown{
		Total:     input.AmountOwed,
		Booking:   manual,
		Remaining: input.AmountOwed - manual,
	}, nil
}

// manualMethodForSplit infers how the manual leg of a split was collected.
func manualMethodForSplit(method enums.PaymentMethod) enums.ManualMethod {
	if method == enums.PaymentMethodSplitCash {
		return enums.ManualMethodCash
	}
	return enums.ManualMethodUPI
}
