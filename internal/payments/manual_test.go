package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
)

func splitTransaction(buyer, seller uuid.UUID) *models.Transaction {
	return &models.Transaction{
		ID:              uuid.New(),
		VehicleID:       uuid.New(),
		BuyerID:         buyer,
		SellerID:        seller,
		Method:          enums.PaymentMethodSplitQR,
		Stage:           enums.PurchaseStageFullPayment,
		Status:          enums.TransactionStatusPaymentInitiated,
		TotalAmount:     1_000_000,
		BookingAmount:   200_000,
		RemainingAmount: 800_000,
	}
}

func TestVerifyManualRecordsReference(t *testing.T) {
	buyer := uuid.New()
	txn := splitTransaction(buyer, uuid.New())
	ledger := newStubLedger(txn)
	f := newFixture(t, ledger, nil)

	got, err := f.svc.VerifyManual(context.Background(), VerifyManualInput{
		UserID:              buyer,
		TransactionID:       txn.ID,
		ManualTransactionID: "UPI-REF-123",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.ManualTransactionID == nil || *got.ManualTransactionID != "UPI-REF-123" {
		t.Fatalf("reference not recorded: %v", got.ManualTransactionID)
	}
	if got.ManualMethod == nil || *got.ManualMethod != enums.ManualMethodUPI {
		t.Fatalf("unexpected manual method %v", got.ManualMethod)
	}
	if got.Status != enums.TransactionStatusPaymentInitiated {
		t.Fatalf("verifyManual must not touch status, got %s", got.Status)
	}

	// Second call just overwrites.
	got, err = f.svc.VerifyManual(context.Background(), VerifyManualInput{
		UserID:              buyer,
		TransactionID:       txn.ID,
		ManualTransactionID: "UPI-REF-456",
	})
	if err != nil {
		t.Fatalf("expected idempotent overwrite got %v", err)
	}
	if *got.ManualTransactionID != "UPI-REF-456" {
		t.Fatalf("reference not overwritten: %s", *got.ManualTransactionID)
	}
}

func TestVerifyManualRejectsNonSplit(t *testing.T) {
	buyer := uuid.New()
	txn := splitTransaction(buyer, uuid.New())
	txn.Method = enums.PaymentMethodFullCard
	f := newFixture(t, newStubLedger(txn), nil)

	_, err := f.svc.VerifyManual(context.Background(), VerifyManualInput{
		UserID:              buyer,
		TransactionID:       txn.ID,
		ManualTransactionID: "REF",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestVerifyManualRejectsStranger(t *testing.T) {
	txn := splitTransaction(uuid.New(), uuid.New())
	f := newFixture(t, newStubLedger(txn), nil)

	_, err := f.svc.VerifyManual(context.Background(), VerifyManualInput{
		UserID:              uuid.New(),
		TransactionID:       txn.ID,
		ManualTransactionID: "REF",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}

func bookingTransaction(buyer, seller uuid.UUID) *models.Transaction {
	return &models.Transaction{
		ID:              uuid.New(),
		VehicleID:       uuid.New(),
		BuyerID:         buyer,
		SellerID:        seller,
		Method:          enums.PaymentMethodCashBooking,
		Stage:           enums.PurchaseStageInitialBooking,
		Status:          enums.TransactionStatusPaymentInitiated,
		TotalAmount:     1_000_000,
		BookingAmount:   50_000,
		RemainingAmount: 950_000,
	}
}

func TestConfirmBookingInitialReservesVehicle(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()
	txn := bookingTransaction(buyer, seller)
	f := newFixture(t, newStubLedger(txn), nil)

	got, err := f.svc.ConfirmBooking(context.Background(), ConfirmBookingInput{
		UserID:        seller,
		TransactionID: txn.ID,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.Status != enums.TransactionStatusPaymentCompleted {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if got.RemainingAmount != 950_000 {
		t.Fatalf("initial booking must keep the balance owed, got %d", got.RemainingAmount)
	}
	if got.VerificationSource == nil || *got.VerificationSource != enums.VerificationSourcePeerAttested {
		t.Fatalf("unexpected verification source %v", got.VerificationSource)
	}
	if len(f.gate.booked) != 1 || f.gate.booked[0] != txn.VehicleID {
		t.Fatalf("vehicle not booked: %v", f.gate.booked)
	}
	if len(f.gate.sold) != 0 {
		t.Fatal("initial booking must not sell the vehicle")
	}
}

func TestConfirmBookingBalanceSellsVehicle(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()
	txn := bookingTransaction(buyer, seller)
	txn.Stage = enums.PurchaseStageBalancePayment
	txn.BookingAmount = 0
	txn.TotalAmount = 950_000
	f := newFixture(t, newStubLedger(txn), nil)

	got, err := f.svc.ConfirmBooking(context.Background(), ConfirmBookingInput{
		UserID:        buyer,
		TransactionID: txn.ID,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.RemainingAmount != 0 {
		t.Fatalf("balance confirmation must zero the remaining amount, got %d", got.RemainingAmount)
	}
	if len(f.gate.sold) != 1 || f.gate.sold[0] != txn.VehicleID {
		t.Fatalf("vehicle not sold: %v", f.gate.sold)
	}
}

func TestConfirmBookingAlreadyCompletedIsNoOp(t *testing.T) {
	buyer := uuid.New()
	txn := bookingTransaction(buyer, uuid.New())
	txn.Status = enums.TransactionStatusPaymentCompleted
	f := newFixture(t, newStubLedger(txn), nil)

	got, err := f.svc.ConfirmBooking(context.Background(), ConfirmBookingInput{
		UserID:        buyer,
		TransactionID: txn.ID,
	})
	if err != nil {
		t.Fatalf("expected no-op success got %v", err)
	}
	if got.Status != enums.TransactionStatusPaymentCompleted {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if len(f.gate.booked) != 0 && len(f.gate.sold) != 0 {
		t.Fatal("duplicate confirmation must not touch the vehicle again")
	}
}

func TestConfirmBookingRejectsStranger(t *testing.T) {
	txn := bookingTransaction(uuid.New(), uuid.New())
	f := newFixture(t, newStubLedger(txn), nil)

	_, err := f.svc.ConfirmBooking(context.Background(), ConfirmBookingInput{
		UserID:        uuid.New(),
		TransactionID: txn.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestConfirmBookingRejectsSplit(t *testing.T) {
	buyer := uuid.New()
	txn := splitTransaction(buyer, uuid.New())
	f := newFixture(t, newStubLedger(txn), nil)

	_, err := f.svc.ConfirmBooking(context.Background(), ConfirmBookingInput{
		UserID:        buyer,
		TransactionID: txn.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestConfirmBookingStampsExternalRef(t *testing.T) {
	buyer := uuid.New()
	txn := bookingTransaction(buyer, uuid.New())
	f := newFixture(t, newStubLedger(txn), nil)

	ref := "CASH-SLIP-42"
	got, err := f.svc.ConfirmBooking(context.Background(), ConfirmBookingInput{
		UserID:        buyer,
		TransactionID: txn.ID,
		ExternalRef:   &ref,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.ManualReference == nil || *got.ManualReference != ref {
		t.Fatalf("external ref not stamped: %v", got.ManualReference)
	}
}
