package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wheeldeal/wheeldeal-backend/internal/payments"
	pkgauth "github.com/wheeldeal/wheeldeal-backend/pkg/auth"
	"github.com/wheeldeal/wheeldeal-backend/pkg/config"
	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	"github.com/wheeldeal/wheeldeal-backend/pkg/logger"
	"github.com/wheeldeal/wheeldeal-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubRoutePayments struct {
	getTransaction func(ctx context.Context, userID uuid.UUID, role enums.UserRole, id uuid.UUID) (*models.Transaction, error)
	finalize       func(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
}

func (s *stubRoutePayments) CreateCheckout(ctx context.Context, input payments.CreateCheckoutInput) (*payments.CheckoutResult, error) {
	return &payments.CheckoutResult{}, nil
}

func (s *stubRoutePayments) GetTransaction(ctx context.Context, userID uuid.UUID, role enums.UserRole, id uuid.UUID) (*models.Transaction, error) {
	if s.getTransaction != nil {
		return s.getTransaction(ctx, userID, role, id)
	}
	return &models.Transaction{ID: id}, nil
}

func (s *stubRoutePayments) ListBuyerTransactions(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	return nil, "", nil
}

func (s *stubRoutePayments) ListSellerTransactions(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	return nil, "", nil
}

func (s *stubRoutePayments) VerifyManual(ctx context.Context, input payments.VerifyManualInput) (*models.Transaction, error) {
	return &models.Transaction{}, nil
}

func (s *stubRoutePayments) ConfirmBooking(ctx context.Context, input payments.ConfirmBookingInput) (*models.Transaction, error) {
	return &models.Transaction{}, nil
}

func (s *stubRoutePayments) CompleteBySession(ctx context.Context, sessionID, paymentID, trigger string) (bool, error) {
	return false, nil
}

func (s *stubRoutePayments) CancelBySession(ctx context.Context, sessionID, reason string) (bool, error) {
	return false, nil
}

func (s *stubRoutePayments) FailBySession(ctx context.Context, sessionID, code, description string) (bool, error) {
	return false, nil
}

func (s *stubRoutePayments) FailByID(ctx context.Context, transactionID uuid.UUID, code, description string) (bool, error) {
	return false, nil
}

func (s *stubRoutePayments) PollVerify(ctx context.Context, userID, transactionID uuid.UUID) (*payments.PollVerifyResult, error) {
	return &payments.PollVerifyResult{}, nil
}

func (s *stubRoutePayments) RecordClientFailure(ctx context.Context, input payments.RecordClientFailureInput) (*models.Transaction, error) {
	return &models.Transaction{}, nil
}

func (s *stubRoutePayments) Finalize(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	if s.finalize != nil {
		return s.finalize(ctx, transactionID)
	}
	return &models.Transaction{ID: transactionID}, nil
}

func (s *stubRoutePayments) Refund(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error) {
	return &models.Transaction{ID: transactionID}, nil
}

func (s *stubRoutePayments) UpdateDeliveryStatus(ctx context.Context, input payments.UpdateDeliveryInput) (*models.Transaction, error) {
	return &models.Transaction{}, nil
}

func (s *stubRoutePayments) ConfirmCollection(ctx context.Context, input payments.UpdateDeliveryInput) (*models.Transaction, error) {
	return &models.Transaction{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config, svc payments.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(RouterParams{
		Config:   cfg,
		Logger:   logg,
		DB:       stubPinger{},
		Payments: svc,
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	return buildTokenWithUserID(t, cfg, role, uuid.New())
}

func buildTokenWithUserID(t *testing.T, cfg *config.Config, role enums.UserRole, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig(), &stubRoutePayments{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReadyWithoutCache(t *testing.T) {
	// RouterParams.Redis stays nil here; readiness must report on the
	// database alone instead of calling into a nil cache client.
	router := newTestRouter(testConfig(), &stubRoutePayments{})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPaymentRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), &stubRoutePayments{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPaymentRoutesSucceedWithJWT(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()
	transactionID := uuid.New()
	svc := &stubRoutePayments{
		getTransaction: func(ctx context.Context, uid uuid.UUID, role enums.UserRole, id uuid.UUID) (*models.Transaction, error) {
			if uid != userID {
				t.Fatalf("token user id not forwarded: got %s", uid)
			}
			if id != transactionID {
				t.Fatalf("path transaction id not forwarded: got %s", id)
			}
			return &models.Transaction{ID: id}, nil
		},
	}
	router := newTestRouter(cfg, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+transactionID.String()+"/", nil)
	req.Header.Set("Authorization", "Bearer "+buildTokenWithUserID(t, cfg, enums.UserRoleBuyer, userID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubRoutePayments{})
	transactionID := uuid.New()

	buyer := httptest.NewRequest(http.MethodPost, "/api/v1/admin/payments/"+transactionID.String()+"/finalize", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodPost, "/api/v1/admin/payments/"+transactionID.String()+"/finalize", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d: %s", resp.Code, resp.Body.String())
	}
}
