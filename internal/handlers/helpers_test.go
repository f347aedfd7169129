package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/paygw/internal/middleware"
	"github.com/example/paygw/internal/models"
	"github.com/example/paygw/internal/services"
	"github.com/example/paygw/internal/testutil"
	"github.com/example/paygw/internal/utils"
)

const (
	testSecret     = "handler-secret"
	testBaseURL    = "https://pay.example.com"
	testFallback   = "https://lms.example.com/"
	testSuccessURL = "https://lms.example.com/course/42"
)

type CheckoutMock struct {
	mock.Mock
}

func (m *CheckoutMock) Start(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CheckoutResult), args.Error(1)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(ctx context.Context, token, transactionID string) (bool, error) {
	args := m.Called(ctx, token, transactionID)
	return args.Bool(0), args.Error(1)
}

type ProcessorMock struct {
	mock.Mock
}

func (m *ProcessorMock) Process(ctx context.Context, token, amount, apk string) bool {
	args := m.Called(ctx, token, amount, apk)
	return args.Bool(0)
}

type SettingsMock struct {
	mock.Mock
}

func (m *SettingsMock) BackofficeKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *SettingsMock) SaveBackofficeKey(ctx context.Context, value string) error {
	return m.Called(ctx, value).Error(0)
}

type GatewayFormMock struct {
	mock.Mock
}

func (m *GatewayFormMock) Build(ctx context.Context, accountID int64) (*services.GatewayFormModel, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.GatewayFormModel), args.Error(1)
}

func (m *GatewayFormMock) Save(ctx context.Context, accountID int64, enabled bool, rawState string) error {
	return m.Called(ctx, accountID, enabled, rawState).Error(0)
}

func (m *GatewayFormMock) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type env struct {
	app       *fiber.App
	db        *gorm.DB
	store     *services.TransactionStore
	checkout  *CheckoutMock
	verifier  *VerifierMock
	processor *ProcessorMock
	settings  *SettingsMock
	form      *GatewayFormMock
	userID    uuid.UUID
	session   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	e := &env{
		db:        db,
		store:     services.NewTransactionStore(db),
		checkout:  &CheckoutMock{},
		verifier:  &VerifierMock{},
		processor: &ProcessorMock{},
		settings:  &SettingsMock{},
		form:      &GatewayFormMock{},
		userID:    uuid.New(),
	}

	session, err := utils.IssueSessionToken(testSecret, e.userID, time.Hour)
	require.NoError(t, err)
	e.session = session

	payment := NewPaymentHandler(e.checkout, e.store, e.verifier, e.processor, services.NewHostStore(db),
		PaymentHandlerConfig{BaseURL: testBaseURL, FallbackURL: testFallback, DefaultLang: "pt"}, zerolog.Nop())
	admin := NewAdminHandler(e.settings, e.form, e.store)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zerolog.Nop())})
	auth := middleware.AuthMiddleware(testSecret)
	app.Get("/pay", auth, payment.Pay)
	app.Get("/return", auth, payment.Return)
	app.Get("/cancel", auth, payment.Cancel)
	app.Get("/webhook", payment.Webhook)
	app.Get("/admin/settings", admin.GetSettings)
	app.Put("/admin/settings", admin.UpdateSettings)
	app.Get("/admin/gateways/:accountId", admin.GetGateway)
	app.Put("/admin/gateways/:accountId", admin.UpdateGateway)
	app.Get("/admin/transactions", admin.ListTransactions)
	e.app = app

	t.Cleanup(func() {
		e.checkout.AssertExpectations(t)
		e.verifier.AssertExpectations(t)
		e.processor.AssertExpectations(t)
		e.settings.AssertExpectations(t)
		e.form.AssertExpectations(t)
	})
	return e
}

func (e *env) seedPayable(t *testing.T) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Payable{
		Component:   "enrol_fee",
		PaymentArea: "fee",
		ItemID:      42,
		AccountID:   7,
		Amount:      decimal.RequireFromString("10.00"),
		Currency:    "EUR",
		Description: "Course fee",
		SuccessURL:  testSuccessURL,
	}).Error)
}

func (e *env) seedTransaction(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, e.store.Create(context.Background(), &models.Transaction{
		Token:       token,
		UserID:      e.userID,
		Component:   "enrol_fee",
		PaymentArea: "fee",
		ItemID:      42,
		AccountID:   7,
		Amount:      decimal.RequireFromString("10.00"),
		Currency:    "EUR",
		GatewayKey:  "GK-AAA-111",
		RedirectURL: "https://gateway.example.com/" + token,
	}))
}

func (e *env) setState(t *testing.T, token, state string) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Transaction{}).Where("token = ?", token).Update("state", state).Error)
}

func (e *env) state(t *testing.T, token string) string {
	t.Helper()
	got, err := e.store.Get(context.Background(), token)
	require.NoError(t, err)
	return got.State
}

// do runs req against the app. Buyer routes get the session header when authed is true.
func (e *env) do(t *testing.T, req *http.Request, authed bool) (*http.Response, string) {
	t.Helper()
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.session)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func get(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}
