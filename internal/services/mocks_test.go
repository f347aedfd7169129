package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/example/paygw/internal/ifthenpay"
)

type APIClientMock struct {
	mock.Mock
}

func (m *APIClientMock) AvailableMethods(ctx context.Context) ([]ifthenpay.MethodRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ifthenpay.MethodRow), args.Error(1)
}

func (m *APIClientMock) GatewayKeys(ctx context.Context) ([]ifthenpay.GatewayKeyRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ifthenpay.GatewayKeyRow), args.Error(1)
}

func (m *APIClientMock) AccountsByGateway(ctx context.Context, gatewayKey string) ([]ifthenpay.AccountRow, error) {
	args := m.Called(ctx, gatewayKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ifthenpay.AccountRow), args.Error(1)
}

func (m *APIClientMock) CreatePayByLink(ctx context.Context, gatewayKey string, payload ifthenpay.PayByLinkPayload) (*ifthenpay.PayByLink, error) {
	args := m.Called(ctx, gatewayKey, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ifthenpay.PayByLink), args.Error(1)
}

func (m *APIClientMock) ActivateCallback(ctx context.Context, gatewayKey, callbackURL string) (bool, error) {
	args := m.Called(ctx, gatewayKey, callbackURL)
	return args.Bool(0), args.Error(1)
}

func (m *APIClientMock) TransactionStatus(ctx context.Context, transactionID string) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

type ClientSourceMock struct {
	mock.Mock
}

func (m *ClientSourceMock) Client(ctx context.Context) (APIClient, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(APIClient), args.Error(1)
}

type FulfillerMock struct {
	mock.Mock
}

func (m *FulfillerMock) WithTx(*gorm.DB) Fulfiller {
	return m
}

func (m *FulfillerMock) SavePayment(ctx context.Context, rec PaymentRecord) (uuid.UUID, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *FulfillerMock) DeliverOrder(ctx context.Context, order OrderRef, paymentID uuid.UUID) error {
	args := m.Called(ctx, order, paymentID)
	return args.Error(0)
}

type ProcessorMock struct {
	mock.Mock
}

func (m *ProcessorMock) Process(ctx context.Context, token, amount, apk string) bool {
	args := m.Called(ctx, token, amount, apk)
	return args.Bool(0)
}

// notifyRecorder collects paid notifications sent from the reconciler goroutine.
type notifyRecorder struct {
	ch chan PaymentReceived
}

func newNotifyRecorder() *notifyRecorder {
	return &notifyRecorder{ch: make(chan PaymentReceived, 8)}
}

func (n *notifyRecorder) NotifyPaymentReceived(_ context.Context, p PaymentReceived) error {
	n.ch <- p
	return nil
}
