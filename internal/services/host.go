package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GatewayName identifies this gateway in host tables.
const GatewayName = "ifthenpay"

// Payable is what the host charges for an item. Amounts never come from the client.
type Payable struct {
	AccountID   int64
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// OrderRef identifies an order on the host side.
type OrderRef struct {
	Component   string
	PaymentArea string
	ItemID      int64
	UserID      uuid.UUID
}

// PaymentRecord is what the host stores when a payment is finalized.
type PaymentRecord struct {
	OrderRef
	AccountID int64
	Amount    decimal.Decimal
	Currency  string
	Gateway   string
}

// GatewayConfigRecord is the saved configuration of this gateway for a payment account.
type GatewayConfigRecord struct {
	Enabled bool
	State   []byte
}

type PayableResolver interface {
	GetPayable(ctx context.Context, component, paymentArea string, itemID int64) (*Payable, error)
}

type SuccessURLResolver interface {
	SuccessURL(ctx context.Context, component, paymentArea string, itemID int64) (string, error)
}

// GatewayConfigStore returns (nil, nil) when nothing was saved for the account.
type GatewayConfigStore interface {
	GatewayConfig(ctx context.Context, accountID int64) (*GatewayConfigRecord, error)
	SaveGatewayConfig(ctx context.Context, accountID int64, enabled bool, state []byte) error
}

type SettingsStore interface {
	GetSetting(ctx context.Context, name string) (string, error)
	SetSetting(ctx context.Context, name, value string) error
}

type Fulfiller interface {
	SavePayment(ctx context.Context, rec PaymentRecord) (uuid.UUID, error)
	DeliverOrder(ctx context.Context, order OrderRef, paymentID uuid.UUID) error
}

// TxFulfiller binds a Fulfiller to the transaction that holds the payment row lock.
type TxFulfiller interface {
	WithTx(tx *gorm.DB) Fulfiller
}
