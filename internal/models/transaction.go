package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Transaction states. PAID is final; CANCELED and ERROR may still become PAID
// when the provider confirms a payment late.
const (
	StatePending  = "PENDING"
	StatePaid     = "PAID"
	StateCanceled = "CANCELED"
	StateError    = "ERROR"
)

// Transaction is one checkout attempt, keyed by the token sent to the provider as order id.
type Transaction struct {
	Token         string          `gorm:"primaryKey;size:16" json:"token"`
	UserID        uuid.UUID       `gorm:"column:userid;type:uuid;index" json:"userid"`
	Component     string          `gorm:"size:100;not null;index:idx_paygw_tx_item,priority:1" json:"component"`
	PaymentArea   string          `gorm:"column:paymentarea;size:50;not null;index:idx_paygw_tx_item,priority:2" json:"paymentarea"`
	ItemID        int64           `gorm:"column:itemid;not null;index:idx_paygw_tx_item,priority:3" json:"itemid"`
	AccountID     int64           `gorm:"column:accountid;not null" json:"accountid"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency      string          `gorm:"size:3;not null" json:"currency"`
	GatewayKey    string          `gorm:"column:gateway_key;size:64;not null" json:"-"`
	RedirectURL   string          `gorm:"column:redirect_url;type:text" json:"redirect_url"`
	PinCode       string          `gorm:"column:pin_code;size:64" json:"-"`
	TransactionID *string         `gorm:"column:transaction_id;size:64;index" json:"transaction_id"`
	PaymentID     *uuid.UUID      `gorm:"column:paymentid;type:uuid" json:"paymentid"`
	State         string          `gorm:"size:16;not null;index;default:PENDING" json:"state"`
	CreatedAt     time.Time       `gorm:"column:timecreated" json:"timecreated"`
	UpdatedAt     time.Time       `gorm:"column:timemodified" json:"timemodified"`
}

func (Transaction) TableName() string {
	return "paygw_ifthenpay_tx"
}

func (t *Transaction) IsPaid() bool {
	return t.State == StatePaid
}

// CallbackLog records every webhook delivery, accepted or not.
type CallbackLog struct {
	BaseModel
	Token      string         `gorm:"size:64;index" json:"token"`
	Query      datatypes.JSON `json:"query"`
	Accepted   bool           `json:"accepted"`
	RemoteAddr string         `gorm:"size:64" json:"remote_addr"`
}

func (CallbackLog) TableName() string {
	return "paygw_ifthenpay_callbacks"
}
