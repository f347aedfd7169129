package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BaseModel gives host tables a UUID key filled in on insert.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BaseModel) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Payable is something a user can pay for, identified by component, area and item.
type Payable struct {
	BaseModel
	Component   string          `gorm:"size:100;not null;uniqueIndex:ux_payable_item,priority:1" json:"component"`
	PaymentArea string          `gorm:"column:paymentarea;size:50;not null;uniqueIndex:ux_payable_item,priority:2" json:"paymentarea"`
	ItemID      int64           `gorm:"column:itemid;not null;uniqueIndex:ux_payable_item,priority:3" json:"itemid"`
	AccountID   int64           `gorm:"column:accountid;not null;index" json:"accountid"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	Description string          `gorm:"size:255" json:"description"`
	SuccessURL  string          `gorm:"column:success_url;type:text" json:"success_url"`
}

// Payment is the host-side ledger row written once a transaction is finalized.
type Payment struct {
	BaseModel
	AccountID   int64           `gorm:"column:accountid;not null;index" json:"accountid"`
	Component   string          `gorm:"size:100;not null" json:"component"`
	PaymentArea string          `gorm:"column:paymentarea;size:50;not null" json:"paymentarea"`
	ItemID      int64           `gorm:"column:itemid;not null" json:"itemid"`
	UserID      uuid.UUID       `gorm:"column:userid;type:uuid;index" json:"userid"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	Gateway     string          `gorm:"size:50;not null" json:"gateway"`
}

// Delivery marks an order as handed over to the user. One per payment.
type Delivery struct {
	BaseModel
	PaymentID   uuid.UUID `gorm:"column:paymentid;type:uuid;uniqueIndex" json:"paymentid"`
	Component   string    `gorm:"size:100;not null" json:"component"`
	PaymentArea string    `gorm:"column:paymentarea;size:50;not null" json:"paymentarea"`
	ItemID      int64     `gorm:"column:itemid;not null" json:"itemid"`
	UserID      uuid.UUID `gorm:"column:userid;type:uuid;index" json:"userid"`
}

// GatewayConfig holds the saved form state of one gateway for one payment account.
type GatewayConfig struct {
	BaseModel
	AccountID int64          `gorm:"column:accountid;not null;uniqueIndex:ux_gateway_account,priority:1" json:"accountid"`
	Gateway   string         `gorm:"size:50;not null;uniqueIndex:ux_gateway_account,priority:2" json:"gateway"`
	Enabled   bool           `json:"enabled"`
	Config    datatypes.JSON `json:"config"`
}

func (GatewayConfig) TableName() string {
	return "payment_gateway_configs"
}

// PluginSetting is a plugin scoped key/value setting.
type PluginSetting struct {
	BaseModel
	Plugin string `gorm:"size:100;not null;uniqueIndex:ux_plugin_setting,priority:1" json:"plugin"`
	Name   string `gorm:"size:100;not null;uniqueIndex:ux_plugin_setting,priority:2" json:"name"`
	Value  string `gorm:"type:text" json:"value"`
}
