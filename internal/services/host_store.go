package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/paygw/internal/models"
)

const pluginName = "paygw_ifthenpay"

// HostStore implements the host collaborators on the service's own tables.
type HostStore struct {
	db *gorm.DB
}

func NewHostStore(db *gorm.DB) *HostStore {
	return &HostStore{db: db}
}

func (s *HostStore) WithTx(tx *gorm.DB) Fulfiller {
	return &HostStore{db: tx}
}

func (s *HostStore) findPayable(ctx context.Context, component, paymentArea string, itemID int64) (*models.Payable, error) {
	var p models.Payable
	err := s.db.WithContext(ctx).
		Where("component = ? AND paymentarea = ? AND itemid = ?", component, paymentArea, itemID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPayableNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *HostStore) GetPayable(ctx context.Context, component, paymentArea string, itemID int64) (*Payable, error) {
	p, err := s.findPayable(ctx, component, paymentArea, itemID)
	if err != nil {
		return nil, err
	}
	return &Payable{
		AccountID:   p.AccountID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
	}, nil
}

func (s *HostStore) SuccessURL(ctx context.Context, component, paymentArea string, itemID int64) (string, error) {
	p, err := s.findPayable(ctx, component, paymentArea, itemID)
	if err != nil {
		return "", err
	}
	return p.SuccessURL, nil
}

func (s *HostStore) GatewayConfig(ctx context.Context, accountID int64) (*GatewayConfigRecord, error) {
	var cfg models.GatewayConfig
	err := s.db.WithContext(ctx).
		Where("accountid = ? AND gateway = ?", accountID, GatewayName).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &GatewayConfigRecord{Enabled: cfg.Enabled, State: []byte(cfg.Config)}, nil
}

func (s *HostStore) SaveGatewayConfig(ctx context.Context, accountID int64, enabled bool, state []byte) error {
	cfg := models.GatewayConfig{
		AccountID: accountID,
		Gateway:   GatewayName,
		Enabled:   enabled,
		Config:    state,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "accountid"}, {Name: "gateway"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "config", "updated_at"}),
	}).Create(&cfg).Error
}

func (s *HostStore) GetSetting(ctx context.Context, name string) (string, error) {
	var setting models.PluginSetting
	err := s.db.WithContext(ctx).
		Where("plugin = ? AND name = ?", pluginName, name).
		First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *HostStore) SetSetting(ctx context.Context, name, value string) error {
	setting := models.PluginSetting{Plugin: pluginName, Name: name, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plugin"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
}

func (s *HostStore) SavePayment(ctx context.Context, rec PaymentRecord) (uuid.UUID, error) {
	payment := models.Payment{
		AccountID:   rec.AccountID,
		Component:   rec.Component,
		PaymentArea: rec.PaymentArea,
		ItemID:      rec.ItemID,
		UserID:      rec.UserID,
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		Gateway:     rec.Gateway,
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return uuid.Nil, fmt.Errorf("create payment: %w", err)
	}
	return payment.ID, nil
}

func (s *HostStore) DeliverOrder(ctx context.Context, order OrderRef, paymentID uuid.UUID) error {
	if _, err := s.findPayable(ctx, order.Component, order.PaymentArea, order.ItemID); err != nil {
		return err
	}
	delivery := models.Delivery{
		PaymentID:   paymentID,
		Component:   order.Component,
		PaymentArea: order.PaymentArea,
		ItemID:      order.ItemID,
		UserID:      order.UserID,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "paymentid"}}, DoNothing: true}).
		Create(&delivery).Error
}
