package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/paygw/internal/models"
	"github.com/example/paygw/internal/utils"
)

// TransactionStore persists checkout attempts. Every state write is conditional
// on the row not being PAID, so concurrent webhook and poll writers cannot downgrade it.
type TransactionStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTransactionStore(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db, now: time.Now}
}

func (s *TransactionStore) withDB(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db, now: s.now}
}

// Create inserts t as a fresh PENDING attempt.
func (s *TransactionStore) Create(ctx context.Context, t *models.Transaction) error {
	t.State = models.StatePending
	t.TransactionID = nil
	t.PaymentID = nil
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *TransactionStore) Get(ctx context.Context, token string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TransactionStore) IsPaid(ctx context.Context, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("token = ? AND state = ?", token, models.StatePaid).
		Count(&count).Error
	return count > 0, err
}

// SetTransactionID records the provider id the first time one is reported.
func (s *TransactionStore) SetTransactionID(ctx context.Context, token, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("token = ? AND (transaction_id IS NULL OR transaction_id = '')", token).
		Updates(map[string]any{
			"transaction_id": transactionID,
			"timemodified":   s.now(),
		})
	return res.RowsAffected > 0, res.Error
}

// MarkPaid moves a non-PAID row to PAID. It reports whether this call did the transition.
func (s *TransactionStore) MarkPaid(ctx context.Context, token string, paymentID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("token = ? AND state <> ?", token, models.StatePaid).
		Updates(map[string]any{
			"paymentid":    paymentID,
			"state":        models.StatePaid,
			"timemodified": s.now(),
		})
	return res.RowsAffected > 0, res.Error
}

// MarkFailed records a cancel or error return. A PAID row keeps its state and only
// gets its modification time bumped.
func (s *TransactionStore) MarkFailed(ctx context.Context, token, state string) (bool, error) {
	if state != models.StateCanceled && state != models.StateError {
		return false, ErrInvalidFailureState
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("token = ? AND state <> ?", token, models.StatePaid).
		Updates(map[string]any{"state": state, "timemodified": now})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	res = s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("token = ?", token).
		Update("timemodified", now)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, ErrTransactionNotFound
	}
	return false, nil
}

// WithinLock runs fn in a database transaction holding the row lock on token.
// fn receives a store bound to that transaction.
func (s *TransactionStore) WithinLock(ctx context.Context, token string, fn func(tx *gorm.DB, store *TransactionStore, t *models.Transaction) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Transaction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", token).
			First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return err
		}
		return fn(tx, s.withDB(tx), &t)
	})
}

// TransactionFilter narrows the admin listing. Zero values match everything.
type TransactionFilter struct {
	State     string
	Component string
	UserID    uuid.UUID
}

func (f TransactionFilter) scope(db *gorm.DB) *gorm.DB {
	if f.State != "" {
		db = db.Where("state = ?", f.State)
	}
	if f.Component != "" {
		db = db.Where("component = ?", f.Component)
	}
	if f.UserID != uuid.Nil {
		db = db.Where("userid = ?", f.UserID)
	}
	return db
}

func (s *TransactionStore) List(ctx context.Context, filter TransactionFilter, page utils.Pagination) ([]models.Transaction, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).Scopes(filter.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Transaction
	err := s.db.WithContext(ctx).
		Scopes(filter.scope).
		Order("timecreated DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// RecordCallback appends a webhook delivery to the audit log.
func (s *TransactionStore) RecordCallback(ctx context.Context, entry *models.CallbackLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
