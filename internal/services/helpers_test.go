package services

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/paygw/internal/models"
	"github.com/example/paygw/internal/testutil"
)

const (
	testGatewayKey = "GK-AAA-111"
	testItemID     = int64(42)
	testAccountID  = int64(7)
)

var nopLog = zerolog.Nop()

type fixture struct {
	db    *gorm.DB
	store *TransactionStore
	host  *HostStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	return &fixture{db: db, store: NewTransactionStore(db), host: NewHostStore(db)}
}

func (f *fixture) seedPayable(t *testing.T, amount, currency string) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Payable{
		Component:   "enrol_fee",
		PaymentArea: "fee",
		ItemID:      testItemID,
		AccountID:   testAccountID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    currency,
		Description: "Course fee",
		SuccessURL:  "https://lms.example.com/course/42",
	}).Error)
}

func (f *fixture) seedTransaction(t *testing.T, token, amount string) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		Token:       token,
		UserID:      uuid.New(),
		Component:   "enrol_fee",
		PaymentArea: "fee",
		ItemID:      testItemID,
		AccountID:   testAccountID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "EUR",
		GatewayKey:  testGatewayKey,
		RedirectURL: "https://gateway.example.com/pay/" + token,
	}
	require.NoError(t, f.store.Create(context.Background(), tx))
	return tx
}

func (f *fixture) state(t *testing.T, token string) string {
	t.Helper()
	tx, err := f.store.Get(context.Background(), token)
	require.NoError(t, err)
	return tx.State
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func apkFor(key string) string {
	return base64.StdEncoding.EncodeToString([]byte(key))
}
