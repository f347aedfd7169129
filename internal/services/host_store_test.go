package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/paygw/internal/models"
)

func TestHostStore_Payables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPayable(t, "49.90", "EUR")

	p, err := f.host.GetPayable(ctx, "enrol_fee", "fee", testItemID)
	require.NoError(t, err)
	assert.Equal(t, testAccountID, p.AccountID)
	assert.Equal(t, "49.90", p.Amount.StringFixed(2))
	assert.Equal(t, "EUR", p.Currency)

	url, err := f.host.SuccessURL(ctx, "enrol_fee", "fee", testItemID)
	require.NoError(t, err)
	assert.Equal(t, "https://lms.example.com/course/42", url)

	_, err = f.host.GetPayable(ctx, "enrol_fee", "fee", 999)
	require.ErrorIs(t, err, ErrPayableNotFound)
}

func TestHostStore_SettingsUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.host.GetSetting(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, f.host.SetSetting(ctx, "k", "one"))
	require.NoError(t, f.host.SetSetting(ctx, "k", "two"))
	v, err = f.host.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
	assert.EqualValues(t, 1, f.count(t, &models.PluginSetting{}))
}

func TestHostStore_GatewayConfigUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.host.GatewayConfig(ctx, testAccountID)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, f.host.SaveGatewayConfig(ctx, testAccountID, true, []byte(`{"a":1}`)))
	require.NoError(t, f.host.SaveGatewayConfig(ctx, testAccountID, false, []byte(`{"a":2}`)))

	cfg, err = f.host.GatewayConfig(ctx, testAccountID)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.False(t, cfg.Enabled)
	assert.JSONEq(t, `{"a":2}`, string(cfg.State))
	assert.EqualValues(t, 1, f.count(t, &models.GatewayConfig{}))
}

func TestHostStore_DeliverOrderIsIdempotentPerPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPayable(t, "10", "EUR")

	order := OrderRef{Component: "enrol_fee", PaymentArea: "fee", ItemID: testItemID, UserID: uuid.New()}
	paymentID, err := f.host.SavePayment(ctx, PaymentRecord{OrderRef: order, AccountID: testAccountID, Amount: decimal.NewFromInt(10), Currency: "EUR", Gateway: GatewayName})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, paymentID)

	require.NoError(t, f.host.DeliverOrder(ctx, order, paymentID))
	require.NoError(t, f.host.DeliverOrder(ctx, order, paymentID))
	assert.EqualValues(t, 1, f.count(t, &models.Delivery{}))
}
