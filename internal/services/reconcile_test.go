package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/paygw/internal/models"
)

func TestReconciler_PaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPayable(t, "12.30", "EUR")
	f.seedTransaction(t, "tok00001", "12.30")
	notes := newNotifyRecorder()
	r := NewReconciler(f.store, f.host, notes, nopLog)

	assert.True(t, r.Process(ctx, "tok00001", "12.30", apkFor(testGatewayKey)))
	assert.True(t, r.Process(ctx, "tok00001", "12.30", apkFor(testGatewayKey)))

	got, err := f.store.Get(ctx, "tok00001")
	require.NoError(t, err)
	assert.Equal(t, models.StatePaid, got.State)
	require.NotNil(t, got.PaymentID)
	assert.EqualValues(t, 1, f.count(t, &models.Payment{}))
	assert.EqualValues(t, 1, f.count(t, &models.Delivery{}))

	select {
	case n := <-notes.ch:
		assert.Equal(t, "tok00001", n.Token)
		assert.Equal(t, *got.PaymentID, n.PaymentID)
	case <-time.After(2 * time.Second):
		t.Fatal("no paid notification")
	}
	select {
	case <-notes.ch:
		t.Fatal("second notification for the same transaction")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReconciler_Rejections(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		token   string
		amount  string
		apk     string
		wantErr error
	}{
		{name: "unknown token", token: "nope", amount: "12.30", apk: apkFor(testGatewayKey), wantErr: ErrTransactionNotFound},
		{name: "wrong key", token: "tok00001", amount: "12.30", apk: apkFor("OTHER"), wantErr: ErrKeyMismatch},
		{name: "key not base64", token: "tok00001", amount: "12.30", apk: "%%%", wantErr: ErrKeyMismatch},
		{name: "raw key instead of base64", token: "tok00001", amount: "12.30", apk: testGatewayKey, wantErr: ErrKeyMismatch},
		{name: "amount mismatch", token: "tok00001", amount: "12.31", apk: apkFor(testGatewayKey), wantErr: ErrAmountMismatch},
		{name: "amount not canonical", token: "tok00001", amount: "12.3", apk: apkFor(testGatewayKey), wantErr: ErrAmountMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedPayable(t, "12.30", "EUR")
			f.seedTransaction(t, "tok00001", "12.30")
			fulfiller := &FulfillerMock{}
			r := NewReconciler(f.store, fulfiller, nil, nopLog)

			err := r.Reconcile(ctx, tc.token, tc.amount, tc.apk)
			require.ErrorIs(t, err, tc.wantErr)
			assert.False(t, r.Process(ctx, tc.token, tc.amount, tc.apk))

			assert.Equal(t, models.StatePending, f.state(t, "tok00001"))
			fulfiller.AssertNotCalled(t, "SavePayment", mock.Anything, mock.Anything)
		})
	}
}

func TestReconciler_AlreadyPaidSkipsFulfillment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedTransaction(t, "tok00001", "5.00")
	_, err := f.store.MarkPaid(ctx, "tok00001", uuid.New())
	require.NoError(t, err)

	fulfiller := &FulfillerMock{}
	r := NewReconciler(f.store, fulfiller, nil, nopLog)

	assert.True(t, r.Process(ctx, "tok00001", "5.00", apkFor(testGatewayKey)))
	fulfiller.AssertNotCalled(t, "SavePayment", mock.Anything, mock.Anything)
	fulfiller.AssertNotCalled(t, "DeliverOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_CanceledThenConfirmedBecomesPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPayable(t, "5.00", "EUR")
	f.seedTransaction(t, "tok00001", "5.00")
	_, err := f.store.MarkFailed(ctx, "tok00001", models.StateCanceled)
	require.NoError(t, err)

	r := NewReconciler(f.store, f.host, nil, nopLog)
	assert.True(t, r.Process(ctx, "tok00001", "5.00", apkFor(testGatewayKey)))
	assert.Equal(t, models.StatePaid, f.state(t, "tok00001"))
}

func TestReconciler_FulfillmentFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()

	t.Run("save payment fails", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, "tok00001", "5.00")
		fulfiller := &FulfillerMock{}
		fulfiller.On("SavePayment", mock.Anything, mock.Anything).Return(uuid.Nil, errors.New("db down"))
		r := NewReconciler(f.store, fulfiller, nil, nopLog)

		assert.False(t, r.Process(ctx, "tok00001", "5.00", apkFor(testGatewayKey)))
		assert.Equal(t, models.StatePending, f.state(t, "tok00001"))
		fulfiller.AssertNotCalled(t, "DeliverOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("deliver fails", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, "tok00001", "5.00")
		paymentID := uuid.New()
		fulfiller := &FulfillerMock{}
		fulfiller.On("SavePayment", mock.Anything, mock.MatchedBy(func(rec PaymentRecord) bool {
			return rec.Gateway == GatewayName && rec.Amount.StringFixed(2) == "5.00" && rec.AccountID == testAccountID
		})).Return(paymentID, nil)
		fulfiller.On("DeliverOrder", mock.Anything, mock.Anything, paymentID).Return(errors.New("enrolment failed"))
		r := NewReconciler(f.store, fulfiller, nil, nopLog)

		assert.False(t, r.Process(ctx, "tok00001", "5.00", apkFor(testGatewayKey)))
		got, err := f.store.Get(ctx, "tok00001")
		require.NoError(t, err)
		assert.Equal(t, models.StatePending, got.State)
		assert.Nil(t, got.PaymentID)
		fulfiller.AssertExpectations(t)
	})

	t.Run("payable gone rolls back the payment row", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, "tok00001", "5.00")
		r := NewReconciler(f.store, f.host, nil, nopLog)

		assert.False(t, r.Process(ctx, "tok00001", "5.00", apkFor(testGatewayKey)))
		assert.Equal(t, models.StatePending, f.state(t, "tok00001"))
		assert.EqualValues(t, 0, f.count(t, &models.Payment{}))
	})
}

func TestReconciler_ConcurrentConfirmationsFulfilOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPayable(t, "9.99", "EUR")
	f.seedTransaction(t, "tok00001", "9.99")
	r := NewReconciler(f.store, f.host, nil, nopLog)

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Process(ctx, "tok00001", "9.99", apkFor(testGatewayKey))
		}(i)
	}
	wg.Wait()

	for _, ok := range results {
		assert.True(t, ok)
	}
	assert.EqualValues(t, 1, f.count(t, &models.Payment{}))
	assert.EqualValues(t, 1, f.count(t, &models.Delivery{}))
}

func TestAntiPhishingKeyMatches(t *testing.T) {
	assert.True(t, antiPhishingKeyMatches(apkFor("GK+/x"), "GK+/x"))
	assert.True(t, antiPhishingKeyMatches("R0stMQ", "GK-1"))
	assert.False(t, antiPhishingKeyMatches("", ""))
	assert.False(t, antiPhishingKeyMatches(apkFor("GK-1")+"!", "GK-1"))
}
