package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/paygw/internal/ifthenpay"
	"github.com/example/paygw/internal/models"
)

// PaidNotifier is told about every transaction this process moved to PAID.
type PaidNotifier interface {
	NotifyPaymentReceived(ctx context.Context, payment PaymentReceived) error
}

// Reconciler finalizes a transaction once a payment confirmation checks out.
// It is shared by the webhook and the return poller.
type Reconciler struct {
	store     *TransactionStore
	fulfiller TxFulfiller
	notifier  PaidNotifier
	log       zerolog.Logger
}

func NewReconciler(store *TransactionStore, fulfiller TxFulfiller, notifier PaidNotifier, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, fulfiller: fulfiller, notifier: notifier, log: log}
}

// Process reports whether the transaction is PAID after handling the confirmation.
// Every failure is logged and reported as false.
func (r *Reconciler) Process(ctx context.Context, token, amount, apk string) bool {
	if err := r.Reconcile(ctx, token, amount, apk); err != nil {
		r.log.Warn().Err(err).Str("token", token).Msg("payment confirmation rejected")
		return false
	}
	return true
}

// Reconcile checks the claimed amount and anti-phishing key against the stored
// transaction and, when it is not yet PAID, saves the payment and delivers the order
// exactly once under the transaction row lock.
func (r *Reconciler) Reconcile(ctx context.Context, token, amount, apk string) error {
	t, err := r.store.Get(ctx, token)
	if err != nil {
		return err
	}
	if !antiPhishingKeyMatches(apk, t.GatewayKey) {
		return ErrKeyMismatch
	}
	if strings.TrimSpace(amount) != ifthenpay.FormatAmount(t.Amount) {
		return fmt.Errorf("%w: claimed %q, expected %q", ErrAmountMismatch, amount, ifthenpay.FormatAmount(t.Amount))
	}
	if t.IsPaid() {
		return nil
	}

	var transitioned bool
	err = r.store.WithinLock(ctx, token, func(tx *gorm.DB, store *TransactionStore, locked *models.Transaction) error {
		if locked.IsPaid() {
			return nil
		}

		f := r.fulfiller.WithTx(tx)
		order := OrderRef{
			Component:   locked.Component,
			PaymentArea: locked.PaymentArea,
			ItemID:      locked.ItemID,
			UserID:      locked.UserID,
		}
		paymentID, err := f.SavePayment(ctx, PaymentRecord{
			OrderRef:  order,
			AccountID: locked.AccountID,
			Amount:    locked.Amount,
			Currency:  locked.Currency,
			Gateway:   GatewayName,
		})
		if err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		if err := f.DeliverOrder(ctx, order, paymentID); err != nil {
			return fmt.Errorf("deliver order: %w", err)
		}

		transitioned, err = store.MarkPaid(ctx, token, paymentID)
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		if transitioned {
			r.log.Info().Str("token", token).Str("paymentid", paymentID.String()).Msg("transaction paid")
			t = locked
			t.PaymentID = &paymentID
		}
		return nil
	})
	if err != nil {
		return err
	}

	if transitioned {
		r.notify(t)
	}
	return nil
}

func (r *Reconciler) notify(t *models.Transaction) {
	if r.notifier == nil {
		return
	}
	payment := PaymentReceived{
		Token:       t.Token,
		Component:   t.Component,
		PaymentArea: t.PaymentArea,
		ItemID:      t.ItemID,
		Amount:      t.Amount,
		Currency:    t.Currency,
	}
	if t.PaymentID != nil {
		payment.PaymentID = *t.PaymentID
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.notifier.NotifyPaymentReceived(ctx, payment); err != nil {
			r.log.Warn().Err(err).Str("token", payment.Token).Msg("paid notification failed")
		}
	}()
}

// antiPhishingKeyMatches decodes the base64 key sent with a confirmation and
// compares it to the stored gateway key. Query decoding may turn '+' into ' '.
func antiPhishingKeyMatches(apk, gatewayKey string) bool {
	apk = strings.ReplaceAll(strings.TrimSpace(apk), " ", "+")
	if apk == "" || gatewayKey == "" {
		return false
	}
	decoded, err := base64.StdEncoding.Strict().DecodeString(apk)
	if err != nil {
		decoded, err = base64.RawStdEncoding.Strict().DecodeString(apk)
		if err != nil {
			return false
		}
	}
	return bytes.Equal(decoded, []byte(gatewayKey))
}

// PaymentReceived is the payload of a paid notification.
type PaymentReceived struct {
	Token       string
	PaymentID   uuid.UUID
	Component   string
	PaymentArea string
	ItemID      int64
	Amount      decimal.Decimal
	Currency    string
}
