package services

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/paygw/internal/ifthenpay"
)

const (
	DefaultPollWindow   = 15 * time.Second
	DefaultPollInterval = time.Second
)

// Processor finalizes a confirmed payment. Reconciler implements it.
type Processor interface {
	Process(ctx context.Context, token, amount, apk string) bool
}

// Poller answers "is it paid yet" for the return page by asking the provider
// for a bounded time.
type Poller struct {
	store     *TransactionStore
	processor Processor
	clients   ClientSource
	window    time.Duration
	interval  time.Duration
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	log       zerolog.Logger
}

type PollerOption func(*Poller)

func WithPollWindow(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.window = d
		}
	}
}

func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock replaces time.Now and the sleep between attempts.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *Poller) {
		p.now = now
		p.sleep = sleep
	}
}

func NewPoller(store *TransactionStore, processor Processor, clients ClientSource, log zerolog.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		store:     store,
		processor: processor,
		clients:   clients,
		window:    DefaultPollWindow,
		interval:  DefaultPollInterval,
		now:       time.Now,
		sleep:     sleepContext,
		log:       log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Verify polls the provider until the transaction is PAID or the window closes.
// Errors from the provider or the processor are logged and the loop carries on.
// A cancelled ctx ends the loop early with paid=false.
func (p *Poller) Verify(ctx context.Context, token, transactionID string) (bool, error) {
	t, err := p.store.Get(ctx, token)
	if err != nil {
		return false, err
	}
	if t.IsPaid() {
		return true, nil
	}

	amount := ifthenpay.FormatAmount(t.Amount)
	apk := base64.StdEncoding.EncodeToString([]byte(t.GatewayKey))
	logger := p.log.With().Str("token", token).Str("txid", transactionID).Logger()

	var client APIClient
	deadline := p.now().Add(p.window)
	for p.now().Before(deadline) {
		if client == nil {
			client, err = p.clients.Client(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("provider client unavailable")
				client = nil
			}
		}

		if client != nil {
			paid, err := client.TransactionStatus(ctx, transactionID)
			switch {
			case err != nil:
				logger.Warn().Err(err).Msg("transaction status check failed")
			case paid:
				p.processor.Process(ctx, token, amount, apk)
			}
		}

		paid, err := p.store.IsPaid(ctx, token)
		if err != nil {
			logger.Warn().Err(err).Msg("reading transaction state failed")
		}
		if paid {
			return true, nil
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return false, nil
		}
	}
	return false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
