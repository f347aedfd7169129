package services

import (
	"context"
	"sync"

	"github.com/example/paygw/internal/ifthenpay"
)

// APIClient is the subset of the provider client the flows depend on.
type APIClient interface {
	AvailableMethods(ctx context.Context) ([]ifthenpay.MethodRow, error)
	GatewayKeys(ctx context.Context) ([]ifthenpay.GatewayKeyRow, error)
	AccountsByGateway(ctx context.Context, gatewayKey string) ([]ifthenpay.AccountRow, error)
	CreatePayByLink(ctx context.Context, gatewayKey string, payload ifthenpay.PayByLinkPayload) (*ifthenpay.PayByLink, error)
	ActivateCallback(ctx context.Context, gatewayKey, callbackURL string) (bool, error)
	TransactionStatus(ctx context.Context, transactionID string) (bool, error)
}

// ClientSource hands out a client for the currently configured backoffice key.
type ClientSource interface {
	Client(ctx context.Context) (APIClient, error)
}

// ClientProvider builds provider clients from the stored backoffice key and reuses
// the last one until the key changes, so the key is validated remotely only on change.
type ClientProvider struct {
	settings SettingsStore
	opts     []ifthenpay.Option

	mu     sync.Mutex
	key    string
	client *ifthenpay.Client
}

func NewClientProvider(settings SettingsStore, opts ...ifthenpay.Option) *ClientProvider {
	return &ClientProvider{settings: settings, opts: opts}
}

func (p *ClientProvider) Client(ctx context.Context) (APIClient, error) {
	key, err := p.settings.GetSetting(ctx, SettingBackofficeKey)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.client != nil && p.key == key {
		c := p.client
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	c, err := ifthenpay.NewClient(ctx, key, p.opts...)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.key, p.client = key, c
	p.mu.Unlock()
	return c, nil
}

// BackofficeKeyValidator checks a key against the provider without keeping a client.
func BackofficeKeyValidator(opts ...ifthenpay.Option) KeyValidator {
	return func(ctx context.Context, key string) error {
		_, err := ifthenpay.NewClient(ctx, key, opts...)
		return err
	}
}
