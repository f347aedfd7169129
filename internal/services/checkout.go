package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/paygw/internal/ifthenpay"
	"github.com/example/paygw/internal/models"
	"github.com/example/paygw/internal/utils"
)

// SupportedCurrencies lists the currencies the provider can charge.
var SupportedCurrencies = []string{"EUR"}

// CheckoutRequest identifies what the current user wants to pay for.
type CheckoutRequest struct {
	UserID      uuid.UUID
	Component   string
	PaymentArea string
	ItemID      int64
	Description string
	Lang        string
}

type CheckoutResult struct {
	Token       string
	RedirectURL string
}

// Checkout starts a hosted payment and records the pending attempt.
type Checkout struct {
	store     *TransactionStore
	payables  PayableResolver
	configs   GatewayConfigStore
	clients   ClientSource
	surcharge decimal.Decimal
	baseURL   string
	newToken  func() (string, error)
	log       zerolog.Logger
}

func NewCheckout(store *TransactionStore, payables PayableResolver, configs GatewayConfigStore, clients ClientSource, surchargePercent decimal.Decimal, baseURL string, log zerolog.Logger) *Checkout {
	return &Checkout{
		store:     store,
		payables:  payables,
		configs:   configs,
		clients:   clients,
		surcharge: surchargePercent,
		baseURL:   baseURL,
		newToken:  utils.NewPaymentToken,
		log:       log,
	}
}

// Cost applies the gateway surcharge to amount, rounded to cents.
func (c *Checkout) Cost(amount decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(c.surcharge.Div(decimal.NewFromInt(100)))
	return amount.Mul(factor).Round(2)
}

func (c *Checkout) Start(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	payable, err := c.payables.GetPayable(ctx, req.Component, req.PaymentArea, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !isSupportedCurrency(payable.Currency) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, payable.Currency)
	}

	cfg, err := c.configs.GatewayConfig(ctx, payable.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	if cfg == nil {
		return nil, ErrMissingGatewayState
	}
	if !cfg.Enabled {
		return nil, ErrGatewayDisabled
	}
	state, err := ifthenpay.DecodeState(cfg.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingGatewayState, err)
	}

	client, err := c.clients.Client(ctx)
	if err != nil {
		return nil, err
	}

	var methods ifthenpay.Methods
	if state.DefaultMethod != "" {
		rows, err := client.AvailableMethods(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("method catalog unavailable, checkout continues without a preselected method")
		}
		methods = ifthenpay.FormatMethods(rows)
	}

	token, err := c.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate payment token: %w", err)
	}

	cost := c.Cost(payable.Amount)
	description := req.Description
	if strings.TrimSpace(description) == "" {
		description = payable.Description
	}
	payload := ifthenpay.BuildPayByLinkPayload(cost, state, token, description, methods,
		ifthenpay.CallbackURLsFor(c.baseURL, token), ifthenpay.DetectLanguage(req.Lang))

	link, err := client.CreatePayByLink(ctx, state.GatewayKey, payload)
	if err != nil {
		return nil, fmt.Errorf("create pay-by-link: %w", err)
	}
	if link.RedirectURL == "" {
		return nil, ErrMissingRedirect
	}

	t := &models.Transaction{
		Token:       token,
		UserID:      req.UserID,
		Component:   req.Component,
		PaymentArea: req.PaymentArea,
		ItemID:      req.ItemID,
		AccountID:   payable.AccountID,
		Amount:      cost,
		Currency:    payable.Currency,
		GatewayKey:  state.GatewayKey,
		RedirectURL: link.RedirectURL,
		PinCode:     link.PinCode,
	}
	if err := c.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("store transaction: %w", err)
	}

	c.log.Info().Str("token", token).Str("component", req.Component).Int64("itemid", req.ItemID).
		Str("amount", ifthenpay.FormatAmount(cost)).Msg("checkout started")
	return &CheckoutResult{Token: token, RedirectURL: link.RedirectURL}, nil
}

func isSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}
