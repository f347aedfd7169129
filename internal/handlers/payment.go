package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/paygw/internal/middleware"
	"github.com/example/paygw/internal/models"
	"github.com/example/paygw/internal/services"
	"github.com/example/paygw/internal/utils"
)

type CheckoutStarter interface {
	Start(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutResult, error)
}

type PaymentVerifier interface {
	Verify(ctx context.Context, token, transactionID string) (bool, error)
}

type WebhookProcessor interface {
	Process(ctx context.Context, token, amount, apk string) bool
}

// TransactionRecords is the part of the transaction store the HTTP layer touches.
type TransactionRecords interface {
	Get(ctx context.Context, token string) (*models.Transaction, error)
	SetTransactionID(ctx context.Context, token, transactionID string) (bool, error)
	MarkFailed(ctx context.Context, token, state string) (bool, error)
	List(ctx context.Context, filter services.TransactionFilter, page utils.Pagination) ([]models.Transaction, int64, error)
	RecordCallback(ctx context.Context, entry *models.CallbackLog) error
}

// PaymentHandler serves the buyer-facing pages and the provider webhook.
type PaymentHandler struct {
	checkout    CheckoutStarter
	txs         TransactionRecords
	verifier    PaymentVerifier
	processor   WebhookProcessor
	successURLs services.SuccessURLResolver
	baseURL     string
	fallbackURL string
	defaultLang string
	log         zerolog.Logger
}

type PaymentHandlerConfig struct {
	BaseURL     string
	FallbackURL string
	DefaultLang string
}

func NewPaymentHandler(checkout CheckoutStarter, txs TransactionRecords, verifier PaymentVerifier, processor WebhookProcessor, successURLs services.SuccessURLResolver, cfg PaymentHandlerConfig, log zerolog.Logger) *PaymentHandler {
	fallback := cfg.FallbackURL
	if fallback == "" {
		fallback = "/"
	}
	return &PaymentHandler{
		checkout:    checkout,
		txs:         txs,
		verifier:    verifier,
		processor:   processor,
		successURLs: successURLs,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		fallbackURL: fallback,
		defaultLang: cfg.DefaultLang,
		log:         log,
	}
}

// Pay starts a checkout for the current user and redirects to the provider.
func (h *PaymentHandler) Pay(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	component := strings.TrimSpace(c.Query("component"))
	paymentArea := strings.TrimSpace(c.Query("paymentarea"))
	itemID, err := strconv.ParseInt(c.Query("itemid"), 10, 64)
	if component == "" || paymentArea == "" || err != nil || itemID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "component, paymentarea and itemid are required")
	}

	lang := c.Get(fiber.HeaderAcceptLanguage)
	if lang == "" {
		lang = h.defaultLang
	}

	result, err := h.checkout.Start(c.UserContext(), services.CheckoutRequest{
		UserID:      userID,
		Component:   component,
		PaymentArea: paymentArea,
		ItemID:      itemID,
		Description: c.Query("description"),
		Lang:        lang,
	})
	if err != nil {
		return err
	}
	return c.Redirect(result.RedirectURL, fiber.StatusFound)
}

// Return handles the buyer coming back from the provider. With action=verify it
// answers the page script's poll as JSON.
func (h *PaymentHandler) Return(c *fiber.Ctx) error {
	ctx := c.UserContext()
	token := c.Query("token")
	verify := c.Query("action") == "verify"

	t, err := h.txs.Get(ctx, token)
	if errors.Is(err, services.ErrTransactionNotFound) {
		if verify {
			return c.JSON(fiber.Map{"paid": false, "error": "notfound"})
		}
		return c.Redirect(h.fallbackURL, fiber.StatusFound)
	}
	if err != nil {
		return err
	}

	txid := providerTransactionID(c.Query("txid"))
	if txid != "" {
		if _, err := h.txs.SetTransactionID(ctx, token, txid); err != nil {
			h.log.Warn().Err(err).Str("token", token).Msg("could not record provider transaction id")
		}
	} else if t.TransactionID != nil {
		txid = *t.TransactionID
	}

	if verify {
		paid, err := h.verifier.Verify(ctx, token, txid)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"paid": paid})
	}

	successURL := h.successURL(ctx, t)
	if t.IsPaid() {
		return c.Redirect(successURL, fiber.StatusFound)
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("txid", txid)
	q.Set("action", "verify")
	return renderPage(c, fiber.StatusOK, "return.html", returnPage{
		VerifyURL:   h.baseURL + "/return?" + q.Encode(),
		SuccessURL:  successURL,
		FallbackURL: h.fallbackURL,
	})
}

// Cancel records an abandoned or failed checkout. A PAID attempt is left alone.
func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	ctx := c.UserContext()
	token := c.Query("token")

	t, err := h.txs.Get(ctx, token)
	if errors.Is(err, services.ErrTransactionNotFound) {
		return renderPage(c, fiber.StatusNotFound, "outcome.html", outcomePage{
			Title:    "Payment not found",
			Message:  "We could not find this payment.",
			LinkURL:  h.fallbackURL,
			LinkText: "Continue",
		})
	}
	if err != nil {
		return err
	}

	state := models.StateCanceled
	page := outcomePage{Title: "Payment canceled", Message: "The payment was canceled. You have not been charged."}
	if strings.EqualFold(c.Query("type"), models.StateError) {
		state = models.StateError
		page = outcomePage{Title: "Payment failed", Message: "The provider reported an error while processing the payment."}
	}

	if _, err := h.txs.MarkFailed(ctx, token, state); err != nil {
		return err
	}
	if t.IsPaid() {
		page = outcomePage{Title: "Payment received", Message: "This payment was already confirmed."}
	}

	page.LinkURL = h.successURL(ctx, t)
	page.LinkText = "Try again"
	if t.IsPaid() {
		page.LinkText = "Continue"
	}
	h.log.Info().Str("token", token).Str("state", state).Bool("paid", t.IsPaid()).Msg("checkout left the provider")
	return renderPage(c, fiber.StatusOK, "outcome.html", page)
}

// Webhook receives the provider's payment confirmation. It answers OK only when the
// confirmation was accepted, and records every delivery.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	ctx := c.UserContext()
	token := c.Query("reference")

	accepted := h.processor.Process(ctx, token, c.Query("amount"), c.Query("apk"))
	h.recordCallback(ctx, c, token, accepted)

	if !accepted {
		return c.Status(fiber.StatusBadRequest).SendString("INVALID")
	}
	return c.Status(fiber.StatusOK).SendString("OK")
}

func (h *PaymentHandler) recordCallback(ctx context.Context, c *fiber.Ctx, token string, accepted bool) {
	query := c.Queries()
	if _, ok := query["apk"]; ok {
		query["apk"] = "***"
	}
	raw, err := json.Marshal(query)
	if err != nil {
		h.log.Warn().Err(err).Msg("callback query not serializable")
		return
	}
	entry := &models.CallbackLog{Token: token, Query: raw, Accepted: accepted, RemoteAddr: c.IP()}
	if err := h.txs.RecordCallback(ctx, entry); err != nil {
		h.log.Warn().Err(err).Str("token", token).Msg("callback audit write failed")
	}
}

func (h *PaymentHandler) successURL(ctx context.Context, t *models.Transaction) string {
	u, err := h.successURLs.SuccessURL(ctx, t.Component, t.PaymentArea, t.ItemID)
	if err != nil || u == "" {
		if err != nil {
			h.log.Warn().Err(err).Str("token", t.Token).Msg("success url unavailable")
		}
		return h.fallbackURL
	}
	return u
}

// providerTransactionID drops the placeholder the provider leaves when it has no id.
func providerTransactionID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "[TRANSACTIONID]") {
		return ""
	}
	return raw
}

// Healthz reports liveness.
func Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
