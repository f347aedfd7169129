package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/paygw/internal/services"
	"github.com/example/paygw/internal/utils"
)

type SettingsService interface {
	BackofficeKey(ctx context.Context) (string, error)
	SaveBackofficeKey(ctx context.Context, value string) error
}

type GatewayFormService interface {
	Build(ctx context.Context, accountID int64) (*services.GatewayFormModel, error)
	Save(ctx context.Context, accountID int64, enabled bool, rawState string) error
	Invalidate(ctx context.Context) error
}

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	settings SettingsService
	form     GatewayFormService
	txs      TransactionRecords
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(settings SettingsService, form GatewayFormService, txs TransactionRecords) *AdminHandler {
	return &AdminHandler{settings: settings, form: form, txs: txs}
}

type settingsRequest struct {
	BackofficeKey string `json:"backofficekey"`
}

// GetSettings returns the plugin-wide settings.
func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	key, err := h.settings.BackofficeKey(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"backofficekey": key,
		"configured":    key != "",
	})
}

// UpdateSettings stores the backoffice key. An empty value clears it.
func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.settings.SaveBackofficeKey(c.UserContext(), req.BackofficeKey); err != nil {
		return err
	}
	return h.GetSettings(c)
}

// GetGateway returns the configuration form model for a payment account.
// ?refresh=1 drops the cached provider dataset first.
func (h *AdminHandler) GetGateway(c *fiber.Ctx) error {
	accountID, err := accountIDParam(c)
	if err != nil {
		return err
	}

	if c.QueryBool("refresh") {
		if err := h.form.Invalidate(c.UserContext()); err != nil {
			return err
		}
	}

	model, err := h.form.Build(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(model)
}

type gatewayRequest struct {
	Enabled bool            `json:"enabled"`
	State   json.RawMessage `json:"state"`
}

// UpdateGateway validates and saves the gateway configuration of a payment account.
// state may be sent as a JSON object or as the JSON document in a string.
func (h *AdminHandler) UpdateGateway(c *fiber.Ctx) error {
	accountID, err := accountIDParam(c)
	if err != nil {
		return err
	}

	var req gatewayRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	raw := string(req.State)
	var asString string
	if err := json.Unmarshal(req.State, &asString); err == nil {
		raw = asString
	}

	if err := h.form.Save(c.UserContext(), accountID, req.Enabled, raw); err != nil {
		return err
	}

	model, err := h.form.Build(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(model)
}

// ListTransactions returns checkout attempts, newest first.
func (h *AdminHandler) ListTransactions(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := services.TransactionFilter{
		State:     strings.ToUpper(c.Query("state")),
		Component: c.Query("component"),
	}
	if raw := c.Query("userid"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid userid")
		}
		filter.UserID = id
	}

	items, total, err := h.txs.List(c.UserContext(), filter, pg)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

func accountIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("accountId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid account id")
	}
	return id, nil
}
