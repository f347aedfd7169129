package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/example/paygw/internal/ifthenpay"
)

const maxDescriptionLength = 150

// GatewayKeyOption is a selectable gateway key, in provider order.
type GatewayKeyOption struct {
	Key   string `json:"key"`
	Alias string `json:"alias"`
}

// Dataset is the live provider data the admin form offers as options.
// Accounts is gateway key -> method -> account -> alias.
type Dataset struct {
	GatewayKeys []GatewayKeyOption                      `json:"gatewaykeys"`
	Methods     ifthenpay.Methods                       `json:"methods"`
	Accounts    map[string]map[string]map[string]string `json:"accounts"`
}

func (d *Dataset) hasGatewayKey(key string) bool {
	for _, gk := range d.GatewayKeys {
		if gk.Key == key {
			return true
		}
	}
	return false
}

// GatewayFormModel is everything the admin UI needs to render the gateway form.
type GatewayFormModel struct {
	AccountID         int64                  `json:"accountid"`
	HasBackofficeKey  bool                   `json:"has_backoffice_key"`
	Available         bool                   `json:"available"`
	Reason            string                 `json:"reason,omitempty"`
	Enabled           bool                   `json:"enabled"`
	Dataset           *Dataset               `json:"dataset,omitempty"`
	CurrentGatewayKey string                 `json:"current_gatewaykey,omitempty"`
	State             ifthenpay.GatewayState `json:"state"`
}

// GatewayForm builds and saves the per-account gateway configuration.
type GatewayForm struct {
	configs    GatewayConfigStore
	settings   SettingsStore
	clients    ClientSource
	cache      DatasetCache
	webhookURL string
	log        zerolog.Logger
}

func NewGatewayForm(configs GatewayConfigStore, settings SettingsStore, clients ClientSource, cache DatasetCache, webhookURL string, log zerolog.Logger) *GatewayForm {
	return &GatewayForm{
		configs:    configs,
		settings:   settings,
		clients:    clients,
		cache:      cache,
		webhookURL: webhookURL,
		log:        log,
	}
}

// Build loads the live dataset and derives form defaults from what was saved.
// Saved values only pick defaults; options always come from the provider.
func (f *GatewayForm) Build(ctx context.Context, accountID int64) (*GatewayFormModel, error) {
	model := &GatewayFormModel{AccountID: accountID}

	key, err := f.settings.GetSetting(ctx, SettingBackofficeKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		model.Reason = "backoffice key is not configured"
		return model, nil
	}
	model.HasBackofficeKey = true

	dataset, err := f.dataset(ctx, key)
	switch {
	case errors.Is(err, ifthenpay.ErrInvalidBackofficeKey):
		model.Reason = "backoffice key was rejected by the provider"
		return model, nil
	case err != nil:
		return nil, err
	}
	model.Dataset = dataset
	if len(dataset.GatewayKeys) == 0 {
		model.Reason = "no gateway keys are available for this backoffice key"
		return model, nil
	}
	model.Available = true

	var saved ifthenpay.GatewayState
	cfg, err := f.configs.GatewayConfig(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	if cfg != nil {
		model.Enabled = cfg.Enabled
		if st, err := ifthenpay.DecodeState(cfg.State); err == nil {
			saved = st
		}
	}

	model.CurrentGatewayKey = dataset.GatewayKeys[0].Key
	if saved.GatewayKey != "" && dataset.hasGatewayKey(saved.GatewayKey) {
		model.CurrentGatewayKey = saved.GatewayKey
	}
	model.State = initialState(dataset, model.CurrentGatewayKey, saved)
	return model, nil
}

func initialState(d *Dataset, gatewayKey string, saved ifthenpay.GatewayState) ifthenpay.GatewayState {
	st := ifthenpay.GatewayState{
		GatewayKey:  gatewayKey,
		Description: saved.Description,
	}
	if _, ok := d.Methods.Find(saved.DefaultMethod); ok {
		st.DefaultMethod = saved.DefaultMethod
	}

	byMethod := d.Accounts[gatewayKey]
	for _, m := range d.Methods {
		options := byMethod[m.Key]
		prev, _ := saved.Methods.Get(m.Key)

		var ms ifthenpay.MethodState
		if _, ok := options[prev.Account]; ok && prev.Account != "" {
			ms.Account = prev.Account
		} else {
			ms.Account = firstOption(options)
		}
		ms.Enabled = prev.Enabled && len(options) > 0
		st.Methods.Set(m.Key, ms)
	}
	return st
}

func firstOption(options map[string]string) string {
	if len(options) == 0 {
		return ""
	}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

func (f *GatewayForm) dataset(ctx context.Context, backofficeKey string) (*Dataset, error) {
	if f.cache != nil {
		if d, ok := f.cache.Get(ctx, backofficeKey); ok {
			return d, nil
		}
	}

	client, err := f.clients.Client(ctx)
	if err != nil {
		return nil, err
	}

	keyRows, err := client.GatewayKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gateway keys: %w", err)
	}
	aliases := ifthenpay.FormatGatewayKeys(keyRows)

	d := &Dataset{Accounts: make(map[string]map[string]map[string]string)}
	for _, row := range keyRows {
		alias, ok := aliases[row.GatewayKey]
		if !ok || d.hasGatewayKey(row.GatewayKey) {
			continue
		}
		d.GatewayKeys = append(d.GatewayKeys, GatewayKeyOption{Key: row.GatewayKey, Alias: alias})
	}

	methodRows, err := client.AvailableMethods(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("method catalog unavailable")
	}
	d.Methods = ifthenpay.FormatMethods(methodRows)

	for _, gk := range d.GatewayKeys {
		rows, err := client.AccountsByGateway(ctx, gk.Key)
		if err != nil {
			f.log.Warn().Err(err).Str("gatewaykey", gk.Key).Msg("accounts unavailable")
			continue
		}
		d.Accounts[gk.Key] = ifthenpay.FormatAccounts(rows)
	}

	if f.cache != nil {
		f.cache.Set(ctx, backofficeKey, d)
	}
	return d, nil
}

// Save validates rawState, registers the webhook for its gateway key and persists it.
// An activation failure is reported as a field error and nothing is saved.
func (f *GatewayForm) Save(ctx context.Context, accountID int64, enabled bool, rawState string) error {
	verr := &ValidationError{}

	state, err := ifthenpay.DecodeState([]byte(rawState))
	if err != nil {
		verr.Add("state", "the gateway configuration could not be read")
		return verr
	}

	if !state.Methods.AnyEnabled() {
		verr.Add("methods", "enable at least one payment method")
	}
	if state.DefaultMethod != "" {
		ms, ok := state.Methods.Get(state.DefaultMethod)
		switch {
		case !ok:
			verr.Add("defaultmethod", "unknown payment method")
		case !ms.Enabled:
			verr.Add("defaultmethod", "the default method must be enabled")
		}
	}
	if utf8.RuneCountInString(state.Description) > maxDescriptionLength {
		verr.Add("description", fmt.Sprintf("at most %d characters", maxDescriptionLength))
	}
	if err := verr.Err(); err != nil {
		return err
	}

	client, err := f.clients.Client(ctx)
	if err != nil {
		verr.Add("callback", "the provider could not be reached to activate the callback")
		f.log.Warn().Err(err).Int64("accountid", accountID).Msg("callback activation skipped")
		return verr
	}
	ok, err := client.ActivateCallback(ctx, state.GatewayKey, f.webhookURL)
	if err != nil {
		verr.Add("callback", "callback activation failed")
		f.log.Warn().Err(err).Int64("accountid", accountID).Msg("callback activation failed")
		return verr
	}
	if !ok {
		f.log.Warn().Int64("accountid", accountID).Str("gatewaykey", state.GatewayKey).Msg("provider did not acknowledge callback activation")
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return f.configs.SaveGatewayConfig(ctx, accountID, enabled, raw)
}

// Invalidate drops the cached dataset so the next Build reads the provider again.
func (f *GatewayForm) Invalidate(ctx context.Context) error {
	if f.cache == nil {
		return nil
	}
	key, err := f.settings.GetSetting(ctx, SettingBackofficeKey)
	if err != nil {
		return err
	}
	f.cache.Delete(ctx, key)
	return nil
}
