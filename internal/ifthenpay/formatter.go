package ifthenpay

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Method is a payment method as shown to admins, in provider order.
type Method struct {
	Key      string `json:"key"`
	Position int    `json:"position"`
	Image    string `json:"image"`
	Tooltip  string `json:"tooltip"`
	Label    string `json:"label"`
}

type Methods []Method

func (ms Methods) Find(key string) (Method, bool) {
	for _, m := range ms {
		if m.Key == key {
			return m, true
		}
	}
	return Method{}, false
}

func (ms Methods) Keys() []string {
	keys := make([]string, 0, len(ms))
	for _, m := range ms {
		keys = append(keys, m.Key)
	}
	return keys
}

// FormatGatewayKeys maps gateway key to alias, dropping incomplete rows.
func FormatGatewayKeys(rows []GatewayKeyRow) map[string]string {
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.Alias == "" || row.GatewayKey == "" {
			continue
		}
		out[row.GatewayKey] = row.Alias
	}
	return out
}

// FormatMethods keys the catalog by entity and sorts it by position.
// A repeated entity keeps its first slot and takes the later row's values.
func FormatMethods(rows []MethodRow) Methods {
	out := make(Methods, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.Entity == "" {
			continue
		}
		m := Method{
			Key:      row.Entity,
			Position: int(row.Position),
			Image:    row.SmallImageURL,
			Tooltip:  row.DescriptionEN,
			Label:    row.Method,
		}
		if i, ok := index[row.Entity]; ok {
			out[i] = m
			continue
		}
		index[row.Entity] = len(out)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// FormatAccounts buckets accounts as method -> account -> alias.
// Numeric entities are Multibanco references.
func FormatAccounts(rows []AccountRow) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, row := range rows {
		if row.Alias == "" || row.Conta == "" {
			continue
		}
		bucket := strings.TrimSpace(string(row.Entidade))
		switch {
		case bucket == "":
			bucket = "OTHER"
		case isNumeric(bucket):
			bucket = "MB"
		}
		if out[bucket] == nil {
			out[bucket] = make(map[string]string)
		}
		out[bucket][row.Conta] = row.Alias
	}
	return out
}

func isNumeric(s string) bool {
	_, err := decimal.NewFromString(s)
	return err == nil
}

// FormatAmount renders an amount the way the provider echoes it back: "12.30".
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

var supportedLanguages = map[string]bool{"pt": true, "en": true, "es": true, "fr": true}

// DetectLanguage reduces a language tag or Accept-Language header to a checkout language.
func DetectLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if len(tag) >= 2 && supportedLanguages[tag[:2]] {
		return tag[:2]
	}
	return "pt"
}

// CallbackURLs are the browser return targets handed to the provider.
type CallbackURLs struct {
	Success string
	Cancel  string
	Error   string
}

const transactionPlaceholder = "&txid=[TRANSACTIONID]"

// CallbackURLsFor builds the return targets for token under baseURL.
// The provider substitutes the literal [TRANSACTIONID] placeholder.
func CallbackURLsFor(baseURL, token string) CallbackURLs {
	base := strings.TrimRight(baseURL, "/")
	build := func(path string, q url.Values) string {
		return base + path + "?" + q.Encode() + transactionPlaceholder
	}
	return CallbackURLs{
		Success: build("/return", url.Values{"token": {token}}),
		Cancel:  build("/cancel", url.Values{"token": {token}, "type": {"CANCEL"}}),
		Error:   build("/cancel", url.Values{"token": {token}, "type": {"ERROR"}}),
	}
}

// PayByLinkPayload is the body of a pay-by-link request.
type PayByLinkPayload struct {
	ID             string `json:"id"`
	Amount         string `json:"amount"`
	Description    string `json:"description"`
	Lang           string `json:"lang"`
	Accounts       string `json:"accounts"`
	SuccessURL     string `json:"success_url"`
	CancelURL      string `json:"cancel_url"`
	ErrorURL       string `json:"error_url"`
	CloseURL       string `json:"btnCloseUrl"`
	SelectedMethod *int   `json:"selected_method,omitempty"`
}

// BuildPayByLinkPayload assembles the checkout request for token.
// methods is the live catalog and only decides selected_method.
func BuildPayByLinkPayload(amount decimal.Decimal, state GatewayState, token, description string, methods Methods, urls CallbackURLs, lang string) PayByLinkPayload {
	p := PayByLinkPayload{
		ID:          token,
		Amount:      FormatAmount(amount),
		Description: payloadDescription(state, token, description),
		Lang:        lang,
		Accounts:    payloadAccounts(state.Methods),
		SuccessURL:  urls.Success,
		CancelURL:   urls.Cancel,
		ErrorURL:    urls.Error,
		CloseURL:    urls.Cancel,
	}
	if state.DefaultMethod != "" {
		if m, ok := methods.Find(state.DefaultMethod); ok {
			pos := m.Position
			p.SelectedMethod = &pos
		}
	}
	return p
}

func payloadDescription(state GatewayState, token, description string) string {
	if d := strings.TrimSpace(state.Description); d != "" {
		return "Order #" + token + " - " + d
	}
	if d := strings.TrimSpace(description); d != "" {
		return "Order #" + token + " - " + d
	}
	return "Order #" + token
}

var pipeSpacing = regexp.MustCompile(`\s*\|\s*`)

// payloadAccounts joins enabled accounts as "METHOD|account;METHOD|account".
func payloadAccounts(methods MethodStates) string {
	parts := make([]string, 0, methods.Len())
	for _, key := range methods.Keys() {
		s, _ := methods.Get(key)
		account := strings.TrimSpace(s.Account)
		if !s.Enabled || account == "" {
			continue
		}
		if strings.Contains(account, "|") {
			parts = append(parts, pipeSpacing.ReplaceAllString(account, "|"))
			continue
		}
		parts = append(parts, key+"|"+account)
	}
	return strings.Join(parts, ";")
}
