package ifthenpay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPublicBaseURL = "https://api.ifthenpay.com"
	DefaultMobileBaseURL = "https://ifthenpay.com/IfmbWS/ifthenpaymobile.asmx"
	DefaultEntitiesURL   = "https://ifthenpay.com/IfmbWS/ifmbws.asmx/getEntidadeSubentidadeJsonV2"

	DefaultTimeout = 10 * time.Second
	minTimeout     = time.Second

	pathAvailableMethods   = "/gateway/methods/available"
	pathPayByLink          = "/gateway/pinpay/"
	pathTransactionStatus  = "/gateway/transaction/status"
	pathGatewayKeys        = "/gateway/get"
	pathCallbackActivation = "/endpoint/callback/activation/"
	pathAccountsByGateway  = "/GetAccountsByGatewayKey"

	callbackQuery = "?amount=[AMOUNT]&reference=[ORDER_ID]&apk=[ANTI_PHISHING_KEY]"
)

// Client talks to the provider's public REST API and its legacy mobile endpoints.
// A Client is only handed out after its backoffice key has been checked remotely.
type Client struct {
	backofficeKey string
	httpClient    *http.Client
	timeout       time.Duration
	publicBase    string
	mobileBase    string
	entitiesURL   string
}

type Option func(*Client)

// WithTimeout bounds every outbound request. Values below one second are raised to one second.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d < minTimeout {
			d = minTimeout
		}
		c.timeout = d
	}
}

// WithHTTPClient replaces the transport. The supplied client keeps its own timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURLs overrides the endpoints. Empty values keep the defaults.
func WithBaseURLs(public, mobile, entities string) Option {
	return func(c *Client) {
		if public != "" {
			c.publicBase = strings.TrimRight(public, "/")
		}
		if mobile != "" {
			c.mobileBase = strings.TrimRight(mobile, "/")
		}
		if entities != "" {
			c.entitiesURL = entities
		}
	}
}

// NewClient validates backofficeKey against the entities endpoint and returns a ready client.
func NewClient(ctx context.Context, backofficeKey string, opts ...Option) (*Client, error) {
	c := &Client{
		backofficeKey: strings.TrimSpace(backofficeKey),
		timeout:       DefaultTimeout,
		publicBase:    DefaultPublicBaseURL,
		mobileBase:    DefaultMobileBaseURL,
		entitiesURL:   DefaultEntitiesURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	if c.backofficeKey == "" {
		return nil, ErrNoBackofficeKey
	}
	if err := c.validateKey(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// BackofficeKey returns the validated key the client was built with.
func (c *Client) BackofficeKey() string {
	return c.backofficeKey
}

type entityRow struct {
	Entidade    looseString   `json:"Entidade"`
	SubEntidade []looseString `json:"SubEntidade"`
}

func (c *Client) validateKey(ctx context.Context) error {
	endpoint := c.entitiesURL + "?" + url.Values{"chavebackoffice": {c.backofficeKey}}.Encode()

	var rows []entityRow
	if err := c.getList(ctx, endpoint, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		if strings.TrimSpace(string(row.Entidade)) == "" {
			continue
		}
		for _, sub := range row.SubEntidade {
			if strings.TrimSpace(string(sub)) != "" {
				return nil
			}
		}
	}
	return ErrInvalidBackofficeKey
}

// MethodRow is one entry of the available payment methods catalog.
type MethodRow struct {
	Entity        string   `json:"Entity"`
	Method        string   `json:"Method"`
	Position      looseInt `json:"Position"`
	SmallImageURL string   `json:"SmallImageUrl"`
	DescriptionEN string   `json:"DescriptionEN"`
}

// GatewayKeyRow is one gateway key owned by the backoffice account.
type GatewayKeyRow struct {
	Alias      string `json:"Alias"`
	GatewayKey string `json:"GatewayKey"`
}

// AccountRow is one payment account attached to a gateway key.
type AccountRow struct {
	Alias    string      `json:"Alias"`
	Conta    string      `json:"Conta"`
	Entidade looseString `json:"Entidade"`
}

// AvailableMethods lists the payment methods the provider currently offers.
func (c *Client) AvailableMethods(ctx context.Context) ([]MethodRow, error) {
	var rows []MethodRow
	if err := c.getList(ctx, c.publicBase+pathAvailableMethods, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GatewayKeys lists the gateway keys of the backoffice account.
func (c *Client) GatewayKeys(ctx context.Context) ([]GatewayKeyRow, error) {
	q := url.Values{"boKey": {c.backofficeKey}, "type": {"Moodle"}}
	var rows []GatewayKeyRow
	if err := c.getList(ctx, c.publicBase+pathGatewayKeys+"?"+q.Encode(), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AccountsByGateway lists the accounts bound to gatewayKey.
func (c *Client) AccountsByGateway(ctx context.Context, gatewayKey string) ([]AccountRow, error) {
	q := url.Values{"backofficekey": {c.backofficeKey}, "gatewayKey": {gatewayKey}}
	var rows []AccountRow
	if err := c.getList(ctx, c.mobileBase+pathAccountsByGateway+"?"+q.Encode(), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// PayByLink is the provider's answer to a pay-by-link request.
type PayByLink struct {
	PinCode     string `json:"PinCode"`
	PinpayURL   string `json:"PinpayUrl"`
	RedirectURL string `json:"RedirectUrl"`
}

// CreatePayByLink creates a hosted checkout for payload under gatewayKey.
func (c *Client) CreatePayByLink(ctx context.Context, gatewayKey string, payload PayByLinkPayload) (*PayByLink, error) {
	body, err := c.postJSON(ctx, c.publicBase+pathPayByLink+url.PathEscape(gatewayKey), payload)
	if err != nil {
		return nil, err
	}

	var link PayByLink
	if err := json.Unmarshal(body, &link); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayByLinkResponse, err)
	}
	if link.PinCode == "" || link.PinpayURL == "" || link.RedirectURL == "" {
		return nil, ErrInvalidPayByLinkResponse
	}
	return &link, nil
}

type callbackActivation struct {
	APKey       string `json:"apKey"`
	Chave       string `json:"chave"`
	CallbackURL string `json:"urlCb"`
}

// ActivateCallback registers callbackURL as the webhook of gatewayKey.
// It reports whether the provider acknowledged with a plain "OK".
func (c *Client) ActivateCallback(ctx context.Context, gatewayKey, callbackURL string) (bool, error) {
	payload := callbackActivation{
		APKey:       base64.StdEncoding.EncodeToString([]byte(gatewayKey)),
		Chave:       gatewayKey,
		CallbackURL: callbackURL + callbackQuery,
	}
	body, err := c.postJSON(ctx, c.publicBase+pathCallbackActivation+"?cms=moodle", payload)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(body)) == "OK", nil
}

// TransactionStatus reports whether the provider considers txid paid.
func (c *Client) TransactionStatus(ctx context.Context, transactionID string) (bool, error) {
	q := url.Values{"transactionId": {transactionID}}
	body, err := c.do(ctx, http.MethodGet, c.publicBase+pathTransactionStatus+"?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}

	var paid bool
	if err := json.Unmarshal(bytes.TrimSpace(body), &paid); err != nil {
		return false, fmt.Errorf("%w: transaction status is not a boolean: %s", ErrFormat, string(body))
	}
	return paid, nil
}

// getList decodes a JSON array into out. Valid JSON that is not an array leaves out empty.
func (c *Client) getList(ctx context.Context, endpoint string, out any) error {
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return fmt.Errorf("%w: invalid json from %s", ErrFormat, redact(endpoint))
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrFormat, redact(endpoint), err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, redact(endpoint), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPStatusError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// redact strips the query string so credentials never reach error messages.
func redact(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

// looseString accepts a JSON string or number. The legacy endpoints are not consistent.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

// looseInt accepts a JSON number or a numeric string.
type looseInt int

func (i *looseInt) UnmarshalJSON(data []byte) error {
	var s looseString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*i = 0
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		return fmt.Errorf("position %q: %w", string(s), err)
	}
	*i = looseInt(n)
	return nil
}
