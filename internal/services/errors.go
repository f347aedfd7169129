package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPayableNotFound     = errors.New("payable not found")
	ErrMissingGatewayState = errors.New("gateway is not configured for this payment account")
	ErrMissingRedirect     = errors.New("provider returned no redirect url")
	ErrUnsupportedCurrency = errors.New("currency is not supported by the gateway")
	ErrGatewayDisabled     = errors.New("gateway is disabled for this payment account")
	ErrKeyMismatch         = errors.New("anti-phishing key does not match")
	ErrAmountMismatch      = errors.New("amount does not match")
	ErrInvalidFailureState = errors.New("failure state must be CANCELED or ERROR")
)

// ValidationError collects per-field messages for admin forms.
type ValidationError struct {
	Fields map[string]string `json:"errors"`
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// Err returns nil when no field failed.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
