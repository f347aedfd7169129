package ifthenpay

import (
	"errors"
	"fmt"
)

var (
	ErrNoBackofficeKey      = errors.New("ifthenpay: backoffice key is not configured")
	ErrInvalidBackofficeKey = errors.New("ifthenpay: backoffice key is not valid")
	ErrTransport            = errors.New("ifthenpay: request failed")
	ErrFormat               = errors.New("ifthenpay: unexpected response format")
	// ErrInvalidPayByLinkResponse also matches ErrFormat.
	ErrInvalidPayByLinkResponse = fmt.Errorf("%w: invalid pay-by-link response", ErrFormat)
	ErrInvalidState             = errors.New("ifthenpay: gateway state is not valid")
)

// HTTPStatusError is returned for any response with status >= 400.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("ifthenpay: http status %d, body: %s", e.Status, e.Body)
}

func (e *HTTPStatusError) Unwrap() error {
	return ErrTransport
}
