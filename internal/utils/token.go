package utils

import (
	"crypto/rand"
	"encoding/base64"
)

const paymentTokenLength = 8

// NewPaymentToken returns an 8 character URL-safe token carrying 48 random bits.
func NewPaymentToken() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:paymentTokenLength], nil
}
