// Package ingress converts external events into executions: webhook HMAC
// verification and dispatch, and inbound email parsing for SendGrid,
// Mailgun, and a generic fallback.
package ingress

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// NewWebhookToken generates the 24-byte, base64url-encoded (32-char)
// opaque token a WEBHOOK trigger's URL path segment embeds.
func NewWebhookToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook token: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(buf), nil
}

// NewEmailAddress generates a 12-random-byte, hex-encoded inbound address
// of the form "trigger-<hex>@<inboundDomain>" an EMAIL trigger listens on.
func NewEmailAddress(inboundDomain string) (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate email trigger address: %w", err)
	}
	return fmt.Sprintf("trigger-%s@%s", hex.EncodeToString(buf), inboundDomain), nil
}
