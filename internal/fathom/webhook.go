package fathom

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// VerifyWebhookSignature checks an incoming webhook payload against the
// signature headers Fathom sends.
//
// Parameters:
//   - payload: Raw request body bytes
//   - webhookID: Value of the "webhook-id" header
//   - timestamp: Value of the "webhook-timestamp" header
//   - signature: Value of the "webhook-signature" header
//   - secret: Webhook secret, with or without the "whsec_" prefix
//
// The signature header may carry multiple space-separated
// version-prefixed signatures (e.g. "v1,<base64>"). Verification
// succeeds when any v1 signature matches.
func VerifyWebhookSignature(payload []byte, webhookID, timestamp, signature, secret string) (bool, error) {
	if secret == "" {
		return false, fmt.Errorf("webhook secret is required")
	}

	secret = strings.TrimPrefix(secret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return false, fmt.Errorf("invalid webhook secret: %w", err)
	}

	signedPayload := fmt.Sprintf("%s.%s.%s", webhookID, timestamp, payload)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signedPayload))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, part := range strings.Split(signature, " ") {
		version, value, ok := strings.Cut(part, ",")
		if !ok {
			continue
		}
		if version == "v1" && hmac.Equal([]byte(value), []byte(expected)) {
			return true, nil
		}
	}

	return false, nil
}
