package fathom

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
)

func signPayload(t *testing.T, secret []byte, webhookID, timestamp string, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s.%s.%s", webhookID, timestamp, payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	rawSecret := []byte("0123456789abcdef0123456789abcdef")
	secret := "whsec_" + base64.StdEncoding.EncodeToString(rawSecret)
	payload := []byte(`{"recording_id":42}`)
	sig := signPayload(t, rawSecret, "msg_1", "1717000000", payload)

	tests := []struct {
		name      string
		signature string
		want      bool
	}{
		{"valid v1 signature", "v1," + sig, true},
		{"valid among multiple signatures", "v2,bogus v1," + sig, true},
		{"wrong signature", "v1,AAAA", false},
		{"unknown version only", "v2," + sig, false},
		{"malformed header", "nocommahere", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyWebhookSignature(payload, "msg_1", "1717000000", tt.signature, secret)
			if err != nil {
				t.Fatalf("VerifyWebhookSignature() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifyWebhookSignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyWebhookSignatureSecretHandling(t *testing.T) {
	rawSecret := []byte("another-32-byte-secret-value!!!!")
	payload := []byte(`{}`)
	sig := signPayload(t, rawSecret, "msg_2", "1717000001", payload)

	// Secret without the whsec_ prefix still verifies.
	bare := base64.StdEncoding.EncodeToString(rawSecret)
	ok, err := VerifyWebhookSignature(payload, "msg_2", "1717000001", "v1,"+sig, bare)
	if err != nil || !ok {
		t.Errorf("bare secret: got (%v, %v), want (true, nil)", ok, err)
	}

	if _, err := VerifyWebhookSignature(payload, "msg_2", "1717000001", "v1,"+sig, ""); err == nil {
		t.Error("empty secret should return an error")
	}

	if _, err := VerifyWebhookSignature(payload, "msg_2", "1717000001", "v1,"+sig, "whsec_%%%"); err == nil {
		t.Error("non-base64 secret should return an error")
	}

	// Tampered payload must not verify.
	ok, err = VerifyWebhookSignature([]byte(`{"x":1}`), "msg_2", "1717000001", "v1,"+sig, bare)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("tampered payload verified")
	}
}
