package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignatureVerifier verifies that a webhook request genuinely
// originated from the billing provider. The HMAC is computed over the
// untouched wire bytes: re-serializing a parsed body can change field
// order, whitespace or numeric formatting and break verification.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier creates a new signature verifier
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Verify checks the claimed signature against HMAC-SHA256(secret, body).
// The comparison is constant-time. Any failure must short-circuit the
// request before the payload is interpreted.
func (v *SignatureVerifier) Verify(body []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("missing signature header")
	}
	if !hmac.Equal([]byte(v.Sign(body)), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// Sign returns the hex-encoded HMAC-SHA256 of body.
func (v *SignatureVerifier) Sign(body []byte) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
