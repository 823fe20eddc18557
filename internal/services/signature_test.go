package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureVerifierAcceptsValidSignature(t *testing.T) {
	v := NewSignatureVerifier("secret")
	body := []byte(`{"event":"subscription.charged"}`)

	require.NoError(t, v.Verify(body, v.Sign(body)))
}

func TestSignatureVerifierRejectsMissingSignature(t *testing.T) {
	v := NewSignatureVerifier("secret")

	err := v.Verify([]byte(`{}`), "")
	require.Error(t, err)
}

func TestSignatureVerifierRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"event":"subscription.charged"}`)
	signed := NewSignatureVerifier("other-secret").Sign(body)

	err := NewSignatureVerifier("secret").Verify(body, signed)
	require.Error(t, err)
}

func TestSignatureVerifierRejectsTamperedBody(t *testing.T) {
	v := NewSignatureVerifier("secret")
	signature := v.Sign([]byte(`{"event":"subscription.charged"}`))

	err := v.Verify([]byte(`{"event":"subscription.cancelled"}`), signature)
	require.Error(t, err)
}

func TestSignatureVerifierIsByteExact(t *testing.T) {
	// Re-serialization can change whitespace without changing meaning;
	// the signature must still fail because it covers the wire bytes.
	v := NewSignatureVerifier("secret")
	signature := v.Sign([]byte(`{"event": "subscription.charged"}`))

	err := v.Verify([]byte(`{"event":"subscription.charged"}`), signature)
	assert.Error(t, err)
}
