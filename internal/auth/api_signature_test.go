package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestSignatureRoundTrip(t *testing.T) {
	keys, err := GenerateKeyPair()
	require.NoError(t, err)

	signer, err := NewRequestSigner(keys.PrivateKey)
	require.NoError(t, err)

	verifier, err := NewSignatureVerifier(keys.PublicKey)
	require.NoError(t, err)

	body := []byte(`{"payload":{"prompt":"hello"}}`)
	headers := signer.SignRequest("POST", "/api/v1/tasks/run-llm-task/trigger", body)

	tests := []struct {
		name      string
		method    string
		path      string
		signature string
		body      []byte
		expectErr bool
	}{
		{name: "valid", method: "POST", path: "/api/v1/tasks/run-llm-task/trigger", signature: headers[SignatureHeader], body: body},
		{name: "tampered body", method: "POST", path: "/api/v1/tasks/run-llm-task/trigger", signature: headers[SignatureHeader], body: []byte(`{}`), expectErr: true},
		{name: "other path", method: "POST", path: "/api/v1/tasks/extract-video-frame/trigger", signature: headers[SignatureHeader], body: body, expectErr: true},
		{name: "other method", method: "GET", path: "/api/v1/tasks/run-llm-task/trigger", signature: headers[SignatureHeader], body: body, expectErr: true},
		{name: "missing prefix", method: "POST", path: "/api/v1/tasks/run-llm-task/trigger", signature: "abc", body: body, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.VerifyRequest(tt.method, tt.path, tt.signature, headers[TimestampHeader], tt.body)
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestSignatureVerifierRejectsStaleTimestamps(t *testing.T) {
	keys, err := GenerateKeyPair()
	require.NoError(t, err)

	signer, err := NewRequestSigner(keys.PrivateKey)
	require.NoError(t, err)
	signer.now = func() time.Time { return time.Now().Add(-10 * time.Minute) }

	verifier, err := NewSignatureVerifier(keys.PublicKey)
	require.NoError(t, err)

	headers := signer.SignRequest("GET", "/api/v1/runs/abc", nil)

	err = verifier.VerifyRequest("GET", "/api/v1/runs/abc", headers[SignatureHeader], headers[TimestampHeader], nil)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestNewRequestSignerRejectsBadKeys(t *testing.T) {
	_, err := NewRequestSigner("not base64!")
	assert.Error(t, err)

	_, err = NewRequestSigner("c2hvcnQ=")
	assert.Error(t, err)

	_, err = NewSignatureVerifier("c2hvcnQ=")
	assert.Error(t, err)
}
