package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-API-Signature"
	TimestampHeader = "X-API-Timestamp"

	signaturePrefix = "ed25519="

	DefaultSignatureWindow = 5 * time.Minute
)

var ErrInvalidSignature = errors.New("invalid request signature")

// KeyPair holds base64 encoded Ed25519 keys.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

func GenerateKeyPair() (KeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate key pair: %w", err)
	}

	return KeyPair{
		PublicKey:  base64.StdEncoding.EncodeToString(publicKey),
		PrivateKey: base64.StdEncoding.EncodeToString(privateKey),
	}, nil
}

// canonicalRequest is the signed form of a request: method, path, a blank
// line, the unix timestamp and the body digest.
func canonicalRequest(method, path, timestamp string, body []byte) []byte {
	bodyHash := sha256.Sum256(body)

	return []byte(fmt.Sprintf("%s\n%s\n\n%s\nsha256:%x", method, path, timestamp, bodyHash))
}

// RequestSigner signs job runner requests
type RequestSigner struct {
	privateKey ed25519.PrivateKey
	now        func() time.Time
}

func NewRequestSigner(privateKeyBase64 string) (*RequestSigner, error) {
	privateKeyBytes, err := base64.StdEncoding.DecodeString(privateKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	if len(privateKeyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: expected %d, got %d", ed25519.PrivateKeySize, len(privateKeyBytes))
	}

	return &RequestSigner{
		privateKey: ed25519.PrivateKey(privateKeyBytes),
		now:        time.Now,
	}, nil
}

// SignRequest returns the headers to attach to the request
func (s *RequestSigner) SignRequest(method, path string, body []byte) map[string]string {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	signature := ed25519.Sign(s.privateKey, canonicalRequest(method, path, timestamp, body))

	return map[string]string{
		SignatureHeader: signaturePrefix + base64.StdEncoding.EncodeToString(signature),
		TimestampHeader: timestamp,
	}
}

// SignatureVerifier checks signatures made by RequestSigner
type SignatureVerifier struct {
	publicKey ed25519.PublicKey
	window    time.Duration
	now       func() time.Time
}

func NewSignatureVerifier(publicKeyBase64 string) (*SignatureVerifier, error) {
	publicKeyBytes, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}

	if len(publicKeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: expected %d, got %d", ed25519.PublicKeySize, len(publicKeyBytes))
	}

	return &SignatureVerifier{
		publicKey: ed25519.PublicKey(publicKeyBytes),
		window:    DefaultSignatureWindow,
		now:       time.Now,
	}, nil
}

func (v *SignatureVerifier) VerifyRequest(method, path, signatureHeader, timestampHeader string, body []byte) error {
	encoded, ok := strings.CutPrefix(signatureHeader, signaturePrefix)
	if !ok || encoded == "" {
		return fmt.Errorf("%w: unsupported signature format", ErrInvalidSignature)
	}

	signature, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	timestamp, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
	}

	skew := v.now().Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}

	if skew > v.window {
		return fmt.Errorf("%w: timestamp outside allowed window", ErrInvalidSignature)
	}

	if !ed25519.Verify(v.publicKey, canonicalRequest(method, path, timestampHeader, body), signature) {
		return fmt.Errorf("%w: verification failed", ErrInvalidSignature)
	}

	return nil
}
