package jobrunner

import (
	"net/http"
	"time"
)

// ClientConfig holds configuration for the job runner client
type ClientConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	UserAgent     string
	HTTPClient    *http.Client
	SigningKey    string
	APIKey        string
}

// DefaultConfig returns the default configuration. Retries are off; the job
// bridge retries transport failures itself.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:       "http://localhost:8090",
		Timeout:       30 * time.Second,
		RetryAttempts: 0,
		RetryDelay:    time.Second,
		UserAgent:     "weave-jobrunner-client/1.0",
	}
}

type ClientOption func(*ClientConfig)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *ClientConfig) {
		c.BaseURL = baseURL
	}
}

// WithTimeout bounds each HTTP call. Zero keeps the default.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

func WithRetryAttempts(attempts int) ClientOption {
	return func(c *ClientConfig) {
		c.RetryAttempts = attempts
	}
}

func WithRetryDelay(delay time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.RetryDelay = delay
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *ClientConfig) {
		c.HTTPClient = client
	}
}

// WithSigningKey signs every request with the base64 Ed25519 private key
func WithSigningKey(signingKey string) ClientOption {
	return func(c *ClientConfig) {
		c.SigningKey = signingKey
	}
}

// WithAPIKey sends the key as a bearer token
func WithAPIKey(apiKey string) ClientOption {
	return func(c *ClientConfig) {
		c.APIKey = apiKey
	}
}
