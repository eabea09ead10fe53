package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", config.HTTPAddress)
	assert.Equal(t, time.Second, config.Editor.PollInterval)
	assert.Equal(t, 60, config.Editor.MaxPollAttempts)
	assert.Equal(t, "gemini", config.LLM.Provider)
	assert.Equal(t, StorageMemory, config.Storage.Backend)
	assert.Equal(t, StorageMemory, config.Runner.Store)
	assert.Equal(t, UploaderCloudinary, config.Media.Uploader)
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WEAVE_AUTH_JWT_SECRET", "secret")
	t.Setenv("WEAVE_EDITOR_POLL_INTERVAL", "250ms")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("WEAVE_LLM_OPENAI_API_KEY", "openai-key")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "secret", config.Auth.JWTSecret)
	assert.Equal(t, 250*time.Millisecond, config.Editor.PollInterval)
	assert.Equal(t, "gemini-key", config.LLM.GeminiAPIKey)
	assert.Equal(t, "openai-key", config.LLM.OpenAIAPIKey)
	assert.Equal(t, "demo", config.Media.Cloudinary.CloudName)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "weave.yaml")
	content := []byte(`
http_address: ":9000"
llm:
  provider: anthropic
  anthropic_api_key: claude-key
storage:
  backend: postgres
  postgres_url: postgres://localhost/weave
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", config.HTTPAddress)
	assert.Equal(t, "claude-key", config.LLM.APIKey())
	assert.Equal(t, StoragePostgres, config.Storage.Backend)
	assert.Equal(t, "postgres://localhost/weave", config.Storage.PostgresURL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		Auth:    AuthConfig{JWTSecret: "secret"},
		LLM:     LLMConfig{Provider: "gemini", GeminiAPIKey: "key"},
		Media:   MediaConfig{Uploader: UploaderCloudinary, Cloudinary: CloudinaryConfig{CloudName: "demo"}},
		Storage: StorageConfig{Backend: StorageMemory},
		Runner:  RunnerConfig{Store: StorageMemory},
	}
}

func TestValidateEditor(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "WEAVE_AUTH_JWT_SECRET"},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Storage.Backend = StoragePostgres },
			wantErr: "DATABASE_URL",
		},
		{
			name:    "mongodb without uri",
			mutate:  func(c *Config) { c.Storage.Backend = StorageMongoDB },
			wantErr: "MONGODB_URI",
		},
		{
			name:    "unknown storage",
			mutate:  func(c *Config) { c.Storage.Backend = "sqlite" },
			wantErr: "unknown storage backend",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Media.Uploader = UploaderS3 },
			wantErr: "WEAVE_MEDIA_S3_BUCKET",
		},
		{
			name:    "in-process runner without model key",
			mutate:  func(c *Config) { c.LLM.GeminiAPIKey = "" },
			wantErr: "GEMINI_API_KEY",
		},
		{
			name: "remote runner does not need model key",
			mutate: func(c *Config) {
				c.LLM.GeminiAPIKey = ""
				c.Runner.URL = "http://runner:8090"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.ValidateEditor()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRunner(t *testing.T) {
	tests := []struct {
		name    string
		llm     LLMConfig
		wantErr string
	}{
		{name: "gemini", llm: LLMConfig{Provider: "gemini", GeminiAPIKey: "k"}},
		{name: "openai", llm: LLMConfig{Provider: "openai", OpenAIAPIKey: "k"}},
		{name: "openai without key", llm: LLMConfig{Provider: "openai", GeminiAPIKey: "k"}, wantErr: "OPENAI_API_KEY"},
		{name: "unknown provider", llm: LLMConfig{Provider: "llama"}, wantErr: "WEAVE_LLM_PROVIDER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.LLM = tt.llm

			err := config.ValidateRunner()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, ErrMissingConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
