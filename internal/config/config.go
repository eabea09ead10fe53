package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowbaker/weave/pkg/ai"
	"github.com/flowbaker/weave/pkg/domain/executor"
	"github.com/flowbaker/weave/pkg/jobrunner"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "WEAVE"
	ConfigFileName = "weave"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongoDB  = "mongodb"
	StorageRedis    = "redis"

	UploaderCloudinary = "cloudinary"
	UploaderS3         = "s3"
)

var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	HTTPAddress string        `mapstructure:"http_address"`
	Auth        AuthConfig    `mapstructure:"auth"`
	Editor      EditorConfig  `mapstructure:"editor"`
	Runner      RunnerConfig  `mapstructure:"runner"`
	Redis       RedisConfig   `mapstructure:"redis"`
	LLM         LLMConfig     `mapstructure:"llm"`
	Media       MediaConfig   `mapstructure:"media"`
	Storage     StorageConfig `mapstructure:"storage"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type EditorConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts   int           `mapstructure:"max_poll_attempts"`
	MaxConcurrentRuns int64         `mapstructure:"max_concurrent_runs"`
	HistoryDepth      int           `mapstructure:"history_depth"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	PublishEvents     bool          `mapstructure:"publish_events"`
}

// RunnerConfig configures both sides of the job runner: the client used by
// the editor and the server started by the runner command. An empty URL
// makes the editor run jobs in process.
type RunnerConfig struct {
	URL               string        `mapstructure:"url"`
	HTTPAddress       string        `mapstructure:"http_address"`
	APIKey            string        `mapstructure:"api_key"`
	SigningPrivateKey string        `mapstructure:"signing_private_key"`
	SigningPublicKey  string        `mapstructure:"signing_public_key"`
	Workers           int           `mapstructure:"workers"`
	QueueSize         int           `mapstructure:"queue_size"`
	MaxDuration       time.Duration `mapstructure:"max_duration"`
	Store             string        `mapstructure:"store"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	RunTTL       time.Duration `mapstructure:"run_ttl"`
	EventChannel string        `mapstructure:"event_channel"`
}

type LLMConfig struct {
	Provider        string `mapstructure:"provider"`
	Model           string `mapstructure:"model"`
	BaseURL         string `mapstructure:"base_url"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	switch ai.Provider(c.Provider) {
	case ai.ProviderOpenAI:
		return c.OpenAIAPIKey
	case ai.ProviderAnthropic:
		return c.AnthropicAPIKey
	}

	return c.GeminiAPIKey
}

type MediaConfig struct {
	Uploader   string           `mapstructure:"uploader"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	S3         S3Config         `mapstructure:"s3"`
}

type CloudinaryConfig struct {
	CloudName    string `mapstructure:"cloud_name"`
	UploadPreset string `mapstructure:"upload_preset"`
	Folder       string `mapstructure:"folder"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	PostgresURL   string `mapstructure:"postgres_url"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// envBindings maps config keys to the conventional, unprefixed variables of
// the third-party services. The prefixed form keeps working.
var envBindings = map[string]string{
	"llm.gemini_api_key":             "GEMINI_API_KEY",
	"llm.openai_api_key":             "OPENAI_API_KEY",
	"llm.anthropic_api_key":          "ANTHROPIC_API_KEY",
	"media.cloudinary.cloud_name":    "CLOUDINARY_CLOUD_NAME",
	"media.cloudinary.upload_preset": "CLOUDINARY_UPLOAD_PRESET",
	"media.s3.access_key_id":         "AWS_ACCESS_KEY_ID",
	"media.s3.secret_access_key":     "AWS_SECRET_ACCESS_KEY",
	"media.s3.region":                "AWS_REGION",
	"storage.postgres_url":           "DATABASE_URL",
	"storage.mongo_uri":              "MONGODB_URI",
	"redis.addr":                     "REDIS_ADDR",
}

// Load reads configuration from defaults, the optional config file and the
// environment. configFile overrides the search paths when set.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, envVar := range envBindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))

		if err := v.BindEnv(key, prefixed, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, key)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.weave")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_address", ":8080")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("editor.poll_interval", executor.DefaultPollInterval)
	v.SetDefault("editor.max_poll_attempts", executor.DefaultMaxPollAttempts)
	v.SetDefault("editor.max_concurrent_runs", 0)
	v.SetDefault("editor.history_depth", 0)
	v.SetDefault("editor.idle_timeout", 30*time.Minute)
	v.SetDefault("editor.publish_events", false)

	v.SetDefault("runner.url", "")
	v.SetDefault("runner.http_address", ":8090")
	v.SetDefault("runner.api_key", "")
	v.SetDefault("runner.signing_private_key", "")
	v.SetDefault("runner.signing_public_key", "")
	v.SetDefault("runner.workers", jobrunner.DefaultWorkers)
	v.SetDefault("runner.queue_size", jobrunner.DefaultQueueSize)
	v.SetDefault("runner.max_duration", jobrunner.DefaultMaxDuration)
	v.SetDefault("runner.store", StorageMemory)
	v.SetDefault("runner.retry_attempts", 0)
	v.SetDefault("runner.request_timeout", 30*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "weave")
	v.SetDefault("redis.run_ttl", 24*time.Hour)
	v.SetDefault("redis.event_channel", "weave:events")

	v.SetDefault("llm.provider", string(ai.ProviderGemini))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")

	v.SetDefault("media.uploader", UploaderCloudinary)
	v.SetDefault("media.cloudinary.folder", "")
	v.SetDefault("media.s3.bucket", "")
	v.SetDefault("media.s3.endpoint", "")
	v.SetDefault("media.s3.key_prefix", "")
	v.SetDefault("media.s3.public_base_url", "")
	v.SetDefault("media.s3.force_path_style", false)

	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.mongo_database", "weave")
}

// ValidateEditor checks what the serve command needs.
func (c *Config) ValidateEditor() error {
	var missing []string

	if c.Auth.JWTSecret == "" {
		missing = append(missing, "WEAVE_AUTH_JWT_SECRET")
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StorageMongoDB:
		if c.Storage.MongoURI == "" {
			missing = append(missing, "MONGODB_URI")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Media.Uploader {
	case UploaderCloudinary:
		if c.Media.Cloudinary.CloudName == "" {
			missing = append(missing, "CLOUDINARY_CLOUD_NAME")
		}
	case UploaderS3:
		if c.Media.S3.Bucket == "" {
			missing = append(missing, "WEAVE_MEDIA_S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown media uploader %q", c.Media.Uploader)
	}

	// Without a runner URL jobs run in process and need the runner settings.
	if c.Runner.URL == "" {
		missing = append(missing, c.missingRunnerValues()...)
	}

	return missingError(missing)
}

// ValidateRunner checks what the runner command needs.
func (c *Config) ValidateRunner() error {
	return missingError(c.missingRunnerValues())
}

func (c *Config) missingRunnerValues() []string {
	var missing []string

	if !ai.Provider(c.LLM.Provider).IsValid() {
		missing = append(missing, fmt.Sprintf("WEAVE_LLM_PROVIDER (got %q)", c.LLM.Provider))
	} else if c.LLM.APIKey() == "" {
		missing = append(missing, strings.ToUpper(c.LLM.Provider)+"_API_KEY")
	}

	if c.Runner.Store == StorageRedis && c.Redis.Addr == "" {
		missing = append(missing, "REDIS_ADDR")
	}

	return missing
}

func missingError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
}
