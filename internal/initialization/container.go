package initialization

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowbaker/weave/internal/auth"
	"github.com/flowbaker/weave/internal/config"
	"github.com/flowbaker/weave/internal/controllers"
	"github.com/flowbaker/weave/internal/middlewares"
	"github.com/flowbaker/weave/internal/server"
	"github.com/flowbaker/weave/pkg/clients/cloudinary"
	runnerclient "github.com/flowbaker/weave/pkg/clients/jobrunner"
	"github.com/flowbaker/weave/pkg/clients/s3"
	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/domain/executor"
	"github.com/flowbaker/weave/pkg/editor"
	"github.com/flowbaker/weave/pkg/jobrunner"
	jobrunnerredis "github.com/flowbaker/weave/pkg/jobrunner/redis"
	"github.com/flowbaker/weave/pkg/storage/inmemory"
	"github.com/flowbaker/weave/pkg/storage/mongodb"
	"github.com/flowbaker/weave/pkg/storage/postgres"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type EditorDependencies struct {
	Server   *fiber.App
	Sessions *editor.SessionManager
	// Runner is set when jobs run in process. It must be started before the
	// server accepts requests.
	Runner *jobrunner.Runner
}

type RunnerDependencies struct {
	Server *fiber.App
	Runner *jobrunner.Runner
}

// Container builds the services of both commands from the configuration and
// owns the connections they open.
type Container struct {
	config *config.Config

	redisClient *redis.Client
	closers     []func(ctx context.Context) error
}

func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

func (c *Container) BuildEditorDependencies(ctx context.Context) (*EditorDependencies, error) {
	log.Info().Msg("Building editor dependencies")

	verifier, err := middlewares.NewTokenVerifier(c.config.Auth.JWTSecret, c.config.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	workflows, err := c.workflowRepository(ctx)
	if err != nil {
		return nil, err
	}

	media := c.cloudinaryClient()

	uploader, err := c.mediaUploader(media)
	if err != nil {
		return nil, err
	}

	publisher, err := c.eventPublisher(ctx)
	if err != nil {
		return nil, err
	}

	deps := &EditorDependencies{}

	var jobRunner domain.JobRunner

	if c.config.Runner.URL != "" {
		client, err := c.runnerClient()
		if err != nil {
			return nil, err
		}

		jobRunner = client

		log.Info().Str("url", c.config.Runner.URL).Msg("Using remote job runner")
	} else {
		runner, err := c.localRunner(ctx, media)
		if err != nil {
			return nil, err
		}

		deps.Runner = runner
		jobRunner = runner

		log.Info().Msg("Using in-process job runner")
	}

	deps.Sessions = editor.NewSessionManager(editor.SessionManagerDependencies{
		JobRunner:      jobRunner,
		Cropper:        media,
		Uploader:       uploader,
		EventPublisher: publisher,
		Workflows:      workflows,
		PollConfig: executor.PollConfig{
			Interval:    c.config.Editor.PollInterval,
			MaxAttempts: c.config.Editor.MaxPollAttempts,
		},
		MaxConcurrentRuns: c.config.Editor.MaxConcurrentRuns,
		HistoryDepth:      c.config.Editor.HistoryDepth,
		IdleTimeout:       c.config.Editor.IdleTimeout,
	})

	deps.Server = server.NewHTTPServer(server.HTTPServerDependencies{
		TokenVerifier: verifier,
		SessionController: controllers.NewSessionController(controllers.SessionControllerDependencies{
			Sessions:  deps.Sessions,
			Workflows: workflows,
		}),
		WorkflowController: controllers.NewWorkflowController(controllers.WorkflowControllerDependencies{
			Workflows: workflows,
		}),
	})

	return deps, nil
}

func (c *Container) BuildRunnerDependencies(ctx context.Context) (*RunnerDependencies, error) {
	log.Info().Msg("Building job runner dependencies")

	runner, err := c.localRunner(ctx, c.cloudinaryClient())
	if err != nil {
		return nil, err
	}

	var verifier middlewares.RequestVerifier

	if c.config.Runner.SigningPublicKey != "" {
		signatureVerifier, err := auth.NewSignatureVerifier(c.config.Runner.SigningPublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create signature verifier: %w", err)
		}

		verifier = signatureVerifier
	}

	return &RunnerDependencies{
		Runner: runner,
		Server: server.NewRunnerServer(server.RunnerServerDependencies{
			RunnerController: controllers.NewRunnerController(controllers.RunnerControllerDependencies{
				Runner: runner,
			}),
			Verifier: verifier,
			APIKey:   c.config.Runner.APIKey,
		}),
	}, nil
}

// Close releases every connection opened by the container, newest first.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	c.closers = nil

	return errors.Join(errs...)
}

func (c *Container) onClose(closer func(ctx context.Context) error) {
	c.closers = append(c.closers, closer)
}

func (c *Container) workflowRepository(ctx context.Context) (domain.WorkflowRepository, error) {
	storage := c.config.Storage

	switch storage.Backend {
	case config.StoragePostgres:
		pool, err := postgres.Connect(ctx, storage.PostgresURL)
		if err != nil {
			return nil, err
		}

		c.onClose(func(context.Context) error {
			pool.Close()
			return nil
		})

		repository := postgres.NewWorkflowRepository(pool)
		if err := repository.CreateSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to create workflow schema: %w", err)
		}

		log.Info().Msg("Using PostgreSQL workflow storage")

		return repository, nil
	case config.StorageMongoDB:
		client, database, err := mongodb.Connect(ctx, storage.MongoURI, storage.MongoDatabase)
		if err != nil {
			return nil, err
		}

		c.onClose(client.Disconnect)

		log.Info().Str("database", storage.MongoDatabase).Msg("Using MongoDB workflow storage")

		return mongodb.NewWorkflowRepository(database), nil
	case config.StorageMemory, "":
		log.Warn().Msg("Using in-memory workflow storage, workflows are lost on restart")

		return inmemory.NewWorkflowRepository(), nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", storage.Backend)
}

func (c *Container) cloudinaryClient() *cloudinary.Client {
	return cloudinary.NewClient(cloudinary.Config{
		CloudName:    c.config.Media.Cloudinary.CloudName,
		UploadPreset: c.config.Media.Cloudinary.UploadPreset,
		Folder:       c.config.Media.Cloudinary.Folder,
	})
}

func (c *Container) mediaUploader(media *cloudinary.Client) (domain.MediaUploader, error) {
	switch c.config.Media.Uploader {
	case config.UploaderS3:
		s3Config := c.config.Media.S3

		uploader, err := s3.NewUploader(s3.Config{
			Region:          s3Config.Region,
			Bucket:          s3Config.Bucket,
			AccessKeyID:     s3Config.AccessKeyID,
			SecretAccessKey: s3Config.SecretAccessKey,
			Endpoint:        s3Config.Endpoint,
			KeyPrefix:       s3Config.KeyPrefix,
			PublicBaseURL:   s3Config.PublicBaseURL,
			ForcePathStyle:  s3Config.ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 uploader: %w", err)
		}

		return uploader, nil
	case config.UploaderCloudinary, "":
		return media, nil
	}

	return nil, fmt.Errorf("unknown media uploader %q", c.config.Media.Uploader)
}

func (c *Container) eventPublisher(ctx context.Context) (domain.EventPublisher, error) {
	if !c.config.Editor.PublishEvents {
		return nil, nil
	}

	client, err := c.redis(ctx)
	if err != nil {
		return nil, err
	}

	return jobrunnerredis.NewEventPublisher(client, c.config.Redis.EventChannel), nil
}

func (c *Container) runnerClient() (*runnerclient.Client, error) {
	options := []runnerclient.ClientOption{
		runnerclient.WithBaseURL(c.config.Runner.URL),
		runnerclient.WithRetryAttempts(c.config.Runner.RetryAttempts),
		runnerclient.WithTimeout(c.config.Runner.RequestTimeout),
	}

	if c.config.Runner.APIKey != "" {
		options = append(options, runnerclient.WithAPIKey(c.config.Runner.APIKey))
	}

	if c.config.Runner.SigningPrivateKey != "" {
		options = append(options, runnerclient.WithSigningKey(c.config.Runner.SigningPrivateKey))
	}

	client, err := runnerclient.NewClient(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create job runner client: %w", err)
	}

	return client, nil
}

func (c *Container) localRunner(ctx context.Context, media *cloudinary.Client) (*jobrunner.Runner, error) {
	model, defaultModel, err := NewLanguageModel(ctx, c.config.LLM)
	if err != nil {
		return nil, err
	}

	var store jobrunner.RunStore

	switch c.config.Runner.Store {
	case config.StorageRedis:
		client, err := c.redis(ctx)
		if err != nil {
			return nil, err
		}

		store = jobrunnerredis.NewStore(client, jobrunnerredis.StoreOpts{
			KeyPrefix: c.config.Redis.KeyPrefix,
			TTL:       c.config.Redis.RunTTL,
		})
	case config.StorageMemory, "":
		store = jobrunner.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown run store %q", c.config.Runner.Store)
	}

	log.Info().
		Str("provider", c.config.LLM.Provider).
		Str("model", defaultModel).
		Str("store", c.config.Runner.Store).
		Msg("Job runner configured")

	return jobrunner.NewRunner(jobrunner.RunnerDependencies{
		Store: store,
		Handlers: map[domain.JobKind]jobrunner.TaskHandler{
			domain.JobKindRunLLMTask:        jobrunner.NewRunLLMTask(model, defaultModel),
			domain.JobKindExtractVideoFrame: jobrunner.NewExtractFrameTask(media),
		},
		Workers:     c.config.Runner.Workers,
		QueueSize:   c.config.Runner.QueueSize,
		MaxDuration: c.config.Runner.MaxDuration,
	}), nil
}

// redis returns the shared Redis client, connecting on first use.
func (c *Container) redis(ctx context.Context) (*redis.Client, error) {
	if c.redisClient != nil {
		return c.redisClient, nil
	}

	client, err := jobrunnerredis.NewClient(ctx, jobrunnerredis.Options{
		Addr:     c.config.Redis.Addr,
		Username: c.config.Redis.Username,
		Password: c.config.Redis.Password,
		DB:       c.config.Redis.DB,
	})
	if err != nil {
		return nil, err
	}

	c.redisClient = client
	c.onClose(func(context.Context) error {
		return client.Close()
	})

	return client, nil
}
