package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/jobrunner"
	"github.com/redis/go-redis/v9"
)

const DefaultRunTTL = 24 * time.Hour

type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

type StoreOpts struct {
	KeyPrefix string
	TTL       time.Duration
}

// Store keeps job runs as JSON strings that expire after TTL.
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewStore(client *redis.Client, opts StoreOpts) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}

	return &Store{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		ttl:       ttl,
	}
}

func (s *Store) runKey(id string) string {
	if s.keyPrefix != "" {
		return fmt.Sprintf("%s:runs:%s", s.keyPrefix, id)
	}
	return fmt.Sprintf("runs:%s", id)
}

func (s *Store) Save(ctx context.Context, run domain.JobRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := s.client.Set(ctx, s.runKey(run.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.JobRun, error) {
	data, err := s.client.Get(ctx, s.runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.JobRun{}, jobrunner.ErrRunNotFound
	}

	if err != nil {
		return domain.JobRun{}, fmt.Errorf("failed to get run: %w", err)
	}

	var run domain.JobRun
	if err := json.Unmarshal(data, &run); err != nil {
		return domain.JobRun{}, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return run, nil
}
