package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
)

type DB int
type ReleaseLock func() error

var ErrNotFound = errors.New("document not found")

type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
}

type Config struct {
	LockExpirationSeconds   int     `envconfig:"OBQ_REDIS_LOCK_EXPIRATION" default:"3"`
	Host                    string  `envconfig:"OBQ_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"OBQ_REDIS_PORT" required:"true"`
	HASentinelPort          string  `envconfig:"OBQ_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"OBQ_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"OBQ_REDIS_AUTH_PASSWORD" default:"0"`
	AuthRequired            bool    `envconfig:"OBQ_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"OBQ_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"OBQ_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

func NewClient(db DB) (Client, error) {
	cfg, err := readEnvironment()
	if err != nil {
		return Client{}, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = CreateClusterClient(cfg, db)
	} else {
		client = CreateClient(cfg, db)
	}
	return NewClientFrom(client, time.Duration(cfg.LockExpirationSeconds)*time.Second), nil
}

// NewClientFrom wraps an existing connection, e.g. one to a test server.
func NewClientFrom(client redis.UniversalClient, lockExpiration time.Duration) Client {
	return Client{
		client:         client,
		lockExpiration: lockExpiration,
	}
}

func CreateClusterClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(cfg.HASentinelSocketTimeout * float32(time.Second))
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func CreateClient(cfg *Config, db DB) *redis.Client {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	options := redis.Options{
		Addr:       addr,
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

func (client *Client) GetDocument(ctx context.Context, redisKey string, doc interface{}) error {
	b, err := client.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrNotFound, redisKey)
	}
	if err != nil {
		return err
	}
	if err = json.Unmarshal(b, doc); err != nil {
		return fmt.Errorf("decoding %s: %w", redisKey, err)
	}
	return nil
}

// UpdateDocument reads the document under lock, applies update and saves it back.
func (client *Client) UpdateDocument(ctx context.Context, redisKey string, doc interface{}, update func()) (err error) {
	releaseLock, err := client.Lock(ctx, redisKey)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := releaseLock(); err == nil {
			err = releaseErr
		}
	}()
	if err = client.GetDocument(ctx, redisKey, doc); err != nil {
		return err
	}
	update()
	return client.SaveDoc(ctx, redisKey, doc)
}

func (client *Client) Lock(ctx context.Context, redisKey string) (ReleaseLock, error) {
	return client.LockFor(ctx, fmt.Sprintf("lock:%s", redisKey), client.lockExpiration)
}

// LockFor obtains lockKey for ttl, retrying every second for up to a minute.
func (client *Client) LockFor(ctx context.Context, lockKey string, ttl time.Duration) (ReleaseLock, error) {
	lockCl := redislock.New(client.client)
	str := redislock.LimitRetry(redislock.LinearBackoff(time.Second), 60)
	lock, err := lockCl.Obtain(ctx, lockKey, ttl, &redislock.Options{RetryStrategy: str})
	if err != nil {
		return nil, fmt.Errorf("obtaining %s: %w", lockKey, err)
	}
	return func() error {
		return lock.Release(context.Background())
	}, nil
}

func (client *Client) SaveDoc(ctx context.Context, redisKey string, document interface{}) error {
	b, err := json.Marshal(document)
	if err != nil {
		return err
	}
	return client.client.Set(ctx, redisKey, b, 0).Err()
}

func (client *Client) Close() error {
	return client.client.Close()
}

func readEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
